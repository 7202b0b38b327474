package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/espalier/pkg/adapters/memory"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersister_Contract(t *testing.T) {
	p := memory.New()
	ports.RunPersisterContract(t, p)
}

func TestMemoryPersister_ConcurrentSavesOneWinner(t *testing.T) {
	p := memory.New()
	ctx := context.Background()

	base := domain.NewState("site-1", domain.PartitionDraft, domain.Content{})
	require.NoError(t, p.Save(ctx, base, domain.NoPriorSequence))

	// Many writers race the same expected sequence; exactly one wins.
	const writers = 16
	var wg sync.WaitGroup
	conflicts := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := base.WithContent(domain.Content{Theme: domain.Theme{"writer": "me"}})
			if err := p.Save(ctx, next, base.Sequence); err != nil {
				conflicts <- err
			}
		}()
	}
	wg.Wait()
	close(conflicts)

	var conflictCount int
	for err := range conflicts {
		assert.ErrorIs(t, err, domain.ErrConflict)
		conflictCount++
	}
	assert.Equal(t, writers-1, conflictCount)

	cur, err := p.Load(ctx, "site-1", domain.PartitionDraft)
	require.NoError(t, err)
	assert.Equal(t, base.Sequence+1, cur.Sequence)
}

func TestMemoryPersister_RejectsNonSuccessorSequence(t *testing.T) {
	p := memory.New()
	ctx := context.Background()

	// A snapshot whose sequence skips ahead of its expectation is a
	// caller bug, distinct from an optimistic conflict.
	skipped := domain.NewState("site-1", domain.PartitionDraft, domain.Content{}).WithContent(domain.Content{})
	err := p.Save(ctx, skipped, domain.NoPriorSequence)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}
