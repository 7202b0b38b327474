package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	redisadapter "github.com/aretw0/espalier/pkg/adapters/redis"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPersister(t *testing.T) (*miniredis.Miniredis, *redisadapter.Persister) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, redisadapter.NewFromClient(client, redisadapter.WithPrefix("test:snapshot:"))
}

func TestRedisPersister_Contract(t *testing.T) {
	_, p := newTestPersister(t)
	ports.RunPersisterContract(t, p)
}

func TestRedisPersister_ConcurrentHeadAdvanceConflicts(t *testing.T) {
	mr, p := newTestPersister(t)
	ctx := context.Background()

	base := domain.NewState("site-1", domain.PartitionDraft, domain.Content{})
	require.NoError(t, p.Save(ctx, base, domain.NoPriorSequence))

	// Another writer bumps the head directly, simulating a racing
	// process between our Load and Save.
	require.NoError(t, mr.Set("test:snapshot:site-1:draft:head", "2"))

	stale := base.WithContent(domain.Content{})
	err := p.Save(ctx, stale, base.Sequence)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	var cerr *domain.ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, uint64(2), cerr.Actual)
}

func TestRedisPersister_UnreachableStoreIsUnavailable(t *testing.T) {
	mr, p := newTestPersister(t)
	ctx := context.Background()

	state := domain.NewState("site-1", domain.PartitionDraft, domain.Content{})
	require.NoError(t, p.Save(ctx, state, domain.NoPriorSequence))

	mr.Close()

	_, err := p.Load(ctx, "site-1", domain.PartitionDraft)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound, "connection failure must never read as missing data")

	err = p.Save(ctx, state.WithContent(domain.Content{}), state.Sequence)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
