// Package memory provides an in-memory Persister, used for tests and
// ephemeral editor sessions.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/espalier/pkg/domain"
)

type partitionKey struct {
	entityID  string
	partition string
}

// Persister implements ports.Persister with an in-process map holding the
// full history per (entity, partition). Safe for concurrent use.
type Persister struct {
	mu   sync.RWMutex
	data map[partitionKey][]*domain.State // ascending sequence order
}

// New creates a new in-memory persister.
func New() *Persister {
	return &Persister{
		data: make(map[partitionKey][]*domain.State),
	}
}

// Save appends state as the new current snapshot, guarded by the
// compare-and-swap check on the stored sequence.
func (p *Persister) Save(ctx context.Context, state *domain.State, expectedPrev uint64) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.EntityID == "" || state.PartitionKey == "" {
		return fmt.Errorf("entity id and partition key cannot be empty")
	}

	key := partitionKey{state.EntityID, state.PartitionKey}

	p.mu.Lock()
	defer p.mu.Unlock()

	history := p.data[key]
	var current uint64
	if len(history) > 0 {
		current = history[len(history)-1].Sequence
	}

	// The CAS check comes first: a stale expectation is a Conflict even
	// when the snapshot itself is malformed.
	if current != expectedPrev {
		return &domain.ConflictError{
			EntityID:     state.EntityID,
			PartitionKey: state.PartitionKey,
			Expected:     expectedPrev,
			Actual:       current,
		}
	}
	if state.Sequence != expectedPrev+1 {
		return fmt.Errorf("state sequence %d does not follow expected previous sequence %d", state.Sequence, expectedPrev)
	}

	// Deep copy on write so later caller mutations cannot reach history.
	p.data[key] = append(history, state.Clone())
	return nil
}

// Load returns the current snapshot for the partition.
func (p *Persister) Load(ctx context.Context, entityID, partition string) (*domain.State, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	history := p.data[partitionKey{entityID, partition}]
	if len(history) == 0 {
		return nil, domain.ErrNotFound
	}

	// Copy on read so the caller cannot mutate stored history.
	return history[len(history)-1].Clone(), nil
}

// LoadHistory returns snapshots most recent first.
func (p *Persister) LoadHistory(ctx context.Context, entityID, partition string, limit, offset int) ([]*domain.State, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	history := p.data[partitionKey{entityID, partition}]

	if offset < 0 {
		offset = 0
	}
	if offset >= len(history) {
		return nil, nil
	}

	remaining := len(history) - offset
	if limit <= 0 || limit > remaining {
		limit = remaining
	}

	out := make([]*domain.State, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, history[len(history)-1-offset-i].Clone())
	}
	return out, nil
}
