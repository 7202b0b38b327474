package ports

import (
	"context"

	"github.com/aretw0/espalier/pkg/domain"
)

// Persister abstracts durable storage of State snapshots, keyed by
// (entity id, partition key). History is append-only: implementations
// never overwrite or delete a stored sequence.
//
// The optimistic check in Save is the engine's only concurrency-control
// mechanism. No locks are held across a load/compute/save cycle;
// conflicts are detected, not prevented, and retried by the caller.
type Persister interface {
	// Load returns the current (highest-sequence) snapshot for the
	// partition. Returns domain.ErrNotFound if nothing was ever saved.
	Load(ctx context.Context, entityID, partitionKey string) (*domain.State, error)

	// LoadHistory returns up to limit snapshots, most recent first,
	// skipping the offset most recent. limit <= 0 means "no limit".
	// Re-calling with an advanced offset restarts a finite listing; this
	// is never an unbounded stream.
	LoadHistory(ctx context.Context, entityID, partitionKey string, limit, offset int) ([]*domain.State, error)

	// Save atomically stores state as the new current snapshot, but only
	// if the currently stored sequence equals expectedPrev
	// (domain.NoPriorSequence when the partition is empty). On mismatch
	// it returns a *domain.ConflictError carrying the actual stored
	// sequence and leaves storage untouched.
	//
	// Unreachable backing stores surface as domain.ErrStorageUnavailable,
	// never as ErrNotFound.
	Save(ctx context.Context, state *domain.State, expectedPrev uint64) error
}
