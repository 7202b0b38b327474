// Package redis provides a Redis-backed Persister for multi-process
// deployments: the compare-and-swap save is an optimistic Redis
// transaction (WATCH/MULTI/EXEC) on the partition's head key, so any
// number of stateless editor processes can share one store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aretw0/espalier/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Persister implements ports.Persister using Redis.
//
// Layout per (entity, partition):
//
//	<prefix><entity>:<partition>:head  -> current sequence number
//	<prefix><entity>:<partition>:<n>   -> snapshot JSON for sequence n
type Persister struct {
	client *backend.Client
	prefix string
}

type Option func(*Persister)

// WithPrefix sets the key prefix for snapshots.
func WithPrefix(prefix string) Option {
	return func(p *Persister) {
		p.prefix = prefix
	}
}

// New creates a new Redis persister with options.
func New(address, password string, db int, opts ...Option) *Persister {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a new Redis persister from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Persister {
	p := &Persister{
		client: client,
		prefix: "espalier:snapshot:",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Persister) headKey(entityID, partition string) string {
	return fmt.Sprintf("%s%s:%s:head", p.prefix, entityID, partition)
}

func (p *Persister) snapshotKey(entityID, partition string, sequence uint64) string {
	return fmt.Sprintf("%s%s:%s:%d", p.prefix, entityID, partition, sequence)
}

// Save stores the snapshot and advances the head pointer in one
// transaction, aborted by Redis if another writer touches the head key
// between the read and the EXEC.
func (p *Persister) Save(ctx context.Context, state *domain.State, expectedPrev uint64) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.EntityID == "" || state.PartitionKey == "" {
		return fmt.Errorf("entity id and partition key cannot be empty")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	headKey := p.headKey(state.EntityID, state.PartitionKey)

	err = p.client.Watch(ctx, func(tx *backend.Tx) error {
		current, err := readSequence(tx.Get(ctx, headKey))
		if err != nil {
			return err
		}

		if current != expectedPrev {
			return &domain.ConflictError{
				EntityID:     state.EntityID,
				PartitionKey: state.PartitionKey,
				Expected:     expectedPrev,
				Actual:       current,
			}
		}
		if state.Sequence != expectedPrev+1 {
			return fmt.Errorf("%w: state sequence %d does not follow expected previous sequence %d",
				errInvalidSuccessor, state.Sequence, expectedPrev)
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			pipe.Set(ctx, p.snapshotKey(state.EntityID, state.PartitionKey, state.Sequence), data, 0)
			pipe.Set(ctx, headKey, state.Sequence, 0)
			return nil
		})
		if err != nil {
			return wrapUnavailable("failed to store snapshot", err)
		}
		return nil
	}, headKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, backend.TxFailedErr):
		// A concurrent writer advanced the head between our read and
		// EXEC. Report it as a conflict carrying the head as it is now.
		actual, readErr := readSequence(p.client.Get(ctx, headKey))
		if readErr != nil {
			return readErr
		}
		return &domain.ConflictError{
			EntityID:     state.EntityID,
			PartitionKey: state.PartitionKey,
			Expected:     expectedPrev,
			Actual:       actual,
		}
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, errInvalidSuccessor):
		return err
	default:
		// Anything else out of WATCH is a transport failure.
		return wrapUnavailable("failed to save snapshot", err)
	}
}

// errInvalidSuccessor marks a snapshot whose sequence does not follow its
// expectation; a caller bug, distinct from both conflicts and outages.
var errInvalidSuccessor = errors.New("invalid successor sequence")

// Load returns the current snapshot for the partition.
func (p *Persister) Load(ctx context.Context, entityID, partition string) (*domain.State, error) {
	head, err := readSequence(p.client.Get(ctx, p.headKey(entityID, partition)))
	if err != nil {
		return nil, err
	}
	if head == domain.NoPriorSequence {
		return nil, domain.ErrNotFound
	}
	return p.readSnapshot(ctx, entityID, partition, head)
}

// LoadHistory returns snapshots most recent first, fetched in one MGET.
func (p *Persister) LoadHistory(ctx context.Context, entityID, partition string, limit, offset int) ([]*domain.State, error) {
	head, err := readSequence(p.client.Get(ctx, p.headKey(entityID, partition)))
	if err != nil {
		return nil, err
	}
	if head == domain.NoPriorSequence {
		return nil, nil
	}

	if offset < 0 {
		offset = 0
	}
	if uint64(offset) >= head {
		return nil, nil
	}

	// Sequences run head-offset down to 1; apply the page limit.
	first := head - uint64(offset)
	count := int(first)
	if limit > 0 && limit < count {
		count = limit
	}

	keys := make([]string, 0, count)
	for i := 0; i < count; i++ {
		keys = append(keys, p.snapshotKey(entityID, partition, first-uint64(i)))
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrapUnavailable("failed to fetch history", err)
	}

	out := make([]*domain.State, 0, len(values))
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("snapshot %s missing from store", keys[i])
		}
		var state domain.State
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", keys[i], err)
		}
		out = append(out, &state)
	}
	return out, nil
}

func (p *Persister) readSnapshot(ctx context.Context, entityID, partition string, sequence uint64) (*domain.State, error) {
	raw, err := p.client.Get(ctx, p.snapshotKey(entityID, partition, sequence)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapUnavailable("failed to fetch snapshot", err)
	}

	var state domain.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %d: %w", sequence, err)
	}
	return &state, nil
}

// Close closes the underlying Redis client.
func (p *Persister) Close() error {
	return p.client.Close()
}

// readSequence resolves a head-key GET: an absent key means the partition
// has no prior snapshot.
func readSequence(cmd *backend.StringCmd) (uint64, error) {
	seq, err := cmd.Uint64()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return domain.NoPriorSequence, nil
		}
		return 0, wrapUnavailable("failed to read head sequence", err)
	}
	return seq, nil
}

// wrapUnavailable classifies transport-level failures as
// ErrStorageUnavailable so callers never confuse an unreachable store
// with missing data.
func wrapUnavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w (%v)", msg, domain.ErrStorageUnavailable, err)
}
