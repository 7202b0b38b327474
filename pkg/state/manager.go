package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
)

// historyPageSize is the batch size used when walking history for a
// rollback target.
const historyPageSize = 32

// EditFunc is a pure transformation of a snapshot's content. It receives
// a detached copy and may modify it freely; it must not perform I/O.
type EditFunc func(domain.Content) (domain.Content, error)

// Manager orchestrates snapshot mutation over a Persister.
type Manager struct {
	persister ports.Persister
	retries   int
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithConflictRetries sets how many times ApplyEdit automatically retries
// a conflicted save with a freshly reloaded base before surfacing the
// conflict. The default is 1, enough to absorb a benign race without
// looping indefinitely; 0 disables automatic retry.
func WithConflictRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.retries = n
		}
	}
}

// WithLogger configures a logger for audit events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over the given persistence port.
func NewManager(persister ports.Persister, opts ...Option) *Manager {
	m := &Manager{
		persister: persister,
		retries:   1,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Current returns the partition's current snapshot.
func (m *Manager) Current(ctx context.Context, entityID, partitionKey string) (*domain.State, error) {
	return m.persister.Load(ctx, entityID, partitionKey)
}

// History returns up to limit historical snapshots, most recent first,
// skipping the offset most recent.
func (m *Manager) History(ctx context.Context, entityID, partitionKey string, limit, offset int) ([]*domain.State, error) {
	return m.persister.LoadHistory(ctx, entityID, partitionKey, limit, offset)
}

// ApplyEdit loads the partition's current snapshot, applies edit to its
// content and saves the result under the next sequence number. An empty
// partition is edited from empty content and produces the initial
// snapshot.
//
// The actor identifies the already-authorized caller and is used for
// audit logging only; this layer makes no access decisions.
func (m *Manager) ApplyEdit(ctx context.Context, entityID, partitionKey, actor string, edit EditFunc) (*domain.State, error) {
	if entityID == "" || partitionKey == "" {
		return nil, fmt.Errorf("entity id and partition key cannot be empty")
	}

	attempts := m.retries + 1
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		base, err := m.persister.Load(ctx, entityID, partitionKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		var baseContent domain.Content
		expectedPrev := domain.NoPriorSequence
		if base != nil {
			baseContent = base.Content()
			expectedPrev = base.Sequence
		}

		edited, err := edit(baseContent)
		if err != nil {
			return nil, err
		}

		var next *domain.State
		if base == nil {
			next = domain.NewState(entityID, partitionKey, edited)
		} else {
			next = base.WithContent(edited)
		}

		err = m.persister.Save(ctx, next, expectedPrev)
		if err == nil {
			m.logger.InfoContext(ctx, "edit applied",
				"entity", entityID,
				"partition", partitionKey,
				"sequence", next.Sequence,
				"actor", actor,
			)
			return next, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}

		lastErr = err
		m.logger.DebugContext(ctx, "edit conflicted, rebasing",
			"entity", entityID,
			"partition", partitionKey,
			"attempt", attempt+1,
			"actor", actor,
		)
	}

	return nil, lastErr
}

// Rollback restores the content of the historical snapshot at
// targetSequence as a new top-of-history snapshot. History is strictly
// append-only: from the Persister's point of view a rollback is just
// another edit, and the target snapshot remains addressable afterwards.
func (m *Manager) Rollback(ctx context.Context, entityID, partitionKey, actor string, targetSequence uint64) (*domain.State, error) {
	target, err := m.findHistorical(ctx, entityID, partitionKey, targetSequence)
	if err != nil {
		return nil, err
	}

	content := target.Content()
	restored, err := m.ApplyEdit(ctx, entityID, partitionKey, actor, func(domain.Content) (domain.Content, error) {
		return content, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "rolled back",
		"entity", entityID,
		"partition", partitionKey,
		"target_sequence", targetSequence,
		"new_sequence", restored.Sequence,
		"actor", actor,
	)
	return restored, nil
}

// findHistorical pages through history until it finds targetSequence.
func (m *Manager) findHistorical(ctx context.Context, entityID, partitionKey string, targetSequence uint64) (*domain.State, error) {
	for offset := 0; ; offset += historyPageSize {
		page, err := m.persister.LoadHistory(ctx, entityID, partitionKey, historyPageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return nil, fmt.Errorf("sequence %d in %s/%s: %w", targetSequence, entityID, partitionKey, domain.ErrNotFound)
		}

		for _, snapshot := range page {
			if snapshot.Sequence == targetSequence {
				return snapshot, nil
			}
		}

		// History is ordered most recent first; once the page floor is
		// below the target, the target does not exist.
		if page[len(page)-1].Sequence < targetSequence {
			return nil, fmt.Errorf("sequence %d in %s/%s: %w", targetSequence, entityID, partitionKey, domain.ErrNotFound)
		}
	}
}
