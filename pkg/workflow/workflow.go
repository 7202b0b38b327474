// Package workflow layers the draft/publish lifecycle over the state
// Manager: previews, promotion of drafts to the published partition, and
// published-only rollbacks. It owns no storage of its own; both
// partitions are ordinary timelines behind the same Persister.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/library"
	"github.com/aretw0/espalier/pkg/state"
)

// Workflow orchestrates the draft and published partitions of an entity.
type Workflow struct {
	manager *state.Manager
	library *library.Library
	logger  *slog.Logger
}

// Option configures the Workflow.
type Option func(*Workflow)

// WithLibrary enables template validation on publish: components whose
// template type no registered template provides are rejected before any
// write.
func WithLibrary(lib *library.Library) Option {
	return func(w *Workflow) {
		w.library = lib
	}
}

// WithLogger configures a logger for audit events.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New creates a Workflow over the given state Manager.
func New(manager *state.Manager, opts ...Option) *Workflow {
	w := &Workflow{
		manager: manager,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// GetDraft returns the entity's current draft snapshot.
func (w *Workflow) GetDraft(ctx context.Context, entityID string) (*domain.State, error) {
	return w.manager.Current(ctx, entityID, domain.PartitionDraft)
}

// GetPublished returns the entity's current published snapshot.
// domain.ErrNotFound means "no published version yet", which is a valid
// state for draft-only entities.
func (w *Workflow) GetPublished(ctx context.Context, entityID string) (*domain.State, error) {
	return w.manager.Current(ctx, entityID, domain.PartitionPublished)
}

// EditDraft applies an edit to the entity's draft partition.
func (w *Workflow) EditDraft(ctx context.Context, entityID, actor string, edit state.EditFunc) (*domain.State, error) {
	return w.manager.ApplyEdit(ctx, entityID, domain.PartitionDraft, actor, edit)
}

// Preview projects the current draft into a rendering-ready snapshot
// without writing anything. Always safe to call; never advances any
// sequence.
func (w *Workflow) Preview(ctx context.Context, entityID string) (*RenderableSnapshot, error) {
	draft, err := w.GetDraft(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return NewRenderableSnapshot(draft), nil
}

// PublishedSnapshot projects the current published state for rendering.
func (w *Workflow) PublishedSnapshot(ctx context.Context, entityID string) (*RenderableSnapshot, error) {
	published, err := w.GetPublished(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return NewRenderableSnapshot(published), nil
}

// Publish promotes the current draft: its content is re-saved into the
// published partition under that partition's next sequence number. The
// draft partition is untouched, so editing continues from where it was.
//
// Validation runs before any write; a draft that fails it leaves both
// partitions exactly as they were.
func (w *Workflow) Publish(ctx context.Context, entityID, actor string) (*domain.State, error) {
	draft, err := w.GetDraft(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	if err := w.validate(draft); err != nil {
		return nil, err
	}

	published, err := w.manager.ApplyEdit(ctx, entityID, domain.PartitionPublished, actor,
		state.ReplaceContent(draft.Content()))
	if err != nil {
		return nil, err
	}

	w.logger.InfoContext(ctx, "published",
		"entity", entityID,
		"draft_sequence", draft.Sequence,
		"published_sequence", published.Sequence,
		"actor", actor,
	)
	return published, nil
}

// RollbackPublished restores an earlier published snapshot as the new
// published head. The draft partition is never touched.
func (w *Workflow) RollbackPublished(ctx context.Context, entityID, actor string, targetSequence uint64) (*domain.State, error) {
	return w.manager.Rollback(ctx, entityID, domain.PartitionPublished, actor, targetSequence)
}

// RollbackDraft restores an earlier draft snapshot as the new draft head.
func (w *Workflow) RollbackDraft(ctx context.Context, entityID, actor string, targetSequence uint64) (*domain.State, error) {
	return w.manager.Rollback(ctx, entityID, domain.PartitionDraft, actor, targetSequence)
}

// History lists a partition's snapshots, most recent first.
func (w *Workflow) History(ctx context.Context, entityID, partitionKey string, limit, offset int) ([]*domain.State, error) {
	return w.manager.History(ctx, entityID, partitionKey, limit, offset)
}
