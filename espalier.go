package espalier

import (
	"context"
	"log/slog"

	"github.com/aretw0/espalier/internal/logging"
	"github.com/aretw0/espalier/pkg/adapters/memory"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/library"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/aretw0/espalier/pkg/state"
	"github.com/aretw0/espalier/pkg/workflow"
)

// Version is the library version, overridable at build time via ldflags.
var Version = "0.1.0"

// Engine is the high-level entry point for the Espalier library.
// It wires a Persister, the state Manager and the draft/publish
// Workflow into one object with a simplified API for consumers.
type Engine struct {
	persister ports.Persister
	library   *library.Library
	logger    *slog.Logger
	retries   int

	manager  *state.Manager
	workflow *workflow.Workflow
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithPersister injects a storage backend, bypassing the default
// in-memory store.
func WithPersister(p ports.Persister) Option {
	return func(e *Engine) {
		e.persister = p
	}
}

// WithLibrary attaches a template library. Publish then validates that
// every component's template type is registered, and the HTTP adapter
// can instantiate preset components.
func WithLibrary(lib *library.Library) Option {
	return func(e *Engine) {
		e.library = lib
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConflictRetries sets how many times a lost save race is retried
// before the conflict is surfaced to the caller.
func WithConflictRetries(n int) Option {
	return func(e *Engine) {
		e.retries = n
	}
}

// New initializes an Engine. Without options it runs entirely in
// memory, which is the right default for tests and embedded use.
func New(opts ...Option) *Engine {
	e := &Engine{retries: -1}
	for _, opt := range opts {
		opt(e)
	}

	if e.persister == nil {
		e.persister = memory.New()
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}

	managerOpts := []state.Option{state.WithLogger(e.logger)}
	if e.retries >= 0 {
		managerOpts = append(managerOpts, state.WithConflictRetries(e.retries))
	}
	e.manager = state.NewManager(e.persister, managerOpts...)

	workflowOpts := []workflow.Option{workflow.WithLogger(e.logger)}
	if e.library != nil {
		workflowOpts = append(workflowOpts, workflow.WithLibrary(e.library))
	}
	e.workflow = workflow.New(e.manager, workflowOpts...)

	return e
}

// Workflow exposes the draft/publish lifecycle operations.
func (e *Engine) Workflow() *workflow.Workflow {
	return e.workflow
}

// Manager exposes the lower-level versioned state operations for
// callers that need partitions beyond draft and published.
func (e *Engine) Manager() *state.Manager {
	return e.manager
}

// Library returns the attached template library, or nil.
func (e *Engine) Library() *library.Library {
	return e.library
}

// Draft returns the entity's current draft snapshot.
func (e *Engine) Draft(ctx context.Context, entityID string) (*domain.State, error) {
	return e.workflow.GetDraft(ctx, entityID)
}

// Published returns the entity's current published snapshot.
func (e *Engine) Published(ctx context.Context, entityID string) (*domain.State, error) {
	return e.workflow.GetPublished(ctx, entityID)
}

// EditDraft applies an edit to the entity's draft and returns the new
// snapshot.
func (e *Engine) EditDraft(ctx context.Context, entityID, actor string, edit state.EditFunc) (*domain.State, error) {
	return e.workflow.EditDraft(ctx, entityID, actor, edit)
}

// Preview projects the current draft for rendering without writing.
func (e *Engine) Preview(ctx context.Context, entityID string) (*workflow.RenderableSnapshot, error) {
	return e.workflow.Preview(ctx, entityID)
}

// Publish promotes the current draft into the published partition.
func (e *Engine) Publish(ctx context.Context, entityID, actor string) (*domain.State, error) {
	return e.workflow.Publish(ctx, entityID, actor)
}

// RollbackPublished restores an earlier published snapshot as a new
// version on top of the published timeline.
func (e *Engine) RollbackPublished(ctx context.Context, entityID, actor string, targetSequence uint64) (*domain.State, error) {
	return e.workflow.RollbackPublished(ctx, entityID, actor, targetSequence)
}

// History lists a partition's snapshots, most recent first.
func (e *Engine) History(ctx context.Context, entityID, partitionKey string, limit, offset int) ([]*domain.State, error) {
	return e.workflow.History(ctx, entityID, partitionKey, limit, offset)
}
