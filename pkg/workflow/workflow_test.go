package workflow_test

import (
	"context"
	"testing"

	"github.com/aretw0/espalier/pkg/adapters/memory"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/library"
	"github.com/aretw0/espalier/pkg/state"
	"github.com/aretw0/espalier/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(t *testing.T, opts ...workflow.Option) *workflow.Workflow {
	t.Helper()
	return workflow.New(state.NewManager(memory.New()), opts...)
}

func seedDraft(t *testing.T, w *workflow.Workflow, entityID string) *domain.State {
	t.Helper()
	ctx := context.Background()

	_, err := w.EditDraft(ctx, entityID, "alice", state.AddSection("main", domain.VisibilityRule{}))
	require.NoError(t, err)
	s, err := w.EditDraft(ctx, entityID, "alice",
		state.AddComponent("main", domain.ComponentConfig{
			ID:           "c1",
			TemplateType: "hero",
			Parameters:   map[string]any{"title": "Hi"},
		}))
	require.NoError(t, err)
	return s
}

func TestWorkflow_DraftPublishRollbackScenario(t *testing.T) {
	// The full lifecycle: edit draft, publish, keep editing, roll the
	// published partition back, with the draft never disturbed.
	w := newWorkflow(t)
	ctx := context.Background()

	// Draft starts EMPTY; an unpublished entity has no published version.
	_, err := w.GetDraft(ctx, "site-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = w.GetPublished(ctx, "site-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	draft := seedDraft(t, w, "site-1")
	assert.Equal(t, uint64(2), draft.Sequence)

	// Publish: the published partition gets its own sequence 1 with the
	// draft's content.
	published, err := w.Publish(ctx, "site-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PartitionPublished, published.PartitionKey)
	assert.Equal(t, domain.InitialSequence, published.Sequence)
	assert.True(t, published.ContentEqual(draft))

	// Publish isolation: the draft is exactly as it was.
	draftAfter, err := w.GetDraft(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, draft.Sequence, draftAfter.Sequence)
	assert.True(t, draft.ContentEqual(draftAfter))

	// Keep editing the draft; the published partition is unaffected.
	emptied, err := w.EditDraft(ctx, "site-1", "alice", state.RemoveComponent("c1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), emptied.Sequence)
	assert.Empty(t, emptied.Sections[0].Components)

	stillLive, err := w.GetPublished(ctx, "site-1")
	require.NoError(t, err)
	require.Len(t, stillLive.Sections[0].Components, 1)

	// Publish the emptied draft, then roll the published partition back
	// to the one-component version: copy-forward, sequence rises.
	published2, err := w.Publish(ctx, "site-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), published2.Sequence)

	restored, err := w.RollbackPublished(ctx, "site-1", "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), restored.Sequence)
	require.Len(t, restored.Sections[0].Components, 1)
	assert.Equal(t, "c1", restored.Sections[0].Components[0].ID)

	// The rollback never touched the draft.
	draftFinal, err := w.GetDraft(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, emptied.Sequence, draftFinal.Sequence)

	// The rolled-past snapshot is still in published history.
	history, err := w.History(ctx, "site-1", domain.PartitionPublished, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, uint64(2), history[1].Sequence)
}

func TestWorkflow_PublishValidationFailsBeforeWrite(t *testing.T) {
	lib := library.New()
	require.NoError(t, lib.Register(library.Template{Name: "hero-banner", Type: "hero"}))

	w := newWorkflow(t, workflow.WithLibrary(lib))
	ctx := context.Background()

	_, err := w.EditDraft(ctx, "site-1", "alice", state.AddSection("main", domain.VisibilityRule{}))
	require.NoError(t, err)
	_, err = w.EditDraft(ctx, "site-1", "alice",
		state.AddComponent("main", domain.ComponentConfig{ID: "c1", TemplateType: "carousel"}))
	require.NoError(t, err)

	// "carousel" has no registered template: publish is rejected
	// all-or-nothing, before any write.
	_, err = w.Publish(ctx, "site-1", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	_, err = w.GetPublished(ctx, "site-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "nothing was published")

	// Fixing the draft makes publish succeed.
	_, err = w.EditDraft(ctx, "site-1", "alice", state.RemoveComponent("c1"))
	require.NoError(t, err)
	_, err = w.Publish(ctx, "site-1", "alice")
	require.NoError(t, err)
}

func TestWorkflow_PublishWithoutDraft(t *testing.T) {
	w := newWorkflow(t)

	_, err := w.Publish(context.Background(), "site-1", "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkflow_PreviewIsReadOnly(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	draft := seedDraft(t, w, "site-1")

	preview, err := w.Preview(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PartitionDraft, preview.PartitionKey)
	assert.Equal(t, draft.Sequence, preview.Sequence)

	// Previewing never advances any sequence.
	after, err := w.GetDraft(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, draft.Sequence, after.Sequence)

	// Mutating the projection cannot reach the stored draft.
	preview.Sections[0].Components[0].Parameters["title"] = "tampered"
	again, err := w.GetDraft(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, "Hi", again.Sections[0].Components[0].Parameters["title"])
}

func TestWorkflow_RollbackDraftPreservesPublished(t *testing.T) {
	w := newWorkflow(t)
	ctx := context.Background()

	seedDraft(t, w, "site-1")
	published, err := w.Publish(ctx, "site-1", "alice")
	require.NoError(t, err)

	_, err = w.EditDraft(ctx, "site-1", "alice", state.SetThemeToken("color.primary", "#000"))
	require.NoError(t, err)

	restored, err := w.RollbackDraft(ctx, "site-1", "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), restored.Sequence)

	live, err := w.GetPublished(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, published.Sequence, live.Sequence)
}
