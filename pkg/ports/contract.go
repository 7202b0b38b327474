package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunPersisterContract runs a suite of tests to verify that a Persister
// implementation adheres to the defined interface contract. Every adapter
// must pass it against a fresh, empty store.
func RunPersisterContract(t *testing.T, p Persister) {
	ctx := context.Background()
	entityID := "contract-entity-" + time.Now().Format("20060102150405")

	content := func(title string) domain.Content {
		return domain.Content{
			Sections: []domain.Section{
				{ID: "main", Components: []domain.ComponentConfig{
					{ID: "c1", TemplateType: "hero", Parameters: map[string]any{"title": title}},
				}},
			},
			Theme: domain.Theme{"color.primary": "#336699"},
		}
	}

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := p.Load(ctx, "never-written", domain.PartitionDraft)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		history, err := p.LoadHistory(ctx, "never-written", domain.PartitionDraft, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("First Save and Load", func(t *testing.T) {
		first := domain.NewState(entityID, domain.PartitionDraft, content("v1"))
		require.NoError(t, p.Save(ctx, first, domain.NoPriorSequence))

		loaded, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, domain.InitialSequence, loaded.Sequence)
		assert.True(t, first.ContentEqual(loaded))
	})

	t.Run("Loaded Value Is Isolated", func(t *testing.T) {
		loaded, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)

		// Mutating what Load returned must not corrupt the store.
		loaded.Sections[0].Components[0].Parameters["title"] = "tampered"

		again, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, "v1", again.Sections[0].Components[0].Parameters["title"])
	})

	t.Run("Sequence Chain", func(t *testing.T) {
		for i := 2; i <= 4; i++ {
			cur, err := p.Load(ctx, entityID, domain.PartitionDraft)
			require.NoError(t, err)

			next := cur.WithContent(content(fmt.Sprintf("v%d", i)))
			require.NoError(t, p.Save(ctx, next, cur.Sequence))
		}

		loaded, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), loaded.Sequence)
	})

	t.Run("Stale Save Conflicts", func(t *testing.T) {
		cur, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)

		stale := cur.WithContent(content("stale"))
		err = p.Save(ctx, stale, cur.Sequence-1)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)

		var cerr *domain.ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, cur.Sequence, cerr.Actual)

		// Storage is untouched by the failed save.
		after, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, cur.Sequence, after.Sequence)
		assert.True(t, cur.ContentEqual(after))
	})

	t.Run("Idempotent Conflict Detection", func(t *testing.T) {
		cur, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)

		next := cur.WithContent(content("winner"))
		require.NoError(t, p.Save(ctx, next, cur.Sequence))

		// Replaying the identical save must conflict, never silently
		// overwrite.
		err = p.Save(ctx, next, cur.Sequence)
		assert.ErrorIs(t, err, domain.ErrConflict)

		after, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, next.Sequence, after.Sequence)
	})

	t.Run("Save To Empty Partition With Wrong Expectation", func(t *testing.T) {
		first := domain.NewState(entityID, "variant-a", content("v1"))
		err := p.Save(ctx, first, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConflict)

		var cerr *domain.ConflictError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, domain.NoPriorSequence, cerr.Actual)

		_, err = p.Load(ctx, entityID, "variant-a")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Partitions Are Independent", func(t *testing.T) {
		published := domain.NewState(entityID, domain.PartitionPublished, content("live"))
		require.NoError(t, p.Save(ctx, published, domain.NoPriorSequence))

		draft, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Greater(t, draft.Sequence, domain.InitialSequence, "draft history unaffected by published writes")

		live, err := p.Load(ctx, entityID, domain.PartitionPublished)
		require.NoError(t, err)
		assert.Equal(t, domain.InitialSequence, live.Sequence)
	})

	t.Run("History Order And Pagination", func(t *testing.T) {
		all, err := p.LoadHistory(ctx, entityID, domain.PartitionDraft, 0, 0)
		require.NoError(t, err)
		require.NotEmpty(t, all)

		// Most recent first, sequences strictly descending by one.
		for i := 1; i < len(all); i++ {
			assert.Equal(t, all[i-1].Sequence-1, all[i].Sequence)
		}

		head, err := p.Load(ctx, entityID, domain.PartitionDraft)
		require.NoError(t, err)
		assert.Equal(t, head.Sequence, all[0].Sequence)

		// Restartable pagination: two pages of two reproduce the head of
		// the full listing.
		page1, err := p.LoadHistory(ctx, entityID, domain.PartitionDraft, 2, 0)
		require.NoError(t, err)
		page2, err := p.LoadHistory(ctx, entityID, domain.PartitionDraft, 2, 2)
		require.NoError(t, err)

		var paged []*domain.State
		paged = append(paged, page1...)
		paged = append(paged, page2...)
		for i, snapshot := range paged {
			if i < len(all) {
				assert.Equal(t, all[i].Sequence, snapshot.Sequence)
			}
		}

		// Offset past the end yields an empty, non-error page.
		empty, err := p.LoadHistory(ctx, entityID, domain.PartitionDraft, 2, len(all))
		require.NoError(t, err)
		assert.Empty(t, empty)
	})
}
