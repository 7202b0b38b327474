package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/espalier/pkg/adapters/file"
	"github.com/aretw0/espalier/pkg/domain"
	"github.com/aretw0/espalier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePersister_Contract(t *testing.T) {
	p := file.New(t.TempDir())
	ports.RunPersisterContract(t, p)
}

func TestFilePersister_SurvivesReopen(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	p := file.New(base)
	first := domain.NewState("site-1", domain.PartitionDraft, domain.Content{
		Theme: domain.Theme{"color.primary": "#336699"},
	})
	require.NoError(t, p.Save(ctx, first, domain.NoPriorSequence))
	second := first.WithContent(domain.Content{Theme: domain.Theme{"color.primary": "#000000"}})
	require.NoError(t, p.Save(ctx, second, first.Sequence))

	// A fresh instance over the same directory sees the same history and
	// still enforces the CAS check against it.
	reopened := file.New(base)

	cur, err := reopened.Load(ctx, "site-1", domain.PartitionDraft)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cur.Sequence)
	assert.Equal(t, "#000000", cur.Theme["color.primary"])

	history, err := reopened.LoadHistory(ctx, "site-1", domain.PartitionDraft, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, uint64(2), history[0].Sequence)
	assert.Equal(t, uint64(1), history[1].Sequence)

	stale := cur.WithContent(domain.Content{})
	err = reopened.Save(ctx, stale, first.Sequence)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestFilePersister_IgnoresForeignFiles(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	p := file.New(base)
	first := domain.NewState("site-1", domain.PartitionDraft, domain.Content{})
	require.NoError(t, p.Save(ctx, first, domain.NoPriorSequence))

	dir := filepath.Join(base, "site-1", domain.PartitionDraft)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a snapshot"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp-snapshot-stray.json"), []byte("{}"), 0644))

	cur, err := p.Load(ctx, "site-1", domain.PartitionDraft)
	require.NoError(t, err)
	assert.Equal(t, domain.InitialSequence, cur.Sequence)

	history, err := p.LoadHistory(ctx, "site-1", domain.PartitionDraft, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestFilePersister_ReportsStorageUnavailable(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	// A regular file where the entity directory should be makes every
	// path beneath it fail with ENOTDIR: a broken disk layout, not
	// missing data.
	require.NoError(t, os.WriteFile(filepath.Join(base, "site-1"), []byte("in the way"), 0644))

	p := file.New(base)

	_, err := p.Load(ctx, "site-1", domain.PartitionDraft)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	_, err = p.LoadHistory(ctx, "site-1", domain.PartitionDraft, 0, 0)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)

	state := domain.NewState("site-1", domain.PartitionDraft, domain.Content{})
	err = p.Save(ctx, state, domain.NoPriorSequence)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NotErrorIs(t, err, domain.ErrConflict)
}

func TestFilePersister_RejectsPathEscapes(t *testing.T) {
	p := file.New(t.TempDir())
	ctx := context.Background()

	_, err := p.Load(ctx, "../outside", domain.PartitionDraft)
	assert.Error(t, err)

	state := domain.NewState("site-1", "draft/../published", domain.Content{})
	assert.Error(t, p.Save(ctx, state, domain.NoPriorSequence))
}
