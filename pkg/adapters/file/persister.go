// Package file provides a filesystem-backed Persister. Each snapshot is
// one JSON document under <base>/<entity>/<partition>/<sequence>.json,
// written atomically (temp file, fsync, rename), which makes history
// naturally append-only: a sequence file, once written, is never touched
// again.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/espalier/pkg/domain"
)

// Persister implements ports.Persister on the local filesystem.
//
// The compare-and-swap window is guarded by a process-local mutex; the
// adapter assumes a single writer process per base path, which holds for
// the CLI and single-node server deployments it exists for. Multi-writer
// deployments use the Redis adapter instead.
type Persister struct {
	BasePath string

	mu sync.Mutex
}

// New creates a new Persister rooted at basePath.
// If basePath is empty, it defaults to ".espalier/snapshots".
func New(basePath string) *Persister {
	if basePath == "" {
		basePath = filepath.Join(".espalier", "snapshots")
	}
	return &Persister{BasePath: basePath}
}

func (p *Persister) partitionDir(entityID, partition string) string {
	return filepath.Join(p.BasePath, entityID, partition)
}

func snapshotFile(dir string, sequence uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%08d.json", sequence))
}

// Save stores state as a new snapshot file after the CAS check passes.
func (p *Persister) Save(ctx context.Context, state *domain.State, expectedPrev uint64) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if err := validateKey(state.EntityID, state.PartitionKey); err != nil {
		return err
	}

	dir := p.partitionDir(state.EntityID, state.PartitionKey)

	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.headSequence(dir)
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
		return fmt.Errorf("state sequence %d does not follow expected previous sequence %d", state.Sequence, expectedPrev)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return wrapUnavailable("failed to ensure partition directory", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return writeAtomic(dir, snapshotFile(dir, state.Sequence), data)
}

// writeAtomic writes data to dest via a temp file in the same directory
// (same filesystem, required for atomic rename), fsynced before rename so
// a crash never leaves a partial snapshot visible.
func writeAtomic(dir, dest string, data []byte) error {
	tmpFile, err := os.CreateTemp(dir, "tmp-snapshot-*.json")
	if err != nil {
		return wrapUnavailable("failed to create temp file", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return wrapUnavailable("failed to write temp file", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return wrapUnavailable("failed to fsync temp file", err)
	}
	if err := tmpFile.Close(); err != nil {
		return wrapUnavailable("failed to close temp file", err)
	}

	// dest carries a fresh sequence number and therefore never exists;
	// rename is atomic on POSIX filesystems.
	if err := os.Rename(tmpPath, dest); err != nil {
		return wrapUnavailable("failed to rename snapshot into place", err)
	}
	return nil
}

// Load returns the current snapshot for the partition.
func (p *Persister) Load(ctx context.Context, entityID, partition string) (*domain.State, error) {
	if err := validateKey(entityID, partition); err != nil {
		return nil, err
	}

	dir := p.partitionDir(entityID, partition)
	head, err := p.headSequence(dir)
	if err != nil {
		return nil, err
	}
	if head == domain.NoPriorSequence {
		return nil, domain.ErrNotFound
	}

	return p.readSnapshot(dir, head)
}

// LoadHistory returns snapshots most recent first.
func (p *Persister) LoadHistory(ctx context.Context, entityID, partition string, limit, offset int) ([]*domain.State, error) {
	if err := validateKey(entityID, partition); err != nil {
		return nil, err
	}

	dir := p.partitionDir(entityID, partition)
	sequences, err := p.listSequences(dir)
	if err != nil {
		return nil, err
	}

	// Descending: most recent first.
	sort.Slice(sequences, func(i, j int) bool { return sequences[i] > sequences[j] })

	if offset < 0 {
		offset = 0
	}
	if offset >= len(sequences) {
		return nil, nil
	}
	sequences = sequences[offset:]
	if limit > 0 && limit < len(sequences) {
		sequences = sequences[:limit]
	}

	out := make([]*domain.State, 0, len(sequences))
	for _, seq := range sequences {
		snapshot, err := p.readSnapshot(dir, seq)
		if err != nil {
			return nil, err
		}
		out = append(out, snapshot)
	}
	return out, nil
}

func (p *Persister) readSnapshot(dir string, sequence uint64) (*domain.State, error) {
	data, err := os.ReadFile(snapshotFile(dir, sequence))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotFound
		}
		return nil, wrapUnavailable("failed to read snapshot file", err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %d: %w", sequence, err)
	}
	return &state, nil
}

// headSequence scans the partition directory for the highest stored
// sequence. Returns domain.NoPriorSequence for an empty or absent
// partition. Scanning instead of a head pointer file keeps the layout
// crash-safe: the newest complete snapshot is always the head.
func (p *Persister) headSequence(dir string) (uint64, error) {
	sequences, err := p.listSequences(dir)
	if err != nil {
		return 0, err
	}

	var head uint64
	for _, seq := range sequences {
		if seq > head {
			head = seq
		}
	}
	return head, nil
}

func (p *Persister) listSequences(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, wrapUnavailable("failed to list partition directory", err)
	}

	var sequences []uint64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		seq, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			// Temp files and foreign data are skipped, not fatal.
			continue
		}
		sequences = append(sequences, seq)
	}
	return sequences, nil
}

// wrapUnavailable classifies filesystem failures as
// ErrStorageUnavailable so callers never confuse a failing disk with
// missing data.
func wrapUnavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w (%v)", msg, domain.ErrStorageUnavailable, err)
}

func validateKey(entityID, partition string) error {
	if entityID == "" || partition == "" {
		return fmt.Errorf("entity id and partition key cannot be empty")
	}
	// Keys become path segments; refuse anything that could escape the
	// base directory.
	for _, key := range []string{entityID, partition} {
		if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
			return fmt.Errorf("invalid key %q: must not contain path separators", key)
		}
	}
	return nil
}
