package domain

import (
	"reflect"
	"time"
)

// Well-known partition keys. Partitions are free-form strings, so callers
// may add custom ones for A/B or locale variants.
const (
	PartitionDraft     = "draft"
	PartitionPublished = "published"
)

// Sequence bookkeeping. The first snapshot of a brand-new partition has
// InitialSequence; a save that expects no prior snapshot passes
// NoPriorSequence as its expected previous sequence.
const (
	NoPriorSequence uint64 = 0
	InitialSequence uint64 = 1
)

// Theme is an opaque token bundle (colors, typography, spacing, style
// overrides). The engine versions it alongside sections but never
// interprets it.
type Theme map[string]any

// Clone returns a deep copy of the theme.
func (t Theme) Clone() Theme {
	return cloneTheme(t)
}

// Content is the versioned payload of a snapshot: everything an edit can
// change. Edits are pure transformations of Content; the surrounding
// identity and sequence bookkeeping belongs to State.
type Content struct {
	Sections []Section
	Theme    Theme
}

// Clone returns a deep copy of the content.
func (c Content) Clone() Content {
	out := Content{Theme: c.Theme.Clone()}
	if c.Sections != nil {
		out.Sections = make([]Section, len(c.Sections))
		for i, s := range c.Sections {
			out.Sections[i] = s.Clone()
		}
	}
	return out
}

// State is one immutable snapshot of an entity's configuration within a
// partition. A State is never mutated after construction: every edit
// produces a brand-new State whose Sequence is exactly one greater than
// its predecessor in the same partition.
type State struct {
	EntityID     string
	PartitionKey string
	Sequence     uint64
	Sections     []Section
	Theme        Theme
	CreatedAt    time.Time

	// extra preserves fields written by newer editor versions so a
	// read/no-op-edit/write cycle never destroys data it does not
	// understand. See serialization.go.
	extra map[string]rawField
}

// NewState constructs the initial snapshot for a brand-new
// (entity, partition) pair, with Sequence = InitialSequence.
func NewState(entityID, partitionKey string, content Content) *State {
	c := content.Clone()
	return &State{
		EntityID:     entityID,
		PartitionKey: partitionKey,
		Sequence:     InitialSequence,
		Sections:     c.Sections,
		Theme:        c.Theme,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithContent derives the successor snapshot: same entity and partition,
// new content, Sequence incremented by exactly one, fresh CreatedAt.
// Unknown serialized fields are carried forward untouched.
func (s *State) WithContent(content Content) *State {
	c := content.Clone()
	return &State{
		EntityID:     s.EntityID,
		PartitionKey: s.PartitionKey,
		Sequence:     s.Sequence + 1,
		Sections:     c.Sections,
		Theme:        c.Theme,
		CreatedAt:    time.Now().UTC(),
		extra:        cloneExtra(s.extra),
	}
}

// Content returns a detached deep copy of the snapshot's editable
// payload. Callers may freely modify the returned value.
func (s *State) Content() Content {
	return Content{Sections: s.Sections, Theme: s.Theme}.Clone()
}

// Clone returns a deep copy of the snapshot. Persister implementations
// use it to keep stored history isolated from caller mutations.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := Content{Sections: s.Sections, Theme: s.Theme}.Clone()
	return &State{
		EntityID:     s.EntityID,
		PartitionKey: s.PartitionKey,
		Sequence:     s.Sequence,
		Sections:     c.Sections,
		Theme:        c.Theme,
		CreatedAt:    s.CreatedAt,
		extra:        cloneExtra(s.extra),
	}
}

// ContentEqual reports whether two snapshots carry the same sections and
// theme, ignoring identity, sequence and timestamps. Used by tests and
// by publish to detect no-op promotions.
func (s *State) ContentEqual(other *State) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(normalizeContent(s.Sections), normalizeContent(other.Sections)) &&
		reflect.DeepEqual(normalizeTheme(s.Theme), normalizeTheme(other.Theme))
}

// normalizeContent maps an empty slice and nil to the same value so that
// JSON round-trips do not affect equality.
func normalizeContent(sections []Section) []Section {
	if len(sections) == 0 {
		return nil
	}
	return sections
}

// normalizeTheme does the same for the theme: a nil theme serializes as
// {} and comes back as an empty map.
func normalizeTheme(theme Theme) map[string]any {
	if len(theme) == 0 {
		return nil
	}
	return theme
}
