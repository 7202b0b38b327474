package workflow

import (
	"time"

	"github.com/aretw0/espalier/pkg/domain"
)

// RenderableSnapshot is the denormalized, rendering-ready view of a
// State handed to the external page renderer. Visibility is still
// evaluable against a viewer context via Resolve; the engine itself
// never produces markup.
type RenderableSnapshot struct {
	EntityID     string           `json:"entity_id"`
	PartitionKey string           `json:"partition_key"`
	Sequence     uint64           `json:"sequence"`
	GeneratedAt  time.Time        `json:"generated_at"`
	Theme        domain.Theme     `json:"theme"`
	Sections     []domain.Section `json:"sections"`
}

// RenderedSection is one section after visibility resolution.
type RenderedSection struct {
	ID         string                   `json:"id"`
	Components []domain.ComponentConfig `json:"components"`
}

// NewRenderableSnapshot builds a read-only projection of a snapshot.
// The source State is deep-copied, so the projection can outlive it
// safely.
func NewRenderableSnapshot(s *domain.State) *RenderableSnapshot {
	content := s.Content()
	return &RenderableSnapshot{
		EntityID:     s.EntityID,
		PartitionKey: s.PartitionKey,
		Sequence:     s.Sequence,
		GeneratedAt:  time.Now().UTC(),
		Theme:        content.Theme,
		Sections:     content.Sections,
	}
}

// Resolve evaluates visibility for the given viewer and returns only the
// sections and components that should render, in render order. A section
// the viewer cannot see is dropped along with all of its components.
func (r *RenderableSnapshot) Resolve(viewer domain.ViewerContext) []RenderedSection {
	out := make([]RenderedSection, 0, len(r.Sections))
	for _, section := range r.Sections {
		if !section.ShouldRender(viewer) {
			continue
		}

		rendered := RenderedSection{ID: section.ID}
		for _, component := range section.Components {
			if component.ShouldRender(viewer) {
				rendered.Components = append(rendered.Components, component)
			}
		}
		out = append(out, rendered)
	}
	return out
}
