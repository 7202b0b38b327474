package state

import (
	"fmt"

	"github.com/aretw0/espalier/pkg/domain"
)

// Edit helpers. Each returns a pure EditFunc describing one editor
// action; they operate on the detached content copy the Manager passes
// in, so in-place modification is safe.

// AddSection appends an empty section.
func AddSection(sectionID string, visibility domain.VisibilityRule) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		if sectionID == "" {
			return c, fmt.Errorf("section id cannot be empty")
		}
		for _, section := range c.Sections {
			if section.ID == sectionID {
				return c, fmt.Errorf("section %q already exists", sectionID)
			}
		}
		c.Sections = append(c.Sections, domain.Section{ID: sectionID, Visibility: visibility})
		return c, nil
	}
}

// RemoveSection removes a section and every component in it.
func RemoveSection(sectionID string) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		for i, section := range c.Sections {
			if section.ID == sectionID {
				c.Sections = append(c.Sections[:i], c.Sections[i+1:]...)
				return c, nil
			}
		}
		return c, fmt.Errorf("section %q: %w", sectionID, domain.ErrNotFound)
	}
}

// AddComponent appends a component to the named section. The component id
// must be unique across the whole snapshot.
func AddComponent(sectionID string, component domain.ComponentConfig) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		if component.ID == "" {
			return c, fmt.Errorf("component id cannot be empty")
		}
		if component.TemplateType == "" {
			return c, fmt.Errorf("component %q: template type cannot be empty", component.ID)
		}

		targetIdx := -1
		for i, section := range c.Sections {
			if section.ID == sectionID {
				targetIdx = i
			}
			for _, existing := range section.Components {
				if existing.ID == component.ID {
					return c, fmt.Errorf("component %q already exists", component.ID)
				}
			}
		}
		if targetIdx < 0 {
			return c, fmt.Errorf("section %q: %w", sectionID, domain.ErrNotFound)
		}

		c.Sections[targetIdx].Components = append(c.Sections[targetIdx].Components, component.Clone())
		return c, nil
	}
}

// RemoveComponent removes the component with the given id, wherever it
// lives.
func RemoveComponent(componentID string) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		for si := range c.Sections {
			components := c.Sections[si].Components
			for ci, component := range components {
				if component.ID == componentID {
					c.Sections[si].Components = append(components[:ci], components[ci+1:]...)
					return c, nil
				}
			}
		}
		return c, fmt.Errorf("component %q: %w", componentID, domain.ErrNotFound)
	}
}

// MoveComponent repositions a component within its section. toIndex is
// clamped to the section bounds.
func MoveComponent(componentID string, toIndex int) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		for si := range c.Sections {
			components := c.Sections[si].Components
			for ci, component := range components {
				if component.ID != componentID {
					continue
				}

				rest := append(components[:ci:ci], components[ci+1:]...)
				idx := toIndex
				if idx < 0 {
					idx = 0
				}
				if idx > len(rest) {
					idx = len(rest)
				}

				reordered := make([]domain.ComponentConfig, 0, len(components))
				reordered = append(reordered, rest[:idx]...)
				reordered = append(reordered, component)
				reordered = append(reordered, rest[idx:]...)
				c.Sections[si].Components = reordered
				return c, nil
			}
		}
		return c, fmt.Errorf("component %q: %w", componentID, domain.ErrNotFound)
	}
}

// UpdateComponentParams merges params over the component's existing
// parameters. ID and TemplateType are immutable and cannot be touched by
// any edit; changing a component's type means remove plus add.
func UpdateComponentParams(componentID string, params map[string]any) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		for si := range c.Sections {
			for ci := range c.Sections[si].Components {
				component := &c.Sections[si].Components[ci]
				if component.ID != componentID {
					continue
				}
				if component.Parameters == nil {
					component.Parameters = make(map[string]any, len(params))
				}
				for key, value := range params {
					component.Parameters[key] = value
				}
				return c, nil
			}
		}
		return c, fmt.Errorf("component %q: %w", componentID, domain.ErrNotFound)
	}
}

// SetComponentVisibility replaces a component's visibility rule.
func SetComponentVisibility(componentID string, rule domain.VisibilityRule) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		for si := range c.Sections {
			for ci := range c.Sections[si].Components {
				if c.Sections[si].Components[ci].ID == componentID {
					c.Sections[si].Components[ci].Visibility = rule
					return c, nil
				}
			}
		}
		return c, fmt.Errorf("component %q: %w", componentID, domain.ErrNotFound)
	}
}

// SetThemeToken sets one theme token. A nil value deletes the token.
func SetThemeToken(key string, value any) EditFunc {
	return func(c domain.Content) (domain.Content, error) {
		if key == "" {
			return c, fmt.Errorf("theme token key cannot be empty")
		}
		if value == nil {
			delete(c.Theme, key)
			return c, nil
		}
		if c.Theme == nil {
			c.Theme = domain.Theme{}
		}
		c.Theme[key] = value
		return c, nil
	}
}

// ReplaceContent swaps the whole content wholesale. Publish and rollback
// are built on it.
func ReplaceContent(content domain.Content) EditFunc {
	replacement := content.Clone()
	return func(domain.Content) (domain.Content, error) {
		return replacement.Clone(), nil
	}
}
