// Package library provides a read-only registry of named component
// templates that editor actions instantiate into fresh ComponentConfig
// values ("add a preset component").
package library

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/espalier/pkg/domain"
	"github.com/google/uuid"
)

// Template describes a reusable component preset: the renderer type it
// maps to plus default parameters and visibility. Templates are immutable
// registry entries; Instantiate never modifies them.
type Template struct {
	Name       string                `yaml:"name"`
	Type       string                `yaml:"type"`
	Parameters map[string]any        `yaml:"parameters"`
	Visibility domain.VisibilityRule `yaml:"visibility"`
}

// Library manages the available component templates.
// Safe for concurrent use.
type Library struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// New creates a new empty library.
func New() *Library {
	return &Library{
		templates: make(map[string]Template),
	}
}

// Register adds a template to the library. A template with the same name
// is overwritten.
func (l *Library) Register(tpl Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if tpl.Type == "" {
		return fmt.Errorf("template %q: type cannot be empty", tpl.Name)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[tpl.Name] = tpl.clone()
	return nil
}

// Names returns the registered template names, sorted.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasType reports whether any registered template maps to the given
// renderer type. Publish validation uses it to reject components that
// reference a renderer nobody provides.
func (l *Library) HasType(templateType string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, tpl := range l.templates {
		if tpl.Type == templateType {
			return true
		}
	}
	return false
}

// Instantiate looks up a named template and builds a fresh component from
// it: caller overrides are merged on top of the template defaults and a
// new unique id is generated. The template itself is never mutated.
// Returns domain.ErrTemplateNotFound for unregistered names.
func (l *Library) Instantiate(templateName string, overrides map[string]any) (domain.ComponentConfig, error) {
	l.mu.RLock()
	tpl, ok := l.templates[templateName]
	l.mu.RUnlock()

	if !ok {
		return domain.ComponentConfig{}, fmt.Errorf("%w: %s", domain.ErrTemplateNotFound, templateName)
	}

	component := domain.ComponentConfig{
		ID:           uuid.NewString(),
		TemplateType: tpl.Type,
		Parameters:   mergeParameters(tpl.Parameters, overrides),
		Visibility:   tpl.Visibility,
	}
	return component.Clone(), nil
}

func (t Template) clone() Template {
	out := t
	out.Parameters = cloneMap(t.Parameters)
	return out
}

// mergeParameters layers overrides on top of defaults. Top-level keys
// replace wholesale; there is no deep merge of nested maps, matching how
// the editor sends complete values per key.
func mergeParameters(defaults, overrides map[string]any) map[string]any {
	if len(defaults) == 0 && len(overrides) == 0 {
		return nil
	}

	merged := cloneMap(defaults)
	if merged == nil {
		merged = make(map[string]any, len(overrides))
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case map[string]any:
			out[k] = cloneMap(val)
		case []any:
			items := make([]any, len(val))
			copy(items, val)
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}
