package domain

import "maps"

// ComponentConfig describes one placed UI element: which renderer it maps
// to, its content parameters, and when it should render.
//
// ID and TemplateType are immutable once created. Changing a component's
// type means removing it and adding a new one, never mutating in place.
type ComponentConfig struct {
	ID           string         `json:"id"`
	TemplateType string         `json:"template_type"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Visibility   VisibilityRule `json:"visibility_rule"`
}

// ShouldRender reports whether the component is visible to the given
// viewer. Pure: no storage access, no side effects.
func (c ComponentConfig) ShouldRender(viewer ViewerContext) bool {
	return c.Visibility.Matches(viewer)
}

// Clone returns a deep copy of the component.
func (c ComponentConfig) Clone() ComponentConfig {
	out := c
	out.Parameters = cloneParameters(c.Parameters)
	out.Visibility = c.Visibility.clone()
	return out
}

// Section is an ordered group of components. Component order is render
// order and therefore meaningful.
type Section struct {
	ID         string            `json:"id"`
	Visibility VisibilityRule    `json:"visibility_rule"`
	Components []ComponentConfig `json:"components"`
}

// ShouldRender reports whether the whole section is visible to the viewer.
func (s Section) ShouldRender(viewer ViewerContext) bool {
	return s.Visibility.Matches(viewer)
}

// Clone returns a deep copy of the section.
func (s Section) Clone() Section {
	out := s
	out.Visibility = s.Visibility.clone()
	if s.Components != nil {
		out.Components = make([]ComponentConfig, len(s.Components))
		for i, c := range s.Components {
			out.Components[i] = c.Clone()
		}
	}
	return out
}

// cloneParameters copies a parameter map one level deep, plus nested maps
// and slices produced by JSON/YAML decoding. Scalar values are shared,
// which is safe because they are immutable.
func cloneParameters(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneParameters(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// cloneTheme copies a theme token bundle. Themes are opaque to the
// engine beyond being versioned alongside sections.
func cloneTheme(theme map[string]any) map[string]any {
	if theme == nil {
		return nil
	}
	out := maps.Clone(theme)
	for k, v := range out {
		out[k] = cloneValue(v)
	}
	return out
}
