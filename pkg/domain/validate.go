package domain

import "fmt"

// Validate checks the snapshot for structural problems: missing or
// duplicate section ids, and missing or duplicate component ids.
// Component ids must be unique across the whole snapshot, not only
// within their section. Returns a *ValidationError listing every problem
// found, or nil when the snapshot is sound.
func (s *State) Validate() error {
	var problems []string

	sectionIDs := make(map[string]struct{}, len(s.Sections))
	componentIDs := make(map[string]struct{})

	for _, section := range s.Sections {
		if section.ID == "" {
			problems = append(problems, "section with empty id")
		} else if _, dup := sectionIDs[section.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate section id %q", section.ID))
		} else {
			sectionIDs[section.ID] = struct{}{}
		}

		for _, component := range section.Components {
			if component.ID == "" {
				problems = append(problems, fmt.Sprintf("component with empty id in section %q", section.ID))
				continue
			}
			if _, dup := componentIDs[component.ID]; dup {
				problems = append(problems, fmt.Sprintf("duplicate component id %q", component.ID))
			} else {
				componentIDs[component.ID] = struct{}{}
			}
			if component.TemplateType == "" {
				problems = append(problems, fmt.Sprintf("component %q has empty template_type", component.ID))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
