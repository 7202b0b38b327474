package workflow

import (
	"fmt"

	"github.com/aretw0/espalier/pkg/domain"
)

// validate combines the snapshot's structural checks with template
// validation against the library, when one is configured. All problems
// are collected into a single ValidationError so the editor can show
// them at once.
func (w *Workflow) validate(s *domain.State) error {
	var problems []string

	if err := s.Validate(); err != nil {
		if verr, ok := err.(*domain.ValidationError); ok {
			problems = append(problems, verr.Problems...)
		} else {
			return err
		}
	}

	if w.library != nil {
		for _, section := range s.Sections {
			for _, component := range section.Components {
				if component.TemplateType != "" && !w.library.HasType(component.TemplateType) {
					problems = append(problems,
						fmt.Sprintf("component %q references unknown template type %q", component.ID, component.TemplateType))
				}
			}
		}
	}

	if len(problems) > 0 {
		return &domain.ValidationError{Problems: problems}
	}
	return nil
}
