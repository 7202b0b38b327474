package library

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk shape of a template library file:
//
//	templates:
//	  - name: hero
//	    type: hero
//	    parameters:
//	      title: Welcome
//	    visibility:
//	      kind: always
type manifest struct {
	Templates []Template `yaml:"templates"`
}

// LoadYAML parses a template manifest and registers every entry.
// Registration is all-or-nothing: a bad entry leaves the library
// unchanged.
func (l *Library) LoadYAML(data []byte) error {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to parse template manifest: %w", err)
	}

	for i, tpl := range m.Templates {
		if tpl.Name == "" {
			return fmt.Errorf("template manifest entry %d: name cannot be empty", i)
		}
		if tpl.Type == "" {
			return fmt.Errorf("template manifest entry %d (%s): type cannot be empty", i, tpl.Name)
		}
	}

	for _, tpl := range m.Templates {
		if err := l.Register(tpl); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile reads and registers a template manifest from disk.
func (l *Library) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template manifest: %w", err)
	}
	return l.LoadYAML(data)
}
