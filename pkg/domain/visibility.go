package domain

import (
	"fmt"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// RuleKind discriminates the visibility rule variants.
type RuleKind string

const (
	// RuleAlways renders unconditionally. The zero-value rule is treated
	// as RuleAlways so components without an explicit rule still render.
	RuleAlways RuleKind = "always"

	// RuleAuthenticated renders only for authenticated viewers.
	RuleAuthenticated RuleKind = "if_authenticated"

	// RuleRoleIn renders when the viewer holds at least one of Roles.
	RuleRoleIn RuleKind = "if_role_in"

	// RuleFlagEquals renders when the viewer flag named Flag equals Value.
	RuleFlagEquals RuleKind = "if_flag"
)

// VisibilityRule is a tagged variant describing when a component or
// section should render. It is plain data evaluated by Matches; there is
// deliberately no scriptable logic here.
type VisibilityRule struct {
	Kind  RuleKind `json:"kind,omitempty" yaml:"kind" mapstructure:"kind"`
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty" mapstructure:"roles"`
	Flag  string   `json:"flag,omitempty" yaml:"flag,omitempty" mapstructure:"flag"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty" mapstructure:"value"`
}

// ViewerContext describes the viewer a snapshot is rendered for. It is
// supplied by the caller at render time; the engine never populates it.
type ViewerContext struct {
	Authenticated bool
	Roles         []string
	Flags         map[string]string
}

// Known reports whether the rule kind is one the engine understands.
// Callers that must detect forward-incompatible rules check this
// explicitly; Matches itself fails closed on unknown kinds.
func (r VisibilityRule) Known() bool {
	switch r.Kind {
	case "", RuleAlways, RuleAuthenticated, RuleRoleIn, RuleFlagEquals:
		return true
	}
	return false
}

// Matches reports whether the rule allows rendering for the given viewer.
// Unknown kinds return false (fail closed) rather than erroring, so that
// rendering stays robust against rule kinds added by newer editors.
func (r VisibilityRule) Matches(viewer ViewerContext) bool {
	switch r.Kind {
	case "", RuleAlways:
		return true
	case RuleAuthenticated:
		return viewer.Authenticated
	case RuleRoleIn:
		for _, role := range r.Roles {
			if slices.Contains(viewer.Roles, role) {
				return true
			}
		}
		return false
	case RuleFlagEquals:
		return viewer.Flags[r.Flag] == r.Value
	default:
		return false
	}
}

func (r VisibilityRule) clone() VisibilityRule {
	out := r
	out.Roles = slices.Clone(r.Roles)
	return out
}

// DecodeVisibilityRule builds a VisibilityRule from a loosely typed value
// (a map decoded from YAML or JSON). Unknown keys are rejected so typos
// in template files surface early; an unknown kind is accepted here and
// fails closed at render time instead.
func DecodeVisibilityRule(input any) (VisibilityRule, error) {
	if input == nil {
		return VisibilityRule{}, nil
	}

	var rule VisibilityRule
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rule,
		ErrorUnused: true,
	})
	if err != nil {
		return VisibilityRule{}, fmt.Errorf("failed to build rule decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return VisibilityRule{}, fmt.Errorf("invalid visibility rule: %w", err)
	}

	return rule, nil
}
