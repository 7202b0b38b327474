package domain

import "testing"

func TestVisibilityRule_Matches(t *testing.T) {
	viewer := ViewerContext{
		Authenticated: true,
		Roles:         []string{"editor", "member"},
		Flags:         map[string]string{"beta": "on"},
	}
	anonymous := ViewerContext{}

	tests := []struct {
		name   string
		rule   VisibilityRule
		viewer ViewerContext
		want   bool
	}{
		{"zero value renders", VisibilityRule{}, anonymous, true},
		{"always renders", VisibilityRule{Kind: RuleAlways}, anonymous, true},
		{"authenticated for authenticated viewer", VisibilityRule{Kind: RuleAuthenticated}, viewer, true},
		{"authenticated for anonymous viewer", VisibilityRule{Kind: RuleAuthenticated}, anonymous, false},
		{"role match", VisibilityRule{Kind: RuleRoleIn, Roles: []string{"admin", "editor"}}, viewer, true},
		{"role miss", VisibilityRule{Kind: RuleRoleIn, Roles: []string{"admin"}}, viewer, false},
		{"role rule with no roles", VisibilityRule{Kind: RuleRoleIn}, viewer, false},
		{"flag match", VisibilityRule{Kind: RuleFlagEquals, Flag: "beta", Value: "on"}, viewer, true},
		{"flag miss", VisibilityRule{Kind: RuleFlagEquals, Flag: "beta", Value: "off"}, viewer, false},
		{"flag rule against viewer without flags", VisibilityRule{Kind: RuleFlagEquals, Flag: "beta", Value: "on"}, anonymous, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.viewer); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisibilityRule_UnknownKindFailsClosed(t *testing.T) {
	rule := VisibilityRule{Kind: "if_moon_phase"}

	if rule.Matches(ViewerContext{Authenticated: true, Roles: []string{"admin"}}) {
		t.Error("unknown rule kind must not render")
	}
	if rule.Known() {
		t.Error("Known() should report unsupported kinds")
	}
}

func TestDecodeVisibilityRule(t *testing.T) {
	rule, err := DecodeVisibilityRule(map[string]any{
		"kind":  "if_role_in",
		"roles": []any{"admin", "editor"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.Kind != RuleRoleIn || len(rule.Roles) != 2 {
		t.Errorf("unexpected rule: %+v", rule)
	}

	// Unknown keys are rejected so typos in template files surface early.
	if _, err := DecodeVisibilityRule(map[string]any{"kind": "always", "rolse": []any{"admin"}}); err == nil {
		t.Error("expected error for unknown key")
	}

	// nil input is the absent rule, which renders.
	rule, err = DecodeVisibilityRule(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rule.Matches(ViewerContext{}) {
		t.Error("absent rule should render")
	}
}

func TestComponentConfig_ShouldRender(t *testing.T) {
	c := ComponentConfig{
		ID:           "c1",
		TemplateType: "hero",
		Visibility:   VisibilityRule{Kind: RuleAuthenticated},
	}

	if c.ShouldRender(ViewerContext{}) {
		t.Error("anonymous viewer should not see authenticated component")
	}
	if !c.ShouldRender(ViewerContext{Authenticated: true}) {
		t.Error("authenticated viewer should see component")
	}
}
