package domain

import (
	"errors"
	"testing"
)

func TestNewEntry(t *testing.T) {
	id := NewIdentifier()

	e, err := NewEntry(id, "  Alice  ")
	if err != nil {
		t.Fatalf("NewEntry returned error: %v", err)
	}
	if e.Name != "Alice" {
		t.Errorf("expected trimmed name, got %q", e.Name)
	}
	if e.ID != id {
		t.Errorf("identifier not carried through")
	}

	if _, err := NewEntry(id, "   "); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestLoginVerdictString(t *testing.T) {
	tests := []struct {
		v    LoginVerdict
		want string
	}{
		{Allow, "allow"},
		{DenyWhitelist, "deny-whitelist"},
		{DenyMaintenance, "deny-maintenance"},
		{LoginVerdict(9), "LoginVerdict(9)"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLoginDecisionHelpers(t *testing.T) {
	if !AllowedDecision().Allowed() {
		t.Error("AllowedDecision should allow")
	}
	d := Denied(DenyMaintenance, "back later")
	if d.Allowed() {
		t.Error("Denied should not allow")
	}
	if d.Verdict != DenyMaintenance || d.Message != "back later" {
		t.Errorf("unexpected decision: %+v", d)
	}
	if EmptyCheck().OnWhitelist {
		t.Error("EmptyCheck should not be on whitelist")
	}
}
