package store

import (
	"context"
	"testing"

	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

func TestNopAdmitsEveryone(t *testing.T) {
	s := NewNop()
	ctx := context.Background()
	e := domain.Entry{ID: domain.NewIdentifier(), Name: "Anyone"}

	result := s.Check(ctx, e)
	if !result.OnWhitelist || result.WhitelistedName != "Anyone" {
		t.Errorf("Check = %+v, want allowed as Anyone", result)
	}

	if err := s.Add(ctx, e); err != nil {
		t.Errorf("Add: %v", err)
	}
	if err := s.Remove(ctx, e); err != nil {
		t.Errorf("Remove: %v", err)
	}
	if _, ok, err := s.ResolveIdentifier(ctx, "Anyone"); ok || err != nil {
		t.Errorf("ResolveIdentifier = (%v, %v), want miss", ok, err)
	}
	entries, err := s.Snapshot(ctx)
	if err != nil || len(entries) != 0 {
		t.Errorf("Snapshot = (%v, %v), want empty", entries, err)
	}
}
