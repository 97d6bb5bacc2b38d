package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "whitelist.db"),
		Table:  "whitelist",
		Logger: log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema returned error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewRejectsBadTableName(t *testing.T) {
	tests := []string{"", "white list", "white-list", "wl;drop", "1wl"}
	for _, table := range tests {
		if _, err := New(Options{Table: table}); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("table %q: expected ErrInvalidInput, got %v", table, err)
		}
	}
}

func TestAddCheckRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.NewIdentifier()

	if err := s.Add(ctx, domain.Entry{ID: id, Name: "Alice"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	result := s.Check(ctx, domain.Entry{ID: id, Name: "Alice"})
	if !result.OnWhitelist {
		t.Fatal("added identifier not on whitelist")
	}
	if result.WhitelistedName != "Alice" {
		t.Errorf("expected stored name Alice, got %q", result.WhitelistedName)
	}

	if s.Check(ctx, domain.Entry{ID: domain.NewIdentifier(), Name: "Bob"}).OnWhitelist {
		t.Error("unknown identifier reported on whitelist")
	}
}

func TestAddDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.NewIdentifier()

	if err := s.Add(ctx, domain.Entry{ID: id, Name: "Alice"}); err != nil {
		t.Fatalf("first Add returned error: %v", err)
	}
	err := s.Add(ctx, domain.Entry{ID: id, Name: "AliceAgain"})
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("duplicate Add: expected ErrStore, got %v", err)
	}
	// The original row is untouched.
	if got := s.Check(ctx, domain.Entry{ID: id}).WhitelistedName; got != "Alice" {
		t.Errorf("duplicate Add mutated the row: %q", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.NewIdentifier()

	if err := s.Remove(ctx, domain.Entry{ID: id}); err != nil {
		t.Errorf("removing an absent identifier should not error, got %v", err)
	}

	if err := s.Add(ctx, domain.Entry{ID: id, Name: "Alice"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := s.Remove(ctx, domain.Entry{ID: id}); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if s.Check(ctx, domain.Entry{ID: id}).OnWhitelist {
		t.Error("identifier still on whitelist after Remove")
	}
	if err := s.Remove(ctx, domain.Entry{ID: id}); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.NewIdentifier()

	if err := s.Add(ctx, domain.Entry{ID: id, Name: "Alice"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if err := s.Rename(ctx, domain.Entry{ID: id, Name: "Alice"}, "Bob"); err != nil {
		t.Fatalf("Rename returned error: %v", err)
	}
	if got := s.Check(ctx, domain.Entry{ID: id}).WhitelistedName; got != "Bob" {
		t.Errorf("expected renamed entry Bob, got %q", got)
	}

	// Renaming an absent identifier is a no-op.
	if err := s.Rename(ctx, domain.Entry{ID: domain.NewIdentifier()}, "Ghost"); err != nil {
		t.Errorf("renaming an absent identifier should not error, got %v", err)
	}
}

func TestResolveIdentifier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := domain.NewIdentifier()

	if err := s.Add(ctx, domain.Entry{ID: id, Name: "Alice"}); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}

	got, ok, err := s.ResolveIdentifier(ctx, "Alice")
	if err != nil {
		t.Fatalf("ResolveIdentifier returned error: %v", err)
	}
	if !ok || got != id {
		t.Errorf("ResolveIdentifier = (%s, %v), want (%s, true)", got, ok, id)
	}

	_, ok, err = s.ResolveIdentifier(ctx, "Nobody")
	if err != nil {
		t.Fatalf("ResolveIdentifier returned error: %v", err)
	}
	if ok {
		t.Error("unknown name resolved to an identifier")
	}
}

func TestSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := map[string]domain.Identifier{}
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		id := domain.NewIdentifier()
		want[name] = id
		if err := s.Add(ctx, domain.Entry{ID: id, Name: name}); err != nil {
			t.Fatalf("Add(%s) returned error: %v", name, err)
		}
	}

	entries, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot returned error: %v", err)
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(entries))
	}
	for _, e := range entries {
		if want[e.Name] != e.ID {
			t.Errorf("entry %q has identifier %s, want %s", e.Name, e.ID, want[e.Name])
		}
	}
}

func TestCheckFailsClosedOnConnectionError(t *testing.T) {
	// A DSN under a directory that does not exist cannot be opened; every
	// check must deny rather than propagate.
	s, err := New(Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "missing", "sub", "whitelist.db"),
		Table:  "whitelist",
		Logger: log.NewNoopLogger(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer s.Close()

	result := s.Check(context.Background(), domain.Entry{ID: domain.NewIdentifier(), Name: "Alice"})
	if result.OnWhitelist {
		t.Error("backend failure must fail closed")
	}
	if result.WhitelistedName != "" {
		t.Errorf("failed check leaked a name: %q", result.WhitelistedName)
	}

	// Mutations surface the failure instead.
	if err := s.Add(context.Background(), domain.Entry{ID: domain.NewIdentifier(), Name: "Bob"}); !errors.Is(err, domain.ErrStore) {
		t.Errorf("Add on broken backend: expected ErrStore, got %v", err)
	}
}
