package gate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

var testMessages = Messages{
	NotOnWhitelist: "You are not on the Whitelist.",
	NameChanged:    "Your ID is on the Whitelist, but associated with an other name (%s).",
	Maintenance:    "The server is currently in maintenance mode.",
}

// fakeStore serves a single entry and records mutations.
type fakeStore struct {
	entry       domain.Entry
	hasEntry    bool
	renameCalls int
	renamedTo   string
	addCalls    int
	removeCalls int
}

func (f *fakeStore) Add(context.Context, domain.Entry) error {
	f.addCalls++
	return nil
}

func (f *fakeStore) Remove(context.Context, domain.Entry) error {
	f.removeCalls++
	return nil
}

func (f *fakeStore) Rename(_ context.Context, e domain.Entry, newName string) error {
	f.renameCalls++
	f.renamedTo = newName
	f.entry.Name = newName
	return nil
}

func (f *fakeStore) ResolveIdentifier(context.Context, string) (domain.Identifier, bool, error) {
	return domain.NilIdentifier, false, nil
}

func (f *fakeStore) Check(_ context.Context, e domain.Entry) domain.CheckResult {
	if f.hasEntry && f.entry.ID == e.ID {
		return domain.CheckResult{OnWhitelist: true, WhitelistedName: f.entry.Name}
	}
	return domain.EmptyCheck()
}

func (f *fakeStore) Snapshot(context.Context) ([]domain.Entry, error) {
	if !f.hasEntry {
		return nil, nil
	}
	return []domain.Entry{f.entry}, nil
}

func (f *fakeStore) Close() error { return nil }

// fakeOps marks a fixed set of identifiers as operators.
type fakeOps struct {
	ops map[domain.Identifier]bool
	err error
}

func (f *fakeOps) IsOperator(_ context.Context, id domain.Identifier) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.ops[id], nil
}

func newTestGate(st *fakeStore, ops *fakeOps, m *Maintenance, allowNameChanges bool) *Gate {
	return New(Options{
		Store:            st,
		Operators:        ops,
		Maintenance:      m,
		AllowNameChanges: allowNameChanges,
		Messages:         testMessages,
		Logger:           log.NewNoopLogger(),
	})
}

func TestEvaluateNotOnWhitelist(t *testing.T) {
	st := &fakeStore{}
	g := newTestGate(st, &fakeOps{}, nil, false)

	d := g.Evaluate(context.Background(), domain.NewIdentifier(), "Alice")

	assert.Equal(t, domain.DenyWhitelist, d.Verdict)
	assert.Equal(t, testMessages.NotOnWhitelist, d.Message)
}

func TestEvaluateAllowed(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	g := newTestGate(st, &fakeOps{}, nil, false)

	d := g.Evaluate(context.Background(), id, "Alice")

	assert.True(t, d.Allowed())
	assert.Empty(t, d.Message)
	assert.Zero(t, st.renameCalls)
}

func TestEvaluateNameChangeDenied(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	g := newTestGate(st, &fakeOps{}, nil, false)

	d := g.Evaluate(context.Background(), id, "Bob")

	assert.Equal(t, domain.DenyWhitelist, d.Verdict)
	assert.Contains(t, d.Message, "Alice", "denial must carry the previously known name")
	// A denied attempt never mutates store state.
	assert.Zero(t, st.renameCalls)
	assert.Equal(t, "Alice", st.entry.Name)
}

func TestEvaluateNameChangeAllowed(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	g := newTestGate(st, &fakeOps{}, nil, true)

	d := g.Evaluate(context.Background(), id, "Bob")

	assert.True(t, d.Allowed())
	assert.Equal(t, 1, st.renameCalls)
	assert.Equal(t, "Bob", st.renamedTo)
}

func TestEvaluateSameNameNoRename(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	g := newTestGate(st, &fakeOps{}, nil, true)

	d := g.Evaluate(context.Background(), id, "Alice")

	assert.True(t, d.Allowed())
	assert.Zero(t, st.renameCalls)
}

func TestEvaluateMaintenanceDeniesNonOperator(t *testing.T) {
	id := domain.NewIdentifier()
	// On the whitelist, but that must not matter during maintenance.
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	m := NewMaintenance(MaintenanceOptions{KickMessage: testMessages.Maintenance, Logger: log.NewNoopLogger()})
	_, err := m.Enable(true)
	assert.NoError(t, err)

	g := newTestGate(st, &fakeOps{}, m, false)
	d := g.Evaluate(context.Background(), id, "Alice")

	assert.Equal(t, domain.DenyMaintenance, d.Verdict)
	assert.Equal(t, testMessages.Maintenance, d.Message, "maintenance denial must use the maintenance message, not the whitelist one")
}

func TestEvaluateMaintenanceAllowsOperator(t *testing.T) {
	id := domain.NewIdentifier()
	// Not on the whitelist: operators bypass it entirely during maintenance.
	st := &fakeStore{}
	m := NewMaintenance(MaintenanceOptions{Logger: log.NewNoopLogger()})
	_, err := m.Enable(true)
	assert.NoError(t, err)

	g := newTestGate(st, &fakeOps{ops: map[domain.Identifier]bool{id: true}}, m, false)
	d := g.Evaluate(context.Background(), id, "Admin")

	assert.True(t, d.Allowed())
}

func TestEvaluateMaintenanceOperatorCheckFailureFailsClosed(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	m := NewMaintenance(MaintenanceOptions{KickMessage: testMessages.Maintenance, Logger: log.NewNoopLogger()})
	_, err := m.Enable(true)
	assert.NoError(t, err)

	g := newTestGate(st, &fakeOps{err: errors.New("server unreachable")}, m, false)
	d := g.Evaluate(context.Background(), id, "Alice")

	assert.Equal(t, domain.DenyMaintenance, d.Verdict)
}

func TestEvaluateMaintenanceDisabledNormalFlow(t *testing.T) {
	id := domain.NewIdentifier()
	st := &fakeStore{entry: domain.Entry{ID: id, Name: "Alice"}, hasEntry: true}
	m := NewMaintenance(MaintenanceOptions{Logger: log.NewNoopLogger()})

	g := newTestGate(st, &fakeOps{}, m, false)
	d := g.Evaluate(context.Background(), id, "Alice")

	assert.True(t, d.Allowed())
}
