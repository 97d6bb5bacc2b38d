// Package gate evaluates connection attempts against maintenance mode, the
// whitelist, and the name-change policy. It sits on the critical path of
// every login: the connection-attempt hook hands it an identifier and a
// display name and carries out the resulting decision.
package gate

import (
	"context"
	"fmt"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"
)

// OperatorChecker reports whether an identifier holds operator status. The
// check may round-trip to an authoritative server-state collaborator.
type OperatorChecker interface {
	IsOperator(ctx context.Context, id domain.Identifier) (bool, error)
}

// Messages holds the configured denial texts. NameChanged carries an
// optional %s slot for the previously known name.
type Messages struct {
	NotOnWhitelist string
	NameChanged    string
	Maintenance    string
}

// Options configures a Gate.
type Options struct {
	Store       store.Store
	Operators   OperatorChecker
	Maintenance *Maintenance
	// AllowNameChanges lets a known identifier log in under a new name,
	// updating the stored name as a side effect.
	AllowNameChanges bool
	Messages         Messages
	// Logger defaults to the global logger.
	Logger log.Logger
}

// Gate is the per-connection-attempt state machine.
type Gate struct {
	store            store.Store
	operators        OperatorChecker
	maintenance      *Maintenance
	allowNameChanges bool
	messages         Messages
	logger           log.Logger
}

// New constructs a Gate.
func New(opts Options) *Gate {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Gate{
		store:            opts.Store,
		operators:        opts.Operators,
		maintenance:      opts.Maintenance,
		allowNameChanges: opts.AllowNameChanges,
		messages:         opts.Messages,
		logger:           opts.Logger,
	}
}

// Evaluate decides a single connection attempt. Attempts for different
// identifiers are independent; no ordering is guaranteed between them. Side
// effects happen only on the allow path: a denied attempt never mutates
// store state.
func (g *Gate) Evaluate(ctx context.Context, id domain.Identifier, name string) domain.LoginDecision {
	g.logger.Info(map[string]any{"name": name, "id": id.String()}, "login attempt")

	// Maintenance is a strict superset-override: while enabled, operator
	// status is the only gate and the whitelist is not consulted.
	if g.maintenance != nil && g.maintenance.Enabled() {
		op, err := g.operators.IsOperator(ctx, id)
		if err != nil {
			// Fail closed: an unverifiable operator is not an operator.
			g.logger.Warn(map[string]any{"name": name, "error": err.Error()}, "operator status check failed")
			op = false
		}
		if !op {
			g.logger.Info(map[string]any{"name": name}, "disallow (maintenance mode)")
			return domain.Denied(domain.DenyMaintenance, g.messages.Maintenance)
		}
		return domain.AllowedDecision()
	}

	result := g.store.Check(ctx, domain.Entry{ID: id, Name: name})
	if !result.OnWhitelist {
		g.logger.Info(map[string]any{"name": name}, "disallow (not on whitelist)")
		return domain.Denied(domain.DenyWhitelist, g.messages.NotOnWhitelist)
	}

	if !g.allowNameChanges {
		if result.WhitelistedName != name {
			g.logger.Info(map[string]any{"name": name, "whitelisted_name": result.WhitelistedName}, "disallow (name changed)")
			return domain.Denied(domain.DenyWhitelist, fmt.Sprintf(g.messages.NameChanged, result.WhitelistedName))
		}
		return domain.AllowedDecision()
	}

	// The sole place outside explicit admin commands where the store is
	// mutated: keep the stored name current for permitted players.
	if result.WhitelistedName != name {
		if err := g.store.Rename(ctx, domain.Entry{ID: id, Name: result.WhitelistedName}, name); err != nil {
			g.logger.Error(map[string]any{"name": name, "error": err.Error()}, "failed to update whitelisted name on login")
		}
	}
	return domain.AllowedDecision()
}
