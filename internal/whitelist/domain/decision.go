package domain

import "fmt"

// LoginVerdict classifies the outcome of a connection attempt.
//
// allow            - the attempt may proceed
// deny-whitelist   - the identifier is not permitted (or its name changed)
// deny-maintenance - the server only admits operators right now
type LoginVerdict uint8

const (
	// Allow admits the connection.
	Allow LoginVerdict = iota
	// DenyWhitelist rejects the connection because of whitelist state.
	DenyWhitelist
	// DenyMaintenance rejects the connection because maintenance mode is on.
	DenyMaintenance
)

// String returns a stable string representation of the verdict.
func (v LoginVerdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case DenyWhitelist:
		return "deny-whitelist"
	case DenyMaintenance:
		return "deny-maintenance"
	default:
		return fmt.Sprintf("LoginVerdict(%d)", v)
	}
}

// LoginDecision is the value handed back to the connection-attempt hook. The
// hook is responsible for actually terminating or admitting the connection.
type LoginDecision struct {
	Verdict LoginVerdict
	// Message is the kick message for a denial; empty on Allow.
	Message string
}

// Allowed is a convenience accessor.
func (d LoginDecision) Allowed() bool { return d.Verdict == Allow }

// AllowedDecision returns an allowing decision.
func AllowedDecision() LoginDecision { return LoginDecision{Verdict: Allow} }

// Denied returns a denying decision with the given verdict and message.
func Denied(v LoginVerdict, message string) LoginDecision {
	return LoginDecision{Verdict: v, Message: message}
}
