package gate

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

// Session is a currently connected player as seen by the hosting server.
type Session interface {
	Identifier() domain.Identifier
	Name() string
	Operator() bool
	// Kick disconnects the session with the given message.
	Kick(message string)
}

// SessionRegistry exposes the hosting server's connected sessions.
type SessionRegistry interface {
	Sessions() []Session
	Broadcast(message string)
}

// MaintenanceOptions configures a Maintenance controller.
type MaintenanceOptions struct {
	Registry SessionRegistry
	// EnabledMessage is broadcast when maintenance starts.
	EnabledMessage string
	// KickMessage is delivered to disconnected sessions and to attempts
	// denied while maintenance is on.
	KickMessage string
	// Logger defaults to the global logger.
	Logger log.Logger
}

// Maintenance is the process-wide override that restricts connections to
// operators regardless of whitelist state. The flag starts false and is not
// persisted across restarts.
type Maintenance struct {
	registry       SessionRegistry
	enabledMessage string
	kickMessage    string
	logger         log.Logger

	// mu serializes toggles so wrongly-ordered Enable/Disable pairs
	// cannot race past the state check.
	mu      sync.Mutex
	enabled atomic.Bool
}

// NewMaintenance constructs a Maintenance controller.
func NewMaintenance(opts MaintenanceOptions) *Maintenance {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	return &Maintenance{
		registry:       opts.Registry,
		enabledMessage: opts.EnabledMessage,
		kickMessage:    opts.KickMessage,
		logger:         opts.Logger,
	}
}

// Enabled reports the current flag. Read by every connection attempt.
func (m *Maintenance) Enabled() bool {
	return m.enabled.Load()
}

// Enable sets the flag, broadcasts the notice, and, unless suppressKick is
// set, disconnects every non-operator session. It returns the number of
// sessions disconnected. Enabling while already enabled fails with
// domain.ErrState.
func (m *Maintenance) Enable(suppressKick bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.enabled.Load() {
		return 0, fmt.Errorf("%w: maintenance mode is already enabled", domain.ErrState)
	}
	m.enabled.Store(true)
	m.logger.Info(nil, "maintenance mode enabled")

	if m.registry != nil {
		m.registry.Broadcast(m.enabledMessage)
	}

	kicked := 0
	if !suppressKick && m.registry != nil {
		for _, s := range m.registry.Sessions() {
			if s.Operator() {
				continue
			}
			s.Kick(m.kickMessage)
			kicked++
		}
		m.logger.Info(map[string]any{"kicked": kicked}, "disconnected non-operator sessions")
	}
	return kicked, nil
}

// Disable clears the flag. Disabling while already disabled fails with
// domain.ErrState.
func (m *Maintenance) Disable() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled.Load() {
		return fmt.Errorf("%w: maintenance mode is not enabled", domain.ErrState)
	}
	m.enabled.Store(false)
	m.logger.Info(nil, "maintenance mode disabled")
	return nil
}
