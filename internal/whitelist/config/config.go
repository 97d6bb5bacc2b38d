package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Backend selects the whitelist storage: "flatfile", "sql", "bolt",
	// or "none" to disable enforcement.
	Backend string `koanf:"backend" validate:"required,oneof=flatfile sql bolt none"`

	// AllowNameChanges lets whitelisted identifiers log in under a new
	// display name, updating the stored name.
	AllowNameChanges bool `koanf:"allow_name_changes"`

	Messages MessagesConfig `koanf:"messages"`
	Flatfile FlatfileConfig `koanf:"flatfile"`
	SQL      SQLConfig      `koanf:"sql"`
	Bolt     BoltConfig     `koanf:"bolt"`
	Resolver ResolverConfig `koanf:"resolver"`
}

// MessagesConfig holds the user-facing denial and notice texts.
type MessagesConfig struct {
	NotOnWhitelist string `koanf:"not_on_whitelist" validate:"required"`

	// NameChanged may carry a %s slot for the previously known name.
	NameChanged string `koanf:"name_changed" validate:"required"`

	Maintenance        string `koanf:"maintenance" validate:"required"`
	MaintenanceEnabled string `koanf:"maintenance_enabled" validate:"required"`
}

// FlatfileConfig configures the file-backed store.
type FlatfileConfig struct {
	Path string `koanf:"path" validate:"required"`

	// PollIntervalSeconds is how often the poller compares the file's
	// modification time. Zero disables polling.
	PollIntervalSeconds int `koanf:"poll_interval_seconds" validate:"gte=0"`

	CaseSensitive bool `koanf:"case_sensitive"`
}

// SQLConfig configures the relational store.
type SQLConfig struct {
	Driver string `koanf:"driver" validate:"required"`
	DSN    string `koanf:"dsn" validate:"required"`
	Table  string `koanf:"table" validate:"required,sql_ident"`
}

// BoltConfig configures the bbolt store.
type BoltConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ResolverConfig configures name-to-identifier resolution.
type ResolverConfig struct {
	// CacheSize bounds the LRU of resolved profiles. Zero disables the
	// cache.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// ProfileURL is the base URL of the external profile API.
	ProfileURL string `koanf:"profile_url" validate:"required,url"`

	// TimeoutSeconds bounds a single external lookup.
	TimeoutSeconds int `koanf:"timeout_seconds" validate:"required,gte=1"`
}

// DEFAULT_APP_CONFIG defines the default application configuration: flatfile
// backend next to the working directory, original denial texts, and the
// public profile API.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:              "prod",
	LogLevel:         "info",
	Backend:          "flatfile",
	AllowNameChanges: false,
	Messages: MessagesConfig{
		NotOnWhitelist:     "You are not on the Whitelist.",
		NameChanged:        "Your ID is on the Whitelist, but associated with an other name (%s).",
		Maintenance:        "The server is currently in maintenance mode. Please try again in a few minutes.",
		MaintenanceEnabled: "Maintenance-Mode has been enabled - only operators can join now.",
	},
	Flatfile: FlatfileConfig{
		Path:                "white-list.txt",
		PollIntervalSeconds: 60,
		CaseSensitive:       true,
	},
	SQL: SQLConfig{
		Driver: "sqlite",
		DSN:    "/var/lib/whitelister/whitelist.db",
		Table:  "whitelist",
	},
	Bolt: BoltConfig{
		Path: "/var/lib/whitelister/whitelist.bolt",
	},
	Resolver: ResolverConfig{
		CacheSize:      256,
		ProfileURL:     "https://api.mojang.com",
		TimeoutSeconds: 5,
	},
}

// sqlIdentPattern matches names safe to splice into query text.
var sqlIdentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validSQLIdent validates that the field is a plain SQL identifier, since
// table names cannot be parameterized in queries.
func validSQLIdent(fl validator.FieldLevel) bool {
	return sqlIdentPattern.MatchString(fl.Field().String())
}

// envLoader loads environment variables with the prefix "WL_", lowercasing
// keys and mapping "__" to the nesting delimiter. Mockable in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "WL_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "WL_"))
			key = strings.ReplaceAll(key, "__", ".")
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG via the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "sql_ident" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("sql_ident", validSQLIdent)
}

// Load parses environment variables and returns an AppConfig instance. It
// applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
