// Package sqlstore implements the whitelist store as a table of
// (identifier, name) rows behind database/sql. There is no in-process cache:
// the table is the sole source of truth and every operation is one
// parameterized round trip. Identifiers travel in their 16-byte binary
// encoding, never as text.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"

	_ "modernc.org/sqlite"
)

// tableNamePattern constrains the configured table name so it can be spliced
// into query text safely. Everything else is parameterized.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures a relational store.
type Options struct {
	// Driver is a registered database/sql driver name. The bundled driver
	// is "sqlite"; any other registered driver works with a matching DSN.
	Driver string
	// DSN is the driver-specific data source name.
	DSN string
	// Table is the whitelist table. Must be a plain SQL identifier.
	Table string
	// Logger defaults to the global logger.
	Logger log.Logger
}

// Store is the relational whitelist.
type Store struct {
	driver string
	dsn    string
	table  string
	logger log.Logger

	// mu guards lazy connection management. Statement execution shares
	// the single underlying connection and serializes at the driver.
	mu sync.Mutex
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New validates the options. The connection itself is established lazily on
// first use and re-validated before each logical operation.
func New(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.Driver == "" {
		opts.Driver = "sqlite"
	}
	if !tableNamePattern.MatchString(opts.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidInput, opts.Table)
	}
	return &Store{
		driver: opts.Driver,
		dsn:    opts.DSN,
		table:  opts.Table,
		logger: opts.Logger,
	}, nil
}

// conn returns a live database handle, opening one on demand. An existing
// handle is liveness-probed first; connections dropped by the server side
// are discarded and reopened.
func (s *Store) conn(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn(map[string]any{"error": err.Error()}, "whitelist database connection lost, reopening")
			s.db.Close()
			s.db = nil
		}
	}
	if s.db == nil {
		db, err := sql.Open(s.driver, s.dsn)
		if err != nil {
			return nil, fmt.Errorf("%w: opening database: %v", domain.ErrStore, err)
		}
		// One live connection per store instance; callers share it.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: connecting to database: %v", domain.ErrStore, err)
		}
		s.db = db
	}
	return s.db, nil
}

// EnsureSchema creates the whitelist table if it does not exist. Intended
// for the bundled sqlite driver; server-managed databases normally have the
// table provisioned out of band.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (uuid BLOB NOT NULL UNIQUE, name TEXT NOT NULL)", s.table))
	if err != nil {
		return fmt.Errorf("%w: creating whitelist table: %v", domain.ErrStore, err)
	}
	return nil
}

// Add inserts a new row. A duplicate identifier surfaces the underlying
// uniqueness violation wrapped in domain.ErrStore; there is no upsert.
func (s *Store) Add(ctx context.Context, e domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (uuid, name) VALUES (?, ?)", s.table),
		domain.EncodeIdentifier(e.ID), e.Name)
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to add to the whitelist")
		return fmt.Errorf("%w: inserting %s: %v", domain.ErrStore, e.ID, err)
	}
	return nil
}

// Remove deletes the row for the entry's identifier. Idempotent.
func (s *Store) Remove(ctx context.Context, e domain.Entry) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE uuid = ?", s.table),
		domain.EncodeIdentifier(e.ID))
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to remove from the whitelist")
		return fmt.Errorf("%w: deleting %s: %v", domain.ErrStore, e.ID, err)
	}
	return nil
}

// Rename updates the name column for the entry's identifier. No-op if the
// row is absent.
func (s *Store) Rename(ctx context.Context, e domain.Entry, newName string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET name = ? WHERE uuid = ?", s.table),
		newName, domain.EncodeIdentifier(e.ID))
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to update whitelisted name")
		return fmt.Errorf("%w: updating name for %s: %v", domain.ErrStore, e.ID, err)
	}
	return nil
}

// ResolveIdentifier looks up an identifier by exact name. When several rows
// share a name the winner is the last write observed by the database.
func (s *Store) ResolveIdentifier(ctx context.Context, name string) (domain.Identifier, bool, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return domain.NilIdentifier, false, err
	}
	var raw []byte
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT uuid FROM %s WHERE name = ? LIMIT 1", s.table),
		name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NilIdentifier, false, nil
	}
	if err != nil {
		s.logger.Error(map[string]any{"name": name, "error": err.Error()}, "failed to resolve whitelisted identifier")
		return domain.NilIdentifier, false, fmt.Errorf("%w: resolving %q: %v", domain.ErrStore, name, err)
	}
	id, err := domain.DecodeIdentifier(raw)
	if err != nil {
		return domain.NilIdentifier, false, fmt.Errorf("decoding stored identifier for %q: %w", name, err)
	}
	return id, true, nil
}

// Check queries the row for the entry's identifier. Any unexpected error is
// logged and reported as not-on-whitelist, so a database hiccup denies
// access rather than letting the attempt through.
func (s *Store) Check(ctx context.Context, e domain.Entry) domain.CheckResult {
	db, err := s.conn(ctx)
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "whitelist check failed, denying")
		return domain.EmptyCheck()
	}
	var name string
	err = db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT name FROM %s WHERE uuid = ? LIMIT 1", s.table),
		domain.EncodeIdentifier(e.ID)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EmptyCheck()
	}
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "whitelist check failed, denying")
		return domain.EmptyCheck()
	}
	return domain.CheckResult{OnWhitelist: true, WhitelistedName: name}
}

// Snapshot returns all rows.
func (s *Store) Snapshot(ctx context.Context) ([]domain.Entry, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT uuid, name FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("%w: listing whitelist: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var raw []byte
		var name string
		if err := rows.Scan(&raw, &name); err != nil {
			return nil, fmt.Errorf("%w: scanning whitelist row: %v", domain.ErrStore, err)
		}
		id, err := domain.DecodeIdentifier(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding stored identifier: %w", err)
		}
		entries = append(entries, domain.Entry{ID: id, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading whitelist rows: %v", domain.ErrStore, err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
