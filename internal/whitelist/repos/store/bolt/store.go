// Package bolt implements the whitelist store on an embedded bbolt database,
// keyed by the 16-byte binary identifier encoding with the last known name
// as the value. It shares the relational variant's data model and duplicate
// policy while needing no external server.
package bolt

import (
	"context"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/minehattan/whitelister/internal/whitelist/common/log"
	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/repos/store"
)

var bucketEntries = []byte("whitelist")

// Store is the bbolt-backed whitelist.
type Store struct {
	db     *bbolt.DB
	logger log.Logger
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) a Bolt database at path and ensures the whitelist
// bucket exists.
func New(path string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: opening whitelist database: %v", domain.ErrStore, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEntries)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: creating whitelist bucket: %v", domain.ErrStore, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Add inserts a new entry. A duplicate identifier is rejected with an error
// wrapping domain.ErrStore, matching the relational variant's policy.
func (s *Store) Add(_ context.Context, e domain.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	key := domain.EncodeIdentifier(e.ID)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b.Get(key) != nil {
			return fmt.Errorf("%w: identifier %s already on the whitelist", domain.ErrStore, e.ID)
		}
		return b.Put(key, []byte(e.Name))
	})
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to add to the whitelist")
	}
	return err
}

// Remove deletes the entry's key. Idempotent.
func (s *Store) Remove(_ context.Context, e domain.Entry) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete(domain.EncodeIdentifier(e.ID))
	})
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to remove from the whitelist")
		return fmt.Errorf("%w: deleting %s: %v", domain.ErrStore, e.ID, err)
	}
	return nil
}

// Rename updates the stored name for an existing identifier. No-op if the
// identifier is absent.
func (s *Store) Rename(_ context.Context, e domain.Entry, newName string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		key := domain.EncodeIdentifier(e.ID)
		if b.Get(key) == nil {
			return nil
		}
		return b.Put(key, []byte(newName))
	})
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "failed to update whitelisted name")
		return fmt.Errorf("%w: updating name for %s: %v", domain.ErrStore, e.ID, err)
	}
	return nil
}

// ResolveIdentifier scans for an exact name match. When several identifiers
// share a name the first in key order wins.
func (s *Store) ResolveIdentifier(_ context.Context, name string) (domain.Identifier, bool, error) {
	var found domain.Identifier
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if string(v) != name {
				continue
			}
			id, err := domain.DecodeIdentifier(k)
			if err != nil {
				return err
			}
			found, ok = id, true
			return nil
		}
		return nil
	})
	if err != nil {
		s.logger.Error(map[string]any{"name": name, "error": err.Error()}, "failed to resolve whitelisted identifier")
		return domain.NilIdentifier, false, fmt.Errorf("%w: resolving %q: %v", domain.ErrStore, name, err)
	}
	return found, ok, nil
}

// Check looks up the entry's identifier. Errors are logged and reported as
// not-on-whitelist (fail closed).
func (s *Store) Check(_ context.Context, e domain.Entry) domain.CheckResult {
	var result domain.CheckResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketEntries).Get(domain.EncodeIdentifier(e.ID))
		if v != nil {
			result = domain.CheckResult{OnWhitelist: true, WhitelistedName: string(v)}
		}
		return nil
	})
	if err != nil {
		s.logger.Error(map[string]any{"id": e.ID.String(), "error": err.Error()}, "whitelist check failed, denying")
		return domain.EmptyCheck()
	}
	return result
}

// Snapshot returns all entries.
func (s *Store) Snapshot(context.Context) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			id, err := domain.DecodeIdentifier(k)
			if err != nil {
				return err
			}
			entries = append(entries, domain.Entry{ID: id, Name: string(v)})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing whitelist: %v", domain.ErrStore, err)
	}
	return entries, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }
