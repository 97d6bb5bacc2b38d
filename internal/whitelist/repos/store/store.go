// Package store defines the storage-agnostic whitelist contract and its
// backend-neutral helpers. Concrete backends live in the flatfile, sqlstore
// and bolt subpackages and are selected at construction time.
package store

import (
	"context"

	"github.com/minehattan/whitelister/internal/whitelist/domain"
)

// Store is the common contract all whitelist backends implement.
//
// Operations take full Entry values rather than bare identifiers because the
// backends span two data models: the relational and bolt variants key by
// identifier, while the file-backed variant stores names only and has no
// identifier at all. Passing both lets each backend address the entry in its
// own terms instead of faking the other model.
//
// Every operation is safe for concurrent use. An entry is either fully
// present or fully absent to any concurrent reader; no torn entries are
// observed.
type Store interface {
	// Add inserts a new entry. Duplicate policy is backend-specific: the
	// file-backed variant has no identifier concept and appends
	// unconditionally (deduplication is the caller's responsibility); the
	// identifier-keyed variants reject a duplicate identifier with an
	// error wrapping domain.ErrStore.
	Add(ctx context.Context, e domain.Entry) error

	// Remove deletes the entry. Removing an absent entry is a no-op, not
	// an error.
	Remove(ctx context.Context, e domain.Entry) error

	// Rename updates the stored name of an existing entry to newName.
	// No-op if the entry is absent.
	Rename(ctx context.Context, e domain.Entry, newName string) error

	// ResolveIdentifier looks up an identifier by exact name match. The
	// second return is false when the name is unknown. When multiple
	// historical identifiers share a name, which one wins is
	// implementation-defined. The file-backed variant, having no
	// identifiers, always reports absent.
	ResolveIdentifier(ctx context.Context, name string) (domain.Identifier, bool, error)

	// Check reports whether the entry is permitted. Backend failures are
	// logged and reported as not-on-whitelist (fail closed) rather than
	// propagated.
	Check(ctx context.Context, e domain.Entry) domain.CheckResult

	// Snapshot returns the current entries. Order is not significant.
	Snapshot(ctx context.Context) ([]domain.Entry, error)

	// Close releases backend resources.
	Close() error
}
