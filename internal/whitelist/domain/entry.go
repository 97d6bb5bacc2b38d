package domain

import (
	"fmt"
	"strings"
)

// Entry is a whitelist record: an identifier and the last known display name
// for it. Identifiers are unique across a store; names are not, since two
// identifiers may have shared a name historically. The file-backed store
// carries name-only entries with a nil identifier.
type Entry struct {
	ID   Identifier
	Name string
}

// NewEntry constructs an Entry and validates the name field.
func NewEntry(id Identifier, name string) (Entry, error) {
	e := Entry{ID: id, Name: strings.TrimSpace(name)}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Validate checks the Entry for required fields.
func (e Entry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("%w: entry name must not be empty", ErrInvalidInput)
	}
	return nil
}

// CheckResult is the immutable outcome of a whitelist membership query.
// Produced fresh per query and never cached beyond the call that created it.
type CheckResult struct {
	OnWhitelist bool
	// WhitelistedName is the name stored for the checked identifier, or
	// empty when the store keeps no name (or the identifier is absent).
	WhitelistedName string
}

// EmptyCheck returns a not-on-whitelist result, which is also what a failing
// backend reports (fail closed).
func EmptyCheck() CheckResult { return CheckResult{} }

// Profile pairs a display name with the identifier a resolution source found
// for it.
type Profile struct {
	ID   Identifier
	Name string
}
