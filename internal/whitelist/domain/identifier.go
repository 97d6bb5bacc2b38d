package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Identifier is the 128-bit value that stably names a player across name
// changes. It is a thin wrapper around a UUID so the rest of the subsystem
// does not depend on the uuid package directly.
type Identifier uuid.UUID

// NilIdentifier is the zero Identifier. The file-backed store, which has no
// identifier concept, reports it for every entry.
var NilIdentifier Identifier

// IdentifierSize is the width of the canonical binary encoding in bytes.
const IdentifierSize = 16

// NewIdentifier returns a random Identifier.
func NewIdentifier() Identifier {
	return Identifier(uuid.New())
}

// ParseIdentifier parses the textual UUID form, with or without dashes.
func ParseIdentifier(s string) (Identifier, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilIdentifier, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return Identifier(u), nil
}

// String returns the canonical dashed UUID form.
func (id Identifier) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether the identifier is the zero value.
func (id Identifier) IsNil() bool {
	return id == NilIdentifier
}

// EncodeIdentifier converts an Identifier to its canonical fixed-width binary
// form: the high 64 bits big-endian, then the low 64 bits big-endian. The
// relational and bolt backends store identifiers in this form to keep rows
// compact and comparison exact.
func EncodeIdentifier(id Identifier) []byte {
	buf := make([]byte, IdentifierSize)
	binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(id[:8]))
	binary.BigEndian.PutUint64(buf[8:], binary.BigEndian.Uint64(id[8:]))
	return buf
}

// DecodeIdentifier is the inverse of EncodeIdentifier. It fails with
// ErrInvalidInput unless the input is exactly 16 bytes.
func DecodeIdentifier(b []byte) (Identifier, error) {
	if len(b) != IdentifierSize {
		return NilIdentifier, fmt.Errorf("%w: identifier encoding must be %d bytes, got %d", ErrInvalidInput, IdentifierSize, len(b))
	}
	var id Identifier
	binary.BigEndian.PutUint64(id[:8], binary.BigEndian.Uint64(b[:8]))
	binary.BigEndian.PutUint64(id[8:], binary.BigEndian.Uint64(b[8:]))
	return id, nil
}
