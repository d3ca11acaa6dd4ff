package metamodel

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// UniqueID is the Go representation of the UNIQUE_ID primitive type.
// The zero value is the reserved null id (spec.md §9 "Global null id");
// generators must never emit it.
type UniqueID uuid.UUID

// NullID is the reserved sentinel zero UniqueID.
var NullID UniqueID

func (id UniqueID) String() string { return uuid.UUID(id).String() }

// ParseUniqueID parses the canonical string form of a UniqueID. An empty
// string parses to NullID, matching the "absent" representation.
func ParseUniqueID(s string) (UniqueID, error) {
	if s == "" {
		return NullID, nil
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NullID, errors.Wrapf(err, "parse unique id %q", s)
	}
	return UniqueID(u), nil
}

// IdGenerator produces fresh UNIQUE_ID values distinct from every id it has
// previously issued and from NullID (spec.md §4.2).
type IdGenerator interface {
	Next() UniqueID
}

// UUIDGenerator is the default IdGenerator: every call draws a fresh
// random UUID (google/uuid), which collides with NullID only with
// astronomically negligible probability and never repeats in practice.
type UUIDGenerator struct{}

// NewUUIDGenerator constructs the default, UUID-backed IdGenerator
// (spec.md §4.2).
func NewUUIDGenerator() *UUIDGenerator { return &UUIDGenerator{} }

func (UUIDGenerator) Next() UniqueID {
	for {
		id := UniqueID(uuid.New())
		if id != NullID {
			return id
		}
	}
}
