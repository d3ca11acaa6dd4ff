package metamodel

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cast"
)

// TypeName is one of the primitive attribute types the engine understands
// (spec.md §3). A TypeName value can hold any string, but ValidateType
// accepts only the five constants below; synonyms are rejected.
type TypeName string

const (
	BOOLEAN   TypeName = "BOOLEAN"
	INTEGER   TypeName = "INTEGER"
	REAL      TypeName = "REAL"
	STRING    TypeName = "STRING"
	UNIQUE_ID TypeName = "UNIQUE_ID"
)

// Attribute pairs a declared name with its type. Attribute order on a
// MetaClass is schema order: positional instance construction follows it.
type Attribute struct {
	Name string
	Type TypeName
}

// knownTypes validates the fixed vocabulary of §3; anything else synonym or
// not fails with ErrUnknownType at the point an attribute is added, per §4.1.
var knownTypes = map[TypeName]struct{}{
	BOOLEAN:   {},
	INTEGER:   {},
	REAL:      {},
	STRING:    {},
	UNIQUE_ID: {},
}

// ValidateType reports ErrUnknownType for any TypeName outside the fixed
// primitive vocabulary.
func ValidateType(t TypeName) error {
	if _, ok := knownTypes[t]; !ok {
		return errors.Wrapf(ErrUnknownType, "type %q", t)
	}
	return nil
}

// DefaultValue returns the null/default value for t, per spec.md §4.1.
// UNIQUE_ID draws a fresh id from gen; a nil gen yields the absent marker
// (the null UUID).
func DefaultValue(t TypeName, gen IdGenerator) (any, error) {
	switch t {
	case BOOLEAN:
		return false, nil
	case INTEGER:
		return 0, nil
	case REAL:
		return 0.0, nil
	case STRING:
		return "", nil
	case UNIQUE_ID:
		if gen == nil {
			return NullID, nil
		}
		return gen.Next(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownType, "type %q", t)
	}
}

// IsNull reports whether v is the null representation of t, per spec.md §3's
// null semantics: zero UniqueID, empty string, never-null for bool/int/real.
func IsNull(t TypeName, v any) bool {
	switch t {
	case UNIQUE_ID:
		id, ok := v.(UniqueID)
		return !ok || id == NullID
	case STRING:
		s, ok := v.(string)
		return !ok || s == ""
	default:
		return false
	}
}

// Coerce converts v to the Go representation of t (spf13/cast handles the
// widening/narrowing), so that positional constructor arguments and query
// predicate values arriving as a different concrete type than the attribute
// declares still compare/assign correctly.
func Coerce(t TypeName, v any) (any, error) {
	if v == nil {
		return DefaultValue(t, nil)
	}
	switch t {
	case BOOLEAN:
		return cast.ToBoolE(v)
	case INTEGER:
		return cast.ToIntE(v)
	case REAL:
		return cast.ToFloat64E(v)
	case STRING:
		return cast.ToStringE(v)
	case UNIQUE_ID:
		switch id := v.(type) {
		case UniqueID:
			return id, nil
		case string:
			return ParseUniqueID(id)
		default:
			return nil, errors.Wrapf(ErrUnknownType, "cannot coerce %T to UNIQUE_ID", v)
		}
	default:
		return nil, errors.Wrapf(ErrUnknownType, "type %q", t)
	}
}
