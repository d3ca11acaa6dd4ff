// Package ident centralizes the case-insensitive identifier rules shared by
// every lookup path in the engine: class kinds, attribute names, phrases and
// relation ids all compare equal regardless of the case used when the schema
// introduced them.
package ident

import (
	"fmt"
	"strconv"
	"strings"
)

// Normalize folds an identifier to its canonical comparison form.
// The canonical form the schema was defined with is preserved separately
// wherever it is displayed back to a caller; Normalize is only used as a
// map key / comparison key.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// RelID normalizes a relation id given either as an integer-looking string
// ("1", "12") or already in "R<n>" form, always returning "R<n>".
func RelID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToUpper(s), "R")
	return "R" + s
}

// RelIDFrom normalizes a relation id supplied as an int or a string,
// matching spec.md §6's "accept integer or R<n>" rule.
func RelIDFrom(relID any) string {
	switch v := relID.(type) {
	case int:
		return "R" + strconv.Itoa(v)
	case int64:
		return "R" + strconv.FormatInt(v, 10)
	case string:
		return RelID(v)
	default:
		return RelID(fmt.Sprint(v))
	}
}
