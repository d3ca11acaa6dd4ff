package metamodel

import "github.com/cockroachdb/errors"

// Sentinel errors for the failure kinds spec.md §7 names: the structural
// ones (unknown class/link/type, duplicate class) and the recoverable
// relate/unrelate/delete rejections. Callers match them with errors.Is; the engine always wraps them
// with errors.Wrapf to attach the offending kind/link/attribute.
var (
	ErrUnknownClass   = errors.New("metamodel: unknown class")
	ErrUnknownLink    = errors.New("metamodel: unknown link")
	ErrUnknownType    = errors.New("metamodel: unknown type")
	ErrDuplicateClass = errors.New("metamodel: duplicate class")
	ErrRelateError    = errors.New("metamodel: relate rejected")
	ErrUnrelateError  = errors.New("metamodel: unrelate rejected")
	ErrDeleteError    = errors.New("metamodel: delete rejected")
)
