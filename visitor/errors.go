package visitor

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Errors
var (
	ErrRegionDoesNotExist    = errors.New("region does not exist")
	ErrRegionAlreadyExists   = errors.New("region already exists")
	ErrFieldDoesNotExist     = errors.New("field does not exist")
	ErrFieldAlreadyExists    = errors.New("field already exists")
	ErrFieldTypeDoesNotMatch = errors.New("field type does not match")
	ErrNoActiveNode          = errors.New("no active node")

	ErrNotSupportedFormat = errors.New("not a supported document format")
	ErrUnknownFieldType   = errors.New("unknown field type")
	ErrInvalidName        = errors.New("invalid name")

	ErrTypeMismatch     = errors.New("shared object type mismatch")
	ErrUnexpectedNullID = errors.New("unexpected null shared reference")
	ErrBlobSizeMismatch = errors.New("blob size is not a multiple of the element size")

	// ErrUser marks errors raised by user visit code and by malformed text
	// documents.
	ErrUser = errors.New("user error")
)

// FieldTypeMismatchError is returned when a stored field holds a kind other
// than the one being read.
type FieldTypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *FieldTypeMismatchError) Error() string {
	return fmt.Sprintf("field %q: type does not match: expected %s, got %s", e.Field, e.Expected, e.Actual)
}

func (e *FieldTypeMismatchError) Unwrap() error { return ErrFieldTypeDoesNotMatch }

// UserError builds an error marked with ErrUser.
func UserError(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrUser)
}
