package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrInvalidInput is returned when an item is built or mutated with bad
	// arguments: empty id or name, negative price, non-positive quantity.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRowNotFound is returned when a rowID is absent from the current instance.
	ErrRowNotFound = errors.New("row not found")
	// ErrUnknownModel is returned when an associate target is not registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrStoredCartNotFound is returned by a Repository when no stored cart
	// matches the identifier and instance.
	ErrStoredCartNotFound = errors.New("stored cart not found")
)

// InvalidInputError describes which argument was rejected.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is reports ErrInvalidInput as a match.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// RowNotFoundError indicates the cart does not contain the given row.
type RowNotFoundError struct {
	RowID string
}

func (e *RowNotFoundError) Error() string {
	return fmt.Sprintf("cart does not contain rowId %s", e.RowID)
}

// Is reports ErrRowNotFound as a match.
func (e *RowNotFoundError) Is(target error) bool {
	return target == ErrRowNotFound
}

// UnknownModelError indicates the model name has no registered finder.
type UnknownModelError struct {
	Model string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("model %q does not exist", e.Model)
}

// Is reports ErrUnknownModel as a match.
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
