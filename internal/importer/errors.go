package importer

import (
	"errors"
	"fmt"
)

// ErrMissingRequiredOrUniqueField is matched by errors.Is when the mapping
// does not feed every required or unique field template exactly once.
var ErrMissingRequiredOrUniqueField = errors.New("missing required/unique field")

// MissingFieldError names the field template the mapping failed to cover.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required/unique field '%s'", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingRequiredOrUniqueField
}

// RepeatedFieldError names a required or unique field template fed by more
// than one slot.
type RepeatedFieldError struct {
	Field string
}

func (e *RepeatedFieldError) Error() string {
	return fmt.Sprintf("required/unique field '%s' is mapped more than once", e.Field)
}

func (e *RepeatedFieldError) Is(target error) bool {
	return target == ErrMissingRequiredOrUniqueField
}
