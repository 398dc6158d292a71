package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references an occurrence or
// definition that no longer exists, e.g. because a concurrent actor already
// confirmed or cancelled it.
var ErrNotFound = errors.New("not found")

// ErrRateUnavailable blocks a confirmation: the exchange rate for the
// account→base pair could not be resolved. The occurrence stays pending and
// the caller decides whether to retry.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ValidationError marks input the caller can correct locally. It is always
// raised before any state mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// ConfigurationError marks a stored value the engine refuses to interpret,
// such as an unrecognized frequency. It is fatal to that definition's
// scheduling until corrected but never affects other definitions.
type ConfigurationError struct {
	Field string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unrecognized %s value %q", e.Field, e.Value)
}

// Common field validation errors.
var (
	ErrInvalidAmount    = &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	ErrEmptyName        = &ValidationError{Field: "name", Reason: "required"}
	ErrEmptyDescription = &ValidationError{Field: "description", Reason: "required"}
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
