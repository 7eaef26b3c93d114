package appointment

import (
	"errors"
	"fmt"
)

// Expected domain outcomes. The API layer maps these to status codes; none
// of them is retried internally.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrNotFound          = errors.New("appointment not found")
	ErrValidation        = errors.New("invalid appointment input")

	// ErrTransient wraps persistence failures on mutating paths. The caller
	// decides whether to retry; the service never retries a mutation.
	ErrTransient = errors.New("transient persistence failure")
)

func invalidTransition(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
