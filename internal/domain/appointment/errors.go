package appointment

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an operation targets an id that does
	// not exist, or that the caller's scope is not allowed to see.
	ErrNotFound = errors.New("appointment not found")

	// ErrValidation wraps malformed or out-of-range input. Deterministic:
	// retrying the same request cannot succeed.
	ErrValidation = errors.New("validation failed")

	// ErrConflict marks any booking conflict. Use errors.As with
	// *ConflictError to reach the conflicting appointment.
	ErrConflict = errors.New("appointment conflict")
)

// ConflictError reports that a candidate window overlaps an existing active
// appointment. Existing carries the offending record so callers can surface
// its id and window and offer alternatives.
type ConflictError struct {
	Existing *Appointment
}

func (e *ConflictError) Error() string {
	w := e.Existing.Window()
	return fmt.Sprintf("conflicts with appointment #%d from %s to %s",
		e.Existing.ID, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrConflict) match a ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
