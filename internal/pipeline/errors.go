package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an application id is unknown.
var ErrNotFound = errors.New("application not found")

// ErrConflict signals a lost update: the application changed between the
// read and the write. Callers may retry with fresh state (RetryOnConflict).
var ErrConflict = errors.New("application was modified concurrently")

// ErrDuplicate is returned when the (job, candidate) pair already has an
// application.
var ErrDuplicate = errors.New("candidate already applied to this job")

// InvalidTransitionError rejects an illegal stage move.
type InvalidTransitionError struct {
	From   Stage
	To     Stage
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %s → %s is not allowed: %s", e.From, e.To, e.Reason)
}
