package listing

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("listing: not found")
	ErrInvalidInput   = errors.New("listing: invalid input")
	ErrStatusConflict = errors.New("listing: status changed concurrently")

	// ErrInvalidTransition matches any InvalidTransitionError under
	// errors.Is.
	ErrInvalidTransition = errors.New("listing: invalid transition")
)

// InvalidTransitionError reports a moderation action attempted against a
// listing that is not in the required source state. The caller must
// re-fetch current state; the operation is never retried automatically.
type InvalidTransitionError struct {
	From      Status
	Attempted ModerationAction
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("listing: cannot %s a listing in state %s", e.Attempted, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
