package workflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for rejected transitions.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMissingHoldReason = errors.New("hold reason required")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrNoStatusChange    = errors.New("status unchanged")
)

// TransitionError describes a rejected transition. It unwraps to one of the
// sentinel errors above.
type TransitionError struct {
	TicketID string
	From     string
	To       string
	Err      error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("ticket %s: %s -> %s: %v", e.TicketID, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}
