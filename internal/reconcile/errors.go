package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors for transition guards
var (
	// ErrBusy means another mutation is already in flight for this
	// delivery note. Commands are serialized, not queued.
	ErrBusy = errors.New("another submission is in flight for this delivery note")
	// ErrNotAcknowledged means the user has not ticked the confirmation
	// checkbox; submits are unreachable until they do.
	ErrNotAcknowledged = errors.New("submission requires explicit acknowledgement")
	// ErrWaveUnavailable means no outstanding wave can be opened: every
	// line is already fully delivered.
	ErrWaveUnavailable = errors.New("all quantities delivered, no outstanding wave available")
	// ErrNotConfirmed means an outstanding wave was requested before the
	// first confirmation exists.
	ErrNotConfirmed = errors.New("outstanding waves require a prior confirmation")
	// ErrUnknownLine means an edit referenced a line item not on the note.
	ErrUnknownLine = errors.New("unknown line item")
)

// TransitionError is returned when a command is not legal in the session's
// current state.
type TransitionError struct {
	From    State
	Command string
}

// Error implements the error interface
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed in state %s", e.Command, e.From)
}
