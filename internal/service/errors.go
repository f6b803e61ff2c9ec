package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoteClosed is returned when a submission targets a note whose
	// lines are already fully delivered.
	ErrNoteClosed = errors.New("delivery note is fully delivered")
	// ErrDriverInfoLocked is returned when driver info is updated after
	// the first confirmation.
	ErrDriverInfoLocked = errors.New("driver info is locked after confirmation")
)

// VersionConflictError signals that the submitted version token no longer
// matches the stored note, meaning another actor changed it in between.
type VersionConflictError struct {
	NoDN string
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("delivery note %s was modified concurrently", e.NoDN)
}
