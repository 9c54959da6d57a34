package session

import (
	"errors"
	"fmt"

	"xdrop/internal/xdnd"
)

// Diagnoses for a drop trigger that cannot be honoured. Exactly one applies.
var (
	ErrNoMotion      = errors.New("pointer motion not observed before drop")
	ErrUnaware       = errors.New("target does not support the protocol")
	ErrRejected      = errors.New("target rejected the drop")
	ErrNoAcknowledge = errors.New("target never acknowledged position")
)

// ErrCancelled ends a session the user aborted. It is not a failure.
var ErrCancelled = errors.New("drop cancelled")

// DropError is a terminal protocol failure. Reason is one of the
// diagnosis sentinels; errors.Is matches against it.
type DropError struct {
	Reason error
	Target xdnd.Window
}

func (e *DropError) Error() string {
	if e.Target == xdnd.None {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%v (window %s)", e.Reason, e.Target)
}

func (e *DropError) Unwrap() error {
	return e.Reason
}
