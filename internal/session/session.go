// Package session drives the source side of an XDND handshake.
//
// A Negotiator owns the single mutable DragSession. It consumes pointer
// samples, inbound Status/Finished messages and the drop and cancel
// triggers, and emits Enter, Position, Leave and Drop through an Env.
// It must only be used from the goroutine that runs the event loop.
package session

import (
	"fmt"

	"xdrop/internal/xdnd"
)

// State is the negotiation state.
type State int

const (
	// Idle: no current target.
	Idle State = iota
	// Negotiating: Enter and Position sent, no Status yet.
	Negotiating
	// Tracking: the current target has answered at least once.
	Tracking
	// DropSent: Drop emitted, waiting for Finished.
	DropSent
	Finished
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Negotiating:
		return "negotiating"
	case Tracking:
		return "tracking"
	case DropSent:
		return "drop_sent"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether the control loop should stop.
func (s State) Terminal() bool {
	return s == Finished || s == Cancelled || s == Failed
}

// Sample is one pointer observation: the window beneath the pointer and
// the pointer's root coordinates.
type Sample struct {
	Window xdnd.Window
	X, Y   int
	Time   xdnd.Timestamp
}

// Session is the drag context. Zero Target means no current target.
type Session struct {
	State  State
	Target xdnd.Window

	// PositionAcknowledged is set once the current target answered a
	// Position with a Status. Accepted is the flag carried by the most
	// recent Status from any target; it is not cleared on Leave.
	PositionAcknowledged bool
	Accepted             bool

	MotionObserved bool
	X, Y           int
	Time           xdnd.Timestamp

	// Err is set when State is Cancelled or Failed.
	Err error
}

// Env is the part of the display the negotiator needs.
type Env interface {
	// AwareVersion reads the XdndAware marker of w.
	AwareVersion(w xdnd.Window) (version uint32, ok bool)
	// Send delivers a client message to w.
	Send(w xdnd.Window, msg xdnd.Message) error
	// ReleaseInput drops the pointer and keyboard grabs.
	ReleaseInput() error
}
