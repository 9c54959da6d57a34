package session

import (
	"fmt"
	"log/slog"

	"xdrop/internal/xdnd"
)

// Negotiator is the XDND source state machine.
type Negotiator struct {
	env    Env
	source xdnd.Window
	atoms  *xdnd.Atoms
	log    *slog.Logger

	s       Session
	version uint32
}

// NewNegotiator creates a negotiator in the Idle state. source is the
// identity window named in every outbound message.
func NewNegotiator(env Env, source xdnd.Window, atoms *xdnd.Atoms, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.Default()
	}
	return &Negotiator{
		env:    env,
		source: source,
		atoms:  atoms,
		log:    log,
	}
}

// Session returns a copy of the drag context.
func (n *Negotiator) Session() Session {
	return n.s
}

// State returns the current state.
func (n *Negotiator) State() State {
	return n.s.State
}

// Done reports whether a terminal state was reached.
func (n *Negotiator) Done() bool {
	return n.s.State.Terminal()
}

// Result is nil after Finished, ErrCancelled after Cancelled and a
// *DropError (or send error) after Failed.
func (n *Negotiator) Result() error {
	return n.s.Err
}

func (n *Negotiator) transition(to State) {
	if n.s.State == to {
		return
	}
	n.log.Debug("state transition", "from", n.s.State.String(), "to", to.String(), "target", n.s.Target.String())
	n.s.State = to
}

func (n *Negotiator) accepting() bool {
	return !n.s.State.Terminal() && n.s.State != DropSent
}

// Motion handles a pointer sample.
func (n *Negotiator) Motion(sm Sample) {
	if !n.accepting() {
		return
	}

	n.s.MotionObserved = true
	n.s.X, n.s.Y = sm.X, sm.Y
	if sm.Time != xdnd.CurrentTime {
		n.s.Time = sm.Time
	}

	if n.s.Target != xdnd.None && sm.Window != n.s.Target {
		n.leave()
	}

	if n.s.Target == xdnd.None {
		if sm.Window != xdnd.None {
			n.enter(sm.Window)
		}
		return
	}

	if n.s.State == Tracking {
		n.sendPosition()
	}
}

// enter probes w and starts the handshake if it is protocol-aware.
func (n *Negotiator) enter(w xdnd.Window) {
	v, ok := n.env.AwareVersion(w)
	if !ok {
		n.log.Debug("window is not xdnd aware", "window", w.String())
		return
	}
	if !xdnd.SupportsVersion(v) {
		n.log.Debug("window advertises unsupported xdnd version", "window", w.String(), "version", v)
		return
	}

	n.version = xdnd.Negotiate(v)
	enter := xdnd.Enter{Source: n.source, Version: n.version, Types: n.atoms.Types()}
	if err := n.env.Send(w, enter); err != nil {
		n.log.Warn("send enter failed", "window", w.String(), "error", err)
		return
	}

	n.s.Target = w
	n.s.PositionAcknowledged = false
	n.transition(Negotiating)
	n.sendPosition()
}

func (n *Negotiator) sendPosition() {
	pos := xdnd.Position{
		Source: n.source,
		X:      n.s.X,
		Y:      n.s.Y,
		Time:   n.s.Time,
		Action: n.atoms.ActionCopy,
	}
	if err := n.env.Send(n.s.Target, pos); err != nil {
		n.log.Warn("send position failed", "window", n.s.Target.String(), "error", err)
	}
}

// leave abandons the current target. Delivery is best effort.
// Accepted survives so a later drop can tell a silent target from a
// refusing one.
func (n *Negotiator) leave() {
	if err := n.env.Send(n.s.Target, xdnd.Leave{Source: n.source}); err != nil {
		n.log.Debug("send leave failed", "window", n.s.Target.String(), "error", err)
	}
	n.s.Target = xdnd.None
	n.s.PositionAcknowledged = false
	n.transition(Idle)
}

// Status handles an XdndStatus from a target.
func (n *Negotiator) Status(st xdnd.Status) {
	if !n.accepting() {
		return
	}
	if n.s.Target == xdnd.None || st.Target != n.s.Target {
		n.log.Debug("ignoring status from stale target", "window", st.Target.String(), "target", n.s.Target.String())
		return
	}

	n.s.Accepted = st.Accepted()
	n.s.PositionAcknowledged = true
	n.transition(Tracking)
}

// Finished handles an XdndFinished from a target.
func (n *Negotiator) Finished(f xdnd.Finished) {
	if n.s.State != DropSent {
		n.log.Debug("ignoring finished outside of drop", "window", f.Target.String(), "state", n.s.State.String())
		return
	}
	if f.Target != n.s.Target {
		n.log.Debug("ignoring finished from another window", "window", f.Target.String(), "target", n.s.Target.String())
		return
	}
	if !f.Accepted && n.version >= 5 {
		n.log.Info("target finished without accepting the data", "window", f.Target.String())
	}
	n.transition(Finished)
}

// Drop handles the drop trigger. A non-nil error means the session failed.
// Drop is sent whenever the current target has answered, even with a
// refusal; the target then reports the outcome through Finished.
func (n *Negotiator) Drop(ts xdnd.Timestamp) error {
	if !n.accepting() {
		return nil
	}
	if ts != xdnd.CurrentTime {
		n.s.Time = ts
	}

	switch {
	case n.s.PositionAcknowledged:
		if err := n.env.Send(n.s.Target, xdnd.Drop{Source: n.source, Time: n.s.Time}); err != nil {
			return n.fail(fmt.Errorf("send drop to %s: %w", n.s.Target, err))
		}
		if err := n.env.ReleaseInput(); err != nil {
			n.log.Warn("release input grabs", "error", err)
		}
		n.transition(DropSent)
		return nil
	case !n.s.MotionObserved:
		return n.fail(&DropError{Reason: ErrNoMotion})
	case n.s.Target == xdnd.None:
		return n.fail(&DropError{Reason: ErrUnaware})
	case !n.s.Accepted:
		return n.fail(&DropError{Reason: ErrRejected, Target: n.s.Target})
	default:
		return n.fail(&DropError{Reason: ErrNoAcknowledge, Target: n.s.Target})
	}
}

func (n *Negotiator) fail(err error) error {
	n.s.Err = err
	n.transition(Failed)
	return err
}

// Cancel aborts the session, telling the current target if there is one.
func (n *Negotiator) Cancel() {
	if n.s.State.Terminal() {
		return
	}
	if n.s.Target != xdnd.None {
		n.leave()
	}
	n.s.Err = ErrCancelled
	n.transition(Cancelled)
}
