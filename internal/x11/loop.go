package x11

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"xdrop/internal/content"
	"xdrop/internal/metrics"
	"xdrop/internal/session"
	"xdrop/internal/xdnd"
)

// ErrConnectionClosed is returned when the display goes away mid-session.
var ErrConnectionClosed = errors.New("display connection closed")

// Loop dispatches X events to the negotiator and the content server
// until the session reaches a terminal state.
type Loop struct {
	neg     *session.Negotiator
	srv     *content.Server
	tracker *Tracker
	atoms   *xdnd.Atoms
	metrics *metrics.DropMetrics
	log     *slog.Logger

	mode      string
	button    xproto.Button
	isCancel  func(xproto.Keycode) bool
	next      func() (xgb.Event, xgb.Error)
	interrupt func() error
}

// NewLoop wires the loop to the resources of a session.
func NewLoop(res *Resources, neg *session.Negotiator, srv *content.Server, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		neg:       neg,
		srv:       srv,
		tracker:   NewTracker(res),
		atoms:     res.Atoms,
		metrics:   res.metrics,
		log:       log,
		mode:      res.Mode(),
		button:    res.DropButton(),
		isCancel:  res.IsCancelKey,
		next:      res.conn().WaitForEvent,
		interrupt: res.interrupt,
	}
}

// Run blocks until the session is finished, cancelled or failed and
// returns the session result. Cancelling ctx cancels the session.
func (l *Loop) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.log.Info("interrupted", "cause", context.Cause(ctx))
			if err := l.interrupt(); err != nil {
				l.log.Warn("post interrupt", "error", err)
			}
		case <-stop:
		}
	}()

	defer l.metrics.End()
	for !l.neg.Done() {
		ev, xerr := l.next()
		if ev == nil && xerr == nil {
			return ErrConnectionClosed
		}
		if xerr != nil {
			// Targets may vanish mid-drag; their errors are not fatal.
			l.metrics.XErrors.Inc()
			l.log.Debug("x error", "error", xerr)
			continue
		}
		l.dispatch(ev)
		l.metrics.State.Set(int64(l.neg.State()))
	}
	return l.neg.Result()
}

func (l *Loop) dispatch(ev xgb.Event) {
	switch e := ev.(type) {
	case xproto.MotionNotifyEvent:
		l.neg.Motion(l.sample(e.Child, e.RootX, e.RootY, e.Time, e.SameScreen))

	case xproto.ButtonPressEvent:
		if e.Detail != l.button {
			return
		}
		if l.mode == ModePress {
			l.neg.Motion(l.sample(e.Child, e.RootX, e.RootY, e.Time, e.SameScreen))
			return
		}
		l.drop(xdnd.Timestamp(e.Time))

	case xproto.ButtonReleaseEvent:
		if e.Detail == l.button && l.mode == ModePress {
			l.drop(xdnd.Timestamp(e.Time))
		}

	case xproto.KeyPressEvent:
		if l.isCancel(e.Detail) {
			l.log.Info("drag cancelled by key")
			l.neg.Cancel()
		}

	case xproto.ClientMessageEvent:
		l.clientMessage(e)

	case xproto.SelectionRequestEvent:
		req := content.Request{
			Requestor: xdnd.Window(e.Requestor),
			Selection: xdnd.Atom(e.Selection),
			Target:    xdnd.Atom(e.Target),
			Property:  xdnd.Atom(e.Property),
			Time:      xdnd.Timestamp(e.Time),
		}
		if err := l.srv.Serve(req); err != nil {
			l.log.Warn("serve selection request", "error", err)
		}

	case xproto.SelectionClearEvent:
		l.log.Warn("lost drag selection ownership", "owner", xdnd.Window(e.Owner).String())
	}
}

func (l *Loop) sample(child xproto.Window, x, y int16, ts xproto.Timestamp, sameScreen bool) session.Sample {
	if !sameScreen {
		return session.Sample{Time: xdnd.Timestamp(ts)}
	}
	return l.tracker.Sample(child, x, y, ts)
}

func (l *Loop) drop(ts xdnd.Timestamp) {
	if err := l.neg.Drop(ts); err != nil {
		l.log.Debug("drop failed", "error", err)
	}
}

func (l *Loop) clientMessage(e xproto.ClientMessageEvent) {
	if e.Format != 32 {
		return
	}
	data := e.Data.Data32
	t := xdnd.Atom(e.Type)

	if t == l.atoms.Interrupt {
		l.neg.Cancel()
		return
	}

	kind, ok := l.atoms.KindOf(t)
	if !ok {
		l.log.Debug("ignoring client message", "type", uint32(t))
		return
	}
	switch kind {
	case xdnd.KindStatus:
		l.metrics.StatusesReceived.Inc()
		st := xdnd.ParseStatus(data)
		l.log.Debug("received status", "window", st.Target.String(), "accepted", st.Accepted())
		l.neg.Status(st)
	case xdnd.KindFinished:
		f := xdnd.ParseFinished(data)
		l.log.Debug("received finished", "window", f.Target.String(), "accepted", f.Accepted)
		l.neg.Finished(f)
	default:
		l.log.Debug("ignoring xdnd message", "kind", kind.String())
	}
}
