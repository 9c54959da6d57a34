package x11

import (
	"github.com/BurntSushi/xgb/xproto"

	"xdrop/internal/session"
	"xdrop/internal/xdnd"
)

// windowTree is the part of the window hierarchy the tracker walks.
type windowTree interface {
	isAware(w xproto.Window) bool
	childAt(w xproto.Window, rootX, rootY int16) (xproto.Window, bool)
}

// Tracker turns pointer events into samples.
type Tracker struct {
	tree windowTree
}

// NewTracker creates a tracker resolving windows through r.
func NewTracker(r *Resources) *Tracker {
	return &Tracker{tree: r}
}

// Sample builds a sample from root coordinates and the top-level child
// reported by the event.
func (t *Tracker) Sample(top xproto.Window, rootX, rootY int16, ts xproto.Timestamp) session.Sample {
	return session.Sample{
		Window: xdnd.Window(t.resolve(top, rootX, rootY)),
		X:      int(rootX),
		Y:      int(rootY),
		Time:   xdnd.Timestamp(ts),
	}
}

// resolve descends from top to the first window carrying XdndAware.
// When none carries it, top itself is returned.
func (t *Tracker) resolve(top xproto.Window, rootX, rootY int16) xproto.Window {
	for w := top; w != xproto.WindowNone; {
		if t.tree.isAware(w) {
			return w
		}
		child, ok := t.tree.childAt(w, rootX, rootY)
		if !ok {
			break
		}
		w = child
	}
	return top
}

func (r *Resources) isAware(w xproto.Window) bool {
	_, ok := r.AwareVersion(xdnd.Window(w))
	return ok
}

func (r *Resources) childAt(w xproto.Window, rootX, rootY int16) (xproto.Window, bool) {
	reply, err := xproto.TranslateCoordinates(r.conn(), r.Root, w, rootX, rootY).Reply()
	if err != nil || !reply.SameScreen {
		return xproto.WindowNone, false
	}
	return reply.Child, reply.Child != xproto.WindowNone
}
