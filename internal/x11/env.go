package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"xdrop/internal/content"
	"xdrop/internal/session"
	"xdrop/internal/xdnd"
)

// Resources is the negotiator's environment and the content server's
// responder.
var (
	_ session.Env       = (*Resources)(nil)
	_ content.Responder = (*Resources)(nil)
)

// AwareVersion reads the XdndAware property of w. Windows that vanished
// or carry a malformed marker are reported as unaware.
func (r *Resources) AwareVersion(w xdnd.Window) (uint32, bool) {
	reply, err := xproto.GetProperty(r.conn(), false, xproto.Window(w),
		xproto.Atom(r.Atoms.Aware), xproto.AtomAtom, 0, 1,
	).Reply()
	if err != nil {
		r.log.Debug("read xdnd aware", "window", w.String(), "error", err)
		return 0, false
	}
	if reply.Format != 32 || reply.ValueLen < 1 || len(reply.Value) < 4 {
		return 0, false
	}
	return xgb.Get32(reply.Value), true
}

// Send delivers msg to w as a 32-bit client message.
func (r *Resources) Send(w xdnd.Window, msg xdnd.Message) error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(w),
		Type:   xproto.Atom(r.Atoms.MessageType(msg.Kind())),
		Data:   xproto.ClientMessageDataUnionData32New(msg.Data32()),
	}
	err := xproto.SendEventChecked(r.conn(), false, xproto.Window(w),
		xproto.EventMaskNoEvent, string(ev.Bytes()),
	).Check()
	if err != nil {
		return fmt.Errorf("send %s: %w", msg.Kind(), err)
	}
	r.metrics.MessageSent(msg.Kind().String())
	r.log.Debug("sent message", "kind", msg.Kind().String(), "window", w.String())
	return nil
}

// interrupt posts a cancel request to the identity window so it arrives
// through the event queue.
func (r *Resources) interrupt() error {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: r.Window,
		Type:   xproto.Atom(r.Atoms.Interrupt),
		Data:   xproto.ClientMessageDataUnionData32New(make([]uint32, 5)),
	}
	return xproto.SendEventChecked(r.conn(), false, r.Window,
		xproto.EventMaskNoEvent, string(ev.Bytes()),
	).Check()
}

// WriteProperty stores data on w as an 8-bit property of type typ.
func (r *Resources) WriteProperty(w xdnd.Window, prop, typ xdnd.Atom, data []byte) error {
	return xproto.ChangePropertyChecked(r.conn(), xproto.PropModeReplace,
		xproto.Window(w), xproto.Atom(prop), xproto.Atom(typ),
		8, uint32(len(data)), data,
	).Check()
}

// Notify sends the SelectionNotify that completes a conversion.
func (r *Resources) Notify(req content.Request, prop xdnd.Atom) error {
	ev := xproto.SelectionNotifyEvent{
		Time:      xproto.Timestamp(req.Time),
		Requestor: xproto.Window(req.Requestor),
		Selection: xproto.Atom(req.Selection),
		Target:    xproto.Atom(req.Target),
		Property:  xproto.Atom(prop),
	}
	return xproto.SendEventChecked(r.conn(), false, xproto.Window(req.Requestor),
		xproto.EventMaskNoEvent, string(ev.Bytes()),
	).Check()
}
