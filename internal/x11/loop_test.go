package x11

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdrop/internal/content"
	"xdrop/internal/metrics"
	"xdrop/internal/payload"
	"xdrop/internal/session"
	"xdrop/internal/xdnd"
)

const (
	source   xdnd.Window    = 0x100
	frame    xproto.Window  = 0x200
	client   xproto.Window  = 0x201
	desktop  xproto.Window  = 0x300
	escapeKC xproto.Keycode = 9
)

type seqResolver struct {
	next xdnd.Atom
}

func (r *seqResolver) Intern(string) (xdnd.Atom, error) {
	r.next++
	return r.next, nil
}

func testAtoms(t *testing.T) *xdnd.Atoms {
	t.Helper()
	atoms, err := xdnd.ResolveAtoms(&seqResolver{next: 100})
	require.NoError(t, err)
	return atoms
}

type sent struct {
	to  xdnd.Window
	msg xdnd.Message
}

type fakeEnv struct {
	aware    map[xdnd.Window]uint32
	sent     []sent
	released int
}

func (e *fakeEnv) AwareVersion(w xdnd.Window) (uint32, bool) {
	v, ok := e.aware[w]
	return v, ok
}

func (e *fakeEnv) Send(w xdnd.Window, msg xdnd.Message) error {
	e.sent = append(e.sent, sent{w, msg})
	return nil
}

func (e *fakeEnv) ReleaseInput() error {
	e.released++
	return nil
}

func (e *fakeEnv) kinds() []xdnd.Kind {
	var out []xdnd.Kind
	for _, s := range e.sent {
		out = append(out, s.msg.Kind())
	}
	return out
}

type fakeTree struct {
	aware    map[xproto.Window]bool
	children map[xproto.Window]xproto.Window
}

func (f *fakeTree) isAware(w xproto.Window) bool {
	return f.aware[w]
}

func (f *fakeTree) childAt(w xproto.Window, _, _ int16) (xproto.Window, bool) {
	c, ok := f.children[w]
	return c, ok
}

type property struct {
	window xdnd.Window
	prop   xdnd.Atom
	data   string
}

type fakeResponder struct {
	written  []property
	notified []xdnd.Atom
}

func (f *fakeResponder) WriteProperty(w xdnd.Window, prop, _ xdnd.Atom, data []byte) error {
	f.written = append(f.written, property{w, prop, string(data)})
	return nil
}

func (f *fakeResponder) Notify(_ content.Request, prop xdnd.Atom) error {
	f.notified = append(f.notified, prop)
	return nil
}

type harness struct {
	loop   *Loop
	env    *fakeEnv
	resp   *fakeResponder
	atoms  *xdnd.Atoms
	events chan xgb.Event
	errs   chan xgb.Error
}

func newHarness(t *testing.T, mode string) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	atoms := testAtoms(t)

	env := &fakeEnv{aware: map[xdnd.Window]uint32{xdnd.Window(client): 5}}
	tree := &fakeTree{
		aware:    map[xproto.Window]bool{client: true},
		children: map[xproto.Window]xproto.Window{frame: client},
	}

	set, err := payload.New([]string{"/tmp/a.txt"})
	require.NoError(t, err)
	resp := &fakeResponder{}

	h := &harness{
		env:    env,
		resp:   resp,
		atoms:  atoms,
		events: make(chan xgb.Event, 32),
		errs:   make(chan xgb.Error, 4),
	}
	h.loop = &Loop{
		neg:     session.NewNegotiator(env, source, atoms, log),
		srv:     content.NewServer(set, atoms, resp, nil, log),
		tracker: &Tracker{tree: tree},
		atoms:   atoms,
		metrics: metrics.NewDropMetrics(nil),
		log:     log,
		mode:    mode,
		button:  1,
		isCancel: func(k xproto.Keycode) bool {
			return k == escapeKC
		},
		next: func() (xgb.Event, xgb.Error) {
			select {
			case xerr := <-h.errs:
				return nil, xerr
			default:
			}
			ev, ok := <-h.events
			if !ok {
				return nil, nil
			}
			return ev, nil
		},
		interrupt: func() error {
			h.events <- h.clientMessage(atoms.Interrupt, 0, 0)
			return nil
		},
	}
	return h
}

func (h *harness) push(evs ...xgb.Event) {
	for _, ev := range evs {
		h.events <- ev
	}
}

func (h *harness) clientMessage(t xdnd.Atom, from xproto.Window, flags uint32) xproto.ClientMessageEvent {
	return xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(source),
		Type:   xproto.Atom(t),
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(from), flags, 0, 0, uint32(h.atoms.ActionCopy)}),
	}
}

func motion(child xproto.Window, x, y int16, ts xproto.Timestamp) xproto.MotionNotifyEvent {
	return xproto.MotionNotifyEvent{Child: child, RootX: x, RootY: y, Time: ts, SameScreen: true}
}

func TestLoopCompletesDrop(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		motion(frame, 10, 20, 5),
		h.clientMessage(h.atoms.Status, client, xdnd.StatusAcceptFlag),
		motion(frame, 11, 21, 6),
		xproto.ButtonPressEvent{Detail: 1, Time: 7, SameScreen: true},
		xproto.SelectionRequestEvent{
			Requestor: client,
			Selection: xproto.Atom(h.atoms.Selection),
			Target:    xproto.Atom(h.atoms.URIList),
			Property:  77,
		},
		h.clientMessage(h.atoms.Finished, client, 1),
	)

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, session.Finished, h.loop.neg.State())

	assert.Equal(t, []xdnd.Kind{
		xdnd.KindEnter, xdnd.KindPosition, xdnd.KindPosition, xdnd.KindDrop,
	}, h.env.kinds())
	for _, s := range h.env.sent {
		assert.Equal(t, xdnd.Window(client), s.to)
	}
	assert.Equal(t, 1, h.env.released)

	require.Len(t, h.resp.written, 1)
	assert.Equal(t, "file:///tmp/a.txt\r\n", h.resp.written[0].data)
	assert.Equal(t, []xdnd.Atom{77}, h.resp.notified)

	assert.Equal(t, uint64(1), h.loop.metrics.StatusesReceived.Value())
	assert.Equal(t, int64(session.Finished), h.loop.metrics.State.Value())
	assert.Equal(t, uint64(1), h.loop.metrics.HandshakeDuration.Count())
}

func TestLoopPressMode(t *testing.T) {
	h := newHarness(t, ModePress)
	h.push(
		xproto.ButtonPressEvent{Detail: 1, Child: frame, RootX: 3, RootY: 4, Time: 1, SameScreen: true},
		h.clientMessage(h.atoms.Status, client, xdnd.StatusAcceptFlag),
		xproto.ButtonReleaseEvent{Detail: 1, Time: 2, SameScreen: true},
		h.clientMessage(h.atoms.Finished, client, 1),
	)

	require.NoError(t, h.loop.Run(context.Background()))
	assert.Equal(t, []xdnd.Kind{xdnd.KindEnter, xdnd.KindPosition, xdnd.KindDrop}, h.env.kinds())
}

func TestLoopIgnoresOtherButtons(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		motion(frame, 10, 20, 5),
		h.clientMessage(h.atoms.Status, client, xdnd.StatusAcceptFlag),
		xproto.ButtonPressEvent{Detail: 3, Time: 6},
		xproto.ButtonReleaseEvent{Detail: 1, Time: 7},
	)
	close(h.events)

	err := h.loop.Run(context.Background())
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.Equal(t, session.Tracking, h.loop.neg.State())
}

func TestLoopDropOnUnawareWindow(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		motion(desktop, 1, 1, 5),
		xproto.ButtonPressEvent{Detail: 1, Time: 6},
	)

	err := h.loop.Run(context.Background())
	require.ErrorIs(t, err, session.ErrUnaware)
	assert.Empty(t, h.env.sent)
	assert.Equal(t, session.Failed, h.loop.neg.State())
}

func TestLoopCancelKey(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		motion(frame, 10, 20, 5),
		xproto.KeyPressEvent{Detail: 38},
		xproto.KeyPressEvent{Detail: escapeKC},
	)

	err := h.loop.Run(context.Background())
	require.ErrorIs(t, err, session.ErrCancelled)
	assert.Equal(t, []xdnd.Kind{xdnd.KindEnter, xdnd.KindPosition, xdnd.KindLeave}, h.env.kinds())
}

func TestLoopContextCancellation(t *testing.T) {
	h := newHarness(t, ModeGrab)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.loop.Run(ctx)
	require.ErrorIs(t, err, session.ErrCancelled)
}

func TestLoopSurvivesXErrors(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.errs <- &xproto.WindowError{}
	h.push(xproto.KeyPressEvent{Detail: escapeKC})

	err := h.loop.Run(context.Background())
	require.True(t, errors.Is(err, session.ErrCancelled))
	assert.Equal(t, uint64(1), h.loop.metrics.XErrors.Value())
}

func TestLoopRefusesUnknownTarget(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		xproto.SelectionRequestEvent{Requestor: client, Target: 9999, Property: 77},
		xproto.KeyPressEvent{Detail: escapeKC},
	)

	require.ErrorIs(t, h.loop.Run(context.Background()), session.ErrCancelled)
	assert.Empty(t, h.resp.written)
	assert.Equal(t, []xdnd.Atom{0}, h.resp.notified)
}

func TestLoopOtherScreen(t *testing.T) {
	h := newHarness(t, ModeGrab)
	h.push(
		motion(frame, 10, 20, 5),
		xproto.MotionNotifyEvent{Child: frame, RootX: 10, RootY: 20, SameScreen: false},
		xproto.ButtonPressEvent{Detail: 1, Time: 6},
	)

	require.ErrorIs(t, h.loop.Run(context.Background()), session.ErrUnaware)
	assert.Equal(t, []xdnd.Kind{xdnd.KindEnter, xdnd.KindPosition, xdnd.KindLeave}, h.env.kinds())
}

func TestTrackerResolve(t *testing.T) {
	tree := &fakeTree{
		aware: map[xproto.Window]bool{0x12: true},
		children: map[xproto.Window]xproto.Window{
			0x10: 0x11,
			0x11: 0x12,
			0x20: 0x21,
		},
	}
	tr := &Tracker{tree: tree}

	tests := []struct {
		name string
		top  xproto.Window
		want xproto.Window
	}{
		{"descends to aware client", 0x10, 0x12},
		{"aware top-level", 0x12, 0x12},
		{"no aware window", 0x20, 0x20},
		{"root", xproto.WindowNone, xproto.WindowNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.resolve(tt.top, 0, 0))
		})
	}

	s := tr.Sample(0x10, 5, 6, 42)
	assert.Equal(t, session.Sample{Window: 0x12, X: 5, Y: 6, Time: 42}, s)
}
