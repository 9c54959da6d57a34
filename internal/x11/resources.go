// Package x11 is the X11 backend of the drag source. It owns the display
// connection and every server-side resource of a session, turns core
// input events into pointer samples, and runs the event loop that feeds
// the negotiator and the content server.
package x11

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"

	"xdrop/internal/metrics"
	"xdrop/internal/xdnd"
)

// Tracking modes.
const (
	ModeGrab  = "grab"
	ModePress = "press"
)

// Options selects the display and the input triggers.
type Options struct {
	// Display is the X display name. Empty means $DISPLAY.
	Display string
	// Mode is ModeGrab or ModePress.
	Mode string
	// DropButton is the pointer button that commits the drop.
	DropButton int
	// CancelKey is a keysym name such as "Escape".
	CancelKey string
}

// ErrGrabFailed is returned when the server refuses the pointer capture.
var ErrGrabFailed = errors.New("pointer capture refused")

// Resources holds the server-side state of one drag session.
type Resources struct {
	X      *xgbutil.XUtil
	Root   xproto.Window
	Window xproto.Window
	Atoms  *xdnd.Atoms

	opts       Options
	selection  xproto.Atom
	button     xproto.Button
	cancelKeys []xproto.Keycode

	log     *slog.Logger
	metrics *metrics.DropMetrics

	windowCreated  bool
	selectionOwned bool
	pointerGrabbed bool
	buttonGrabbed  bool
	keysGrabbed    bool

	inputOnce   sync.Once
	inputErr    error
	releaseOnce sync.Once
}

// Acquire connects to the display and takes every resource the session
// needs. On failure whatever was acquired is released again.
func Acquire(opts Options, m *metrics.DropMetrics, log *slog.Logger) (res *Resources, err error) {
	if log == nil {
		log = slog.Default()
	}
	if m == nil {
		m = metrics.NewDropMetrics(nil)
	}
	if opts.Mode == "" {
		opts.Mode = ModeGrab
	}
	if opts.DropButton == 0 {
		opts.DropButton = 1
	}
	if opts.CancelKey == "" {
		opts.CancelKey = "Escape"
	}

	if !log.Enabled(context.Background(), slog.LevelDebug) {
		xgb.Logger.SetOutput(io.Discard)
		xgbutil.Logger.SetOutput(io.Discard)
	}

	xu, err := xgbutil.NewConnDisplay(opts.Display)
	if err != nil {
		return nil, fmt.Errorf("connect to display %q: %w", opts.Display, err)
	}

	res = &Resources{
		X:       xu,
		Root:    xu.RootWin(),
		opts:    opts,
		button:  xproto.Button(opts.DropButton),
		log:     log,
		metrics: m,
	}
	defer func() {
		if err != nil {
			res.Release()
			res = nil
		}
	}()

	if err := res.createWindow(); err != nil {
		return nil, err
	}
	if err := res.ownSelection(); err != nil {
		return nil, err
	}

	res.Atoms, err = xdnd.ResolveAtoms(atomResolver{xu})
	if err != nil {
		return nil, err
	}
	if err := xprop.ChangeProp32(xu, res.Window, xdnd.NameActionList, "ATOM", uint(res.Atoms.ActionCopy)); err != nil {
		return nil, fmt.Errorf("set %s: %w", xdnd.NameActionList, err)
	}

	if err := res.captureMotion(); err != nil {
		return nil, err
	}
	if err := res.grabCancelKey(); err != nil {
		return nil, err
	}

	log.Debug("resources acquired",
		"window", xdnd.Window(res.Window).String(),
		"mode", opts.Mode,
		"button", opts.DropButton,
		"cancel_key", opts.CancelKey,
	)
	return res, nil
}

type atomResolver struct {
	xu *xgbutil.XUtil
}

func (r atomResolver) Intern(name string) (xdnd.Atom, error) {
	a, err := xprop.Atm(r.xu, name)
	return xdnd.Atom(a), err
}

func (r *Resources) conn() *xgb.Conn {
	return r.X.Conn()
}

// createWindow makes the unmapped InputOnly window that identifies the
// source in every message and owns the selection.
func (r *Resources) createWindow() error {
	wid, err := xproto.NewWindowId(r.conn())
	if err != nil {
		return fmt.Errorf("allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(r.conn(), 0, wid, r.Root,
		-1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0,
		0, nil,
	).Check()
	if err != nil {
		return fmt.Errorf("create identity window: %w", err)
	}
	r.Window = wid
	r.windowCreated = true
	return nil
}

func (r *Resources) ownSelection() error {
	sel, err := xprop.Atm(r.X, xdnd.NameSelection)
	if err != nil {
		return fmt.Errorf("intern %s: %w", xdnd.NameSelection, err)
	}
	err = xproto.SetSelectionOwnerChecked(r.conn(), r.Window, sel, xproto.TimeCurrentTime).Check()
	if err != nil {
		return fmt.Errorf("own %s: %w", xdnd.NameSelection, err)
	}
	reply, err := xproto.GetSelectionOwner(r.conn(), sel).Reply()
	if err != nil {
		return fmt.Errorf("query %s owner: %w", xdnd.NameSelection, err)
	}
	if reply.Owner != r.Window {
		return fmt.Errorf("own %s: selection owned by 0x%08x", xdnd.NameSelection, uint32(reply.Owner))
	}
	r.selection = sel
	r.selectionOwned = true
	return nil
}

const pointerEvents = xproto.EventMaskPointerMotion |
	xproto.EventMaskButtonPress |
	xproto.EventMaskButtonRelease

func (r *Resources) captureMotion() error {
	switch r.opts.Mode {
	case ModeGrab:
		reply, err := xproto.GrabPointer(r.conn(), false, r.Root, pointerEvents,
			xproto.GrabModeAsync, xproto.GrabModeAsync,
			xproto.WindowNone, xproto.CursorNone, xproto.TimeCurrentTime,
		).Reply()
		if err != nil {
			return fmt.Errorf("grab pointer: %w", err)
		}
		if reply.Status != xproto.GrabStatusSuccess {
			return fmt.Errorf("grab pointer: %w (status %d)", ErrGrabFailed, reply.Status)
		}
		r.pointerGrabbed = true
	case ModePress:
		for _, mods := range xevent.IgnoreMods {
			err := xproto.GrabButtonChecked(r.conn(), false, r.Root, pointerEvents,
				xproto.GrabModeAsync, xproto.GrabModeAsync,
				xproto.WindowNone, xproto.CursorNone, byte(r.button), mods,
			).Check()
			if err != nil {
				return fmt.Errorf("grab button %d: %w", r.button, err)
			}
			r.buttonGrabbed = true
		}
	default:
		return fmt.Errorf("unknown tracking mode %q", r.opts.Mode)
	}
	return nil
}

func (r *Resources) grabCancelKey() error {
	keybind.Initialize(r.X)
	codes := keybind.StrToKeycodes(r.X, r.opts.CancelKey)
	if len(codes) == 0 {
		return fmt.Errorf("cancel key %q has no keycode", r.opts.CancelKey)
	}
	r.cancelKeys = codes
	for _, code := range codes {
		for _, mods := range xevent.IgnoreMods {
			err := xproto.GrabKeyChecked(r.conn(), false, r.Root, mods, code,
				xproto.GrabModeAsync, xproto.GrabModeAsync,
			).Check()
			if err != nil {
				return fmt.Errorf("grab cancel key %q: %w", r.opts.CancelKey, err)
			}
			r.keysGrabbed = true
		}
	}
	return nil
}

// IsCancelKey reports whether code is bound to the cancel key.
func (r *Resources) IsCancelKey(code xproto.Keycode) bool {
	for _, c := range r.cancelKeys {
		if c == code {
			return true
		}
	}
	return false
}

// Mode returns the tracking mode in effect.
func (r *Resources) Mode() string {
	return r.opts.Mode
}

// DropButton returns the pointer button that commits the drop.
func (r *Resources) DropButton() xproto.Button {
	return r.button
}

// ReleaseInput ungrabs the pointer, the drop button and the cancel key.
// Later calls return the first result.
func (r *Resources) ReleaseInput() error {
	r.inputOnce.Do(func() {
		var errs []error
		c := r.conn()
		if r.keysGrabbed {
			for _, code := range r.cancelKeys {
				for _, mods := range xevent.IgnoreMods {
					if err := xproto.UngrabKeyChecked(c, code, r.Root, mods).Check(); err != nil {
						errs = append(errs, fmt.Errorf("ungrab key: %w", err))
					}
				}
			}
			r.keysGrabbed = false
		}
		if r.buttonGrabbed {
			for _, mods := range xevent.IgnoreMods {
				if err := xproto.UngrabButtonChecked(c, byte(r.button), r.Root, mods).Check(); err != nil {
					errs = append(errs, fmt.Errorf("ungrab button: %w", err))
				}
			}
			r.buttonGrabbed = false
		}
		if r.pointerGrabbed || r.opts.Mode == ModePress {
			if err := xproto.UngrabPointerChecked(c, xproto.TimeCurrentTime).Check(); err != nil {
				errs = append(errs, fmt.Errorf("ungrab pointer: %w", err))
			}
			r.pointerGrabbed = false
		}
		r.inputErr = errors.Join(errs...)
		r.log.Debug("input released", "error", r.inputErr)
	})
	return r.inputErr
}

// Release gives back every resource in reverse order of acquisition.
// It is safe to call more than once and from any exit path.
func (r *Resources) Release() {
	r.releaseOnce.Do(func() {
		if err := r.ReleaseInput(); err != nil {
			r.log.Debug("release input", "error", err)
		}
		c := r.conn()
		if r.selectionOwned {
			reply, err := xproto.GetSelectionOwner(c, r.selection).Reply()
			if err == nil && reply.Owner == r.Window {
				xproto.SetSelectionOwner(c, xproto.WindowNone, r.selection, xproto.TimeCurrentTime)
			}
			r.selectionOwned = false
		}
		if r.windowCreated {
			if err := xproto.DestroyWindowChecked(c, r.Window).Check(); err != nil {
				r.log.Debug("destroy identity window", "error", err)
			}
			r.windowCreated = false
		}
		c.Close()
		r.log.Debug("resources released")
	})
}
