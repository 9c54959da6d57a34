// Package xdnd holds the vocabulary of the XDND drag-and-drop protocol as
// seen from a drag source: opaque environment handles, the table of
// protocol atoms, and the 32-bit client message layouts.
//
// Nothing here talks to a display; the x11 package resolves atoms and
// moves messages on the wire.
package xdnd

import "fmt"

// Window is an opaque window handle owned by the display.
type Window uint32

// None is the null window.
const None Window = 0

func (w Window) String() string {
	return fmt.Sprintf("0x%08x", uint32(w))
}

// Atom is an opaque interned name owned by the display.
type Atom uint32

// Timestamp is a server timestamp in milliseconds.
type Timestamp uint32

// CurrentTime is the server's "now" placeholder.
const CurrentTime Timestamp = 0

// Protocol versions understood by this source.
const (
	Version    = 5
	MinVersion = 3
)

// SupportsVersion reports whether a target advertising v can be driven.
func SupportsVersion(v uint32) bool {
	return v >= MinVersion && v <= 0xff
}

// Negotiate returns the version announced in Enter for a target
// advertising v.
func Negotiate(v uint32) uint32 {
	if v < Version {
		return v
	}
	return Version
}

// Atom names used by the source.
const (
	NameAware      = "XdndAware"
	NameEnter      = "XdndEnter"
	NamePosition   = "XdndPosition"
	NameStatus     = "XdndStatus"
	NameLeave      = "XdndLeave"
	NameDrop       = "XdndDrop"
	NameFinished   = "XdndFinished"
	NameSelection  = "XdndSelection"
	NameActionCopy = "XdndActionCopy"
	NameActionList = "XdndActionList"
	NameURIList    = "text/uri-list"
	NameString     = "STRING"
	NameInterrupt  = "_XDROP_INTERRUPT"
)

// Atoms is the table of protocol identifiers, resolved once per display
// connection and read-only afterwards.
type Atoms struct {
	Aware      Atom
	Enter      Atom
	Position   Atom
	Status     Atom
	Leave      Atom
	Drop       Atom
	Finished   Atom
	Selection  Atom
	ActionCopy Atom
	ActionList Atom
	URIList    Atom
	String     Atom
	Interrupt  Atom
}

// Resolver interns an atom name.
type Resolver interface {
	Intern(name string) (Atom, error)
}

// ResolveAtoms interns every protocol atom through r.
func ResolveAtoms(r Resolver) (*Atoms, error) {
	a := &Atoms{}
	for _, f := range []struct {
		name string
		dst  *Atom
	}{
		{NameAware, &a.Aware},
		{NameEnter, &a.Enter},
		{NamePosition, &a.Position},
		{NameStatus, &a.Status},
		{NameLeave, &a.Leave},
		{NameDrop, &a.Drop},
		{NameFinished, &a.Finished},
		{NameSelection, &a.Selection},
		{NameActionCopy, &a.ActionCopy},
		{NameActionList, &a.ActionList},
		{NameURIList, &a.URIList},
		{NameString, &a.String},
		{NameInterrupt, &a.Interrupt},
	} {
		atom, err := r.Intern(f.name)
		if err != nil {
			return nil, fmt.Errorf("intern %s: %w", f.name, err)
		}
		*f.dst = atom
	}
	return a, nil
}

// Types returns the content types announced in Enter, most preferred first.
func (a *Atoms) Types() []Atom {
	return []Atom{a.URIList, a.String}
}
