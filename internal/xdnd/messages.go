package xdnd

// Kind names a protocol message.
type Kind int

const (
	KindEnter Kind = iota
	KindPosition
	KindStatus
	KindLeave
	KindDrop
	KindFinished
)

func (k Kind) String() string {
	switch k {
	case KindEnter:
		return "enter"
	case KindPosition:
		return "position"
	case KindStatus:
		return "status"
	case KindLeave:
		return "leave"
	case KindDrop:
		return "drop"
	case KindFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Message is an outbound client message. Data32 returns the five longs
// of the event body.
type Message interface {
	Kind() Kind
	Data32() []uint32
}

// MessageType maps a message kind to its atom.
func (a *Atoms) MessageType(k Kind) Atom {
	switch k {
	case KindEnter:
		return a.Enter
	case KindPosition:
		return a.Position
	case KindStatus:
		return a.Status
	case KindLeave:
		return a.Leave
	case KindDrop:
		return a.Drop
	case KindFinished:
		return a.Finished
	}
	return 0
}

// KindOf maps a client message type back to a kind.
func (a *Atoms) KindOf(t Atom) (Kind, bool) {
	for _, k := range []Kind{KindEnter, KindPosition, KindStatus, KindLeave, KindDrop, KindFinished} {
		if a.MessageType(k) == t {
			return k, true
		}
	}
	return 0, false
}

const enterMoreTypesFlag = 1 << 0

// Enter announces the source and up to three content types.
type Enter struct {
	Source  Window
	Version uint32
	Types   []Atom
}

func (e Enter) Kind() Kind { return KindEnter }

func (e Enter) Data32() []uint32 {
	buf := []uint32{uint32(e.Source), e.Version << 24, 0, 0, 0}
	if len(e.Types) > 3 {
		buf[1] |= enterMoreTypesFlag
	}
	for i := 0; i < len(e.Types) && i < 3; i++ {
		buf[2+i] = uint32(e.Types[i])
	}
	return buf
}

// Position reports the pointer's root coordinates.
type Position struct {
	Source Window
	X, Y   int
	Time   Timestamp
	Action Atom
}

func (p Position) Kind() Kind { return KindPosition }

func (p Position) Data32() []uint32 {
	return []uint32{
		uint32(p.Source),
		0,
		PackPoint(p.X, p.Y),
		uint32(p.Time),
		uint32(p.Action),
	}
}

// PackPoint packs root coordinates as x<<16 | y.
func PackPoint(x, y int) uint32 {
	return uint32(x&0xffff)<<16 | uint32(y&0xffff)
}

// UnpackPoint reverses PackPoint.
func UnpackPoint(v uint32) (x, y int) {
	return int(v >> 16), int(v & 0xffff)
}

// Leave tells the target the pointer is gone.
type Leave struct {
	Source Window
}

func (l Leave) Kind() Kind { return KindLeave }

func (l Leave) Data32() []uint32 {
	return []uint32{uint32(l.Source), 0, 0, 0, 0}
}

// Drop commits the drop.
type Drop struct {
	Source Window
	Time   Timestamp
}

func (d Drop) Kind() Kind { return KindDrop }

func (d Drop) Data32() []uint32 {
	return []uint32{uint32(d.Source), 0, uint32(d.Time), 0, 0}
}

// Status flags.
const (
	StatusAcceptFlag        = 1 << 0
	StatusSendPositionsFlag = 1 << 1
)

// Status is the target's answer to Position.
type Status struct {
	Target Window
	Flags  uint32
	Action Atom
}

// Accepted reports whether the target will take a drop here.
func (s Status) Accepted() bool {
	return s.Flags&StatusAcceptFlag != 0
}

// ParseStatus decodes the body of an XdndStatus message.
func ParseStatus(buf []uint32) Status {
	buf = pad5(buf)
	return Status{
		Target: Window(buf[0]),
		Flags:  buf[1],
		Action: Atom(buf[4]),
	}
}

const finishedAcceptedFlag = 1 << 0

// Finished is the target's end-of-drop notification.
type Finished struct {
	Target   Window
	Accepted bool
	Action   Atom
}

// ParseFinished decodes the body of an XdndFinished message. Version 4
// targets leave the flags and action empty.
func ParseFinished(buf []uint32) Finished {
	buf = pad5(buf)
	return Finished{
		Target:   Window(buf[0]),
		Accepted: buf[1]&finishedAcceptedFlag != 0,
		Action:   Atom(buf[2]),
	}
}

func pad5(buf []uint32) []uint32 {
	if len(buf) >= 5 {
		return buf
	}
	out := make([]uint32, 5)
	copy(out, buf)
	return out
}
