package session

import "context"

// State is the state of the lock screen.
type State int

const (
	StateLocked State = iota
	StateFailed
	StateIdle
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateFailed:
		return "failed"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// EventKind classifies input events.
type EventKind int

const (
	// EventKey is a key press.
	EventKey EventKind = iota
	// EventPointer is pointer motion or a button press.
	EventPointer
	// EventTick is a periodic wake-up used to refresh the clock.
	EventTick
	// EventOther is any other event, such as a key release or an expose.
	EventOther
)

// Key is the meaning of a key press.
type Key int

const (
	KeyOther Key = iota
	KeyChar
	KeySubmit
	KeyBackspace
	KeyBlank
)

// Event is an input event. Key and Char are only set for EventKey; Char only for KeyChar.
type Event struct {
	Kind EventKind
	Key  Key
	Char byte
}

// IsActivity reports whether the event was caused by the user.
func (e Event) IsActivity() bool {
	return e.Kind == EventKey || e.Kind == EventPointer
}

// EventSource delivers input events.
type EventSource interface {
	// NextEvent blocks until the next event is available.
	NextEvent(ctx context.Context) (Event, error)

	// Pending reports whether more events are queued.
	Pending() bool
}

// Frame is everything the lock screen shows.
type Frame struct {
	State    State
	Username string

	// Mask is the obscured password. Empty while Message is set.
	Mask string

	// Message is the failure message shown in StateFailed.
	Message string

	DateTime string

	// Layout is the name of the active keyboard layout, empty when unknown.
	Layout string

	CapsLock bool
}

// Renderer draws frames. Drawing the same frame twice must give the same result.
type Renderer interface {
	Draw(f Frame) error
}

// Indicators reads the live keyboard state.
type Indicators interface {
	KeyboardState() (group int, capsLock bool, err error)
}

// Console is a held console-switch lock.
type Console interface {
	// Unlock releases the lock. It must be idempotent and must not block.
	Unlock() error
}
