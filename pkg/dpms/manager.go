package dpms

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"
)

var (
	// ErrNotCapable is returned when the X server does not support DPMS.
	ErrNotCapable = errors.New("display does not support DPMS")

	// ErrNotCaptured is returned when the policy is overridden before it was captured.
	ErrNotCaptured = errors.New("DPMS policy has not been captured")
)

// Level is a DPMS power level.
type Level uint16

const (
	LevelOn Level = iota
	LevelStandby
	LevelSuspend
	LevelOff
)

// Policy is a snapshot of the DPMS state of the display.
// Timeouts are in seconds, 0 disables the corresponding stage.
type Policy struct {
	Enabled bool
	Level   Level
	Standby uint16
	Suspend uint16
	Off     uint16
}

// Timeouts are the timeouts applied while the session is locked.
type Timeouts struct {
	Standby time.Duration
	Suspend time.Duration
	Off     time.Duration
}

// Uniform returns Timeouts where every stage uses d.
func Uniform(d time.Duration) Timeouts {
	return Timeouts{Standby: d, Suspend: d, Off: d}
}

// Manager controls the power policy of a display.
type Manager interface {
	// Capture reads the live policy. Only the first call talks to the display, later calls
	// return the same snapshot.
	Capture() (Policy, error)

	// Override applies t and enables DPMS. Capture must have been called first.
	Override(t Timeouts) error

	// ForceOff puts the display in its lowest power level right away.
	ForceOff() error

	// Restore applies p. It is idempotent and safe to call concurrently, also after the
	// display connection has gone away, in which case it does nothing.
	Restore(p Policy) error
}

// Server is the set of DPMS requests a Manager needs.
// Implementations must be safe for concurrent use.
type Server interface {
	Timeouts() (standby, suspend, off uint16, err error)
	Info() (level Level, enabled bool, err error)
	SetTimeouts(standby, suspend, off uint16) error
	Enable() error
	Disable() error
	ForceLevel(level Level) error
}

type manager struct {
	server   Server
	captured atomic.Pointer[Policy]
}

// New returns a Manager that talks to server.
func New(server Server) Manager {
	return &manager{server: server}
}

func (m *manager) Capture() (Policy, error) {
	if p := m.captured.Load(); p != nil {
		return *p, nil
	}

	standby, suspend, off, err := m.server.Timeouts()
	if err != nil {
		return Policy{}, fmt.Errorf("failed to get DPMS timeouts: %w", err)
	}

	level, enabled, err := m.server.Info()
	if err != nil {
		return Policy{}, fmt.Errorf("failed to get DPMS info: %w", err)
	}

	p := &Policy{
		Enabled: enabled,
		Level:   level,
		Standby: standby,
		Suspend: suspend,
		Off:     off,
	}
	if !m.captured.CompareAndSwap(nil, p) {
		return *m.captured.Load(), nil
	}

	return *p, nil
}

func (m *manager) Override(t Timeouts) error {
	if m.captured.Load() == nil {
		return ErrNotCaptured
	}

	err := m.server.SetTimeouts(seconds(t.Standby), seconds(t.Suspend), seconds(t.Off))
	if err != nil {
		return fmt.Errorf("failed to set DPMS timeouts: %w", err)
	}

	if err := m.server.Enable(); err != nil {
		return fmt.Errorf("failed to enable DPMS: %w", err)
	}

	return nil
}

func (m *manager) ForceOff() error {
	if err := m.server.ForceLevel(LevelOff); err != nil {
		return fmt.Errorf("failed to force DPMS off: %w", err)
	}

	return nil
}

func (m *manager) Restore(p Policy) error {
	err := m.server.SetTimeouts(p.Standby, p.Suspend, p.Off)
	if err != nil {
		return closedIsNoop(fmt.Errorf("failed to restore DPMS timeouts: %w", err))
	}

	if !p.Enabled {
		if err := m.server.Disable(); err != nil {
			return closedIsNoop(fmt.Errorf("failed to disable DPMS: %w", err))
		}
		return nil
	}

	if err := m.server.Enable(); err != nil {
		return closedIsNoop(fmt.Errorf("failed to enable DPMS: %w", err))
	}

	if err := m.server.ForceLevel(p.Level); err != nil {
		return closedIsNoop(fmt.Errorf("failed to restore DPMS level: %w", err))
	}

	return nil
}

// closedIsNoop drops errors caused by a display connection that is already closed.
func closedIsNoop(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func seconds(d time.Duration) uint16 {
	s := d / time.Second
	switch {
	case s < 0:
		return 0
	case s > math.MaxUint16:
		return math.MaxUint16
	default:
		return uint16(s)
	}
}

// Disabled is a Manager that leaves the display alone. It is used when DPMS handling is turned
// off or not supported by the display.
type Disabled struct{}

func (Disabled) Capture() (Policy, error) { return Policy{}, nil }

func (Disabled) Override(Timeouts) error { return nil }

func (Disabled) ForceOff() error { return nil }

func (Disabled) Restore(Policy) error { return nil }
