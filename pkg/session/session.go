package session

import (
	"context"
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/auth"
	"github.com/MatthiasKunnen/lockscreen/pkg/credential"
	"github.com/MatthiasKunnen/lockscreen/pkg/dpms"
	"github.com/MatthiasKunnen/lockscreen/pkg/guard"
	"github.com/MatthiasKunnen/lockscreen/pkg/layout"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultCapacity is the size of the password buffer. One byte is kept in reserve.
	DefaultCapacity = 256

	// DateFormat is the layout of the date line.
	DateFormat = "2006-01-02 15:04"

	// FailureMessage is shown after a rejected password.
	FailureMessage = "authentication failed"
)

// ErrAlreadyRun is returned when Run is called on a session that already ran.
var ErrAlreadyRun = errors.New("lock session has already run")

// Options configure Begin.
type Options struct {
	// Username is shown on the lock screen. It does not select who is authenticated.
	Username string

	// Gateway verifies submitted passwords. Required.
	Gateway auth.Gateway

	// Events delivers input. Required.
	Events EventSource

	// Renderer draws the lock screen. Required.
	Renderer Renderer

	// Indicators is optional. Without it, no layout or caps lock state is shown.
	Indicators Indicators

	// Layouts names the keyboard groups reported by Indicators.
	Layouts layout.Table

	// Power controls the display power policy. nil leaves it alone.
	Power dpms.Manager

	// Timeouts are applied while the session is locked.
	Timeouts dpms.Timeouts

	// Console is a held console-switch lock, released by End and by the signal guard.
	Console Console

	// MaskChars is repeated to obscure the password. Defaults to "*".
	MaskChars string

	// HideLength perturbs the number of mask characters shown.
	HideLength bool

	// Capacity of the password buffer. Defaults to DefaultCapacity.
	Capacity int

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger

	// Ready is called once Run has drawn the first frame.
	Ready func()

	// Guard customizes the signal guard. Begin adds hooks that wipe the password and release
	// the console lock.
	Guard guard.Options
}

// Session is a running lock session.
type Session struct {
	username   string
	gateway    auth.Gateway
	events     EventSource
	renderer   Renderer
	indicators Indicators
	layouts    layout.Table
	power      dpms.Manager
	console    Console
	mask       Mask
	now        func() time.Time
	logger     *slog.Logger
	ready      func()

	buf    *credential.Buffer
	policy dpms.Policy
	guard  *guard.Guard

	state    State
	attempts int
	ran      atomic.Bool

	endOnce sync.Once
	endErr  error
}

// Begin pins the password buffer, captures the display power policy, installs the signal guard
// and then applies the locked timeouts.
//
// On error, everything that was set up is undone again.
func Begin(opts Options) (*Session, error) {
	switch {
	case opts.Gateway == nil:
		return nil, errors.New("a gateway is required")
	case opts.Events == nil:
		return nil, errors.New("an event source is required")
	case opts.Renderer == nil:
		return nil, errors.New("a renderer is required")
	}

	s := &Session{
		username:   opts.Username,
		gateway:    opts.Gateway,
		events:     opts.Events,
		renderer:   opts.Renderer,
		indicators: opts.Indicators,
		layouts:    opts.Layouts,
		power:      opts.Power,
		console:    opts.Console,
		now:        opts.Now,
		logger:     opts.Logger,
		ready:      opts.Ready,
		state:      StateLocked,
	}
	if s.power == nil {
		s.power = dpms.Disabled{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}

	capacity := opts.Capacity
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	s.mask = NewMask(opts.MaskChars, capacity, opts.HideLength)

	buf, err := credential.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate password buffer: %w", err)
	}
	s.buf = buf

	policy, err := s.power.Capture()
	if err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to capture display power policy: %w", err),
			buf.Close(),
		)
	}
	s.policy = policy

	guardOpts := opts.Guard
	guardOpts.Hooks = append(append([]func(){}, opts.Guard.Hooks...), func() {
		buf.TryWipe()
	})
	if s.console != nil {
		console := s.console
		guardOpts.Hooks = append(guardOpts.Hooks, func() {
			_ = console.Unlock()
		})
	}
	s.guard = guard.Install(s.power, &policy, guardOpts)

	if err := s.power.Override(opts.Timeouts); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to override display power policy: %w", err),
			s.End(),
		)
	}

	s.logger.Debug(
		"lock session started",
		slog.Bool("dpms_enabled", policy.Enabled),
		slog.Int("capacity", capacity),
	)

	return s, nil
}

// State returns the current state. Only call it from the goroutine running Run or after Run
// returned.
func (s *Session) State() State {
	return s.state
}

// Run processes events until a password is accepted, in which case it returns nil.
// A failing event source, renderer or authentication backend ends the loop with an error.
//
// Run may only be called once.
func (s *Session) Run(ctx context.Context) error {
	if !s.ran.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	if err := s.redraw(); err != nil {
		return err
	}
	if s.ready != nil {
		s.ready()
	}

	for {
		event, err := s.events.NextEvent(ctx)
		if err != nil {
			return fmt.Errorf("failed to get next event: %w", err)
		}

		accepted, err := s.handle(event)
		if err != nil {
			return err
		}
		if accepted {
			return nil
		}

		if s.events.Pending() {
			continue
		}

		if s.state == StateIdle {
			if err := s.power.ForceOff(); err != nil {
				s.logger.Warn("failed to turn off display", slog.Any("error", err))
			}
		}

		if err := s.redraw(); err != nil {
			return err
		}
	}
}

// handle applies event to the session. It returns true once the password was accepted.
func (s *Session) handle(event Event) (bool, error) {
	if event.IsActivity() && s.state != StateLocked {
		s.logger.Debug("activity", slog.String("from", s.state.String()))
		s.state = StateLocked
	}

	if event.Kind != EventKey {
		return false, nil
	}

	switch event.Key {
	case KeyChar:
		s.buf.Append(event.Char)
	case KeyBackspace:
		s.buf.Backspace()
	case KeyBlank:
		s.buf.Clear()
		s.state = StateIdle
	case KeySubmit:
		return s.submit()
	}

	return false, nil
}

func (s *Session) submit() (bool, error) {
	defer s.buf.Clear()

	result, err := s.gateway.Verify(s.buf.Bytes())
	if err != nil {
		if !errors.Is(err, auth.ErrBackend) {
			err = fmt.Errorf("%w: %w", auth.ErrBackend, err)
		}
		return false, fmt.Errorf("failed to verify password: %w", err)
	}

	if result == auth.Accepted {
		s.logger.Info("password accepted", slog.Int("failed_attempts", s.attempts))
		return true, nil
	}

	s.attempts++
	s.state = StateFailed
	s.logger.Info("password rejected", slog.Int("failed_attempts", s.attempts))

	return false, nil
}

// Frame returns what the lock screen shows for the current state.
func (s *Session) Frame() Frame {
	f := Frame{
		State:    s.state,
		Username: s.username,
		DateTime: s.now().Format(DateFormat),
	}

	if s.state == StateFailed {
		f.Message = FailureMessage
	} else {
		last, _ := s.buf.Last()
		f.Mask = s.mask.Render(s.buf.Len(), last)
	}

	if s.indicators != nil {
		group, capsLock, err := s.indicators.KeyboardState()
		if err != nil {
			s.logger.Debug("failed to read keyboard state", slog.Any("error", err))
		} else {
			f.CapsLock = capsLock
			if name, ok := s.layouts.Label(group); ok {
				f.Layout = name
			}
		}
	}

	return f
}

func (s *Session) redraw() error {
	if err := s.renderer.Draw(s.Frame()); err != nil {
		return fmt.Errorf("failed to draw lock screen: %w", err)
	}
	return nil
}

// End restores the display power policy, releases the console lock, removes the signal guard
// and wipes the password buffer. It is idempotent; later calls return the first result.
func (s *Session) End() error {
	s.endOnce.Do(func() {
		var errs []error

		if err := s.power.Restore(s.policy); err != nil {
			errs = append(errs, fmt.Errorf("failed to restore display power policy: %w", err))
		}

		if s.console != nil {
			if err := s.console.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("failed to release console lock: %w", err))
			}
		}

		if s.guard != nil {
			s.guard.Uninstall()
		}

		if err := s.buf.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release password buffer: %w", err))
		}

		s.endErr = errors.Join(errs...)
	})

	return s.endErr
}
