// Package inhibit takes systemd-logind inhibitor locks and reports when the system is about to
// sleep, so the screen can be locked before it suspends.
package inhibit

import (
	"errors"
	"fmt"
	"github.com/godbus/dbus/v5"
	"io"
	"os"
	"strings"
	"sync"
)

const (
	dbusDest             = "org.freedesktop.login1"
	dbusManagerInterface = "org.freedesktop.login1.Manager"
	dbusPath             = dbus.ObjectPath("/org/freedesktop/login1")

	memberPrepareForSleep = "PrepareForSleep"
)

type Inhibitor struct {
	conn      *dbus.Conn
	login1    dbus.BusObject
	muSignals sync.Mutex

	signals   chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once

	prepareForSleepSubs map[chan<- bool]struct{}
}

func New() (*Inhibitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	inhibitor := newInhibitor()
	inhibitor.conn = conn
	inhibitor.login1 = conn.Object(dbusDest, dbusPath)

	conn.Signal(inhibitor.signals)
	go inhibitor.handleSignals()

	return inhibitor, nil
}

func newInhibitor() *Inhibitor {
	return &Inhibitor{
		signals:             make(chan *dbus.Signal, 10),
		done:                make(chan struct{}),
		prepareForSleepSubs: make(map[chan<- bool]struct{}),
	}
}

func (i *Inhibitor) handleSignals() {
	for {
		select {
		case <-i.done:
			i.conn.RemoveSignal(i.signals)
			return
		case v := <-i.signals:
			i.dispatch(v)
		}
	}
}

type What string

const (
	WhatHandleLidSwitch  What = "handle-lid-switch"
	WhatHandleSuspendKey What = "handle-suspend-key"
	WhatIdle             What = "idle"
	WhatSleep            What = "sleep"
)

type Mode string

const (
	ModeBlock Mode = "block"
	ModeDelay Mode = "delay"
)

// Inhibit creates an inhibition lock.
//   - who should be a short human-readable string identifying the application taking the lock.
//   - why should be a short human-readable string identifying the reason why the lock is taken.
//   - mode "block" makes the inhibition mandatory, "delay" only delays the operation up to
//     logind's InhibitDelayMaxSec.
//   - what is one or more of actions that should be inhibited.
//
// The lock is released when the returned closer is closed.
func (i *Inhibitor) Inhibit(who string, why string, mode Mode, what ...What) (io.Closer, error) {
	if len(what) == 0 {
		return nil, errors.New("nothing to inhibit")
	}

	var fd dbus.UnixFD

	err := i.login1.
		Call(dbusManagerInterface+".Inhibit", 0, joinWhat(what), who, why, string(mode)).
		Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("failed to create inhibit lock: %w", err)
	}

	return os.NewFile(uintptr(fd), "inhibit"), nil
}

// InhibitSleep delays sleep until the returned closer is closed.
func (i *Inhibitor) InhibitSleep(who string, why string) (io.Closer, error) {
	return i.Inhibit(who, why, ModeDelay, WhatSleep)
}

// dispatch forwards PrepareForSleep to the subscribers. Signals with an unexpected body are
// dropped.
func (i *Inhibitor) dispatch(s *dbus.Signal) {
	if s == nil {
		// Seems to happen on close
		return
	}

	if s.Path != dbusPath || s.Name != dbusManagerInterface+"."+memberPrepareForSleep {
		return
	}
	if len(s.Body) == 0 {
		return
	}
	start, ok := s.Body[0].(bool)
	if !ok {
		return
	}

	i.muSignals.Lock()
	defer i.muSignals.Unlock()

	for c := range i.prepareForSleepSubs {
		select {
		case c <- start:
		default:
		}
	}
}

func (i *Inhibitor) prepareForSleepMatch() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(dbusPath),
		dbus.WithMatchInterface(dbusManagerInterface),
		dbus.WithMatchSender(dbusDest),
		dbus.WithMatchMember(memberPrepareForSleep),
	}
}

// SubscribePrepareForSleep registers the channel so that it will be notified when the system wants
// to sleep (true) or resumes from suspend (false).
// Unregister the channel using UnsubscribePrepareForSleep.
func (i *Inhibitor) SubscribePrepareForSleep(c chan<- bool) error {
	if c == nil {
		return errors.New("SubscribePrepareForSleep: channel cannot be nil")
	}

	i.muSignals.Lock()
	defer i.muSignals.Unlock()

	if len(i.prepareForSleepSubs) == 0 {
		if err := i.conn.AddMatchSignal(i.prepareForSleepMatch()...); err != nil {
			return fmt.Errorf("failed to register Dbus PrepareForSleep signal: %w", err)
		}
	}

	i.prepareForSleepSubs[c] = struct{}{}

	return nil
}

func (i *Inhibitor) UnsubscribePrepareForSleep(c chan<- bool) error {
	if c == nil {
		return errors.New("UnsubscribePrepareForSleep: channel cannot be nil")
	}

	i.muSignals.Lock()
	defer i.muSignals.Unlock()

	if _, ok := i.prepareForSleepSubs[c]; !ok {
		return nil
	}
	delete(i.prepareForSleepSubs, c)

	if len(i.prepareForSleepSubs) == 0 {
		return i.removePrepareForSleepSignal()
	}

	return nil
}

func (i *Inhibitor) removePrepareForSleepSignal() error {
	if err := i.conn.RemoveMatchSignal(i.prepareForSleepMatch()...); err != nil {
		return fmt.Errorf("failed to remove Dbus PrepareForSleep signal: %w", err)
	}

	return nil
}

// Close permanently stops processing signals. Discard the inhibitor afterward.
func (i *Inhibitor) Close() error {
	i.muSignals.Lock()
	defer i.muSignals.Unlock()

	var err error
	if len(i.prepareForSleepSubs) > 0 {
		clear(i.prepareForSleepSubs)
		err = i.removePrepareForSleepSignal()
	}

	i.closeOnce.Do(func() {
		close(i.done)
	})

	return err
}

func joinWhat(elems []What) string {
	parts := make([]string, len(elems))
	for i, elem := range elems {
		parts[i] = string(elem)
	}
	return strings.Join(parts, ":")
}
