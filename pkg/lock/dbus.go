package lock

import (
	"errors"
	"fmt"
	"github.com/godbus/dbus/v5"
	"os"
	"strings"
	"sync"
)

const (
	login1Dest       = "org.freedesktop.login1"
	login1Path       = "/org/freedesktop/login1"
	managerInterface = "org.freedesktop.login1.Manager"
	sessionInterface = "org.freedesktop.login1.Session"

	memberLock   = "Lock"
	memberUnlock = "Unlock"
)

// subscription tracks the channels listening to one session signal.
type subscription struct {
	active   bool
	channels map[chan<- struct{}]struct{}
}

// busConn is the part of *dbus.Conn a logindSession uses.
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
	Close() error
}

type logindSession struct {
	conn   busConn
	object dbus.BusObject
	path   dbus.ObjectPath

	muSignals     sync.Mutex
	subscriptions map[string]*subscription

	signals   chan *dbus.Signal
	done      chan struct{}
	closeOnce sync.Once
}

// NewLogindSession connects to the logind session with the given ID, usually the XDG_SESSION_ID
// env var. When sessionID is empty, the session of the current process is used.
func NewLogindSession(sessionID string) (Session, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	s, err := openSession(conn, sessionID)
	if err != nil {
		return nil, err
	}

	return s, nil
}

// openSession owns conn from here on. It is closed on error and by Close.
func openSession(conn busConn, sessionID string) (*logindSession, error) {
	path, err := sessionPath(conn.Object(login1Dest, login1Path), sessionID)
	if err != nil {
		return nil, errors.Join(err, conn.Close())
	}

	s := newLogindSession(path)
	s.conn = conn
	s.object = conn.Object(login1Dest, path)

	conn.Signal(s.signals)
	go s.handleSignals()

	return s, nil
}

func newLogindSession(path dbus.ObjectPath) *logindSession {
	return &logindSession{
		path: path,
		subscriptions: map[string]*subscription{
			memberLock:   {channels: make(map[chan<- struct{}]struct{})},
			memberUnlock: {channels: make(map[chan<- struct{}]struct{})},
		},
		signals: make(chan *dbus.Signal, 10),
		done:    make(chan struct{}),
	}
}

// sessionPath resolves the object path of a session.
func sessionPath(manager dbus.BusObject, sessionID string) (dbus.ObjectPath, error) {
	var call *dbus.Call
	if sessionID != "" {
		call = manager.Call(managerInterface+".GetSession", 0, sessionID)
	} else {
		call = manager.Call(managerInterface+".GetSessionByPID", 0, uint32(os.Getpid()))
	}

	var path dbus.ObjectPath
	if err := call.Store(&path); err != nil {
		if sessionID == "" {
			return "", fmt.Errorf("failed to find session of process %d: %w", os.Getpid(), err)
		}
		return "", fmt.Errorf("failed to find session %q: %w", sessionID, err)
	}

	return path, nil
}

func (s *logindSession) handleSignals() {
	for {
		select {
		case <-s.done:
			s.conn.RemoveSignal(s.signals)
			return
		case v := <-s.signals:
			s.dispatch(v)
		}
	}
}

func (s *logindSession) SetLocked(locked bool) error {
	err := s.object.Call(sessionInterface+".SetLockedHint", 0, locked).Err
	if err != nil {
		return fmt.Errorf("could not set locked hint: %w", err)
	}

	return nil
}

func (s *logindSession) Locked() (bool, error) {
	variant, err := s.object.GetProperty(sessionInterface + ".LockedHint")
	if err != nil {
		return false, fmt.Errorf("could not get locked hint: %w", err)
	}

	lockedHint, ok := variant.Value().(bool)
	if !ok {
		return false, fmt.Errorf("LockedHint property result is not a boolean")
	}

	return lockedHint, nil
}

func (s *logindSession) AddLockSignal(c chan<- struct{}) error {
	return s.add(memberLock, c)
}

func (s *logindSession) RemoveLockSignal(c chan<- struct{}) error {
	return s.remove(memberLock, c)
}

func (s *logindSession) AddUnlockSignal(c chan<- struct{}) error {
	return s.add(memberUnlock, c)
}

func (s *logindSession) RemoveUnlockSignal(c chan<- struct{}) error {
	return s.remove(memberUnlock, c)
}

func (s *logindSession) matchOptions(member string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchObjectPath(s.path),
		dbus.WithMatchInterface(sessionInterface),
		dbus.WithMatchSender(login1Dest),
		dbus.WithMatchMember(member),
	}
}

func (s *logindSession) add(member string, c chan<- struct{}) error {
	if c == nil {
		return fmt.Errorf("Add%sSignal: channel cannot be nil", member)
	}

	s.muSignals.Lock()
	defer s.muSignals.Unlock()

	sub := s.subscriptions[member]
	sub.channels[c] = struct{}{}

	if !sub.active {
		if err := s.conn.AddMatchSignal(s.matchOptions(member)...); err != nil {
			return fmt.Errorf("failed to register Dbus %s signal: %w", member, err)
		}

		sub.active = true
	}

	return nil
}

func (s *logindSession) remove(member string, c chan<- struct{}) error {
	if c == nil {
		return fmt.Errorf("Remove%sSignal: channel cannot be nil", member)
	}

	s.muSignals.Lock()
	defer s.muSignals.Unlock()

	sub := s.subscriptions[member]
	delete(sub.channels, c)

	if len(sub.channels) == 0 {
		return s.deactivate(member)
	}

	return nil
}

// deactivate removes the match rule of member if it was registered.
// Holding the muSignals mutex is required.
func (s *logindSession) deactivate(member string) error {
	sub := s.subscriptions[member]
	if !sub.active {
		return nil
	}

	if err := s.conn.RemoveMatchSignal(s.matchOptions(member)...); err != nil {
		return fmt.Errorf("failed to remove Dbus %s signal: %w", member, err)
	}

	sub.active = false

	return nil
}

func (s *logindSession) Close() error {
	s.muSignals.Lock()
	defer s.muSignals.Unlock()

	var err error
	for _, member := range []string{memberLock, memberUnlock} {
		clear(s.subscriptions[member].channels)
		err = errors.Join(err, s.deactivate(member))
	}

	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			if closeErr := s.conn.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close system bus connection: %w", closeErr))
			}
		}
	})

	return err
}

// dispatch forwards a Lock or Unlock signal of this session to the registered channels.
func (s *logindSession) dispatch(v *dbus.Signal) {
	if v == nil {
		// Seems to happen on close
		return
	}

	if v.Path != s.path {
		return
	}

	member, ok := strings.CutPrefix(v.Name, sessionInterface+".")
	if !ok {
		return
	}

	s.muSignals.Lock()
	defer s.muSignals.Unlock()

	sub, ok := s.subscriptions[member]
	if !ok {
		return
	}

	for c := range sub.channels {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}
