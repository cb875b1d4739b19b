// Package autolock starts the lock screen when the session asks for it: on a logind Lock request,
// when the user has been idle and before the system goes to sleep.
package autolock

import (
	"context"
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultReadyTimeout bounds how long sleep is delayed while the lock screen comes up. It stays
	// below the default InhibitDelayMaxSec of logind.
	DefaultReadyTimeout = 4 * time.Second

	// DefaultUnlockGrace is how long a lock screen may take to unlock itself after logind asked
	// for it before it is terminated.
	DefaultUnlockGrace = 3 * time.Second
)

// Process is a running lock screen.
type Process interface {
	// Wait blocks until the process exits.
	Wait() error

	// Terminate asks the process to exit.
	Terminate() error

	// Ready is closed once the lock screen holds the keyboard and pointer and shows the lock
	// screen. It is never closed if the lock screen exits before that.
	Ready() <-chan struct{}
}

// Launcher starts the lock screen.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// SleepInhibitor delays sleep until the returned closer is closed.
type SleepInhibitor interface {
	InhibitSleep(who string, why string) (io.Closer, error)
}

// Triggers are the events the Watcher reacts to. Nil channels are never ready.
type Triggers struct {
	// Lock requests from logind.
	Lock <-chan struct{}

	// Unlock requests from logind. The lock screen handles these itself; it is terminated only
	// when it is still running after a grace period.
	Unlock <-chan struct{}

	// Idle is notified when the user became idle.
	Idle <-chan struct{}

	// Sleep is notified with true before the system sleeps and with false after it resumed.
	Sleep <-chan bool
}

type Watcher struct {
	launcher  Launcher
	inhibitor SleepInhibitor
	logger    *slog.Logger

	readyTimeout time.Duration
	unlockGrace  time.Duration

	running   Process
	exited    chan error
	sleepLock io.Closer

	// ready and readyTimer are set while sleep is delayed until the lock screen is ready.
	ready      <-chan struct{}
	readyTimer *time.Timer

	// unlockTimer is set while a lock screen has been asked to unlock.
	unlockTimer *time.Timer
}

// New creates a Watcher. inhibitor may be nil, in which case sleep is not delayed.
func New(launcher Launcher, inhibitor SleepInhibitor, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Watcher{
		launcher:     launcher,
		inhibitor:    inhibitor,
		logger:       logger,
		readyTimeout: DefaultReadyTimeout,
		unlockGrace:  DefaultUnlockGrace,
		exited:       make(chan error, 1),
	}
}

// Run reacts to triggers until ctx is done. A lock screen that is running when Run returns keeps
// running.
func (w *Watcher) Run(ctx context.Context, triggers Triggers) error {
	w.inhibitSleep()
	defer w.allowSleep()
	defer w.stopWaitingForReady()
	defer w.cancelUnlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-triggers.Lock:
			w.start(ctx, "lock requested")
		case <-triggers.Idle:
			w.start(ctx, "idle")
		case sleeping := <-triggers.Sleep:
			if sleeping {
				w.start(ctx, "going to sleep")
				w.allowSleepWhenReady()
			} else {
				w.stopWaitingForReady()
				w.inhibitSleep()
			}
		case <-w.ready:
			w.logger.Debug("lock screen ready, allowing sleep")
			w.stopWaitingForReady()
			w.allowSleep()
		case <-timerC(w.readyTimer):
			w.logger.Warn("lock screen not ready in time, allowing sleep", slog.Duration("timeout", w.readyTimeout))
			w.stopWaitingForReady()
			w.allowSleep()
		case <-triggers.Unlock:
			w.unlock()
		case <-timerC(w.unlockTimer):
			w.unlockTimer = nil
			w.logger.Info("lock screen did not unlock itself, terminating it")
			w.terminate()
		case err := <-w.exited:
			w.running = nil
			w.cancelUnlock()
			if w.ready != nil {
				w.stopWaitingForReady()
				w.allowSleep()
			}

			if err != nil {
				w.logger.Warn("lock screen exited with error", slog.Any("error", err))
			} else {
				w.logger.Debug("lock screen exited")
			}
		}
	}
}

func (w *Watcher) start(ctx context.Context, reason string) {
	if w.running != nil {
		w.logger.Debug("lock screen already running", slog.String("reason", reason))
		return
	}

	process, err := w.launcher.Launch(ctx)
	if err != nil {
		w.logger.Error("failed to start lock screen", slog.String("reason", reason), slog.Any("error", err))
		return
	}

	w.logger.Info("lock screen started", slog.String("reason", reason))
	w.running = process

	go func() {
		w.exited <- process.Wait()
	}()
}

func (w *Watcher) terminate() {
	if w.running == nil {
		return
	}

	if err := w.running.Terminate(); err != nil {
		w.logger.Warn("failed to terminate lock screen", slog.Any("error", err))
	}
}

// unlock gives the running lock screen unlockGrace to act on the unlock request, which lets it
// clear the LockedHint before exiting.
func (w *Watcher) unlock() {
	if w.running == nil || w.unlockTimer != nil {
		return
	}

	w.unlockTimer = time.NewTimer(w.unlockGrace)
}

func (w *Watcher) cancelUnlock() {
	if w.unlockTimer == nil {
		return
	}

	w.unlockTimer.Stop()
	w.unlockTimer = nil
}

// allowSleepWhenReady releases the sleep delay once the running lock screen is ready, right away
// when there is none.
func (w *Watcher) allowSleepWhenReady() {
	if w.sleepLock == nil {
		return
	}
	if w.running == nil {
		w.allowSleep()
		return
	}

	ready := w.running.Ready()
	select {
	case <-ready:
		w.allowSleep()
		return
	default:
	}

	w.stopWaitingForReady()
	w.ready = ready
	w.readyTimer = time.NewTimer(w.readyTimeout)
}

func (w *Watcher) stopWaitingForReady() {
	w.ready = nil
	if w.readyTimer != nil {
		w.readyTimer.Stop()
		w.readyTimer = nil
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (w *Watcher) inhibitSleep() {
	if w.inhibitor == nil || w.sleepLock != nil {
		return
	}

	lock, err := w.inhibitor.InhibitSleep("lockscreen", "Lock the screen before sleeping")
	if err != nil {
		w.logger.Warn("failed to delay sleep", slog.Any("error", err))
		return
	}
	w.sleepLock = lock
}

func (w *Watcher) allowSleep() {
	if w.sleepLock == nil {
		return
	}

	if err := w.sleepLock.Close(); err != nil {
		w.logger.Warn("failed to release sleep delay", slog.Any("error", err))
	}
	w.sleepLock = nil
}
