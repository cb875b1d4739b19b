package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/autolock"
	"github.com/MatthiasKunnen/lockscreen/pkg/config"
	"github.com/MatthiasKunnen/lockscreen/pkg/idle"
	"github.com/MatthiasKunnen/lockscreen/pkg/inhibit"
	"github.com/MatthiasKunnen/lockscreen/pkg/lock"
	"github.com/MatthiasKunnen/lockscreen/pkg/x11"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// idlePoll is how often the X server is asked for the idle time.
const idlePoll = time.Second

func runWatch(ctx context.Context, cfg *config.Config, lockArgs []string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find own executable: %w", err)
	}

	var triggers autolock.Triggers
	var inhibitor autolock.SleepInhibitor

	loginSession, err := lock.NewLogindSession(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		logger.Warn("lock requests from the login manager are ignored", slog.Any("error", err))
	} else {
		defer loginSession.Close()

		lockC := make(chan struct{}, 1)
		unlockC := make(chan struct{}, 1)
		if err := errors.Join(loginSession.AddLockSignal(lockC), loginSession.AddUnlockSignal(unlockC)); err != nil {
			logger.Warn("failed to subscribe to the login session", slog.Any("error", err))
		}
		triggers.Lock = lockC
		triggers.Unlock = unlockC
	}

	if cfg.IdleTimeout > 0 {
		display, err := x11.Connect(cfg.Display, logger)
		if err != nil {
			return err
		}
		defer display.Close()

		controller, err := idle.NewX11Controller(display.Conn(), idlePoll, logger)
		if err != nil {
			return err
		}
		defer controller.Close()

		idleC := make(chan struct{}, 1)
		_, err = controller.AddNotification(&idle.Request{
			Duration: cfg.IdleTimeout,
			Idle:     idleC,
		})
		if err != nil {
			return fmt.Errorf("failed to watch for idle: %w", err)
		}
		triggers.Idle = idleC
	}

	if cfg.LockOnSleep {
		sleepInhibitor, err := inhibit.New()
		if err != nil {
			logger.Warn("screen is not locked before sleep", slog.Any("error", err))
		} else {
			defer sleepInhibitor.Close()

			sleepC := make(chan bool, 1)
			if err := sleepInhibitor.SubscribePrepareForSleep(sleepC); err != nil {
				logger.Warn("screen is not locked before sleep", slog.Any("error", err))
			} else {
				triggers.Sleep = sleepC
				inhibitor = sleepInhibitor
			}
		}
	}

	if triggers.Lock == nil && triggers.Idle == nil && triggers.Sleep == nil {
		return errors.New("nothing to watch: no login session, idle timeout or sleep notifications")
	}

	launcher := &execLauncher{path: executable, args: lockArgs, logger: logger}
	logger.Info("watching for lock requests", slog.Duration("idle_timeout", cfg.IdleTimeout))

	return autolock.New(launcher, inhibitor, logger).Run(ctx, triggers)
}
