package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/auth"
	"github.com/MatthiasKunnen/lockscreen/pkg/config"
	"github.com/MatthiasKunnen/lockscreen/pkg/dpms"
	"github.com/MatthiasKunnen/lockscreen/pkg/layout"
	"github.com/MatthiasKunnen/lockscreen/pkg/lock"
	"github.com/MatthiasKunnen/lockscreen/pkg/secrets"
	"github.com/MatthiasKunnen/lockscreen/pkg/session"
	"github.com/MatthiasKunnen/lockscreen/pkg/vt"
	"github.com/MatthiasKunnen/lockscreen/pkg/x11"
	"log/slog"
	"os"
	"os/user"
	"sync/atomic"
	"time"
)

// clockTick is how often the lock screen is redrawn without input.
const clockTick = 5 * time.Second

func runLock(ctx context.Context, cfg *config.Config, logger *slog.Logger) (err error) {
	cfg.Normalize(logger)

	authUser, err := currentUser()
	if err != nil {
		return err
	}

	display, err := x11.Connect(cfg.Display, logger)
	if err != nil {
		return err
	}
	defer display.Close()

	power := powerManager(cfg, display, logger)
	layouts := keyboardLayouts(cfg, display, logger)

	palette, err := allocPalette(cfg, display)
	if err != nil {
		return err
	}

	font, err := display.OpenFont(cfg.Font, cfg.FontFallback)
	if err != nil {
		return err
	}
	defer font.Close()

	window, err := display.CreateWindow(palette.Background)
	if err != nil {
		return err
	}
	defer window.Close()

	if err := window.Grab(cfg.GrabAttempts, cfg.GrabBackoff); err != nil {
		return err
	}

	gateway, err := auth.NewPAM(cfg.PAMService, authUser, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := gateway.Close(); closeErr != nil {
			logger.Warn("failed to end PAM transaction", slog.Any("error", closeErr))
		}
	}()

	renderer, err := display.NewRenderer(window, font, palette, display.Output())
	if err != nil {
		return err
	}
	defer renderer.Close()

	events, err := display.Events(clockTick)
	if err != nil {
		return err
	}
	defer events.Stop()

	opts := session.Options{
		Username:   cfg.Username,
		Gateway:    gateway,
		Events:     events,
		Renderer:   renderer,
		Indicators: display,
		Layouts:    layouts,
		Power:      power,
		Timeouts:   dpms.Uniform(cfg.DPMSTimeout),
		MaskChars:  cfg.PassChar,
		HideLength: cfg.HideLength,
		Capacity:   cfg.Capacity,
		Logger:     logger,
		Ready: func() {
			notifyReady(logger)
		},
	}
	if cfg.LockConsole {
		console, err := vt.LockSwitch(cfg.Console)
		if err != nil {
			logger.Warn("console switching stays enabled", slog.Any("error", err))
		} else {
			opts.Console = console
		}
	}

	s, err := session.Begin(opts)
	if err != nil {
		if opts.Console != nil {
			err = errors.Join(err, opts.Console.Unlock())
		}
		return err
	}
	defer func() {
		err = errors.Join(err, s.End())
	}()

	lockKeyrings(cfg, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var unlockedExternally atomic.Bool
	loginSession := markLocked(cfg, logger, func() {
		unlockedExternally.Store(true)
		cancel()
	})

	err = s.Run(ctx)
	if err != nil && unlockedExternally.Load() && errors.Is(err, context.Canceled) {
		logger.Info("unlocked by the login manager")
		err = nil
	}

	if loginSession != nil {
		if err == nil {
			if hintErr := loginSession.SetLocked(false); hintErr != nil {
				logger.Warn("failed to clear LockedHint", slog.Any("error", hintErr))
			}
		}
		if closeErr := loginSession.Close(); closeErr != nil {
			logger.Debug("failed to close login session", slog.Any("error", closeErr))
		}
	}

	return err
}

// currentUser returns the name of the user whose password unlocks the screen.
func currentUser() (string, error) {
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}

	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("failed to determine the current user: %w", err)
	}
	return u.Username, nil
}

func powerManager(cfg *config.Config, display *x11.Display, logger *slog.Logger) dpms.Manager {
	if !cfg.DPMS {
		return dpms.Disabled{}
	}

	server, err := dpms.NewX11Server(display.Conn())
	if err != nil {
		logger.Warn("display power management unavailable", slog.Any("error", err))
		return dpms.Disabled{}
	}

	return dpms.New(server)
}

func keyboardLayouts(cfg *config.Config, display *x11.Display, logger *slog.Logger) layout.Table {
	if len(cfg.Layouts) > 0 {
		return layout.New(cfg.Layouts...)
	}

	table, err := display.Layouts()
	if err != nil {
		logger.Debug("keyboard layout names unavailable", slog.Any("error", err))
	}
	return table
}

func allocPalette(cfg *config.Config, display *x11.Display) (x11.Palette, error) {
	var palette x11.Palette
	colors := []struct {
		name  string
		value string
		pixel *uint32
	}{
		{name: "background", value: cfg.Background, pixel: &palette.Background},
		{name: "foreground", value: cfg.Foreground, pixel: &palette.Foreground},
		{name: "wrong", value: cfg.Wrong, pixel: &palette.Wrong},
	}

	for _, c := range colors {
		pixel, err := display.AllocNamedColor(c.value)
		if err != nil {
			return x11.Palette{}, fmt.Errorf("invalid %s color: %w", c.name, err)
		}
		*c.pixel = pixel
	}

	return palette, nil
}

func lockKeyrings(cfg *config.Config, logger *slog.Logger) {
	if len(cfg.Keyrings) == 0 {
		return
	}

	s, err := secrets.New()
	if err != nil {
		logger.Warn("keyrings stay unlocked", slog.Any("error", err))
		return
	}

	locked, err := s.Lock(cfg.Keyrings)
	if err != nil {
		logger.Warn("failed to lock keyrings", slog.Any("error", err))
		return
	}
	logger.Debug("locked keyrings", slog.Int("count", len(locked)))
}

// markLocked sets the LockedHint of the login session and calls onUnlock when logind asks to
// unlock. It returns nil when there is no login session to report to.
func markLocked(cfg *config.Config, logger *slog.Logger, onUnlock func()) lock.Session {
	if !cfg.LockedHint {
		return nil
	}

	loginSession, err := lock.NewLogindSession(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		logger.Warn("login session not informed of lock", slog.Any("error", err))
		return nil
	}

	if locked, err := loginSession.Locked(); err == nil && locked {
		logger.Debug("login session was already marked locked")
	}

	if err := loginSession.SetLocked(true); err != nil {
		logger.Warn("failed to set LockedHint", slog.Any("error", err))
	}

	unlock := make(chan struct{}, 1)
	if err := loginSession.AddUnlockSignal(unlock); err != nil {
		logger.Warn("unlock requests from the login manager are ignored", slog.Any("error", err))
		return loginSession
	}

	go func() {
		<-unlock
		onUnlock()
	}()

	return loginSession
}
