package x11

import (
	"context"
	"github.com/MatthiasKunnen/lockscreen/pkg/session"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"log/slog"
	"sync"
	"time"
)

// queueSize bounds the number of X events read ahead of the lock session.
const queueSize = 256

// Events reads X events and delivers them as session events. It implements
// session.EventSource.
type Events struct {
	display *Display
	keymap  Keymap
	queue   chan xgb.Event
	ticker  *time.Ticker
	done    chan struct{}
	logger  *slog.Logger

	stopOnce sync.Once
}

// Events starts reading events from the display. A tick event is delivered every tick so the
// clock on the lock screen stays current; zero disables ticks.
func (d *Display) Events(tick time.Duration) (*Events, error) {
	keymap, err := d.LoadKeymap()
	if err != nil {
		return nil, err
	}

	e := &Events{
		display: d,
		keymap:  keymap,
		queue:   make(chan xgb.Event, queueSize),
		done:    make(chan struct{}),
		logger:  d.logger,
	}
	if tick > 0 {
		e.ticker = time.NewTicker(tick)
	}

	go e.pump()

	return e, nil
}

// pump forwards events until the connection closes or Stop is called.
func (e *Events) pump() {
	defer close(e.queue)

	for {
		event, xerr := e.display.conn.WaitForEvent()
		switch {
		case event == nil && xerr == nil:
			return
		case xerr != nil:
			e.logger.Debug("X error", slog.String("error", xerr.Error()))
		default:
			select {
			case e.queue <- event:
			case <-e.done:
				return
			}
		}
	}
}

// NextEvent blocks until an X event or a tick arrives. It returns ErrClosed once the connection
// is closed and all queued events were delivered.
func (e *Events) NextEvent(ctx context.Context) (session.Event, error) {
	var tick <-chan time.Time
	if e.ticker != nil {
		tick = e.ticker.C
	}

	select {
	case <-ctx.Done():
		return session.Event{}, ctx.Err()
	case <-tick:
		return session.Event{Kind: session.EventTick}, nil
	case event, ok := <-e.queue:
		if !ok {
			return session.Event{}, ErrClosed
		}
		return e.translate(event), nil
	}
}

// Pending reports whether X events are queued.
func (e *Events) Pending() bool {
	return len(e.queue) > 0
}

func (e *Events) translate(event xgb.Event) session.Event {
	switch ev := event.(type) {
	case xproto.KeyPressEvent:
		return Translate(e.keymap.Lookup(ev.Detail, ev.State))
	case xproto.ButtonPressEvent, xproto.MotionNotifyEvent:
		return session.Event{Kind: session.EventPointer}
	case xproto.MappingNotifyEvent:
		if ev.Request == xproto.MappingKeyboard {
			e.refreshKeymap()
		}
	}

	return session.Event{Kind: session.EventOther}
}

func (e *Events) refreshKeymap() {
	keymap, err := e.display.LoadKeymap()
	if err != nil {
		e.logger.Warn("failed to reload keyboard mapping", slog.Any("error", err))
		return
	}
	e.keymap = keymap
}

// Stop stops the ticker and stops forwarding events.
func (e *Events) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		if e.ticker != nil {
			e.ticker.Stop()
		}
	})
}

// KeyboardState implements session.Indicators. It reports the active keyboard group and whether
// caps lock is on.
func (d *Display) KeyboardState() (int, bool, error) {
	reply, err := xproto.QueryPointer(d.conn, d.screen.Root).Reply()
	if err != nil {
		return 0, false, err
	}

	return groupOf(reply.Mask), reply.Mask&xproto.ModMaskLock != 0, nil
}

func groupOf(state uint16) int {
	return int(state>>groupShift) & 3
}
