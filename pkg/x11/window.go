package x11

import (
	"errors"
	"fmt"
	"github.com/jezek/xgb/xproto"
	"time"
)

// ErrGrab is returned when the pointer or keyboard cannot be grabbed, usually because another
// client holds a grab.
var ErrGrab = errors.New("cannot grab pointer/keyboard")

// Window is the override-redirect window covering the whole display.
type Window struct {
	display *Display
	id      xproto.Window
	cursor  xproto.Cursor
	grabbed bool
}

// CreateWindow creates, maps and raises the lock window with background pixel bg and an
// invisible cursor.
func (d *Display) CreateWindow(bg uint32) (*Window, error) {
	cursor, err := d.invisibleCursor()
	if err != nil {
		return nil, err
	}

	id, err := xproto.NewWindowId(d.conn)
	if err != nil {
		xproto.FreeCursor(d.conn, cursor)
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}

	err = xproto.CreateWindowChecked(
		d.conn,
		d.screen.RootDepth,
		id,
		d.screen.Root,
		0, 0,
		d.screen.WidthInPixels, d.screen.HeightInPixels,
		0,
		xproto.WindowClassInputOutput,
		d.screen.RootVisual,
		xproto.CwBackPixel|xproto.CwOverrideRedirect|xproto.CwEventMask|xproto.CwCursor,
		[]uint32{
			bg,
			1,
			xproto.EventMaskExposure | xproto.EventMaskKeyPress,
			uint32(cursor),
		},
	).Check()
	if err != nil {
		xproto.FreeCursor(d.conn, cursor)
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &Window{display: d, id: id, cursor: cursor}

	if err := xproto.MapWindowChecked(d.conn, id).Check(); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to map window: %w", err)
	}
	xproto.ConfigureWindow(d.conn, id, xproto.ConfigWindowStackMode, []uint32{xproto.StackModeAbove})

	return w, nil
}

// invisibleCursor creates a cursor from an empty 1x1 bitmap.
func (d *Display) invisibleCursor() (xproto.Cursor, error) {
	pixmap, err := xproto.NewPixmapId(d.conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}
	xproto.CreatePixmap(d.conn, 1, pixmap, xproto.Drawable(d.screen.Root), 1, 1)
	defer xproto.FreePixmap(d.conn, pixmap)

	// Pixmap contents are undefined until drawn.
	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate graphics context id: %w", err)
	}
	xproto.CreateGC(d.conn, gc, xproto.Drawable(pixmap), xproto.GcForeground, []uint32{0})
	xproto.PolyFillRectangle(d.conn, xproto.Drawable(pixmap), gc, []xproto.Rectangle{{Width: 1, Height: 1}})
	xproto.FreeGC(d.conn, gc)

	cursor, err := xproto.NewCursorId(d.conn)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate cursor id: %w", err)
	}

	err = xproto.CreateCursorChecked(d.conn, cursor, pixmap, pixmap, 0, 0, 0, 0, 0, 0, 0, 0).Check()
	if err != nil {
		return 0, fmt.Errorf("failed to create cursor: %w", err)
	}

	return cursor, nil
}

// ID returns the window id.
func (w *Window) ID() xproto.Window {
	return w.id
}

// Grab grabs the pointer and then the keyboard. Both share a budget of attempts with backoff
// between failed attempts.
func (w *Window) Grab(attempts int, backoff time.Duration) error {
	conn := w.display.conn

	err := grabWithBudget(attempts, backoff, time.Sleep,
		grabStep{
			name: "pointer",
			try: func() (bool, error) {
				reply, err := xproto.GrabPointer(
					conn,
					false,
					w.id,
					xproto.EventMaskButtonPress|xproto.EventMaskButtonRelease|xproto.EventMaskPointerMotion,
					xproto.GrabModeAsync,
					xproto.GrabModeAsync,
					xproto.WindowNone,
					w.cursor,
					xproto.TimeCurrentTime,
				).Reply()
				if err != nil {
					return false, err
				}
				return reply.Status == xproto.GrabStatusSuccess, nil
			},
		},
		grabStep{
			name: "keyboard",
			try: func() (bool, error) {
				reply, err := xproto.GrabKeyboard(
					conn,
					false,
					w.id,
					xproto.TimeCurrentTime,
					xproto.GrabModeAsync,
					xproto.GrabModeAsync,
				).Reply()
				if err != nil {
					return false, err
				}
				return reply.Status == xproto.GrabStatusSuccess, nil
			},
		},
	)
	if err != nil {
		xproto.UngrabPointer(conn, xproto.TimeCurrentTime)
		return err
	}

	w.grabbed = true
	return nil
}

type grabStep struct {
	name string
	try  func() (bool, error)
}

// grabWithBudget runs the steps in order. Every try of every step takes one attempt from the
// budget; a step that fails without error is retried after sleeping for backoff.
func grabWithBudget(attempts int, backoff time.Duration, sleep func(time.Duration), steps ...grabStep) error {
	for _, step := range steps {
		for {
			if attempts <= 0 {
				return fmt.Errorf("%w: %s still grabbed by another client", ErrGrab, step.name)
			}
			attempts--

			ok, err := step.try()
			if err != nil {
				return fmt.Errorf("failed to grab %s: %w", step.name, err)
			}
			if ok {
				break
			}

			sleep(backoff)
		}
	}

	return nil
}

// Close releases the grabs and destroys the window.
func (w *Window) Close() {
	conn := w.display.conn

	if w.grabbed {
		xproto.UngrabKeyboard(conn, xproto.TimeCurrentTime)
		xproto.UngrabPointer(conn, xproto.TimeCurrentTime)
		w.grabbed = false
	}

	xproto.DestroyWindow(conn, w.id)
	xproto.FreeCursor(conn, w.cursor)
}
