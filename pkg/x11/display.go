package x11

import (
	"errors"
	"fmt"
	"github.com/jezek/xgb"
	"github.com/jezek/xgb/randr"
	"github.com/jezek/xgb/xproto"
	"log/slog"
	"sync"
)

// ErrClosed is returned when the display connection has been closed.
var ErrClosed = errors.New("display connection closed")

// Geometry describes where the lock screen is drawn.
// The window covers the whole display; text is centred on the output.
type Geometry struct {
	DisplayWidth  uint16
	DisplayHeight uint16
	OutputX       int16
	OutputY       int16
	OutputWidth   uint16
	OutputHeight  uint16
}

// Display is a connection to an X server.
type Display struct {
	conn   *xgb.Conn
	setup  *xproto.SetupInfo
	screen *xproto.ScreenInfo
	logger *slog.Logger

	closeOnce sync.Once
}

// Connect opens the display name, or $DISPLAY when name is empty.
func Connect(name string, logger *slog.Logger) (*Display, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	conn, err := xgb.NewConnDisplay(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open display %q: %w", name, err)
	}

	setup := xproto.Setup(conn)
	d := &Display{
		conn:   conn,
		setup:  setup,
		screen: setup.DefaultScreen(conn),
		logger: logger,
	}

	if err := enableXKB(conn); err != nil {
		logger.Debug("keyboard group state unavailable", slog.Any("error", err))
	}

	return d, nil
}

// Conn returns the underlying connection, for use by extension clients such as DPMS.
func (d *Display) Conn() *xgb.Conn {
	return d.conn
}

// Root returns the root window of the default screen.
func (d *Display) Root() xproto.Window {
	return d.screen.Root
}

// Close closes the connection. It is safe to call more than once.
func (d *Display) Close() {
	d.closeOnce.Do(d.conn.Close)
}

// Output returns the geometry to draw on: the primary output, else the first connected output
// that is lit, else the whole screen.
func (d *Display) Output() Geometry {
	g := Geometry{
		DisplayWidth:  d.screen.WidthInPixels,
		DisplayHeight: d.screen.HeightInPixels,
		OutputWidth:   d.screen.WidthInPixels,
		OutputHeight:  d.screen.HeightInPixels,
	}

	crtc, err := d.outputCrtc()
	if err != nil {
		d.logger.Debug("using whole screen for layout", slog.Any("error", err))
		return g
	}

	g.OutputX = crtc.X
	g.OutputY = crtc.Y
	g.OutputWidth = crtc.Width
	g.OutputHeight = crtc.Height

	return g
}

func (d *Display) outputCrtc() (*randr.GetCrtcInfoReply, error) {
	if err := randr.Init(d.conn); err != nil {
		return nil, fmt.Errorf("failed to initialize RandR: %w", err)
	}

	resources, err := randr.GetScreenResourcesCurrent(d.conn, d.screen.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	outputs := resources.Outputs
	primary, err := randr.GetOutputPrimary(d.conn, d.screen.Root).Reply()
	if err == nil && primary.Output != 0 {
		outputs = append([]randr.Output{primary.Output}, outputs...)
	}

	for _, output := range outputs {
		info, err := randr.GetOutputInfo(d.conn, output, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}

		crtc, err := randr.GetCrtcInfo(d.conn, info.Crtc, resources.ConfigTimestamp).Reply()
		if err != nil || crtc.Width == 0 || crtc.Height == 0 {
			continue
		}

		return crtc, nil
	}

	return nil, errors.New("no connected output")
}

// enableXKB announces XKB support to the server. Until a client does so, the server reports the
// modifier state without the keyboard group.
func enableXKB(conn *xgb.Conn) error {
	const name = "XKEYBOARD"

	ext, err := xproto.QueryExtension(conn, uint16(len(name)), name).Reply()
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if !ext.Present {
		return fmt.Errorf("%s is not present", name)
	}

	// XkbUseExtension: major opcode, minor opcode 0, length 2, wanted version 1.0.
	buf := make([]byte, 8)
	buf[0] = ext.MajorOpcode
	buf[1] = 0
	xgb.Put16(buf[2:], 2)
	xgb.Put16(buf[4:], 1)
	xgb.Put16(buf[6:], 0)

	cookie := conn.NewCookie(true, true)
	conn.NewRequest(buf, cookie)
	reply, err := cookie.Reply()
	if err != nil {
		return fmt.Errorf("failed to enable %s: %w", name, err)
	}
	if len(reply) < 2 || reply[1] == 0 {
		return fmt.Errorf("%s version 1.0 is not supported", name)
	}

	return nil
}
