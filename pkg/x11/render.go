package x11

import (
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/session"
	"github.com/jezek/xgb/xproto"
)

const (
	lineGap        = 10
	layoutSep      = " | "
	capsLockNotice = "Caps lock is on"
)

// Palette holds the allocated pixel values of the lock screen colors.
type Palette struct {
	Background uint32
	Foreground uint32
	Wrong      uint32
}

// band is a horizontal strip of the output holding one line of text.
type band struct {
	top      int
	baseline int
}

// screenLayout positions the lines of the lock screen around the centre of the output.
//
// From top to bottom: date and layout, username, separator line, mask or failure message, caps
// lock notice.
type screenLayout struct {
	centreX    int
	lineY      int
	lineLeft   int
	lineRight  int
	outputX    int
	outputW    int
	textHeight int

	date     band
	username band
	password band
	capsLock band
}

func computeLayout(g Geometry, ascent, descent int) screenLayout {
	height := ascent + descent
	centreX := int(g.OutputX) + int(g.OutputWidth)/2
	centreY := int(g.OutputY) + int(g.OutputHeight)/2

	l := screenLayout{
		centreX:    centreX,
		lineY:      centreY,
		lineLeft:   centreX - int(g.OutputWidth)/8,
		lineRight:  centreX + int(g.OutputWidth)/8,
		outputX:    int(g.OutputX),
		outputW:    int(g.OutputWidth),
		textHeight: height,
	}

	l.username.baseline = centreY - lineGap/2 - descent
	l.username.top = l.username.baseline - ascent

	l.date.top = centreY - lineGap*3/2 - 2*height
	l.date.baseline = l.date.top + ascent

	l.password.top = centreY + lineGap
	l.password.baseline = l.password.top + ascent

	l.capsLock.top = centreY + 2*lineGap + height
	l.capsLock.baseline = l.capsLock.top + ascent

	return l
}

// Renderer draws frames on the lock window. It implements session.Renderer.
type Renderer struct {
	display *Display
	window  *Window
	font    *Font
	gc      xproto.Gcontext
	palette Palette
	layout  screenLayout
}

// NewRenderer creates the graphics context used to draw on w.
func (d *Display) NewRenderer(w *Window, font *Font, palette Palette, g Geometry) (*Renderer, error) {
	gc, err := xproto.NewGcontextId(d.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate graphics context id: %w", err)
	}

	err = xproto.CreateGCChecked(
		d.conn,
		gc,
		xproto.Drawable(w.id),
		xproto.GcForeground|xproto.GcBackground|xproto.GcFont,
		[]uint32{palette.Foreground, palette.Background, uint32(font.id)},
	).Check()
	if err != nil {
		return nil, fmt.Errorf("failed to create graphics context: %w", err)
	}

	return &Renderer{
		display: d,
		window:  w,
		font:    font,
		gc:      gc,
		palette: palette,
		layout:  computeLayout(g, int(font.Ascent), int(font.Descent)),
	}, nil
}

// Draw draws f. Every band is cleared before it is drawn, so redrawing the same frame gives
// the same picture.
func (r *Renderer) Draw(f session.Frame) error {
	l := r.layout

	for _, b := range []band{l.date, l.username, l.password, l.capsLock} {
		r.clear(b)
	}

	dateLine := f.DateTime
	if f.Layout != "" {
		dateLine += layoutSep + f.Layout
	}
	if err := r.text(l.date, dateLine, r.palette.Foreground); err != nil {
		return err
	}

	if err := r.text(l.username, f.Username, r.palette.Foreground); err != nil {
		return err
	}

	xproto.PolySegment(r.display.conn, xproto.Drawable(r.window.id), r.gc, []xproto.Segment{{
		X1: int16(l.lineLeft),
		Y1: int16(l.lineY),
		X2: int16(l.lineRight),
		Y2: int16(l.lineY),
	}})

	if f.Message != "" {
		if err := r.text(l.password, f.Message, r.palette.Wrong); err != nil {
			return err
		}
	} else if err := r.text(l.password, f.Mask, r.palette.Foreground); err != nil {
		return err
	}

	if f.CapsLock {
		if err := r.text(l.capsLock, capsLockNotice, r.palette.Wrong); err != nil {
			return err
		}
	}

	// Round trip so a lost connection surfaces here.
	if _, err := xproto.GetInputFocus(r.display.conn).Reply(); err != nil {
		return fmt.Errorf("failed to flush drawing: %w", err)
	}

	return nil
}

func (r *Renderer) clear(b band) {
	xproto.ClearArea(
		r.display.conn,
		false,
		r.window.id,
		int16(r.layout.outputX),
		int16(b.top),
		uint16(r.layout.outputW),
		uint16(r.layout.textHeight),
	)
}

// text draws s centred in b with foreground pixel.
func (r *Renderer) text(b band, s string, pixel uint32) error {
	s = latin1(s)
	if s == "" {
		return nil
	}

	width, err := r.font.Width(s)
	if err != nil {
		return err
	}

	conn := r.display.conn
	if pixel != r.palette.Foreground {
		xproto.ChangeGC(conn, r.gc, xproto.GcForeground, []uint32{pixel})
		defer xproto.ChangeGC(conn, r.gc, xproto.GcForeground, []uint32{r.palette.Foreground})
	}

	xproto.ImageText8(
		conn,
		byte(len(s)),
		xproto.Drawable(r.window.id),
		r.gc,
		int16(r.layout.centreX-width/2),
		int16(b.baseline),
		s,
	)

	return nil
}

// Close frees the graphics context.
func (r *Renderer) Close() {
	xproto.FreeGC(r.display.conn, r.gc)
}
