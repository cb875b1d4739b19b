package x11

import (
	"errors"
	"fmt"
	"github.com/jezek/xgb/xproto"
	"log/slog"
)

// maxText is the longest string a single ImageText8 request draws.
const maxText = 255

// Font is an opened core font.
type Font struct {
	display *Display
	id      xproto.Font
	Ascent  int16
	Descent int16
}

// OpenFont opens the core font name, an XLFD pattern such as
// "-*-droid sans-*-*-*-*-20-*-100-100-*-*-iso8859-1".
//
// When name cannot be opened and fallback is not empty, fallback is opened instead. With an empty
// fallback a missing font is an error.
func (d *Display) OpenFont(name string, fallback string) (*Font, error) {
	return loadFont(d.openFont, d.logger, name, fallback)
}

func loadFont(
	open func(name string) (*Font, error),
	logger *slog.Logger,
	name string,
	fallback string,
) (*Font, error) {
	font, err := open(name)
	if err == nil {
		return font, nil
	}
	if fallback == "" || fallback == name {
		return nil, err
	}

	logger.Warn(
		"falling back to another font",
		slog.String("font", name),
		slog.String("fallback", fallback),
		slog.Any("error", err),
	)

	font, fallbackErr := open(fallback)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	return font, nil
}

func (d *Display) openFont(name string) (*Font, error) {
	id, err := xproto.NewFontId(d.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate font id: %w", err)
	}

	if err := xproto.OpenFontChecked(d.conn, id, uint16(len(name)), name).Check(); err != nil {
		return nil, fmt.Errorf("failed to open font %q: %w", name, err)
	}

	info, err := xproto.QueryFont(d.conn, xproto.Fontable(id)).Reply()
	if err != nil {
		xproto.CloseFont(d.conn, id)
		return nil, fmt.Errorf("failed to query font %q: %w", name, err)
	}

	return &Font{
		display: d,
		id:      id,
		Ascent:  info.FontAscent,
		Descent: info.FontDescent,
	}, nil
}

// Height is the height of a line of text.
func (f *Font) Height() int {
	return int(f.Ascent) + int(f.Descent)
}

// Width returns the width of s in pixels.
func (f *Font) Width(s string) (int, error) {
	text := latin1(s)
	if len(text) == 0 {
		return 0, nil
	}

	chars := make([]xproto.Char2b, len(text))
	for i := 0; i < len(text); i++ {
		chars[i] = xproto.Char2b{Byte2: text[i]}
	}

	reply, err := xproto.QueryTextExtents(
		f.display.conn,
		xproto.Fontable(f.id),
		chars,
		uint16(len(chars)),
	).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to measure text: %w", err)
	}

	return int(reply.OverallWidth), nil
}

// Close releases the font.
func (f *Font) Close() {
	xproto.CloseFont(f.display.conn, f.id)
}

// latin1 encodes s for an 8 bit core font. Characters outside Latin-1 become '?'.
// The result is cut to what a single text request can draw.
func latin1(s string) string {
	out := make([]byte, 0, min(len(s), maxText))
	for _, r := range s {
		if len(out) == maxText {
			break
		}
		if r > 0xff {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return string(out)
}
