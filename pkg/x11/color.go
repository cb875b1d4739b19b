package x11

import (
	"fmt"
	"github.com/jezek/xgb/xproto"
	"strconv"
	"strings"
)

// Color is a 16 bit per channel RGB color as used by the X protocol.
type Color struct {
	Red, Green, Blue uint16
}

// ParseColor parses "#RRGGBB" or "#RGB".
func ParseColor(s string) (Color, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(s), "#")
	if !ok {
		return Color{}, fmt.Errorf("color %q does not start with #", s)
	}

	var width int
	switch len(hex) {
	case 3:
		width = 1
	case 6:
		width = 2
	default:
		return Color{}, fmt.Errorf("color %q must have 3 or 6 hex digits", s)
	}

	var channels [3]uint16
	for i := range channels {
		v, err := strconv.ParseUint(hex[i*width:(i+1)*width], 16, 8)
		if err != nil {
			return Color{}, fmt.Errorf("color %q is not hexadecimal: %w", s, err)
		}
		if width == 1 {
			v |= v << 4
		}
		// Scale 0xAB to 0xABAB.
		channels[i] = uint16(v)<<8 | uint16(v)
	}

	return Color{Red: channels[0], Green: channels[1], Blue: channels[2]}, nil
}

// AllocColor allocates c in the default colormap and returns its pixel value.
func (d *Display) AllocColor(c Color) (uint32, error) {
	reply, err := xproto.AllocColor(d.conn, d.screen.DefaultColormap, c.Red, c.Green, c.Blue).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate color: %w", err)
	}

	return reply.Pixel, nil
}

// AllocNamedColor parses and allocates a color.
func (d *Display) AllocNamedColor(s string) (uint32, error) {
	c, err := ParseColor(s)
	if err != nil {
		return 0, err
	}

	return d.AllocColor(c)
}
