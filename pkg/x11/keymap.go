package x11

import (
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/session"
	"github.com/jezek/xgb/xproto"
)

// Keysyms from X11/keysymdef.h.
const (
	keysymBackSpace = 0xff08
	keysymReturn    = 0xff0d
	keysymEscape    = 0xff1b
	keysymKPEnter   = 0xff8d
	keysymKPSpace   = 0xff80
	keysymKPMul     = 0xffaa
	keysymKP9       = 0xffb9
	keysymKPEqual   = 0xffbd
)

// groupShift is the offset of the keyboard group in the modifier state.
const groupShift = 13

// Keymap maps keycodes to keysyms as described by the core keyboard mapping.
type Keymap struct {
	minKeycode xproto.Keycode
	perKeycode int
	keysyms    []xproto.Keysym
}

// NewKeymap returns a Keymap for keysyms starting at minKeycode with perKeycode keysyms per
// keycode.
func NewKeymap(minKeycode xproto.Keycode, perKeycode int, keysyms []xproto.Keysym) Keymap {
	return Keymap{minKeycode: minKeycode, perKeycode: perKeycode, keysyms: keysyms}
}

// LoadKeymap reads the keyboard mapping of the display.
func (d *Display) LoadKeymap() (Keymap, error) {
	first := d.setup.MinKeycode
	count := byte(d.setup.MaxKeycode - first + 1)

	reply, err := xproto.GetKeyboardMapping(d.conn, first, count).Reply()
	if err != nil {
		return Keymap{}, fmt.Errorf("failed to get keyboard mapping: %w", err)
	}

	return NewKeymap(first, int(reply.KeysymsPerKeycode), reply.Keysyms), nil
}

// Lookup returns the keysym that code produces with the modifier state, or 0.
//
// Columns 0 and 1 are the first group, 2 and 3 the second. Shift selects the second column. Caps
// lock inverts the case of letters only, so shift with caps lock gives a lowercase letter.
func (k Keymap) Lookup(code xproto.Keycode, state uint16) xproto.Keysym {
	if k.perKeycode == 0 || code < k.minKeycode {
		return 0
	}
	start := int(code-k.minKeycode) * k.perKeycode
	if start+k.perKeycode > len(k.keysyms) {
		return 0
	}
	row := k.keysyms[start : start+k.perKeycode]

	column := 2 * groupOf(state)
	if column+1 >= len(row) || (row[column] == 0 && row[column+1] == 0) {
		column = 0
	}

	lower := row[column]
	var upper xproto.Keysym
	if column+1 < len(row) {
		upper = row[column+1]
	}
	if upper == 0 {
		lower, upper = caseForms(lower)
	}

	shift := state&xproto.ModMaskShift != 0
	if state&xproto.ModMaskLock != 0 && isLetter(lower) {
		shift = !shift
	}

	if shift {
		return upper
	}
	return lower
}

// caseForms returns the lower and upper case forms of a Latin-1 letter. Other keysyms are
// returned unchanged in both positions.
func caseForms(ks xproto.Keysym) (xproto.Keysym, xproto.Keysym) {
	switch {
	case ks >= 'a' && ks <= 'z':
		return ks, ks - 'a' + 'A'
	case ks >= 'A' && ks <= 'Z':
		return ks - 'A' + 'a', ks
	case ks >= 0xe0 && ks <= 0xfe && ks != 0xf7:
		return ks, ks - 0x20
	case ks >= 0xc0 && ks <= 0xde && ks != 0xd7:
		return ks + 0x20, ks
	default:
		return ks, ks
	}
}

func isLetter(ks xproto.Keysym) bool {
	lower, upper := caseForms(ks)
	return lower != upper
}

// Translate turns a keysym into a key event.
func Translate(ks xproto.Keysym) session.Event {
	event := session.Event{Kind: session.EventKey, Key: session.KeyOther}

	switch {
	case ks == keysymReturn || ks == keysymKPEnter:
		event.Key = session.KeySubmit
	case ks == keysymBackSpace:
		event.Key = session.KeyBackspace
	case ks == keysymEscape:
		event.Key = session.KeyBlank
	case ks >= 0x20 && ks <= 0x7e:
		event.Key = session.KeyChar
		event.Char = byte(ks)
	case ks == keysymKPSpace:
		event.Key = session.KeyChar
		event.Char = ' '
	case ks >= keysymKPMul && ks <= keysymKP9:
		// Keypad keysyms mirror ASCII '*' to '9'.
		event.Key = session.KeyChar
		event.Char = byte(ks - keysymKPMul + '*')
	case ks == keysymKPEqual:
		event.Key = session.KeyChar
		event.Char = '='
	}

	return event
}
