package x11

import (
	"github.com/MatthiasKunnen/lockscreen/pkg/session"
	"github.com/jezek/xgb/xproto"
	"github.com/stretchr/testify/assert"
	"testing"
)

// Keycodes 8..11: a, 1/!, Return, q with a Cyrillic second group.
var testKeymap = NewKeymap(8, 4, []xproto.Keysym{
	'a', 'A', 0, 0,
	'1', '!', 0, 0,
	keysymReturn, 0, 0, 0,
	'q', 'Q', 0x6ca, 0x6ea,
})

func TestKeymap_Lookup(t *testing.T) {
	const (
		shift = xproto.ModMaskShift
		lock  = xproto.ModMaskLock
		group = 1 << groupShift
	)

	tests := []struct {
		name     string
		code     xproto.Keycode
		state    uint16
		expected xproto.Keysym
	}{
		{name: "plain letter", code: 8, expected: 'a'},
		{name: "shifted letter", code: 8, state: shift, expected: 'A'},
		{name: "caps lock letter", code: 8, state: lock, expected: 'A'},
		{name: "shift and caps lock", code: 8, state: shift | lock, expected: 'a'},
		{name: "caps lock digit", code: 9, state: lock, expected: '1'},
		{name: "shifted digit", code: 9, state: shift, expected: '!'},
		{name: "return", code: 10, expected: keysymReturn},
		{name: "return shifted", code: 10, state: shift, expected: keysymReturn},
		{name: "second group", code: 11, state: group, expected: 0x6ca},
		{name: "second group shifted", code: 11, state: group | shift, expected: 0x6ea},
		{name: "second group falls back", code: 8, state: group, expected: 'a'},
		{name: "below range", code: 7, expected: 0},
		{name: "above range", code: 12, expected: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, testKeymap.Lookup(test.code, test.state))
		})
	}
}

func TestKeymap_SingleColumnLetter(t *testing.T) {
	keymap := NewKeymap(8, 2, []xproto.Keysym{'z', 0})

	assert.Equal(t, xproto.Keysym('z'), keymap.Lookup(8, 0))
	assert.Equal(t, xproto.Keysym('Z'), keymap.Lookup(8, xproto.ModMaskShift))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		keysym   xproto.Keysym
		expected session.Event
	}{
		{name: "return", keysym: keysymReturn, expected: session.Event{Kind: session.EventKey, Key: session.KeySubmit}},
		{name: "keypad enter", keysym: keysymKPEnter, expected: session.Event{Kind: session.EventKey, Key: session.KeySubmit}},
		{name: "backspace", keysym: keysymBackSpace, expected: session.Event{Kind: session.EventKey, Key: session.KeyBackspace}},
		{name: "escape", keysym: keysymEscape, expected: session.Event{Kind: session.EventKey, Key: session.KeyBlank}},
		{name: "letter", keysym: 'x', expected: session.Event{Kind: session.EventKey, Key: session.KeyChar, Char: 'x'}},
		{name: "space", keysym: ' ', expected: session.Event{Kind: session.EventKey, Key: session.KeyChar, Char: ' '}},
		{name: "keypad 7", keysym: 0xffb7, expected: session.Event{Kind: session.EventKey, Key: session.KeyChar, Char: '7'}},
		{name: "keypad minus", keysym: 0xffad, expected: session.Event{Kind: session.EventKey, Key: session.KeyChar, Char: '-'}},
		{name: "non-ascii", keysym: 0xe9, expected: session.Event{Kind: session.EventKey, Key: session.KeyOther}},
		{name: "shift key", keysym: 0xffe1, expected: session.Event{Kind: session.EventKey, Key: session.KeyOther}},
		{name: "no symbol", keysym: 0, expected: session.Event{Kind: session.EventKey, Key: session.KeyOther}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Translate(test.keysym))
		})
	}
}

func TestGroupOf(t *testing.T) {
	assert.Equal(t, 0, groupOf(xproto.ModMaskShift|xproto.ModMaskLock))
	assert.Equal(t, 1, groupOf(1<<13))
	assert.Equal(t, 3, groupOf(3<<13|xproto.ModMaskLock))
}
