package x11

import (
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/layout"
	"github.com/jezek/xgb/xproto"
)

const rulesNamesAtom = "_XKB_RULES_NAMES"

// Layouts returns the keyboard layouts configured on the server.
func (d *Display) Layouts() (layout.Table, error) {
	atom, err := xproto.InternAtom(d.conn, true, uint16(len(rulesNamesAtom)), rulesNamesAtom).Reply()
	if err != nil {
		return layout.Table{}, fmt.Errorf("failed to look up %s: %w", rulesNamesAtom, err)
	}
	if atom.Atom == xproto.AtomNone {
		return layout.Table{}, nil
	}

	prop, err := xproto.GetProperty(
		d.conn,
		false,
		d.screen.Root,
		atom.Atom,
		xproto.AtomString,
		0,
		1024,
	).Reply()
	if err != nil {
		return layout.Table{}, fmt.Errorf("failed to read %s: %w", rulesNamesAtom, err)
	}

	return layout.ParseRulesNames(prop.Value), nil
}
