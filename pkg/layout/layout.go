// Package layout resolves keyboard layout group indices to printable names.
package layout

import (
	"bytes"
	"strings"
)

// Table lists the layout names of the keyboard groups, in group order. An empty name keeps the
// position of a group whose name is unknown.
// The keyboard driver may report more groups than the table knows; Label handles that.
type Table struct {
	names []string
}

// New returns a Table with the given names, the first being group 0.
func New(names ...string) Table {
	t := Table{names: make([]string, len(names))}
	for i, name := range names {
		t.names[i] = strings.TrimSpace(name)
	}
	return t
}

// ParseRulesNames parses the value of the _XKB_RULES_NAMES root window property.
//
// The value consists of the NUL-separated fields rules, model, layout, variant and options.
// Layouts and variants are comma separated lists; a layout with a variant is named
// "layout(variant)".
func ParseRulesNames(raw []byte) Table {
	fields := bytes.Split(raw, []byte{0})
	if len(fields) < 3 || len(fields[2]) == 0 {
		return Table{}
	}

	layouts := strings.Split(string(fields[2]), ",")
	var variants []string
	if len(fields) > 3 && len(fields[3]) > 0 {
		variants = strings.Split(string(fields[3]), ",")
	}

	names := make([]string, len(layouts))
	for i, name := range layouts {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if i < len(variants) {
			if variant := strings.TrimSpace(variants[i]); variant != "" {
				name += "(" + variant + ")"
			}
		}
		names[i] = name
	}

	return Table{names: names}
}

// Len returns the number of groups in the table, including those without a name.
func (t Table) Len() int {
	return len(t.names)
}

// Label returns the name of group index. ok is false when the index is not in the table or the
// group has no name.
func (t Table) Label(index int) (name string, ok bool) {
	if index < 0 || index >= len(t.names) || t.names[index] == "" {
		return "", false
	}
	return t.names[index], true
}
