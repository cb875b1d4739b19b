package layout

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestLabel_OutOfRange(t *testing.T) {
	table := New("us", "ru", "de")

	name, ok := table.Label(5)
	assert.False(t, ok)
	assert.Empty(t, name)

	_, ok = table.Label(-1)
	assert.False(t, ok)

	name, ok = table.Label(2)
	assert.True(t, ok)
	assert.Equal(t, "de", name)
}

func TestLabel_EmptyTable(t *testing.T) {
	_, ok := Table{}.Label(0)
	assert.False(t, ok)
}

func TestNew_KeepsGroupPositions(t *testing.T) {
	table := New("us", " ", "", "fr ")
	assert.Equal(t, 4, table.Len())

	_, ok := table.Label(1)
	assert.False(t, ok)
	_, ok = table.Label(2)
	assert.False(t, ok)

	name, ok := table.Label(3)
	assert.True(t, ok)
	assert.Equal(t, "fr", name)
}

func TestParseRulesNames_EmptyLayoutKeepsPosition(t *testing.T) {
	table := ParseRulesNames([]byte("evdev\x00pc105\x00us,,ru\x00\x00\x00"))
	assert.Equal(t, 3, table.Len())

	name, ok := table.Label(0)
	assert.True(t, ok)
	assert.Equal(t, "us", name)

	_, ok = table.Label(1)
	assert.False(t, ok, "an unnamed group has no label")

	name, ok = table.Label(2)
	assert.True(t, ok)
	assert.Equal(t, "ru", name)
}

func TestParseRulesNames(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{
			name:     "single layout",
			raw:      "evdev\x00pc105\x00us\x00\x00\x00",
			expected: []string{"us"},
		},
		{
			name:     "layouts with variants",
			raw:      "evdev\x00pc105\x00us,ru,de\x00intl,,nodeadkeys\x00grp:alt_shift_toggle\x00",
			expected: []string{"us(intl)", "ru", "de(nodeadkeys)"},
		},
		{
			name:     "more variants than layouts",
			raw:      "evdev\x00pc105\x00us\x00dvorak,extra\x00",
			expected: []string{"us(dvorak)"},
		},
		{
			name:     "truncated value",
			raw:      "evdev\x00pc105",
			expected: nil,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			table := ParseRulesNames([]byte(test.raw))
			assert.Equal(t, len(test.expected), table.Len())
			for i, expected := range test.expected {
				name, ok := table.Label(i)
				assert.True(t, ok)
				assert.Equal(t, expected, name)
			}
		})
	}
}
