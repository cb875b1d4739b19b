package x11

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		input    string
		expected Color
	}{
		{input: "#C3BFB0", expected: Color{Red: 0xc3c3, Green: 0xbfbf, Blue: 0xb0b0}},
		{input: "#423638", expected: Color{Red: 0x4242, Green: 0x3636, Blue: 0x3838}},
		{input: "#f80009", expected: Color{Red: 0xf8f8, Green: 0x0000, Blue: 0x0909}},
		{input: "#fff", expected: Color{Red: 0xffff, Green: 0xffff, Blue: 0xffff}},
		{input: " #a0c ", expected: Color{Red: 0xaaaa, Green: 0x0000, Blue: 0xcccc}},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			c, err := ParseColor(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, c)
		})
	}
}

func TestParseColor_Invalid(t *testing.T) {
	for _, input := range []string{"", "C3BFB0", "#C3BFB", "#zzzzzz", "#12345678", "red"} {
		_, err := ParseColor(input)
		assert.Error(t, err, input)
	}
}
