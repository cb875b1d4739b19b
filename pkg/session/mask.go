package session

// Mask renders the obscured form of a password.
type Mask struct {
	pattern    []rune
	hideLength bool
}

// NewMask returns a Mask that repeats chars and can show at most capacity-1 characters.
// An empty chars falls back to "*".
func NewMask(chars string, capacity int, hideLength bool) Mask {
	if chars == "" {
		chars = "*"
	}
	if capacity < 1 {
		capacity = 1
	}

	source := []rune(chars)
	pattern := make([]rune, capacity-1)
	for i := range pattern {
		pattern[i] = source[i%len(source)]
	}

	return Mask{pattern: pattern, hideLength: hideLength}
}

// Length returns how many mask characters are shown for n typed bytes of which last is the
// final one.
//
// With length hiding, the result is n plus (last*n) mod 5. It depends only on the buffer so
// repeated redraws agree. It is not always different from the real length: whenever
// (last*n) mod 5 is 0, such as at every n of 5, the real length shows.
func (m Mask) Length(n int, last byte) int {
	if !m.hideLength || n <= 0 {
		return min(n, len(m.pattern))
	}

	return min(n+(int(last)*n)%5, len(m.pattern))
}

// Render returns the mask for n typed bytes.
func (m Mask) Render(n int, last byte) string {
	return string(m.pattern[:max(m.Length(n, last), 0)])
}
