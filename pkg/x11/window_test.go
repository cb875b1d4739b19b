package x11

import (
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

// succeedAfter returns a grab step that fails n times before it succeeds.
func succeedAfter(name string, n int, tries *int) grabStep {
	return grabStep{
		name: name,
		try: func() (bool, error) {
			*tries++
			return *tries > n, nil
		},
	}
}

func TestGrabWithBudget_SharedBudget(t *testing.T) {
	var pointer, keyboard int
	var sleeps []time.Duration

	err := grabWithBudget(
		5,
		50*time.Microsecond,
		func(d time.Duration) { sleeps = append(sleeps, d) },
		succeedAfter("pointer", 2, &pointer),
		succeedAfter("keyboard", 1, &keyboard),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, pointer)
	assert.Equal(t, 2, keyboard)
	assert.Len(t, sleeps, 3)
	assert.Equal(t, 50*time.Microsecond, sleeps[0])
}

func TestGrabWithBudget_Exhausted(t *testing.T) {
	var pointer, keyboard int

	err := grabWithBudget(
		4,
		0,
		func(time.Duration) {},
		succeedAfter("pointer", 2, &pointer),
		succeedAfter("keyboard", 10, &keyboard),
	)
	assert.ErrorIs(t, err, ErrGrab)
	assert.ErrorContains(t, err, "keyboard")
	assert.Equal(t, 3, pointer)
	assert.Equal(t, 1, keyboard)
}

func TestGrabWithBudget_Error(t *testing.T) {
	cause := errors.New("connection lost")
	tries := 0

	err := grabWithBudget(10, 0, func(time.Duration) {}, grabStep{
		name: "pointer",
		try: func() (bool, error) {
			tries++
			return false, cause
		},
	})
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrGrab)
	assert.Equal(t, 1, tries)
}

func TestGrabWithBudget_NoAttempts(t *testing.T) {
	err := grabWithBudget(0, 0, func(time.Duration) {}, grabStep{
		name: "pointer",
		try: func() (bool, error) {
			t.Fatal("must not try")
			return false, nil
		},
	})
	assert.ErrorIs(t, err, ErrGrab)
}
