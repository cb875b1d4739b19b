package idle

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync/atomic"
	"testing"
	"time"
)

type fixedTimer struct {
	idle atomic.Int64
}

func (t *fixedTimer) IdleTime() (time.Duration, error) {
	return time.Duration(t.idle.Load()), nil
}

func TestCheck_IdleAndResume(t *testing.T) {
	c := newPollingController(&fixedTimer{}, nil)
	idle := make(chan struct{}, 1)
	resume := make(chan struct{}, 1)

	_, err := c.AddNotification(&Request{
		Duration: time.Minute,
		Idle:     idle,
		Resume:   resume,
	})
	require.NoError(t, err)

	c.check(30 * time.Second)
	assert.Empty(t, idle)
	assert.Empty(t, resume)

	c.check(time.Minute)
	assert.Len(t, idle, 1)
	<-idle

	c.check(2 * time.Minute)
	assert.Empty(t, idle, "idle is reported once")

	c.check(time.Second)
	assert.Len(t, resume, 1)
}

func TestCheck_ClosedNotification(t *testing.T) {
	c := newPollingController(&fixedTimer{}, nil)
	idle := make(chan struct{}, 1)

	n, err := c.AddNotification(&Request{Duration: time.Second, Idle: idle})
	require.NoError(t, err)
	require.NoError(t, n.Close())

	c.check(time.Hour)
	assert.Empty(t, idle)
}

func TestAddNotification_Invalid(t *testing.T) {
	c := newPollingController(&fixedTimer{}, nil)

	_, err := c.AddNotification(&Request{})
	assert.Error(t, err)

	_, err = c.AddNotification(nil)
	assert.Error(t, err)
}

func TestPollingController_Polls(t *testing.T) {
	timer := &fixedTimer{}
	timer.idle.Store(int64(time.Hour))

	c, err := NewPollingController(timer, time.Millisecond, nil)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, c.Close())
	}()

	idle := make(chan struct{}, 1)
	_, err = c.AddNotification(&Request{Duration: time.Minute, Idle: idle})
	require.NoError(t, err)

	select {
	case <-idle:
	case <-time.After(5 * time.Second):
		t.Fatal("no idle notification")
	}
}
