package main

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestNotifyReady(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	// notifyReady closes the descriptor it is given, so hand it a copy.
	fd, err := unix.Dup(int(w.Fd()))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Setenv(readyFDEnv, strconv.Itoa(fd))

	ready := awaitReady(r)
	assert.False(t, isClosed(ready))

	notifyReady(slog.New(slog.DiscardHandler))

	require.Eventually(t, func() bool {
		return isClosed(ready)
	}, 5*time.Second, time.Millisecond)

	_, ok := os.LookupEnv(readyFDEnv)
	assert.False(t, ok, "the descriptor is not passed on")
}

func TestAwaitReady_ExitWithoutReady(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)

	ready := awaitReady(r)
	require.NoError(t, w.Close())

	assert.Never(t, func() bool {
		return isClosed(ready)
	}, 50*time.Millisecond, time.Millisecond)
}

func TestNotifyReady_InvalidDescriptor(t *testing.T) {
	t.Setenv(readyFDEnv, "stdout")

	notifyReady(slog.New(slog.DiscardHandler))

	_, ok := os.LookupEnv(readyFDEnv)
	assert.False(t, ok)
}
