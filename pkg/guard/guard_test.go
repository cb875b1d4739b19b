package guard

import (
	"bytes"
	"github.com/MatthiasKunnen/lockscreen/pkg/dpms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingRestorer struct {
	mu       sync.Mutex
	restored []dpms.Policy
}

func (r *recordingRestorer) Restore(p dpms.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = append(r.restored, p)
	return nil
}

func (r *recordingRestorer) calls() []dpms.Policy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]dpms.Policy(nil), r.restored...)
}

// syncBuffer is a bytes.Buffer that can be written from the guard goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestGuard_SignalRestoresAndExits(t *testing.T) {
	restorer := &recordingRestorer{}
	policy := dpms.Policy{Enabled: false, Standby: 600, Suspend: 600, Off: 600}
	output := &syncBuffer{}
	exited := make(chan int, 1)
	var hookCalls int

	g := Install(restorer, &policy, Options{
		Signals: []os.Signal{syscall.SIGUSR1},
		Hooks:   []func(){func() { hookCalls++ }},
		Output:  output,
		Exit:    func(code int) { exited <- code },
	})
	defer g.Uninstall()

	// Mutating the caller's copy after Install must not affect what is restored.
	policy.Enabled = true
	policy.Off = 1

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	select {
	case code := <-exited:
		assert.Equal(t, 1, code)
	case <-time.After(5 * time.Second):
		t.Fatal("guard did not exit after signal")
	}

	g.Uninstall()
	assert.Equal(t, []dpms.Policy{{Enabled: false, Standby: 600, Suspend: 600, Off: 600}}, restorer.calls())
	assert.Equal(t, 1, hookCalls)
	assert.Contains(t, output.String(), "caught signal")
	assert.Contains(t, output.String(), "dying")
}

func TestGuard_NilPolicy(t *testing.T) {
	restorer := &recordingRestorer{}
	exited := make(chan int, 1)

	g := Install(restorer, nil, Options{
		Signals: []os.Signal{syscall.SIGUSR2},
		Output:  &syncBuffer{},
		Exit:    func(code int) { exited <- code },
	})

	g.handle(syscall.SIGUSR2)
	g.Uninstall()

	assert.Equal(t, 1, <-exited)
	assert.Empty(t, restorer.calls())
}

func TestGuard_UninstallWithoutSignal(t *testing.T) {
	restorer := &recordingRestorer{}
	g := Install(restorer, &dpms.Policy{}, Options{
		Signals: []os.Signal{syscall.SIGUSR2},
		Exit:    func(int) { t.Error("exit must not be called") },
	})

	g.Uninstall()
	g.Uninstall()

	assert.Empty(t, restorer.calls())
}

func TestGuard_RestoreRacingMainPath(t *testing.T) {
	restorer := &recordingRestorer{}
	policy := dpms.Policy{Enabled: true, Standby: 10}
	g := Install(restorer, &policy, Options{
		Signals: []os.Signal{syscall.SIGUSR2},
		Output:  &syncBuffer{},
		Exit:    func(int) {},
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		g.handle(syscall.SIGTERM)
	}()
	go func() {
		defer wg.Done()
		_ = restorer.Restore(policy)
	}()
	wg.Wait()
	g.Uninstall()

	for _, p := range restorer.calls() {
		assert.Equal(t, policy, p)
	}
	assert.Len(t, restorer.calls(), 2)
}
