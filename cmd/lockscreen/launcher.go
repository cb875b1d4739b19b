package main

import (
	"context"
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/autolock"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// readyFDEnv names the inherited file descriptor on which a lock screen started by watch reports
// that it holds the grabs and shows the lock screen.
const readyFDEnv = "LOCKSCREEN_READY_FD"

// execLauncher starts the lock screen as a child process.
type execLauncher struct {
	path   string
	args   []string
	logger *slog.Logger
}

// Launch starts the lock screen. The child is not tied to ctx: stopping the watcher leaves the
// screen locked.
func (l *execLauncher) Launch(context.Context) (autolock.Process, error) {
	readyR, readyW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create readiness pipe: %w", err)
	}

	cmd := exec.Command(l.path, l.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{readyW}
	// ExtraFiles start at descriptor 3.
	cmd.Env = append(os.Environ(), readyFDEnv+"=3")

	err = cmd.Start()
	_ = readyW.Close()
	if err != nil {
		_ = readyR.Close()
		return nil, fmt.Errorf("failed to start %s: %w", l.path, err)
	}

	l.logger.Debug("started lock screen", slog.Int("pid", cmd.Process.Pid))

	return &execProcess{cmd: cmd, ready: awaitReady(readyR)}, nil
}

// awaitReady returns a channel that is closed once a byte can be read from r. It stays open when
// the writer closes without writing. r is closed when reading ends.
func awaitReady(r io.ReadCloser) <-chan struct{} {
	ready := make(chan struct{})

	go func() {
		defer r.Close()

		var b [1]byte
		if n, _ := r.Read(b[:]); n == 1 {
			close(ready)
		}
	}()

	return ready
}

// notifyReady tells the watcher that started this lock screen that it is ready. It does nothing
// when the lock screen was not started by a watcher.
func notifyReady(logger *slog.Logger) {
	value, ok := os.LookupEnv(readyFDEnv)
	if !ok {
		return
	}
	_ = os.Unsetenv(readyFDEnv)

	fd, err := strconv.Atoi(value)
	if err != nil || fd < 3 {
		logger.Warn("ignoring invalid readiness descriptor", slog.String(readyFDEnv, value))
		return
	}

	f := os.NewFile(uintptr(fd), "ready")
	defer f.Close()

	if _, err := f.Write([]byte{1}); err != nil {
		logger.Warn("failed to report readiness", slog.Any("error", err))
	}
}

type execProcess struct {
	cmd   *exec.Cmd
	ready <-chan struct{}
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Terminate() error {
	return p.cmd.Process.Signal(syscall.SIGTERM)
}

func (p *execProcess) Ready() <-chan struct{} {
	return p.ready
}
