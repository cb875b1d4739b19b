// Package guard restores the display power policy when the lock session is terminated by a
// signal.
//
// The policy handed to Install is copied before any signal handler is registered. The handler
// only reads that copy and calls hooks that never block, so it does not matter at which point the
// lock session was interrupted.
package guard

import (
	"fmt"
	"github.com/MatthiasKunnen/lockscreen/pkg/dpms"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Restorer reapplies a power policy.
type Restorer interface {
	Restore(p dpms.Policy) error
}

// Options customize Install. The zero value handles SIGINT, SIGHUP and SIGTERM, reports to
// stderr and exits with os.Exit.
type Options struct {
	// Signals to handle. Signals that were ignored when the process started stay ignored.
	Signals []os.Signal

	// Hooks run after the policy is restored. Each hook must be idempotent and must not block.
	Hooks []func()

	// Output receives the termination report.
	Output io.Writer

	// Exit terminates the process.
	Exit func(code int)
}

// Guard is an installed set of termination-signal handlers.
type Guard struct {
	restorer Restorer
	policy   atomic.Pointer[dpms.Policy]
	hooks    []func()
	output   io.Writer
	exit     func(code int)

	signals chan os.Signal
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Install registers the handlers. policy is copied; nil means there is nothing to restore.
func Install(restorer Restorer, policy *dpms.Policy, opts Options) *Guard {
	g := &Guard{
		restorer: restorer,
		hooks:    append([]func(){}, opts.Hooks...),
		output:   opts.Output,
		exit:     opts.Exit,
		signals:  make(chan os.Signal, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if g.output == nil {
		g.output = os.Stderr
	}
	if g.exit == nil {
		g.exit = os.Exit
	}
	if policy != nil {
		frozen := *policy
		g.policy.Store(&frozen)
	}

	sigs := opts.Signals
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM}
	}
	for _, sig := range sigs {
		if signal.Ignored(sig) {
			continue
		}
		signal.Notify(g.signals, sig)
	}

	go g.run()

	return g
}

func (g *Guard) run() {
	defer close(g.done)

	select {
	case sig := <-g.signals:
		g.handle(sig)
	case <-g.stop:
	}
}

// handle restores the policy, runs the hooks and terminates the process.
func (g *Guard) handle(sig os.Signal) {
	if p := g.policy.Load(); p != nil && g.restorer != nil {
		if err := g.restorer.Restore(*p); err != nil {
			_, _ = fmt.Fprintf(g.output, "failed to restore DPMS policy: %v\n", err)
		}
	}

	for _, hook := range g.hooks {
		hook()
	}

	_, _ = fmt.Fprintf(g.output, "caught signal %v; dying\n", sig)
	g.exit(1)
}

// Uninstall stops handling signals. It is safe to call more than once.
func (g *Guard) Uninstall() {
	g.once.Do(func() {
		signal.Stop(g.signals)
		close(g.stop)
	})
	<-g.done
}
