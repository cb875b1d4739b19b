package idle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// IdleTimer reports how long the user has been inactive.
type IdleTimer interface {
	IdleTime() (time.Duration, error)
}

type pollingController struct {
	timer  IdleTimer
	logger *slog.Logger

	mu            sync.Mutex
	notifications map[*pollingNotification]struct{}

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type pollingNotification struct {
	controller *pollingController
	input      Request
	idle       bool
}

func (n *pollingNotification) Close() error {
	n.controller.mu.Lock()
	defer n.controller.mu.Unlock()

	delete(n.controller.notifications, n)
	return nil
}

// NewPollingController asks timer for the idle time every interval.
func NewPollingController(timer IdleTimer, interval time.Duration, logger *slog.Logger) (Controller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}

	c := newPollingController(timer, logger)
	go c.run(interval)

	return c, nil
}

func newPollingController(timer IdleTimer, logger *slog.Logger) *pollingController {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &pollingController{
		timer:         timer,
		logger:        logger,
		notifications: make(map[*pollingNotification]struct{}),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

func (c *pollingController) AddNotification(input *Request) (Notification, error) {
	if input == nil || input.Duration <= 0 {
		return nil, errors.New("idle notification needs a positive duration")
	}

	n := &pollingNotification{controller: c, input: *input}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications[n] = struct{}{}

	return n, nil
}

func (c *pollingController) run(interval time.Duration) {
	defer close(c.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			idleTime, err := c.timer.IdleTime()
			if err != nil {
				c.logger.Warn("failed to read idle time", slog.Any("error", err))
				continue
			}
			c.check(idleTime)
		}
	}
}

// check notifies every notification whose state changed given the current idle time.
func (c *pollingController) check(idleTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for n := range c.notifications {
		idle := idleTime >= n.input.Duration
		if idle == n.idle {
			continue
		}
		n.idle = idle

		target := n.input.Resume
		if idle {
			target = n.input.Idle
		}
		if target == nil {
			continue
		}

		select {
		case target <- struct{}{}:
		default:
		}
	}
}

func (c *pollingController) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
	})

	select {
	case <-c.done:
	case <-time.After(time.Second):
		return errors.New("idle poller did not stop")
	}

	return nil
}
