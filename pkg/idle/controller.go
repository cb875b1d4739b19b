// Package idle reports when the user has stopped using the keyboard and pointer and when they
// return. The resident lock screen uses it to lock after a period of inactivity.
package idle

import (
	"time"
)

// Controller hands out idle notifications.
type Controller interface {
	// AddNotification starts watching for req.Duration of inactivity.
	AddNotification(req *Request) (Notification, error)

	// Close stops all notifications and releases the connection to the display server.
	Close() error
}

// Notification is a registered Request.
type Notification interface {
	// Close stops the notification. Safe to call from another goroutine.
	Close() error
}

// Request describes an idle notification.
type Request struct {
	// Duration of inactivity after which Idle is notified. Must be positive.
	Duration time.Duration

	// Idle is notified once the user has been inactive for Duration. Sends never block, a
	// notification is dropped when the channel is full.
	Idle chan<- struct{}

	// Resume is notified on the first activity after Idle. Optional.
	Resume chan<- struct{}
}
