// Package vt prevents switching away from the graphical session to another virtual console
// while the screen is locked.
package vt

import (
	"errors"
	"fmt"
	"golang.org/x/sys/unix"
	"os"
	"sync"
)

// Console ioctl requests from linux/vt.h.
const (
	lockSwitch   = 0x560B
	unlockSwitch = 0x560C
)

// DefaultPath is the console device used to take the lock.
const DefaultPath = "/dev/console"

// SwitchLock is a held console-switch lock.
type SwitchLock struct {
	mu   sync.Mutex
	file *os.File
}

// LockSwitch opens the console at path and disables virtual console switching.
// This requires write access to the console, usually granted only to root.
func LockSwitch(path string) (*SwitchLock, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open console %s: %w", path, err)
	}

	if err := unix.IoctlSetInt(int(file.Fd()), lockSwitch, 1); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to lock console switching: %w", err),
			file.Close(),
		)
	}

	return &SwitchLock{file: file}, nil
}

// Unlock enables virtual console switching again. Calls after the first do nothing.
//
// Unlock never waits for a concurrent Unlock to finish; whichever call gets there first
// releases the lock.
func (l *SwitchLock) Unlock() error {
	if !l.mu.TryLock() {
		return nil
	}
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil

	var errs []error
	if err := unix.IoctlSetInt(int(file.Fd()), unlockSwitch, 1); err != nil {
		errs = append(errs, fmt.Errorf("failed to unlock console switching: %w", err))
	}
	if err := file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close console: %w", err))
	}

	return errors.Join(errs...)
}
