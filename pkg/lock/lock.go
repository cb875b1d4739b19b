package lock

import "io"

// Session is the login session of the user running the lock screen.
//
// It is safe to call Session's methods concurrently.
type Session interface {

	// Locked returns the LockedHint of the session.
	Locked() (bool, error)

	// SetLocked sets the LockedHint of the session. Set it once the screen is locked and clear
	// it once the screen is unlocked.
	SetLocked(locked bool) error

	// AddLockSignal registers a channel that is notified when the session should be locked.
	//
	// Writing to this channel does not block.
	// Use a buffered channel if you don't want to miss anything.
	AddLockSignal(c chan<- struct{}) error

	// RemoveLockSignal unregisters a channel previously registered with AddLockSignal.
	// RemoveLockSignal can be safely called with an unregistered channel.
	RemoveLockSignal(c chan<- struct{}) error

	// AddUnlockSignal registers a channel that is notified when the session should be unlocked
	// without a password, such as after `loginctl unlock-session`.
	//
	// Writing to this channel does not block.
	AddUnlockSignal(c chan<- struct{}) error

	// RemoveUnlockSignal unregisters a channel previously registered with AddUnlockSignal.
	RemoveUnlockSignal(c chan<- struct{}) error

	io.Closer
}
