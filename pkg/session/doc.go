// Package session implements the lock session: the event loop that owns the typed password,
// submits it for verification, tracks what the lock screen shows and brackets all of it with the
// capture and restoration of the display power policy.
//
// A session moves between three states:
//   - [StateLocked]: waiting for a password.
//   - [StateFailed]: the last password was rejected. Any key or pointer activity returns to
//     StateLocked.
//   - [StateIdle]: the screen was blanked on request. The display is kept in its lowest power
//     level until key or pointer activity returns to StateLocked. Keys typed to wake the screen
//     still reach the password.
//
// Use [Begin] to set up a session, [Session.Run] to run the loop until the password is accepted
// and [Session.End] to restore everything, on every path.
package session
