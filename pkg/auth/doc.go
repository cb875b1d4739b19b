// Package auth verifies a typed password against the system's identity store.
//
// The default implementation uses [PAM]. A transaction is started once for the user that owns
// the lock session and reused for every attempt.
//
// [PAM]: https://www.linux-pam.org/
package auth
