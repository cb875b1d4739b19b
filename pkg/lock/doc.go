// Package lock connects the lock screen to the login session of its user.
// The implementation talks to systemd-logind over D-Bus, [org.freedesktop.login1]: it reports
// whether the session is locked through the LockedHint property and forwards the Lock and Unlock
// requests logind sends, for example from `loginctl lock-session`.
//
// [org.freedesktop.login1]: https://www.freedesktop.org/software/systemd/man/latest/org.freedesktop.login1.html
package lock
