// Package dpms captures, overrides and restores the display power management policy of the X
// server for the duration of a lock session.
//
// The policy found at session start is captured once and frozen. The session then applies short
// timeouts and forces DPMS on so the screen can be blanked on request, even on servers where
// DPMS was disabled. Restore puts the captured policy back, including disabling DPMS again.
package dpms
