// Package credential holds the password that is being typed on the lock screen.
//
// The backing memory of a [Buffer] is allocated outside the Go heap, locked into RAM so it is
// never written to swap, and excluded from core dumps. Clearing the buffer overwrites the whole
// backing storage with random bytes, not only the part that was typed.
package credential
