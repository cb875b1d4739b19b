// Package x11 is the X11 front end of the lock screen. It covers the display connection, the lock
// window, the pointer and keyboard grabs, the input event source and the renderer.
//
// All requests go through a single [Display]. Types in this package implement the
// session.EventSource, session.Renderer and session.Indicators interfaces.
package x11
