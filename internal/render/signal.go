package render

import "sync/atomic"

// Signal is the reset request shared between control code and the render
// loop. The loop polls it once per frame; observing a request clears it, so
// several requests between two frames cause a single reset.
type Signal struct {
	requested atomic.Bool
}

// NewSignal creates a cleared signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Request asks the loop to start a new session before its next frame.
func (s *Signal) Request() {
	s.requested.Store(true)
}

// Pending reports whether a request has not been observed yet.
func (s *Signal) Pending() bool {
	return s.requested.Load()
}

func (s *Signal) consume() bool {
	return s.requested.CompareAndSwap(true, false)
}
