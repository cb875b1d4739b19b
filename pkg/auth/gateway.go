package auth

import "errors"

// ErrBackend signals that the verification service itself failed. A session cannot continue
// without a trusted verifier so this error is fatal.
var ErrBackend = errors.New("authentication backend failure")

// Result is the outcome of a verification.
type Result int

const (
	Rejected Result = iota
	Accepted
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Gateway verifies a candidate password.
//
// Verify blocks until the backend answers. candidate is only borrowed for the duration of the
// call; implementations must not retain it.
// A rejected password returns (Rejected, nil) without saying why it was rejected.
// A backend failure returns an error wrapping ErrBackend.
type Gateway interface {
	Verify(candidate []byte) (Result, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(candidate []byte) (Result, error)

func (f GatewayFunc) Verify(candidate []byte) (Result, error) {
	return f(candidate)
}
