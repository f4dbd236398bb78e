package nbio

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrRuntimeClosed is returned by Close when the runtime's eventfd has
	// already been closed.
	ErrRuntimeClosed = errors.New("nbio: runtime closed")
)

// OpError carries the failing socket operation, the descriptor, and the
// underlying errno. It is the ready-error value produced by the network
// futures and by the listener setup.
type OpError struct {
	Err error
	Op  string
	FD  int
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("nbio: %s fd=%d: %v", e.Op, e.FD, e.Err)
}

// Unwrap returns the underlying errno for use with [errors.Is] and
// [errors.As].
func (e *OpError) Unwrap() error {
	return e.Err
}
