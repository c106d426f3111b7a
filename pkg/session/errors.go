package session

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by Send once the session has ended, whether the
// abort was local (Abort) or server-issued. No network call is made.
var ErrAborted = errors.New("session aborted")

// TransportError wraps a network failure during a round trip. Session
// state (message counter, nonce) is unchanged when one is returned.
type TransportError struct {
	// Op names the failed operation ("register", "send").
	Op string

	// MsgID is the message counter at the time of the failure (0 for
	// registration).
	MsgID int

	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.MsgID > 0 {
		return fmt.Sprintf("transport failure during %s of message %d: %v", e.Op, e.MsgID, e.Err)
	}
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *TransportError) Unwrap() error {
	return e.Err
}
