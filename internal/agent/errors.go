package agent

import (
	"errors"
	"fmt"
)

// ErrAuthentication indicates a missing or unknown agent credential.
var ErrAuthentication = errors.New("agent authentication failed")

// MalformedMessageError wraps an inbound frame that could not be decoded.
type MalformedMessageError struct {
	Raw []byte
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed agent message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}
