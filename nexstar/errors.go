package nexstar

import (
	"errors"
	"fmt"
	"math"
)

// ErrTimeout is wrapped by a TransportError when the mount did not send the
// expected number of bytes within the read timeout.
var ErrTimeout = errors.New("read timed out")

// ErrNoTransformer is returned by operations that need a coordinate
// transform when the Mount was created without one.
var ErrNoTransformer = errors.New("no coordinate transformer configured")

// TransportError reports a failed write or read on the underlying channel.
type TransportError struct {
	Op  string // "write" or "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nexstar: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError reports a response that failed the command's validator.
// Response holds the raw bytes as read from the mount.
type ProtocolError struct {
	Command  byte
	Response []byte
	Reason   string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("nexstar: command %q failed: %s (response %q)", e.Command, e.Reason, e.Response)
}

// RangeError reports a caller-supplied value the protocol cannot carry.
// It is always returned before anything is written to the mount.
type RangeError struct {
	Param    string
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("nexstar: %s %v out of range [%v, %v]", e.Param, e.Value, e.Min, e.Max)
}

func checkRange(param string, value, min, max float64) error {
	if math.IsNaN(value) || value < min || value > max {
		return &RangeError{Param: param, Value: value, Min: min, Max: max}
	}
	return nil
}
