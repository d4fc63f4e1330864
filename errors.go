package mdnsoffload

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat matches any FormatError.
	ErrFormat = errors.New("malformed response packet")

	// ErrOwnershipMismatch is returned when a removal names an intent
	// that does not exist or is held by a different owner.
	ErrOwnershipMismatch = errors.New("no matching intent for owner")

	// ErrCapacityExceeded is returned when the device declines an
	// addition because it is full.
	ErrCapacityExceeded = errors.New("device capacity exceeded")

	// ErrDeviceDisconnected is returned when the device link is down.
	ErrDeviceDisconnected = errors.New("device not connected")

	// ErrInvalidRequest is returned for requests missing required
	// fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownOwner is returned when a request carries an owner token
	// with no open session.
	ErrUnknownOwner = errors.New("unknown owner")
)

// FormatError reports a malformed response packet and the offset at
// which parsing stopped.
type FormatError struct {
	Offset int
	Reason string
}

func (e FormatError) Error() string {
	return fmt.Sprintf("response packet badly formed at offset %d: %s", e.Offset, e.Reason)
}

// Is reports whether target is ErrFormat.
func (e FormatError) Is(target error) bool {
	return target == ErrFormat
}

// DeviceError wraps a failed call into the companion device.
type DeviceError struct {
	Op  string
	Err error
}

func (e DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e DeviceError) Unwrap() error {
	return e.Err
}
