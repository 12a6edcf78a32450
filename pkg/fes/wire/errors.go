package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated indicates fewer bytes than a frame header.
	ErrTruncated = errors.New("truncated frame")
	// ErrNoResponse indicates nothing was received before the read timed out.
	ErrNoResponse = errors.New("no response")
)

// LengthError reports a body whose size differs from the header.
type LengthError struct {
	Declared int
	Actual   int
}

// Error implements error.
func (e *LengthError) Error() string {
	return fmt.Sprintf("frame length mismatch: declared %d, got %d", e.Declared, e.Actual)
}

// ChecksumError reports a checksum mismatch.
type ChecksumError struct {
	Want byte
	Got  byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: want 0x%02X, got 0x%02X", e.Want, e.Got)
}

// RouteError reports a frame addressed to or from another board.
type RouteError struct {
	Want Route
	Got  Route
}

// Error implements error.
func (e *RouteError) Error() string {
	return fmt.Sprintf("unexpected route 0x%02X/0x%02X, want 0x%02X/0x%02X",
		e.Got.Sync, e.Got.Address, e.Want.Sync, e.Want.Address)
}

// DeviceError wraps the error code reported by a board.
type DeviceError struct {
	Code byte
}

// Error implements error.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("device error 0x%02X", e.Code)
}
