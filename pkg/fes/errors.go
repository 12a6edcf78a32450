package fes

import (
	"errors"
	"fmt"

	"github.com/robotalks/fes.go/pkg/fes/wire"
)

var (
	// ErrNotEnabled indicates the Stimulator has not been enabled.
	ErrNotEnabled = errors.New("stimulator not enabled")
	// ErrInvalidState indicates an operation not allowed in the current
	// state of an Event or Scheduler.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoSchedule indicates the board has no schedule yet.
	ErrNoSchedule = errors.New("no schedule")
	// ErrDuplicateEvent indicates the channel already has an event.
	ErrDuplicateEvent = errors.New("channel already has an event")
	// ErrUnexpectedReply indicates a valid frame acknowledging another command.
	ErrUnexpectedReply = errors.New("unexpected reply")
	// ErrEmptyReply indicates an acknowledgement without the expected data.
	ErrEmptyReply = errors.New("empty reply")
)

// Port operations reported by PortError.
const (
	OpOpen      = "open"
	OpConfigure = "configure"
)

// PortError reports a failure to open or configure a transport.
type PortError struct {
	Port string
	Op   string
	Err  error
}

// Error implements error.
func (e *PortError) Error() string {
	return fmt.Sprintf("%s port %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the underlying error.
func (e *PortError) Unwrap() error { return e.Err }

// HandshakeError reports a synchronous setup exchange which was not
// acknowledged properly.
type HandshakeError struct {
	Board int
	Op    string
	Err   error
}

// Error implements error.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("board %d: %s handshake failed: %v", e.Board, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *HandshakeError) Unwrap() error { return e.Err }

// FrameError reports a frame exchange which failed: a transport error, a
// missing response or an invalid frame.
type FrameError struct {
	Board int
	Raw   []byte
	Err   error
}

// Error implements error.
func (e *FrameError) Error() string {
	if len(e.Raw) == 0 {
		return fmt.Sprintf("board %d: %v", e.Board, e.Err)
	}
	return fmt.Sprintf("board %d: %v %s", e.Board, e.Err, wire.Format(e.Raw))
}

// Unwrap returns the underlying error.
func (e *FrameError) Unwrap() error { return e.Err }

// ChannelLookupError reports an operation naming an unknown channel.
type ChannelLookupError struct {
	Name string
}

// Error implements error.
func (e *ChannelLookupError) Error() string {
	return fmt.Sprintf("channel %q not found", e.Name)
}

// PreconditionError reports an operation rejected before anything was
// sent, by default because the Stimulator is disabled.
type PreconditionError struct {
	Op string
	// Err is the unmet precondition, ErrNotEnabled if nil.
	Err error
}

// Error implements error.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Unwrap())
}

// Unwrap returns the unmet precondition.
func (e *PreconditionError) Unwrap() error {
	if e.Err == nil {
		return ErrNotEnabled
	}
	return e.Err
}
