package wire

import (
	"encoding/binary"
	"io"
)

// Type is the message type byte of a frame.
type Type byte

// Message types.
const (
	TypeChannelSetup    Type = 0x47
	TypeSchedulerSetup  Type = 0x10
	TypeEventCreate     Type = 0x15
	TypeEventEdit       Type = 0x19
	TypeEventDelete     Type = 0x17
	TypeSchedulerSync   Type = 0x1B
	TypeSchedulerHalt   Type = 0x04
	TypeSchedulerDelete Type = 0x12
	// TypeErrorReport is sent by a board in place of an acknowledgement
	// when it rejects a command.
	TypeErrorReport Type = 0x5A
)

// EditParam selects the single parameter changed by an event-edit message.
type EditParam byte

// Edit sub-types, carried in the first data byte of an event-edit frame.
const (
	EditAmplitude  EditParam = 0x01
	EditPulseWidth EditParam = 0x02
	EditPriority   EditParam = 0x03
	EditZone       EditParam = 0x04
)

// HeaderLen is the length of the frame header.
const HeaderLen = 4

// MaxDataLen is the largest data length expressible in the header.
const MaxDataLen = 0xff

// Route is the sync marker and board address pair carried by every frame.
type Route struct {
	Sync    byte
	Address byte
}

// DefaultRoute is the route used by the boards out of the box.
var DefaultRoute = Route{Sync: 0x04, Address: 0x80}

// Frame is one protocol message.
type Frame struct {
	Sync    byte
	Address byte
	Type    Type
	// Body holds the data bytes followed by the checksum byte.
	Body []byte
}

// New creates a frame with a computed checksum.
func New(route Route, typ Type, data ...byte) *Frame {
	if len(data) > MaxDataLen {
		panic("frame data too long")
	}
	f := &Frame{
		Sync:    route.Sync,
		Address: route.Address,
		Type:    typ,
		Body:    make([]byte, len(data)+1),
	}
	copy(f.Body, data)
	f.Body[len(data)] = f.Sum()
	return f
}

// Route returns the sync/address pair of the frame.
func (f *Frame) Route() Route {
	return Route{Sync: f.Sync, Address: f.Address}
}

// Data returns the body without the checksum.
func (f *Frame) Data() []byte {
	if len(f.Body) == 0 {
		return nil
	}
	return f.Body[:len(f.Body)-1]
}

// Checksum returns the checksum byte carried by the frame.
func (f *Frame) Checksum() byte {
	if len(f.Body) == 0 {
		return 0
	}
	return f.Body[len(f.Body)-1]
}

// Sum computes the checksum the frame should carry.
func (f *Frame) Sum() byte {
	data := f.Data()
	b := make([]byte, 0, HeaderLen+len(data))
	b = append(b, f.Sync, f.Address, byte(f.Type), byte(len(data)))
	return Checksum(append(b, data...))
}

// Bytes returns encoded bytes for sending.
func (f *Frame) Bytes() []byte {
	b := make([]byte, HeaderLen+len(f.Body))
	b[0], b[1], b[2] = f.Sync, f.Address, byte(f.Type)
	b[3] = byte(len(f.Data()))
	copy(b[HeaderLen:], f.Body)
	return b
}

// WriteTo implements io.WriterTo.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.Bytes())
	return int64(n), err
}

// Checksum computes the one's complement of the end-around-carry sum of b.
func Checksum(b []byte) byte {
	var sum int
	for _, c := range b {
		sum += int(c)
	}
	sum = (sum & 0xff) + (sum >> 8)
	return byte(sum) ^ 0xff
}

// Decode parses raw bytes of exactly one frame. The length declared in
// the header must match the bytes present.
func Decode(b []byte) (*Frame, error) {
	if len(b) < HeaderLen {
		return nil, ErrTruncated
	}
	declared := int(b[3])
	if actual := len(b) - HeaderLen - 1; actual != declared {
		return nil, &LengthError{Declared: declared, Actual: actual}
	}
	f := &Frame{
		Sync:    b[0],
		Address: b[1],
		Type:    Type(b[2]),
		Body:    make([]byte, declared+1),
	}
	copy(f.Body, b[HeaderLen:])
	return f, nil
}

// EventParams are the parameters carried by an event-create frame.
type EventParams struct {
	ScheduleID byte
	Delay      byte
	EventType  byte
	Channel    byte
	Priority   byte
	PulseWidth uint16
	Amplitude  byte
	Zone       byte
}

const eventCreateLen = 9

// ChannelSetup encodes a channel-setup command.
func ChannelSetup(route Route, channel, maxAmplitude byte, maxPulseWidth uint16) *Frame {
	data := []byte{channel, maxAmplitude, 0, 0}
	binary.BigEndian.PutUint16(data[2:], maxPulseWidth)
	return New(route, TypeChannelSetup, data...)
}

// SchedulerSetup encodes the scheduler handshake command. duration is in
// milliseconds.
func SchedulerSetup(route Route, sync byte, duration uint16) *Frame {
	data := []byte{sync, 0, 0}
	binary.BigEndian.PutUint16(data[1:], duration)
	return New(route, TypeSchedulerSetup, data...)
}

// EventCreate encodes an event-create command.
func EventCreate(route Route, p EventParams) *Frame {
	data := []byte{
		p.ScheduleID, p.Delay, p.EventType, p.Channel, p.Priority,
		0, 0, p.Amplitude, p.Zone,
	}
	binary.BigEndian.PutUint16(data[5:], p.PulseWidth)
	return New(route, TypeEventCreate, data...)
}

// ParseEventCreate extracts parameters from an event-create frame.
func ParseEventCreate(f *Frame) (p EventParams, ok bool) {
	data := f.Data()
	if f.Type != TypeEventCreate || len(data) != eventCreateLen {
		return
	}
	p.ScheduleID, p.Delay, p.EventType, p.Channel, p.Priority = data[0], data[1], data[2], data[3], data[4]
	p.PulseWidth = binary.BigEndian.Uint16(data[5:])
	p.Amplitude, p.Zone = data[7], data[8]
	return p, true
}

// EventEdit encodes an event-edit command changing one parameter.
func EventEdit(route Route, param EditParam, eventID byte, value uint16) *Frame {
	data := []byte{byte(param), eventID, 0, 0}
	binary.BigEndian.PutUint16(data[2:], value)
	return New(route, TypeEventEdit, data...)
}

// ParseEventEdit extracts the fields of an event-edit frame.
func ParseEventEdit(f *Frame) (param EditParam, eventID byte, value uint16, ok bool) {
	data := f.Data()
	if f.Type != TypeEventEdit || len(data) != 4 {
		return
	}
	return EditParam(data[0]), data[1], binary.BigEndian.Uint16(data[2:]), true
}

// EventDelete encodes an event-delete command.
func EventDelete(route Route, eventID byte) *Frame {
	return New(route, TypeEventDelete, eventID)
}

// SchedulerSync encodes the synchronization message which starts a schedule.
func SchedulerSync(route Route, sync byte) *Frame {
	return New(route, TypeSchedulerSync, sync)
}

// SchedulerHalt encodes a scheduler-halt command.
func SchedulerHalt(route Route, scheduleID byte) *Frame {
	return New(route, TypeSchedulerHalt, scheduleID)
}

// SchedulerDelete encodes a scheduler-delete command.
func SchedulerDelete(route Route, scheduleID byte) *Frame {
	return New(route, TypeSchedulerDelete, scheduleID)
}

// ErrorReport encodes a board error report.
func ErrorReport(route Route, code byte) *Frame {
	return New(route, TypeErrorReport, code)
}
