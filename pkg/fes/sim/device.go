// Package sim implements a virtual stimulation board.
//
// A Device is an in-memory transport which acknowledges every command the
// way a board does and keeps the resulting board state, so a Stimulator
// can run on a bench without hardware. Faults can be injected per command.
package sim

import (
	"errors"
	"sync"

	"github.com/robotalks/fes.go/pkg/fes/wire"
)

// ErrClosed is returned on I/O with a closed Device.
var ErrClosed = errors.New("device not open")

// Device error codes reported by the board.
const (
	CodeBadFrame    byte = 0x01
	CodeBadChecksum byte = 0x02
	CodeUnsupported byte = 0x03
	CodeUnknownID   byte = 0x04
	CodeInjected    byte = 0xEE
)

// Fault is the misbehavior of the Device when acknowledging one command.
type Fault int

// Faults.
const (
	// FaultNone acknowledges normally.
	FaultNone Fault = iota
	// FaultErrorReport replies with an error report.
	FaultErrorReport
	// FaultChecksum replies with a corrupted checksum.
	FaultChecksum
	// FaultTruncated replies with a frame cut short.
	FaultTruncated
	// FaultSilent does not reply at all.
	FaultSilent
)

// FaultFunc decides the fault to apply on a received command.
type FaultFunc func(f *wire.Frame) Fault

// FailNth injects fault on the n-th (1 based) command of the kind.
func FailNth(kind wire.Kind, n int, fault Fault) FaultFunc {
	var count int
	return func(f *wire.Frame) Fault {
		if wire.Classify(f) != kind {
			return FaultNone
		}
		if count++; count == n {
			return fault
		}
		return FaultNone
	}
}

// Ops counts calls on the transport.
type Ops struct {
	Open      int
	Configure int
	Read      int
	Write     int
	Close     int
}

// Total returns the number of calls.
func (o Ops) Total() int {
	return o.Open + o.Configure + o.Read + o.Write + o.Close
}

// ChannelLimits are the ceilings configured by a channel-setup command.
type ChannelLimits struct {
	MaxAmplitude  byte
	MaxPulseWidth uint16
}

// Event is an event as kept by the board.
type Event struct {
	ID         byte
	ScheduleID byte
	Channel    byte
	Delay      byte
	Priority   byte
	Zone       byte
	Amplitude  byte
	PulseWidth uint16
}

// Device is a virtual board.
type Device struct {
	// Route is the route the board answers on.
	Route wire.Route
	// OpenErr and ConfigureErr fail the corresponding calls.
	OpenErr      error
	ConfigureErr error
	// FailOn injects faults on received commands.
	FailOn FaultFunc

	lock     sync.Mutex
	port     string
	open     bool
	ops      Ops
	parser   wire.Parser
	out      []byte
	received [][]byte

	channels     map[byte]ChannelLimits
	nextSchedule byte
	scheduleID   byte
	scheduled    bool
	running      bool
	syncByte     byte
	duration     uint16
	nextEvent    byte
	events       map[byte]*Event
}

// NewDevice creates a Device on the default route.
func NewDevice() *Device {
	return &Device{
		Route:        wire.DefaultRoute,
		channels:     make(map[byte]ChannelLimits),
		events:       make(map[byte]*Event),
		nextSchedule: 1,
	}
}

// Open implements fes.Transport.
func (d *Device) Open(port string) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ops.Open++
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.port, d.open = port, true
	return nil
}

// Configure implements fes.Transport.
func (d *Device) Configure() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ops.Configure++
	if !d.open {
		return ErrClosed
	}
	if d.ConfigureErr != nil {
		return d.ConfigureErr
	}
	d.out = nil
	d.parser.Reset()
	return nil
}

// Close implements io.Closer.
func (d *Device) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ops.Close++
	if !d.open {
		return ErrClosed
	}
	d.open = false
	d.out = nil
	d.parser.Reset()
	return nil
}

// Read implements io.Reader. It never blocks: nothing pending reads as a
// timeout.
func (d *Device) Read(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ops.Read++
	if !d.open {
		return 0, ErrClosed
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}

// Write implements io.Writer. Every complete command is acknowledged
// immediately.
func (d *Device) Write(p []byte) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.ops.Write++
	if !d.open {
		return 0, ErrClosed
	}
	for _, c := range p {
		if raw := d.parser.Parse(c); raw != nil {
			d.handle(raw)
		}
	}
	return len(p), nil
}

// Inject queues raw bytes as if sent by the board.
func (d *Device) Inject(raw ...byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.out = append(d.out, raw...)
}

// SetNextScheduleID sets the id assigned by the next scheduler-setup.
func (d *Device) SetNextScheduleID(id byte) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.nextSchedule = id
}

// Port returns the port name the Device was opened with.
func (d *Device) Port() string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.port
}

// IsOpen indicates the Device is open.
func (d *Device) IsOpen() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.open
}

// Ops returns the calls counted so far.
func (d *Device) Ops() Ops {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.ops
}

// Received returns raw bytes of every command received.
func (d *Device) Received() [][]byte {
	d.lock.Lock()
	defer d.lock.Unlock()
	return append([][]byte(nil), d.received...)
}

// Count returns the number of commands of the kind received.
func (d *Device) Count(kind wire.Kind) int {
	d.lock.Lock()
	defer d.lock.Unlock()
	var n int
	for _, raw := range d.received {
		if f, err := wire.Decode(raw); err == nil && wire.Classify(f) == kind {
			n++
		}
	}
	return n
}

// ClearReceived forgets the commands received.
func (d *Device) ClearReceived() {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.received = nil
}

// Channel returns the limits of a channel set up on the board.
func (d *Device) Channel(index byte) (ChannelLimits, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	l, ok := d.channels[index]
	return l, ok
}

// Schedule returns the current schedule id and whether one exists.
func (d *Device) Schedule() (byte, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.scheduleID, d.scheduled
}

// Timing returns the sync byte and tick duration of the schedule.
func (d *Device) Timing() (byte, uint16) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.syncByte, d.duration
}

// Running indicates the schedule is synchronized and not halted.
func (d *Device) Running() bool {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.running
}

// Events returns a copy of the events on the board.
func (d *Device) Events() []Event {
	d.lock.Lock()
	defer d.lock.Unlock()
	events := make([]Event, 0, len(d.events))
	for id := byte(1); id < d.nextEvent; id++ {
		if e := d.events[id]; e != nil {
			events = append(events, *e)
		}
	}
	return events
}

// EventOn returns the event stimulating a channel.
func (d *Device) EventOn(channel byte) (Event, bool) {
	d.lock.Lock()
	defer d.lock.Unlock()
	for _, e := range d.events {
		if e.Channel == channel {
			return *e, true
		}
	}
	return Event{}, false
}
