package fes

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/wire"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

// EventType is the kind of event scheduled on a board.
type EventType byte

// StimEvent is a stimulation event.
const StimEvent EventType = 0x03

// EventState is the synchronization state of an Event with the board.
type EventState int

// Event states.
const (
	// EventUncreated means the board does not know the event yet.
	EventUncreated EventState = iota
	// EventActive means the board has acknowledged every parameter.
	EventActive
	// EventEdited means some parameters changed since last acknowledged.
	EventEdited
	// EventDeleted means the board has deleted the event.
	EventDeleted
)

var eventStateNames = [...]string{"uncreated", "active", "edited", "deleted"}

// String implements fmt.Stringer.
func (s EventState) String() string {
	if int(s) < len(eventStateNames) {
		return eventStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// editOrder is the order edits are sent in on Update.
var editOrder = [...]wire.EditParam{
	wire.EditAmplitude,
	wire.EditPulseWidth,
	wire.EditPriority,
	wire.EditZone,
}

type eventParam struct {
	value uint16
	sent  uint16
}

func (p eventParam) dirty() bool {
	return p.value != p.sent
}

// Event is the live stimulation definition of one channel on a schedule.
type Event struct {
	board      *board
	channel    *Channel
	scheduleID byte
	id         byte
	delay      byte
	eventType  EventType
	state      EventState

	params [len(editOrder)]eventParam
}

func newEvent(b *board, scheduleID, id byte, ch *Channel, delay byte, typ EventType) *Event {
	return &Event{
		board:      b,
		channel:    ch,
		scheduleID: scheduleID,
		id:         id,
		delay:      delay,
		eventType:  typ,
	}
}

// Channel returns the channel the event stimulates.
func (e *Event) Channel() *Channel { return e.channel }

// ID returns the event id.
func (e *Event) ID() byte { return e.id }

// ScheduleID returns the id of the schedule the event belongs to.
func (e *Event) ScheduleID() byte { return e.scheduleID }

// State returns the synchronization state.
func (e *Event) State() EventState { return e.state }

// Amplitude returns the requested amplitude, which may not be
// acknowledged yet.
func (e *Event) Amplitude() uint8 { return uint8(e.param(wire.EditAmplitude).value) }

// PulseWidth returns the requested pulse width.
func (e *Event) PulseWidth() uint16 { return e.param(wire.EditPulseWidth).value }

// Priority returns the requested priority.
func (e *Event) Priority() byte { return byte(e.param(wire.EditPriority).value) }

// Zone returns the requested zone.
func (e *Event) Zone() byte { return byte(e.param(wire.EditZone).value) }

// Dirty reports whether any parameter differs from what the board acknowledged.
func (e *Event) Dirty() bool {
	for _, p := range e.params {
		if p.dirty() {
			return true
		}
	}
	return false
}

func (e *Event) param(which wire.EditParam) *eventParam {
	return &e.params[which-1]
}

func (e *Event) usable() bool {
	return e.state == EventActive || e.state == EventEdited
}

// Create sends the event to the board with the current parameters.
func (e *Event) Create() error {
	_, err := e.create()
	return err
}

// create also reports whether the board may have taken the id: the
// command was written and not rejected with an error report.
func (e *Event) create() (bool, error) {
	if e.state != EventUncreated {
		return false, ErrInvalidState
	}
	f := wire.EventCreate(e.board.route, wire.EventParams{
		ScheduleID: e.scheduleID,
		Delay:      e.delay,
		EventType:  byte(e.eventType),
		Channel:    byte(e.channel.Index()),
		Priority:   e.Priority(),
		PulseWidth: e.PulseWidth(),
		Amplitude:  e.Amplitude(),
		Zone:       e.Zone(),
	})
	if err := e.board.send(f); err != nil {
		return false, &HandshakeError{Board: e.board.index, Op: "event-create " + e.channel.Name(), Err: err}
	}
	res, err := e.board.awaitReply(f)
	if err == nil {
		if data := res.Frame.Data(); len(data) > 0 && data[0] != e.id {
			err = fmt.Errorf("%w: event id %d, expected %d", ErrUnexpectedReply, data[0], e.id)
		}
	}
	if err != nil {
		var rejected *wire.DeviceError
		return !errors.As(err, &rejected), &HandshakeError{Board: e.board.index, Op: "event-create " + e.channel.Name(), Err: err}
	}
	for i := range e.params {
		e.params[i].sent = e.params[i].value
	}
	e.state = EventActive
	glog.V(1).Infof("event %d created for %s on schedule %d", e.id, e.channel, e.scheduleID)
	return true, nil
}

func (e *Event) set(which wire.EditParam, v uint16) error {
	if !e.usable() {
		return ErrInvalidState
	}
	e.param(which).value = v
	if e.Dirty() {
		e.state = EventEdited
	} else {
		e.state = EventActive
	}
	return nil
}

// SetAmplitude changes the requested amplitude. Nothing is sent until Update.
func (e *Event) SetAmplitude(v uint8) error { return e.set(wire.EditAmplitude, uint16(v)) }

// SetPulseWidth changes the requested pulse width. Nothing is sent until Update.
func (e *Event) SetPulseWidth(v uint16) error { return e.set(wire.EditPulseWidth, v) }

// SetPriority changes the requested priority. Nothing is sent until Update.
func (e *Event) SetPriority(v byte) error { return e.set(wire.EditPriority, uint16(v)) }

// SetZone changes the requested zone. Nothing is sent until Update.
func (e *Event) SetZone(v byte) error { return e.set(wire.EditZone, uint16(v)) }

// Update sends one edit frame per parameter changed since it was last
// acknowledged. A failed edit does not prevent the others; the failed
// parameter stays dirty.
func (e *Event) Update() error {
	if !e.usable() {
		return ErrInvalidState
	}
	var errs fx.AggregatedError
	for _, which := range editOrder {
		p := e.param(which)
		if !p.dirty() {
			continue
		}
		value := p.value
		if _, err := e.board.exchange(wire.EventEdit(e.board.route, which, e.id, value)); err != nil {
			errs.Add(err)
			continue
		}
		p.sent = value
	}
	if !e.Dirty() {
		e.state = EventActive
	}
	return errs.Aggregate()
}

// Delete removes the event from the board.
func (e *Event) Delete() error {
	if !e.usable() {
		return ErrInvalidState
	}
	if _, err := e.board.exchange(wire.EventDelete(e.board.route, e.id)); err != nil {
		return err
	}
	e.state = EventDeleted
	return nil
}
