package fes

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/wire"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

// SchedulerState is the state of a board schedule.
type SchedulerState int

// Scheduler states.
const (
	// SchedulerUninitialized means no schedule exists on the board.
	SchedulerUninitialized SchedulerState = iota
	// SchedulerIdle means the schedule exists but has not been synchronized.
	SchedulerIdle
	// SchedulerRunning means the schedule has been started.
	SchedulerRunning
	// SchedulerHalted means the schedule was halted and can be synchronized again.
	SchedulerHalted
)

var schedulerStateNames = [...]string{"uninitialized", "idle", "running", "halted"}

// String implements fmt.Stringer.
func (s SchedulerState) String() string {
	if int(s) < len(schedulerStateNames) {
		return schedulerStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultEventDelay is the delay in ms of new events from the schedule start.
const DefaultEventDelay byte = 5

// Scheduler owns the schedule of one board and the events on it.
type Scheduler struct {
	// EventDelay is used by events created afterwards.
	EventDelay byte

	board      *board
	state      SchedulerState
	sync       byte
	duration   uint16
	scheduleID byte
	nextID     byte
	events     []*Event
	byChannel  map[ChannelIndex]*Event
}

func newScheduler(b *board) *Scheduler {
	return &Scheduler{
		EventDelay: DefaultEventDelay,
		board:      b,
		byChannel:  make(map[ChannelIndex]*Event),
	}
}

// State returns the schedule state.
func (s *Scheduler) State() SchedulerState { return s.state }

// ScheduleID returns the id assigned by the board, valid once created.
func (s *Scheduler) ScheduleID() byte { return s.scheduleID }

// SyncByte returns the sync byte of the schedule.
func (s *Scheduler) SyncByte() byte { return s.sync }

// Duration returns the tick duration in ms.
func (s *Scheduler) Duration() uint16 { return s.duration }

// Events returns the events in creation order.
func (s *Scheduler) Events() []*Event {
	return append([]*Event(nil), s.events...)
}

// Event returns the event of a channel.
func (s *Scheduler) Event(index ChannelIndex) (*Event, bool) {
	e, ok := s.byChannel[index]
	return e, ok
}

// Amplitude returns the requested amplitude of a channel.
func (s *Scheduler) Amplitude(index ChannelIndex) (uint8, bool) {
	if e, ok := s.byChannel[index]; ok {
		return e.Amplitude(), true
	}
	return 0, false
}

// PulseWidth returns the requested pulse width of a channel.
func (s *Scheduler) PulseWidth(index ChannelIndex) (uint16, bool) {
	if e, ok := s.byChannel[index]; ok {
		return e.PulseWidth(), true
	}
	return 0, false
}

// Create performs the schedule handshake. On success the board assigned
// schedule id is kept and the scheduler becomes idle. A scheduler already
// created returns ErrInvalidState without sending anything.
func (s *Scheduler) Create(sync byte, duration uint16) error {
	if s.state != SchedulerUninitialized {
		return ErrInvalidState
	}
	res, err := s.board.exchange(wire.SchedulerSetup(s.board.route, sync, duration))
	if err == nil && len(res.Frame.Data()) == 0 {
		err = ErrEmptyReply
	}
	if err != nil {
		return &HandshakeError{Board: s.board.index, Op: "scheduler-setup", Err: err}
	}
	s.sync, s.duration = sync, duration
	s.scheduleID = res.Frame.Data()[0]
	s.reset()
	s.state = SchedulerIdle
	glog.Infof("board %d: schedule %d created, sync 0x%02X, %d ms", s.board.index, s.scheduleID, sync, duration)
	return nil
}

func (s *Scheduler) reset() {
	s.events = nil
	s.byChannel = make(map[ChannelIndex]*Event)
	s.nextID = 1
}

// AddEvent creates an event for the channel on the board. The event is
// kept only if the board acknowledged it. The event id is consumed once
// the create command is written unless the board rejects it with an
// error report: a lost or corrupted acknowledgement may hide an event
// the board created.
func (s *Scheduler) AddEvent(ch *Channel, typ EventType) (*Event, error) {
	switch s.state {
	case SchedulerUninitialized:
		return nil, ErrNoSchedule
	case SchedulerIdle, SchedulerRunning, SchedulerHalted:
	default:
		return nil, ErrInvalidState
	}
	if _, exists := s.byChannel[ch.Index()]; exists {
		return nil, ErrDuplicateEvent
	}
	e := newEvent(s.board, s.scheduleID, s.nextID, ch, s.EventDelay, typ)
	taken, err := e.create()
	if taken {
		s.nextID++
	}
	if err != nil {
		return nil, err
	}
	s.events = append(s.events, e)
	s.byChannel[ch.Index()] = e
	return e, nil
}

// AddEvents adds one event per channel and stops at the first failure.
// Events already added are kept.
func (s *Scheduler) AddEvents(typ EventType, channels ...*Channel) error {
	for _, ch := range channels {
		if _, err := s.AddEvent(ch, typ); err != nil {
			return err
		}
	}
	return nil
}

// Sync starts the schedule.
func (s *Scheduler) Sync() error {
	switch s.state {
	case SchedulerUninitialized:
		return ErrNoSchedule
	case SchedulerRunning:
		return nil
	}
	if _, err := s.board.exchange(wire.SchedulerSync(s.board.route, s.sync)); err != nil {
		return err
	}
	s.state = SchedulerRunning
	return nil
}

func (s *Scheduler) lookup(ch *Channel) (*Event, error) {
	if e, ok := s.byChannel[ch.Index()]; ok {
		return e, nil
	}
	return nil, &ChannelLookupError{Name: ch.Name()}
}

// SetAmplitude changes the requested amplitude of a channel.
func (s *Scheduler) SetAmplitude(ch *Channel, v uint8) error {
	e, err := s.lookup(ch)
	if err != nil {
		return err
	}
	return e.SetAmplitude(v)
}

// SetPulseWidth changes the requested pulse width of a channel.
func (s *Scheduler) SetPulseWidth(ch *Channel, v uint16) error {
	e, err := s.lookup(ch)
	if err != nil {
		return err
	}
	return e.SetPulseWidth(v)
}

// Update flushes the changed parameters of every event. All events are
// updated even if some fail.
func (s *Scheduler) Update() error {
	if s.state == SchedulerUninitialized {
		return nil
	}
	var errs fx.AggregatedError
	for _, e := range s.events {
		if e.State() == EventDeleted {
			continue
		}
		errs.Add(e.Update())
	}
	return errs.Aggregate()
}

// Halt stops the schedule. The scheduler is halted whatever the board replies.
func (s *Scheduler) Halt() error {
	if s.state == SchedulerUninitialized {
		return nil
	}
	_, err := s.board.exchange(wire.SchedulerHalt(s.board.route, s.scheduleID))
	s.state = SchedulerHalted
	return err
}

// Disable halts the schedule, deletes every event then the schedule. All
// steps are attempted and the scheduler ends uninitialized regardless.
func (s *Scheduler) Disable() error {
	if s.state == SchedulerUninitialized {
		return nil
	}
	var errs fx.AggregatedError
	errs.Add(s.Halt())
	for _, e := range s.events {
		if e.State() != EventDeleted {
			errs.Add(e.Delete())
		}
	}
	if _, err := s.board.exchange(wire.SchedulerDelete(s.board.route, s.scheduleID)); err != nil {
		errs.Add(err)
	}
	s.reset()
	s.state = SchedulerUninitialized
	return errs.Aggregate()
}
