package fes

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/wire"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

// MaxBoards is the number of boards a Stimulator can drive.
const MaxBoards = 2

// DefaultTickDuration is the schedule tick in ms used when no positive
// frequency is given.
const DefaultTickDuration = 50

// Config defines the construction parameters of a Stimulator.
type Config struct {
	Name string
	// Ports lists one port per board.
	Ports    []string
	Channels []*Channel
	// NewTransport creates the transport of each port.
	NewTransport TransportFactory
	// Route addresses the boards, DefaultRoute if zero.
	Route wire.Route
	// EventDelay overrides DefaultEventDelay if not zero.
	EventDelay byte
	// ReplyTimeout and ReplyTimeoutPerByte override the reply deadline
	// of commands if not zero.
	ReplyTimeout        time.Duration
	ReplyTimeoutPerByte time.Duration
}

// ChannelState is the externally visible state of one channel.
type ChannelState struct {
	Name          string
	Index         ChannelIndex
	Board         int
	Amplitude     uint8
	PulseWidth    uint16
	MaxAmplitude  uint8
	MaxPulseWidth uint16
}

// Stimulator drives the boards of one stimulation device.
type Stimulator struct {
	name     string
	boards   []*board
	channels []*Channel
	byName   map[string]*Channel
	enabled  atomic.Bool

	lock     sync.RWMutex
	snapshot []ChannelState
}

// New validates the configuration and creates a disabled Stimulator.
func New(conf Config) (*Stimulator, error) {
	if n := len(conf.Ports); n == 0 || n > MaxBoards {
		return nil, fmt.Errorf("stimulator %s: %d ports configured, expect 1 to %d", conf.Name, n, MaxBoards)
	}
	if conf.NewTransport == nil {
		return nil, errors.New("stimulator " + conf.Name + ": no transport factory")
	}
	route := conf.Route
	if route == (wire.Route{}) {
		route = wire.DefaultRoute
	}
	s := &Stimulator{
		name:     conf.Name,
		channels: conf.Channels,
		byName:   make(map[string]*Channel),
		snapshot: make([]ChannelState, len(conf.Channels)),
	}
	indices := make(map[ChannelIndex]string)
	for _, ch := range conf.Channels {
		if _, exists := s.byName[ch.Name()]; exists {
			return nil, fmt.Errorf("stimulator %s: duplicated channel name %q", conf.Name, ch.Name())
		}
		if !ch.Index().IsValid() {
			return nil, fmt.Errorf("stimulator %s: channel %q has invalid index %d", conf.Name, ch.Name(), ch.Index())
		}
		if other, exists := indices[ch.Index()]; exists {
			return nil, fmt.Errorf("stimulator %s: channels %q and %q share %s", conf.Name, other, ch.Name(), ch.Index())
		}
		if ch.Board() < 0 || ch.Board() >= len(conf.Ports) {
			return nil, fmt.Errorf("stimulator %s: channel %q on board %d, only %d ports", conf.Name, ch.Name(), ch.Board(), len(conf.Ports))
		}
		s.byName[ch.Name()] = ch
		indices[ch.Index()] = ch.Name()
	}
	for n, port := range conf.Ports {
		b := newBoard(n, port, route, conf.NewTransport(port))
		if conf.EventDelay != 0 {
			b.scheduler.EventDelay = conf.EventDelay
		}
		if conf.ReplyTimeout != 0 {
			b.replyTimeout = conf.ReplyTimeout
		}
		if conf.ReplyTimeoutPerByte != 0 {
			b.replyTimeoutPerByte = conf.ReplyTimeoutPerByte
		}
		s.boards = append(s.boards, b)
	}
	s.refreshSnapshot()
	return s, nil
}

// Name returns the name of the Stimulator.
func (s *Stimulator) Name() string { return s.name }

// IsEnabled indicates the boards are enabled. It is safe to call from any
// goroutine.
func (s *Stimulator) IsEnabled() bool { return s.enabled.Load() }

// Channels returns the configured channels.
func (s *Stimulator) Channels() []*Channel {
	return append([]*Channel(nil), s.channels...)
}

// Channel finds a channel by name.
func (s *Stimulator) Channel(name string) (*Channel, bool) {
	ch, ok := s.byName[name]
	return ch, ok
}

// NumBoards returns the number of boards.
func (s *Stimulator) NumBoards() int { return len(s.boards) }

// Scheduler returns the scheduler of a board.
func (s *Stimulator) Scheduler(board int) *Scheduler {
	if board < 0 || board >= len(s.boards) {
		return nil
	}
	return s.boards[board].scheduler
}

// Enable opens every port and sets up every channel. On any failure the
// Stimulator is disabled again and the error returned.
func (s *Stimulator) Enable() error {
	if s.enabled.Load() {
		glog.Warningf("stimulator %s already enabled", s.name)
		return nil
	}
	for _, b := range s.boards {
		if err := b.openPort(); err != nil {
			glog.Errorf("stimulator %s: %v", s.name, err)
			s.Disable()
			return err
		}
	}
	for _, ch := range s.channels {
		b := s.boards[ch.Board()]
		if _, err := b.exchange(ch.SetupFrame(b.route)); err != nil {
			err = &HandshakeError{Board: b.index, Op: "channel-setup " + ch.Name(), Err: err}
			glog.Errorf("stimulator %s: %v", s.name, err)
			s.Disable()
			return err
		}
	}
	s.enabled.Store(true)
	glog.Infof("stimulator %s enabled with %d boards, %d channels", s.name, len(s.boards), len(s.channels))
	return nil
}

func (s *Stimulator) anyOpen() bool {
	for _, b := range s.boards {
		if b.open {
			return true
		}
	}
	return false
}

// Disable stops every schedule and closes every port. Failures are
// logged and never stop the sequence. It is safe to call at any time.
func (s *Stimulator) Disable() {
	if !s.enabled.Load() && !s.anyOpen() {
		glog.V(1).Infof("stimulator %s not enabled", s.name)
		return
	}
	for _, b := range s.boards {
		if !b.open {
			continue
		}
		b.discard()
		if err := b.scheduler.Disable(); err != nil {
			glog.Errorf("stimulator %s: board %d disable schedule: %v", s.name, b.index, err)
		}
		if err := b.closePort(); err != nil {
			glog.Errorf("stimulator %s: board %d close port %s: %v", s.name, b.index, b.port, err)
		}
	}
	s.enabled.Store(false)
	glog.Infof("stimulator %s disabled", s.name)
}

// TickDuration converts an update frequency in Hz to a schedule tick in ms.
func TickDuration(freq float64) uint16 {
	if freq <= 0 {
		return DefaultTickDuration
	}
	ms := int(1000 / freq)
	switch {
	case ms < 1:
		return 1
	case ms > 0xffff:
		return 0xffff
	}
	return uint16(ms)
}

// CreateScheduler creates the schedule on every board with the tick
// derived from freq.
func (s *Stimulator) CreateScheduler(syncByte byte, freq float64) error {
	return s.CreateSchedulerWithDuration(syncByte, TickDuration(freq))
}

// CreateSchedulerWithDuration creates the schedule on every board. Any
// failed handshake disables the Stimulator. A schedule already created is
// rejected before anything is sent and leaves the Stimulator enabled.
func (s *Stimulator) CreateSchedulerWithDuration(syncByte byte, duration uint16) error {
	if !s.enabled.Load() {
		return s.precondition("create scheduler", nil)
	}
	for _, b := range s.boards {
		if b.scheduler.State() != SchedulerUninitialized {
			return s.precondition("create scheduler", ErrInvalidState)
		}
	}
	for _, b := range s.boards {
		if err := b.scheduler.Create(syncByte, duration); err != nil {
			glog.Errorf("stimulator %s: %v", s.name, err)
			s.Disable()
			return err
		}
	}
	return nil
}

// AddEvents creates one event per channel, in channel order, and stops at
// the first failure. Events created before the failure are kept.
func (s *Stimulator) AddEvents(typ EventType) error {
	if !s.enabled.Load() {
		return s.precondition("add events", nil)
	}
	for _, ch := range s.channels {
		if _, err := s.boards[ch.Board()].scheduler.AddEvent(ch, typ); err != nil {
			glog.Errorf("stimulator %s: add event %s: %v", s.name, ch.Name(), err)
			return err
		}
	}
	return nil
}

// AddEvent creates the event of a single channel.
func (s *Stimulator) AddEvent(name string, typ EventType) error {
	if !s.enabled.Load() {
		return s.precondition("add event", nil)
	}
	ch, err := s.channel(name)
	if err != nil {
		return err
	}
	if _, err = s.boards[ch.Board()].scheduler.AddEvent(ch, typ); err != nil {
		glog.Errorf("stimulator %s: add event %s: %v", s.name, name, err)
	}
	return err
}

// Begin starts the schedule of every board. A failure on an enabled
// Stimulator disables it.
func (s *Stimulator) Begin() error {
	if !s.enabled.Load() {
		return s.precondition("begin", nil)
	}
	for _, b := range s.boards {
		if err := b.scheduler.Sync(); err != nil {
			glog.Errorf("stimulator %s: board %d sync: %v", s.name, b.index, err)
			s.Disable()
			return err
		}
	}
	glog.Infof("stimulator %s started", s.name)
	return nil
}

// Halt stops the schedule of every board without disabling. Every board
// is halted even if some fail.
func (s *Stimulator) Halt() error {
	if !s.enabled.Load() {
		return s.precondition("halt", nil)
	}
	var errs fx.AggregatedError
	for _, b := range s.boards {
		errs.Add(b.scheduler.Halt())
	}
	return errs.Aggregate()
}

func (s *Stimulator) precondition(op string, cause error) error {
	err := &PreconditionError{Op: op, Err: cause}
	glog.Errorf("stimulator %s: %v", s.name, err)
	return err
}

func (s *Stimulator) channel(name string) (*Channel, error) {
	if ch, ok := s.byName[name]; ok {
		return ch, nil
	}
	err := &ChannelLookupError{Name: name}
	glog.Warningf("stimulator %s: %v", s.name, err)
	return nil, err
}

// SetAmplitude requests a new amplitude on a channel, sent on the next Update.
func (s *Stimulator) SetAmplitude(name string, v uint8) error {
	if !s.enabled.Load() {
		return s.precondition("set amplitude", nil)
	}
	ch, err := s.channel(name)
	if err != nil {
		return err
	}
	return s.boards[ch.Board()].scheduler.SetAmplitude(ch, v)
}

// SetPulseWidth requests a new pulse width on a channel, sent on the next Update.
func (s *Stimulator) SetPulseWidth(name string, v uint16) error {
	if !s.enabled.Load() {
		return s.precondition("set pulse width", nil)
	}
	ch, err := s.channel(name)
	if err != nil {
		return err
	}
	return s.boards[ch.Board()].scheduler.SetPulseWidth(ch, v)
}

// SetAmplitudes requests amplitudes on several channels.
func (s *Stimulator) SetAmplitudes(values map[string]uint8) error {
	if !s.enabled.Load() {
		return s.precondition("set amplitudes", nil)
	}
	var errs fx.AggregatedError
	for name, v := range values {
		errs.Add(s.SetAmplitude(name, v))
	}
	return errs.Aggregate()
}

// SetPulseWidths requests pulse widths on several channels.
func (s *Stimulator) SetPulseWidths(values map[string]uint16) error {
	if !s.enabled.Load() {
		return s.precondition("set pulse widths", nil)
	}
	var errs fx.AggregatedError
	for name, v := range values {
		errs.Add(s.SetPulseWidth(name, v))
	}
	return errs.Aggregate()
}

// UpdateMaxAmplitude changes the amplitude ceiling of a channel. An
// unknown channel is logged and otherwise ignored.
func (s *Stimulator) UpdateMaxAmplitude(name string, v uint8) error {
	ch, err := s.channel(name)
	if err != nil {
		return err
	}
	ch.SetMaxAmplitude(v)
	return nil
}

// UpdateMaxPulseWidth changes the pulse width ceiling of a channel. An
// unknown channel is logged and otherwise ignored.
func (s *Stimulator) UpdateMaxPulseWidth(name string, v uint16) error {
	ch, err := s.channel(name)
	if err != nil {
		return err
	}
	ch.SetMaxPulseWidth(v)
	return nil
}

// Update is one real-time tick: it refreshes the snapshot, flushes the
// changed parameters on every board, then drains and validates every
// frame received. Any failure disables the Stimulator.
func (s *Stimulator) Update() error {
	if !s.enabled.Load() {
		return s.precondition("update", nil)
	}
	s.refreshSnapshot()

	var errs fx.AggregatedError
	for _, b := range s.boards {
		errs.Add(b.scheduler.Update())
	}
	for _, b := range s.boards {
		errs.Add(b.drain())
	}
	if err := errs.Aggregate(); err != nil {
		glog.Errorf("stimulator %s: update failed, disabling: %v", s.name, err)
		s.Disable()
		return err
	}
	return nil
}

// Control implements framework.Controller.
func (s *Stimulator) Control(fx.TickContext) error {
	return s.Update()
}

func (s *Stimulator) refreshSnapshot() {
	s.lock.Lock()
	defer s.lock.Unlock()
	for n, ch := range s.channels {
		state := ChannelState{
			Name:          ch.Name(),
			Index:         ch.Index(),
			Board:         ch.Board(),
			MaxAmplitude:  ch.MaxAmplitude(),
			MaxPulseWidth: ch.MaxPulseWidth(),
		}
		sched := s.boards[ch.Board()].scheduler
		state.Amplitude, _ = sched.Amplitude(ch.Index())
		state.PulseWidth, _ = sched.PulseWidth(ch.Index())
		s.snapshot[n] = state
	}
}

// Snapshot returns the channel states as of the last tick. It is safe to
// call from any goroutine.
func (s *Stimulator) Snapshot() []ChannelState {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]ChannelState(nil), s.snapshot...)
}
