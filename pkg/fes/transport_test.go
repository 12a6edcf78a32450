package fes_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/fes"
	"github.com/robotalks/fes.go/pkg/fes/sim"
	"github.com/robotalks/fes.go/pkg/fes/wire"
)

// slowLink makes the replies of a Device readable some time after the
// command is written. Reads wait up to readTimeout for data like a
// serial line does.
type slowLink struct {
	*sim.Device
	latency     time.Duration
	readTimeout time.Duration

	lock    sync.Mutex
	readyAt time.Time
}

func (l *slowLink) Write(p []byte) (int, error) {
	n, err := l.Device.Write(p)
	l.lock.Lock()
	l.readyAt = time.Now().Add(l.latency)
	l.lock.Unlock()
	return n, err
}

func (l *slowLink) Read(p []byte) (int, error) {
	l.lock.Lock()
	wait := time.Until(l.readyAt)
	l.lock.Unlock()
	if wait > l.readTimeout {
		time.Sleep(l.readTimeout)
		return 0, nil
	}
	if wait > 0 {
		time.Sleep(wait)
	}
	return l.Device.Read(p)
}

func newSlowStimulator(t *testing.T, link *slowLink, conf fes.Config) *fes.Stimulator {
	conf.Name = "slow"
	conf.Ports = []string{"slow0"}
	conf.Channels = fourChannels(0)
	conf.NewTransport = func(string) fes.Transport { return link }
	stim, err := fes.New(conf)
	require.NoError(t, err)
	return stim
}

func TestReplyAfterReadTimeout(t *testing.T) {
	dev := sim.NewDevice()
	link := &slowLink{Device: dev, latency: 11400 * time.Microsecond, readTimeout: 10 * time.Millisecond}
	stim := newSlowStimulator(t, link, fes.Config{})

	require.NoError(t, stim.Enable())
	require.NoError(t, stim.CreateScheduler(0xAA, 40))
	require.NoError(t, stim.AddEvents(fes.StimEvent))
	require.NoError(t, stim.Begin())
	require.True(t, stim.IsEnabled())
	require.Equal(t, fes.SchedulerRunning, stim.Scheduler(0).State())
	require.Len(t, dev.Events(), 4)
	stim.Disable()
	require.False(t, dev.IsOpen())
}

func TestReplyDeadline(t *testing.T) {
	dev := sim.NewDevice()
	link := &slowLink{Device: dev, latency: 500 * time.Millisecond, readTimeout: 10 * time.Millisecond}
	stim := newSlowStimulator(t, link, fes.Config{
		ReplyTimeout:        5 * time.Millisecond,
		ReplyTimeoutPerByte: time.Millisecond,
	})

	start := time.Now()
	err := stim.Enable()
	require.ErrorIs(t, err, wire.ErrNoResponse)
	require.Less(t, int64(time.Since(start)), int64(link.latency))
	require.False(t, stim.IsEnabled())
	require.Equal(t, 1, dev.Count(wire.KindChannelSetup))
}

func TestUnsolicitedFrameSkipped(t *testing.T) {
	dev := sim.NewDevice()
	dev.SetNextScheduleID(7)
	b := newBench(t, fourChannels(0), dev)
	require.NoError(t, b.stim.Enable())

	dev.Inject(wire.New(wire.DefaultRoute, wire.Type(0x33), 0x01).Bytes()...)
	require.NoError(t, b.stim.CreateScheduler(0xAA, 40))
	require.Equal(t, byte(7), b.stim.Scheduler(0).ScheduleID())
	require.True(t, b.stim.IsEnabled())
}

func TestOnlyUnsolicitedFrame(t *testing.T) {
	dev := sim.NewDevice()
	dev.FailOn = sim.FailNth(wire.KindSchedulerSetup, 1, sim.FaultSilent)
	b := newBench(t, fourChannels(0), dev)
	require.NoError(t, b.stim.Enable())

	dev.Inject(wire.New(wire.DefaultRoute, wire.Type(0x33)).Bytes()...)
	err := b.stim.CreateScheduler(0xAA, 40)
	require.ErrorIs(t, err, wire.ErrNoResponse)
	require.Equal(t, fes.SchedulerUninitialized, b.stim.Scheduler(0).State())
}

func TestReplyOfOtherCommand(t *testing.T) {
	dev := sim.NewDevice()
	b := newBench(t, fourChannels(0), dev)
	require.NoError(t, b.stim.Enable())

	dev.Inject(wire.SchedulerHalt(wire.DefaultRoute, 1).Bytes()...)
	err := b.stim.CreateScheduler(0xAA, 40)
	require.ErrorIs(t, err, fes.ErrUnexpectedReply)
	require.False(t, b.stim.IsEnabled())
}
