package sh

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/env"
	"github.com/robotalks/fes.go/pkg/fes"
	"github.com/robotalks/fes.go/pkg/telemetry"
)

func newTestShell(t *testing.T) *Shell {
	conf := env.NewConfig()
	conf.Virtual = true
	conf.Ports = nil
	stim, err := conf.NewStimulator()
	require.NoError(t, err)
	return &Shell{Config: conf, Stim: stim}
}

func TestShellSession(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.Enable())
	require.NoError(t, s.Schedule())
	sched := s.Stim.Scheduler(0)
	require.Equal(t, fes.SchedulerIdle, sched.State())
	require.Equal(t, byte(0xAA), sched.SyncByte())
	require.Equal(t, uint16(25), sched.Duration())

	require.NoError(t, s.AddEvents())
	require.Len(t, sched.Events(), 4)
	require.NoError(t, s.Begin())
	require.Equal(t, fes.SchedulerRunning, sched.State())

	require.NoError(t, s.SetAmplitude("bicep", "40"))
	require.NoError(t, s.SetPulseWidth("tricep", "0xc8"))
	amp, ok := sched.Amplitude(fes.Ch1)
	require.True(t, ok)
	require.Equal(t, uint8(40), amp)
	pw, ok := sched.PulseWidth(fes.Ch2)
	require.True(t, ok)
	require.Equal(t, uint16(200), pw)

	require.NoError(t, s.Run(20*time.Millisecond))
	require.True(t, s.Stim.IsEnabled())

	var out bytes.Buffer
	require.NoError(t, s.PrintStatus(&out))
	require.Contains(t, out.String(), "UECU Board: enabled")
	require.Contains(t, out.String(), "board 0: running")
	require.Contains(t, out.String(), "40/100")
	require.Contains(t, out.String(), "200/250")

	require.NoError(t, s.Stim.Halt())
	require.Equal(t, fes.SchedulerHalted, sched.State())
	s.Disable()
	require.False(t, s.Stim.IsEnabled())
	require.Equal(t, fes.SchedulerUninitialized, sched.State())
}

func TestShellScheduleArgs(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.Enable())
	defer s.Disable()

	require.Error(t, s.Schedule("0x100"))
	require.Error(t, s.Schedule("0x55", "fast"))
	require.NoError(t, s.Schedule("0x55", "100"))
	sched := s.Stim.Scheduler(0)
	require.Equal(t, byte(0x55), sched.SyncByte())
	require.Equal(t, uint16(10), sched.Duration())
}

func TestShellChannelArgs(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.Enable())
	defer s.Disable()
	require.NoError(t, s.Schedule())
	require.NoError(t, s.AddEvents("bicep", "wrist"))
	require.Len(t, s.Stim.Scheduler(0).Events(), 2)

	var lookupErr *fes.ChannelLookupError
	require.True(t, errors.As(s.AddEvents("elbow"), &lookupErr))
	require.True(t, errors.As(s.SetAmplitude("elbow", "1"), &lookupErr))
	require.Equal(t, "elbow", lookupErr.Name)
	require.Error(t, s.SetAmplitude("bicep", "256"))
	require.Error(t, s.SetPulseWidth("bicep", "-1"))

	require.NoError(t, s.SetMaxAmplitude("bicep", "80"))
	require.NoError(t, s.SetMaxPulseWidth("bicep", "300"))
	ch, ok := s.Stim.Channel("bicep")
	require.True(t, ok)
	require.Equal(t, uint8(80), ch.MaxAmplitude())
	require.Equal(t, uint16(300), ch.MaxPulseWidth())
	require.Error(t, s.SetMaxPulseWidth("bicep", "70000"))
}

func TestShellRequiresEnable(t *testing.T) {
	s := newTestShell(t)
	require.True(t, errors.Is(s.Schedule(), fes.ErrNotEnabled))
	require.True(t, errors.Is(s.Begin(), fes.ErrNotEnabled))
	require.True(t, errors.Is(s.SetAmplitude("bicep", "1"), fes.ErrNotEnabled))
}

func TestShellStatusJSON(t *testing.T) {
	s := newTestShell(t)
	s.OutputJSON = true
	var out bytes.Buffer
	require.NoError(t, s.PrintStatus(&out))
	var status telemetry.StimulatorStatus
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	require.False(t, status.Enabled)
	require.Len(t, status.Channels, 4)
	require.Equal(t, "wrist", status.Channels[3].Name)
	require.Equal(t, uint32(4), status.Channels[3].Number)
}

func TestCommandsHaveHelp(t *testing.T) {
	for _, cmd := range commands {
		require.NotEmpty(t, cmd.Help, cmd.Name)
	}
}

func TestShellScheduleTwice(t *testing.T) {
	s := newTestShell(t)
	require.NoError(t, s.Enable())
	defer s.Disable()
	require.NoError(t, s.Schedule())
	err := s.Schedule()
	var precondErr *fes.PreconditionError
	require.ErrorAs(t, err, &precondErr)
	require.ErrorIs(t, err, fes.ErrInvalidState)
	require.True(t, s.Stim.IsEnabled())
	require.Equal(t, fes.SchedulerIdle, s.Stim.Scheduler(0).State())
}
