package fes_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/fes.go/pkg/fes"
	"github.com/robotalks/fes.go/pkg/fes/wire"
)

func TestChannel(t *testing.T) {
	ch := fes.NewChannel("quad-l", fes.Ch2, 1, 80, 350)
	require.Equal(t, "quad-l", ch.Name())
	require.Equal(t, fes.Ch2, ch.Index())
	require.Equal(t, 1, ch.Board())
	require.Equal(t, "quad-l(CH_2@1)", ch.String())

	ch.SetMaxAmplitude(60)
	ch.SetMaxPulseWidth(0x0190)
	require.Equal(t, uint8(60), ch.MaxAmplitude())
	require.Equal(t, uint16(400), ch.MaxPulseWidth())

	f := ch.SetupFrame(wire.DefaultRoute)
	require.Equal(t, wire.KindChannelSetup, wire.Classify(f))
	require.Equal(t, []byte{0x01, 60, 0x01, 0x90}, f.Data())
	require.NoError(t, wire.Validate(f, wire.DefaultRoute))
}

func TestChannelIndex(t *testing.T) {
	require.Equal(t, "CH_1", fes.Ch1.String())
	require.Equal(t, "CH_8", fes.Ch8.String())
	require.True(t, fes.Ch8.IsValid())
	require.False(t, fes.ChannelIndex(fes.NumChannels).IsValid())
}
