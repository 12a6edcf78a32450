package fes

import (
	"fmt"

	"github.com/robotalks/fes.go/pkg/fes/wire"
)

// ChannelIndex identifies a physical output of a board.
type ChannelIndex uint8

// Channel indices.
const (
	Ch1 ChannelIndex = iota
	Ch2
	Ch3
	Ch4
	Ch5
	Ch6
	Ch7
	Ch8
)

// NumChannels is the number of channel indices.
const NumChannels = 8

// String implements fmt.Stringer.
func (c ChannelIndex) String() string {
	return fmt.Sprintf("CH_%d", int(c)+1)
}

// IsValid checks the index names a physical output.
func (c ChannelIndex) IsValid() bool {
	return c < NumChannels
}

// Channel is one electrode output with its safety ceilings.
type Channel struct {
	name  string
	index ChannelIndex
	board int

	maxAmplitude  uint8
	maxPulseWidth uint16
}

// NewChannel creates a Channel on the given board. Amplitudes are in mA,
// pulse widths in µs.
func NewChannel(name string, index ChannelIndex, board int, maxAmplitude uint8, maxPulseWidth uint16) *Channel {
	return &Channel{
		name:          name,
		index:         index,
		board:         board,
		maxAmplitude:  maxAmplitude,
		maxPulseWidth: maxPulseWidth,
	}
}

// Name returns the unique channel name.
func (c *Channel) Name() string { return c.name }

// Index returns the channel index.
func (c *Channel) Index() ChannelIndex { return c.index }

// Board returns the index of the board driving the channel.
func (c *Channel) Board() int { return c.board }

// MaxAmplitude returns the amplitude ceiling.
func (c *Channel) MaxAmplitude() uint8 { return c.maxAmplitude }

// MaxPulseWidth returns the pulse width ceiling.
func (c *Channel) MaxPulseWidth() uint16 { return c.maxPulseWidth }

// SetMaxAmplitude changes the amplitude ceiling.
func (c *Channel) SetMaxAmplitude(v uint8) { c.maxAmplitude = v }

// SetMaxPulseWidth changes the pulse width ceiling.
func (c *Channel) SetMaxPulseWidth(v uint16) { c.maxPulseWidth = v }

// String implements fmt.Stringer.
func (c *Channel) String() string {
	return fmt.Sprintf("%s(%s@%d)", c.name, c.index, c.board)
}

// SetupFrame encodes the channel-setup command for this channel. The
// board enforces the ceilings it carries.
func (c *Channel) SetupFrame(route wire.Route) *wire.Frame {
	return wire.ChannelSetup(route, byte(c.index), c.maxAmplitude, c.maxPulseWidth)
}
