// Package telemetry publishes the state of a Stimulator to monitors.
//
// Every consumer reads the Stimulator snapshot from its own goroutine and
// never touches the boards.
package telemetry

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/fes.go/pkg/fes"
)

// Source is the part of a Stimulator safe to read concurrently.
type Source interface {
	Name() string
	IsEnabled() bool
	Snapshot() []fes.ChannelState
}

// ChannelStatus is the live state of one channel.
type ChannelStatus struct {
	Name          string `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	Number        uint32 `protobuf:"varint,2,opt,name=number,proto3" json:"number"`
	Board         uint32 `protobuf:"varint,3,opt,name=board,proto3" json:"board"`
	Amplitude     uint32 `protobuf:"varint,4,opt,name=amplitude,proto3" json:"amplitude"`
	PulseWidth    uint32 `protobuf:"varint,5,opt,name=pulse_width,proto3" json:"pulse_width"`
	MaxAmplitude  uint32 `protobuf:"varint,6,opt,name=max_amplitude,proto3" json:"max_amplitude"`
	MaxPulseWidth uint32 `protobuf:"varint,7,opt,name=max_pulse_width,proto3" json:"max_pulse_width"`
}

// ProtoMessage implements proto.Message.
func (m *ChannelStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *ChannelStatus) Reset() { *m = ChannelStatus{} }

// String implements proto.Message.
func (m *ChannelStatus) String() string { return proto.CompactTextString(m) }

// StimulatorStatus is the live state of a Stimulator.
type StimulatorStatus struct {
	Name      string           `protobuf:"bytes,1,opt,name=name,proto3" json:"name"`
	MachineID string           `protobuf:"bytes,2,opt,name=machine_id,proto3" json:"machine_id,omitempty"`
	Enabled   bool             `protobuf:"varint,3,opt,name=enabled,proto3" json:"enabled"`
	Timestamp int64            `protobuf:"varint,4,opt,name=timestamp,proto3" json:"timestamp"`
	Channels  []*ChannelStatus `protobuf:"bytes,5,rep,name=channels,proto3" json:"channels"`
}

// ProtoMessage implements proto.Message.
func (m *StimulatorStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StimulatorStatus) Reset() { *m = StimulatorStatus{} }

// String implements proto.Message.
func (m *StimulatorStatus) String() string { return proto.CompactTextString(m) }

// StatusOf captures the current status of src.
func StatusOf(src Source, machineID string, now time.Time) *StimulatorStatus {
	snapshot := src.Snapshot()
	status := &StimulatorStatus{
		Name:      src.Name(),
		MachineID: machineID,
		Enabled:   src.IsEnabled(),
		Timestamp: now.UnixNano(),
		Channels:  make([]*ChannelStatus, len(snapshot)),
	}
	for n, state := range snapshot {
		status.Channels[n] = &ChannelStatus{
			Name:          state.Name,
			Number:        uint32(state.Index) + 1,
			Board:         uint32(state.Board),
			Amplitude:     uint32(state.Amplitude),
			PulseWidth:    uint32(state.PulseWidth),
			MaxAmplitude:  uint32(state.MaxAmplitude),
			MaxPulseWidth: uint32(state.MaxPulseWidth),
		}
	}
	return status
}

// Encode serializes the status.
func (m *StimulatorStatus) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeStatus parses a serialized status.
func DecodeStatus(b []byte) (*StimulatorStatus, error) {
	m := &StimulatorStatus{}
	if err := proto.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}
