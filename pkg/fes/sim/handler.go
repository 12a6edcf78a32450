package sim

import (
	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/wire"
)

func (d *Device) reply(f *wire.Frame, fault Fault) {
	raw := f.Bytes()
	switch fault {
	case FaultSilent:
		return
	case FaultChecksum:
		raw[len(raw)-1] ^= 0xff
	case FaultTruncated:
		raw = raw[:len(raw)-1]
	}
	d.out = append(d.out, raw...)
}

func (d *Device) ack(cmd *wire.Frame, fault Fault, data ...byte) {
	d.reply(wire.New(d.Route, cmd.Type, data...), fault)
}

func (d *Device) reject(code byte) {
	d.reply(wire.ErrorReport(d.Route, code), FaultNone)
}

func (d *Device) handle(raw []byte) {
	d.received = append(d.received, raw)
	f, err := wire.Decode(raw)
	if err != nil {
		d.reject(CodeBadFrame)
		return
	}
	if err = wire.Validate(f, d.Route); err != nil {
		glog.V(3).Infof("sim %s: rejected %s: %v", d.port, wire.Format(raw), err)
		d.reject(CodeBadChecksum)
		return
	}

	fault := FaultNone
	if d.FailOn != nil {
		fault = d.FailOn(f)
	}
	if fault == FaultErrorReport {
		d.reject(CodeInjected)
		return
	}

	data := f.Data()
	switch wire.Classify(f) {
	case wire.KindChannelSetup:
		if len(data) != 4 {
			d.reject(CodeBadFrame)
			return
		}
		d.channels[data[0]] = ChannelLimits{
			MaxAmplitude:  data[1],
			MaxPulseWidth: uint16(data[2])<<8 | uint16(data[3]),
		}
		d.ack(f, fault, data[0])
	case wire.KindSchedulerSetup:
		if len(data) != 3 {
			d.reject(CodeBadFrame)
			return
		}
		d.scheduleID = d.nextSchedule
		d.nextSchedule++
		d.scheduled, d.running = true, false
		d.syncByte = data[0]
		d.duration = uint16(data[1])<<8 | uint16(data[2])
		d.nextEvent = 1
		d.events = make(map[byte]*Event)
		d.ack(f, fault, d.scheduleID)
	case wire.KindEventCreate:
		p, ok := wire.ParseEventCreate(f)
		if !ok {
			d.reject(CodeBadFrame)
			return
		}
		if !d.scheduled || p.ScheduleID != d.scheduleID {
			d.reject(CodeUnknownID)
			return
		}
		e := &Event{
			ID:         d.nextEvent,
			ScheduleID: p.ScheduleID,
			Channel:    p.Channel,
			Delay:      p.Delay,
			Priority:   p.Priority,
			Zone:       p.Zone,
		}
		d.nextEvent++
		d.setAmplitude(e, p.Amplitude)
		d.setPulseWidth(e, p.PulseWidth)
		d.events[e.ID] = e
		d.ack(f, fault, e.ID)
	case wire.KindEventEditAmplitude, wire.KindEventEditPulseWidth,
		wire.KindEventEditPriority, wire.KindEventEditZone:
		param, id, value, ok := wire.ParseEventEdit(f)
		if !ok {
			d.reject(CodeBadFrame)
			return
		}
		e := d.events[id]
		if e == nil {
			d.reject(CodeUnknownID)
			return
		}
		switch param {
		case wire.EditAmplitude:
			d.setAmplitude(e, byte(value))
		case wire.EditPulseWidth:
			d.setPulseWidth(e, value)
		case wire.EditPriority:
			e.Priority = byte(value)
		case wire.EditZone:
			e.Zone = byte(value)
		}
		d.ack(f, fault, byte(param))
	case wire.KindEventDelete:
		if len(data) != 1 || d.events[data[0]] == nil {
			d.reject(CodeUnknownID)
			return
		}
		delete(d.events, data[0])
		d.ack(f, fault, data[0])
	case wire.KindSchedulerSync:
		if !d.scheduled {
			d.reject(CodeUnknownID)
			return
		}
		d.running = true
		d.ack(f, fault, data...)
	case wire.KindSchedulerHalt:
		if !d.scheduled || len(data) != 1 || data[0] != d.scheduleID {
			d.reject(CodeUnknownID)
			return
		}
		d.running = false
		d.ack(f, fault, data[0])
	case wire.KindSchedulerDelete:
		if !d.scheduled || len(data) != 1 || data[0] != d.scheduleID {
			d.reject(CodeUnknownID)
			return
		}
		d.scheduled, d.running = false, false
		d.events = make(map[byte]*Event)
		d.ack(f, fault, data[0])
	default:
		d.reject(CodeUnsupported)
	}
}

// setAmplitude applies the ceiling configured for the channel.
func (d *Device) setAmplitude(e *Event, v byte) {
	if l, ok := d.channels[e.Channel]; ok && v > l.MaxAmplitude {
		v = l.MaxAmplitude
	}
	e.Amplitude = v
}

func (d *Device) setPulseWidth(e *Event, v uint16) {
	if l, ok := d.channels[e.Channel]; ok && v > l.MaxPulseWidth {
		v = l.MaxPulseWidth
	}
	e.PulseWidth = v
}
