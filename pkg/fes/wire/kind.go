package wire

import (
	"bytes"
	"fmt"
)

// Kind classifies a frame by its type and, for edits, its sub-type.
type Kind int

// Frame kinds.
const (
	KindUnknown Kind = iota
	KindChannelSetup
	KindSchedulerSetup
	KindEventCreate
	KindEventEditAmplitude
	KindEventEditPulseWidth
	KindEventEditPriority
	KindEventEditZone
	KindEventDelete
	KindSchedulerSync
	KindSchedulerHalt
	KindSchedulerDelete
)

var kindNames = map[Kind]string{
	KindUnknown:             "unknown",
	KindChannelSetup:        "channel-setup",
	KindSchedulerSetup:      "scheduler-setup",
	KindEventCreate:         "event-create",
	KindEventEditAmplitude:  "event-edit-amplitude",
	KindEventEditPulseWidth: "event-edit-pulse-width",
	KindEventEditPriority:   "event-edit-priority",
	KindEventEditZone:       "event-edit-zone",
	KindEventDelete:         "event-delete",
	KindSchedulerSync:       "scheduler-sync",
	KindSchedulerHalt:       "scheduler-halt",
	KindSchedulerDelete:     "scheduler-delete",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsKnown reports whether the kind is one of the protocol messages.
func (k Kind) IsKnown() bool {
	return k != KindUnknown
}

var typeKinds = map[Type]Kind{
	TypeChannelSetup:    KindChannelSetup,
	TypeSchedulerSetup:  KindSchedulerSetup,
	TypeEventCreate:     KindEventCreate,
	TypeEventDelete:     KindEventDelete,
	TypeSchedulerSync:   KindSchedulerSync,
	TypeSchedulerHalt:   KindSchedulerHalt,
	TypeSchedulerDelete: KindSchedulerDelete,
}

var editKinds = map[EditParam]Kind{
	EditAmplitude:  KindEventEditAmplitude,
	EditPulseWidth: KindEventEditPulseWidth,
	EditPriority:   KindEventEditPriority,
	EditZone:       KindEventEditZone,
}

// EditKind returns the kind of an edit frame changing param.
func EditKind(param EditParam) Kind {
	return editKinds[param]
}

// Classify returns the kind of a frame. Classification ignores validity.
func Classify(f *Frame) Kind {
	if f.Type == TypeEventEdit {
		if data := f.Data(); len(data) > 0 {
			return editKinds[EditParam(data[0])]
		}
		return KindUnknown
	}
	return typeKinds[f.Type]
}

// Validate checks the frame carries the expected route, a correct
// checksum and no error report.
func Validate(f *Frame, route Route) error {
	if got := f.Route(); got != route {
		return &RouteError{Want: route, Got: got}
	}
	if want, got := f.Sum(), f.Checksum(); want != got {
		return &ChecksumError{Want: want, Got: got}
	}
	if f.Type == TypeErrorReport {
		var code byte
		if data := f.Data(); len(data) > 0 {
			code = data[0]
		}
		return &DeviceError{Code: code}
	}
	return nil
}

// Result is the outcome of inspecting received bytes.
type Result struct {
	Raw   []byte
	Frame *Frame
	Kind  Kind
	Err   error
}

// Valid indicates the frame passed validation.
func (r Result) Valid() bool {
	return r.Err == nil
}

// Inspect decodes, classifies and validates raw bytes of one frame.
// Empty input is an invalid result carrying ErrNoResponse.
func Inspect(raw []byte, route Route) (r Result) {
	r.Raw = raw
	if len(raw) == 0 {
		r.Err = ErrNoResponse
		return
	}
	if r.Frame, r.Err = Decode(raw); r.Err != nil {
		return
	}
	r.Kind = Classify(r.Frame)
	r.Err = Validate(r.Frame, route)
	return
}

// Format renders raw frame bytes in hex with the header separated from
// the body, e.g. |0x04, 0x80, 0x1B, 0x01 | 0xAA, 0xB4|.
func Format(raw []byte) string {
	var w bytes.Buffer
	w.WriteByte('|')
	for i, b := range raw {
		fmt.Fprintf(&w, "0x%02X", b)
		switch {
		case i == HeaderLen-1 && i != len(raw)-1:
			w.WriteString(" | ")
		case i != len(raw)-1:
			w.WriteString(", ")
		}
	}
	w.WriteByte('|')
	return w.String()
}
