package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0xff), Checksum(nil))
	// 0x04+0x80+0x1B+0x01+0xAA = 0x14A -> 0x4A+0x01 = 0x4B -> ^0xff
	require.Equal(t, byte(0xB4), Checksum([]byte{0x04, 0x80, 0x1B, 0x01, 0xAA}))
}

func TestFrameEncoding(t *testing.T) {
	r := DefaultRoute
	testCases := []struct {
		name   string
		frame  *Frame
		kind   Kind
		expect []byte
	}{
		{"channel setup", ChannelSetup(r, 2, 100, 250), KindChannelSetup,
			[]byte{0x04, 0x80, 0x47, 4, 2, 100, 0, 250}},
		{"scheduler setup", SchedulerSetup(r, 0xAA, 25), KindSchedulerSetup,
			[]byte{0x04, 0x80, 0x10, 3, 0xAA, 0, 25}},
		{"event create", EventCreate(r, EventParams{ScheduleID: 1, Delay: 5, EventType: 3, Channel: 1, PulseWidth: 300, Amplitude: 40}), KindEventCreate,
			[]byte{0x04, 0x80, 0x15, 9, 1, 5, 3, 1, 0, 0x01, 0x2C, 40, 0}},
		{"edit amplitude", EventEdit(r, EditAmplitude, 7, 40), KindEventEditAmplitude,
			[]byte{0x04, 0x80, 0x19, 4, 1, 7, 0, 40}},
		{"edit pulse width", EventEdit(r, EditPulseWidth, 7, 0x0102), KindEventEditPulseWidth,
			[]byte{0x04, 0x80, 0x19, 4, 2, 7, 1, 2}},
		{"edit priority", EventEdit(r, EditPriority, 7, 1), KindEventEditPriority,
			[]byte{0x04, 0x80, 0x19, 4, 3, 7, 0, 1}},
		{"edit zone", EventEdit(r, EditZone, 7, 2), KindEventEditZone,
			[]byte{0x04, 0x80, 0x19, 4, 4, 7, 0, 2}},
		{"event delete", EventDelete(r, 7), KindEventDelete,
			[]byte{0x04, 0x80, 0x17, 1, 7}},
		{"scheduler sync", SchedulerSync(r, 0xAA), KindSchedulerSync,
			[]byte{0x04, 0x80, 0x1B, 1, 0xAA}},
		{"scheduler halt", SchedulerHalt(r, 3), KindSchedulerHalt,
			[]byte{0x04, 0x80, 0x04, 1, 3}},
		{"scheduler delete", SchedulerDelete(r, 3), KindSchedulerDelete,
			[]byte{0x04, 0x80, 0x12, 1, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			expect := append(tc.expect, Checksum(tc.expect))
			require.Equal(t, expect, tc.frame.Bytes())

			var buf bytes.Buffer
			n, err := tc.frame.WriteTo(&buf)
			require.NoError(t, err)
			require.Equal(t, int64(len(expect)), n)
			require.Equal(t, expect, buf.Bytes())

			decoded, err := Decode(expect)
			require.NoError(t, err)
			require.Equal(t, expect, decoded.Bytes())
			require.Equal(t, tc.kind, Classify(decoded))
			require.NoError(t, Validate(decoded, r))
		})
	}
}

func TestDecodeRoundTripKeepsBadChecksum(t *testing.T) {
	raw := []byte{0x04, 0x80, 0x1B, 1, 0xAA, 0x00}
	f, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, raw, f.Bytes())
	require.Equal(t, KindSchedulerSync, Classify(f))
	var csErr *ChecksumError
	require.ErrorAs(t, Validate(f, DefaultRoute), &csErr)
	require.Equal(t, byte(0xB4), csErr.Want)
}

func TestDecodeGarbage(t *testing.T) {
	testCases := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short header", []byte{0x04, 0x80}},
		{"missing body", []byte{0x04, 0x80, 0x47, 4}},
		{"short body", []byte{0x04, 0x80, 0x47, 4, 1, 2}},
		{"long body", []byte{0x04, 0x80, 0x17, 0, 1, 2, 3}},
		{"max length declared", []byte{0x04, 0x80, 0x19, 0xff, 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, err := Decode(tc.raw)
				require.Error(t, err)
				require.False(t, Inspect(tc.raw, DefaultRoute).Valid())
			})
		})
	}
}

func TestInspect(t *testing.T) {
	r := DefaultRoute

	res := Inspect(New(r, TypeSchedulerSetup, 9).Bytes(), r)
	require.True(t, res.Valid())
	require.Equal(t, KindSchedulerSetup, res.Kind)
	require.Equal(t, []byte{9}, res.Frame.Data())

	res = Inspect(New(r, Type(0x77), 1, 2).Bytes(), r)
	require.True(t, res.Valid(), "valid but unknown is not a fault")
	require.Equal(t, KindUnknown, res.Kind)

	res = Inspect(ErrorReport(r, 0x21).Bytes(), r)
	require.False(t, res.Valid())
	var devErr *DeviceError
	require.ErrorAs(t, res.Err, &devErr)
	require.Equal(t, byte(0x21), devErr.Code)

	res = Inspect(SchedulerSync(Route{Sync: 0x04, Address: 0x81}, 0xAA).Bytes(), r)
	require.False(t, res.Valid())
	require.Equal(t, KindSchedulerSync, res.Kind, "known but invalid")
	var routeErr *RouteError
	require.ErrorAs(t, res.Err, &routeErr)

	res = Inspect(nil, r)
	require.Equal(t, ErrNoResponse, res.Err)
}

func TestClassifyEditWithoutData(t *testing.T) {
	f := New(DefaultRoute, TypeEventEdit)
	require.Equal(t, KindUnknown, Classify(f))
	f = New(DefaultRoute, TypeEventEdit, 9)
	require.Equal(t, KindUnknown, Classify(f))
}

func TestParseEventFrames(t *testing.T) {
	p := EventParams{ScheduleID: 2, Delay: 1, EventType: 3, Channel: 4, Priority: 5, PulseWidth: 0x1234, Amplitude: 6, Zone: 7}
	parsed, ok := ParseEventCreate(EventCreate(DefaultRoute, p))
	require.True(t, ok)
	require.Equal(t, p, parsed)

	param, id, val, ok := ParseEventEdit(EventEdit(DefaultRoute, EditPulseWidth, 3, 250))
	require.True(t, ok)
	require.Equal(t, EditPulseWidth, param)
	require.Equal(t, byte(3), id)
	require.Equal(t, uint16(250), val)

	_, ok = ParseEventCreate(EventDelete(DefaultRoute, 1))
	require.False(t, ok)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "|0x04, 0x80, 0x1B, 0x01 | 0xAA, 0xB4|", Format(SchedulerSync(DefaultRoute, 0xAA).Bytes()))
	require.Equal(t, "|0x04, 0x80|", Format([]byte{0x04, 0x80}))
	require.Equal(t, "||", Format(nil))
}
