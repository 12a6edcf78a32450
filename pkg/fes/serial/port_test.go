package serial

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	goserial "go.bug.st/serial"
)

type fakeLine struct {
	calls   []string
	mode    goserial.Mode
	timeout time.Duration
	dtr     bool
	rts     bool
	written []byte
	input   []byte
	delay   time.Duration
	drain   time.Duration
	failOn  string
}

func (l *fakeLine) call(name string) error {
	l.calls = append(l.calls, name)
	if l.failOn == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (l *fakeLine) SetMode(mode *goserial.Mode) error {
	l.mode = *mode
	return l.call("mode")
}

func (l *fakeLine) SetReadTimeout(t time.Duration) error {
	l.timeout = t
	return l.call("timeout")
}

func (l *fakeLine) SetDTR(dtr bool) error {
	l.dtr = dtr
	return l.call("dtr")
}

func (l *fakeLine) SetRTS(rts bool) error {
	l.rts = rts
	return l.call("rts")
}

func (l *fakeLine) ResetInputBuffer() error  { return l.call("purge-in") }
func (l *fakeLine) ResetOutputBuffer() error { return l.call("purge-out") }

func (l *fakeLine) Read(p []byte) (int, error) {
	n := copy(p, l.input)
	l.input = l.input[n:]
	return n, nil
}

func (l *fakeLine) Write(p []byte) (int, error) {
	time.Sleep(l.delay)
	l.written = append(l.written, p...)
	return len(p), nil
}

// Drain takes the time the written bytes need to leave the line.
func (l *fakeLine) Drain() error {
	time.Sleep(l.drain)
	return l.call("drain")
}

func (l *fakeLine) Close() error { return l.call("close") }

func newFakePort(l *fakeLine) *Port {
	p := NewPort()
	p.open = func(name string, mode *goserial.Mode) (line, error) {
		if name == "missing" {
			return nil, errors.New("no such port")
		}
		return l, nil
	}
	return p
}

func TestPortConfigure(t *testing.T) {
	l := &fakeLine{dtr: true, rts: true}
	p := newFakePort(l)
	require.Equal(t, ErrNotOpen, p.Configure())

	require.Error(t, p.Open("missing"))
	require.NoError(t, p.Open("/dev/ttyUSB0"))
	require.Equal(t, ErrAlreadyOpen, p.Open("/dev/ttyUSB0"))
	require.Equal(t, "/dev/ttyUSB0", p.Name())

	require.NoError(t, p.Configure())
	require.Equal(t, []string{"mode", "dtr", "rts", "timeout", "purge-in", "purge-out"}, l.calls)
	require.Equal(t, goserial.Mode{
		BaudRate: 9600, DataBits: 8, Parity: goserial.NoParity, StopBits: goserial.OneStopBit,
	}, l.mode)
	require.Equal(t, 10*time.Millisecond, l.timeout)
	require.False(t, l.dtr)
	require.False(t, l.rts)

	require.NoError(t, p.Close())
	require.Equal(t, ErrNotOpen, p.Close())
}

func TestPortConfigureFails(t *testing.T) {
	l := &fakeLine{failOn: "timeout"}
	p := newFakePort(l)
	require.NoError(t, p.Open("com3"))
	err := p.Configure()
	require.Error(t, err)
	require.Contains(t, err.Error(), "read timeout")
	require.Equal(t, []string{"mode", "dtr", "rts", "timeout"}, l.calls)
}

func TestPortReadWrite(t *testing.T) {
	l := &fakeLine{input: []byte{1, 2, 3}}
	p := newFakePort(l)
	_, err := p.Write([]byte{1})
	require.Equal(t, ErrNotOpen, err)
	_, err = p.Read(make([]byte, 1))
	require.Equal(t, ErrNotOpen, err)

	require.NoError(t, p.Open("com3"))
	n, err := p.Write([]byte{4, 5})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{4, 5}, l.written)
	require.Equal(t, []string{"drain"}, l.calls)

	buf := make([]byte, 8)
	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buf[:n])
	n, err = p.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPortWriteBudget(t *testing.T) {
	l := &fakeLine{delay: 5 * time.Millisecond}
	p := newFakePort(l)
	require.Equal(t, 110*time.Millisecond, p.WriteBudget(6))

	p.WriteTimeout, p.WriteTimeoutPerByte = time.Millisecond, 0
	require.NoError(t, p.Open("com3"))
	n, err := p.Write([]byte{1, 2})
	require.Equal(t, 2, n)
	var timeoutErr *WriteTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, 2, timeoutErr.Bytes)
	require.Equal(t, time.Millisecond, timeoutErr.Budget)
}

func TestPortWriteBudgetCoversDrain(t *testing.T) {
	l := &fakeLine{drain: 5 * time.Millisecond}
	p := newFakePort(l)
	p.WriteTimeout, p.WriteTimeoutPerByte = time.Millisecond, 0
	require.NoError(t, p.Open("com3"))
	_, err := p.Write([]byte{1, 2, 3})
	var timeoutErr *WriteTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.GreaterOrEqual(t, int64(timeoutErr.Elapsed), int64(l.drain))
}

func TestPortDrainFails(t *testing.T) {
	l := &fakeLine{failOn: "drain"}
	p := newFakePort(l)
	require.NoError(t, p.Open("com3"))
	n, err := p.Write([]byte{1})
	require.Equal(t, 1, n)
	require.Error(t, err)
	require.Contains(t, err.Error(), "serial com3 drain")
}
