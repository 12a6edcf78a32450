// Package serial implements the board transport on a serial line.
package serial

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	goserial "go.bug.st/serial"

	"github.com/robotalks/fes.go/pkg/fes"
)

// Line settings used by the boards.
const (
	DefaultBaudRate            = 9600
	DefaultReadTimeout         = 10 * time.Millisecond
	DefaultWriteTimeout        = 50 * time.Millisecond
	DefaultWriteTimeoutPerByte = 10 * time.Millisecond
)

var (
	// ErrNotOpen indicates the port is not open.
	ErrNotOpen = errors.New("port not open")
	// ErrAlreadyOpen indicates Open on an open port.
	ErrAlreadyOpen = errors.New("port already open")
)

// WriteTimeoutError reports a write which took longer than its budget.
type WriteTimeoutError struct {
	Bytes   int
	Elapsed time.Duration
	Budget  time.Duration
}

// Error implements error.
func (e *WriteTimeoutError) Error() string {
	return fmt.Sprintf("write of %d bytes took %s, budget %s", e.Bytes, e.Elapsed, e.Budget)
}

// line is the part of goserial.Port used here.
type line interface {
	SetMode(mode *goserial.Mode) error
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	Close() error
}

type opener func(name string, mode *goserial.Mode) (line, error)

func openLine(name string, mode *goserial.Mode) (line, error) {
	return goserial.Open(name, mode)
}

// Port is a fes.Transport on a serial port.
type Port struct {
	Mode                goserial.Mode
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	WriteTimeoutPerByte time.Duration

	open opener
	name string
	line line
}

// NewPort creates a Port with the board line settings: 9600 8N1 without
// flow control.
func NewPort() *Port {
	return &Port{
		Mode: goserial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   goserial.NoParity,
			StopBits: goserial.OneStopBit,
		},
		ReadTimeout:         DefaultReadTimeout,
		WriteTimeout:        DefaultWriteTimeout,
		WriteTimeoutPerByte: DefaultWriteTimeoutPerByte,
		open:                openLine,
	}
}

// Factory is a fes.TransportFactory creating serial ports.
func Factory(string) fes.Transport {
	return NewPort()
}

// Ports lists the serial ports available.
func Ports() ([]string, error) {
	return goserial.GetPortsList()
}

// Name returns the name of the open port.
func (p *Port) Name() string {
	return p.name
}

// Open implements fes.Transport.
func (p *Port) Open(name string) error {
	if p.line != nil {
		return ErrAlreadyOpen
	}
	mode := p.Mode
	l, err := p.open(name, &mode)
	if err != nil {
		return err
	}
	p.name, p.line = name, l
	glog.V(1).Infof("serial %s opened", name)
	return nil
}

// Configure implements fes.Transport.
func (p *Port) Configure() error {
	if p.line == nil {
		return ErrNotOpen
	}
	mode := p.Mode
	steps := []struct {
		name string
		fn   func() error
	}{
		{"mode", func() error { return p.line.SetMode(&mode) }},
		{"dtr", func() error { return p.line.SetDTR(false) }},
		{"rts", func() error { return p.line.SetRTS(false) }},
		{"read timeout", func() error { return p.line.SetReadTimeout(p.ReadTimeout) }},
		{"purge input", p.line.ResetInputBuffer},
		{"purge output", p.line.ResetOutputBuffer},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("serial %s %s: %w", p.name, step.name, err)
		}
	}
	return nil
}

// Read implements io.Reader. A timeout reads zero bytes without error.
func (p *Port) Read(b []byte) (int, error) {
	if p.line == nil {
		return 0, ErrNotOpen
	}
	return p.line.Read(b)
}

// WriteBudget returns the time allowed to write n bytes and drain them
// onto the line.
func (p *Port) WriteBudget(n int) time.Duration {
	return p.WriteTimeout + time.Duration(n)*p.WriteTimeoutPerByte
}

// Write implements io.Writer. It returns once the bytes left the
// transmit buffer, so reply deadlines start when the board has the whole
// command. The line has no write deadline, so a write exceeding its
// budget is reported after it completes.
func (p *Port) Write(b []byte) (int, error) {
	if p.line == nil {
		return 0, ErrNotOpen
	}
	start := time.Now()
	n, err := p.line.Write(b)
	if err != nil {
		return n, err
	}
	if err = p.line.Drain(); err != nil {
		return n, fmt.Errorf("serial %s drain: %w", p.name, err)
	}
	if elapsed, budget := time.Since(start), p.WriteBudget(len(b)); elapsed > budget {
		return n, &WriteTimeoutError{Bytes: len(b), Elapsed: elapsed, Budget: budget}
	}
	return n, nil
}

// Close implements io.Closer.
func (p *Port) Close() error {
	if p.line == nil {
		return ErrNotOpen
	}
	err := p.line.Close()
	p.line = nil
	glog.V(1).Infof("serial %s closed", p.name)
	return err
}
