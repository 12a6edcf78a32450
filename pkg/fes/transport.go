package fes

import (
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes/wire"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

// Transport is the byte link to one board.
//
// Read must return within a short timeout; a timeout is reported as
// zero bytes with a nil error.
type Transport interface {
	// Open opens the named port.
	Open(port string) error
	// Configure applies line settings and timeouts and purges pending I/O.
	Configure() error

	io.ReadWriteCloser
}

// TransportFactory creates the Transport used for a port.
type TransportFactory func(port string) Transport

// Reply deadline of a command, counted from the end of its write: the
// board has to clock in the command, process it and clock out the reply.
const (
	DefaultReplyTimeout        = 10 * time.Millisecond
	DefaultReplyTimeoutPerByte = 10 * time.Millisecond
)

// pollInterval paces reads of transports returning immediately when
// nothing is available.
const pollInterval = time.Millisecond

// maxDrainFrames bounds the frames read by one drain so a chattering
// board cannot stall a tick.
const maxDrainFrames = 64

// board pairs the transport of one port with its scheduler.
type board struct {
	index     int
	port      string
	route     wire.Route
	transport Transport
	scheduler *Scheduler

	replyTimeout        time.Duration
	replyTimeoutPerByte time.Duration

	open     bool
	parser   wire.Parser
	received [][]byte
	buf      [64]byte
}

func newBoard(index int, port string, route wire.Route, t Transport) *board {
	b := &board{
		index:               index,
		port:                port,
		route:               route,
		transport:           t,
		replyTimeout:        DefaultReplyTimeout,
		replyTimeoutPerByte: DefaultReplyTimeoutPerByte,
	}
	b.scheduler = newScheduler(b)
	return b
}

func (b *board) openPort() error {
	if err := b.transport.Open(b.port); err != nil {
		return &PortError{Port: b.port, Op: OpOpen, Err: err}
	}
	b.open = true
	if err := b.transport.Configure(); err != nil {
		return &PortError{Port: b.port, Op: OpConfigure, Err: err}
	}
	b.discard()
	return nil
}

func (b *board) closePort() error {
	if !b.open {
		return nil
	}
	b.open = false
	b.discard()
	return b.transport.Close()
}

// discard drops received frames not consumed yet.
func (b *board) discard() {
	b.parser.Reset()
	b.received = nil
}

func (b *board) send(f *wire.Frame) error {
	raw := f.Bytes()
	if glog.V(2) {
		glog.Infof("board %d TX %s", b.index, wire.Format(raw))
	}
	n, err := b.transport.Write(raw)
	if err == nil && n != len(raw) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return &FrameError{Board: b.index, Raw: raw, Err: err}
	}
	return nil
}

// receive returns the raw bytes of the next frame. Reads continue until a
// frame completes or the deadline passes; a zero deadline allows a single
// read. When nothing completes in time, the partial frame if any is
// returned, nil otherwise.
func (b *board) receive(deadline time.Time) ([]byte, error) {
	for len(b.received) == 0 {
		start := time.Now()
		n, err := b.transport.Read(b.buf[:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if !time.Now().Before(deadline) {
				return b.parser.Timeout(), nil
			}
			if time.Since(start) < pollInterval {
				time.Sleep(pollInterval)
			}
			continue
		}
		for _, c := range b.buf[:n] {
			if raw := b.parser.Parse(c); raw != nil {
				b.received = append(b.received, raw)
			}
		}
	}
	raw := b.received[0]
	b.received = b.received[1:]
	if glog.V(2) {
		glog.Infof("board %d RX %s", b.index, wire.Format(raw))
	}
	return raw, nil
}

// replyDeadline is when the reply to a command of n bytes just written
// is overdue.
func (b *board) replyDeadline(n int) time.Time {
	return time.Now().Add(b.replyTimeout + time.Duration(n)*b.replyTimeoutPerByte)
}

// exchange sends a command and waits for its acknowledgement.
func (b *board) exchange(f *wire.Frame) (wire.Result, error) {
	if err := b.send(f); err != nil {
		return wire.Result{}, err
	}
	return b.awaitReply(f)
}

// awaitReply waits for the acknowledgement of a command already sent. No
// response, an invalid response or the acknowledgement of a different
// command are all failures. Valid frames of unknown type are not replies
// to anything and are skipped.
func (b *board) awaitReply(f *wire.Frame) (wire.Result, error) {
	want := wire.Classify(f)
	deadline := b.replyDeadline(len(f.Bytes()))
	for {
		raw, err := b.receive(deadline)
		if err != nil {
			return wire.Result{}, &FrameError{Board: b.index, Err: err}
		}
		res := wire.Inspect(raw, b.route)
		if !res.Valid() {
			return res, &FrameError{Board: b.index, Raw: raw, Err: res.Err}
		}
		switch {
		case res.Kind == want:
			return res, nil
		case res.Frame.Type == f.Type && !res.Kind.IsKnown():
			// edit acknowledgement not echoing the parameter
			return res, nil
		case !res.Kind.IsKnown():
			glog.Warningf("board %d: unsolicited frame %s skipped", b.index, wire.Format(raw))
		default:
			return res, &FrameError{Board: b.index, Raw: raw, Err: ErrUnexpectedReply}
		}
	}
}

// drain reads and validates every frame available without waiting
// beyond one read timeout.
func (b *board) drain() error {
	var errs fx.AggregatedError
	for i := 0; i < maxDrainFrames; i++ {
		raw, err := b.receive(time.Time{})
		if err != nil {
			errs.Add(&FrameError{Board: b.index, Err: err})
			break
		}
		if raw == nil {
			break
		}
		if res := wire.Inspect(raw, b.route); !res.Valid() {
			glog.Errorf("board %d: return message %s either invalid or an error: %v",
				b.index, wire.Format(raw), res.Err)
			errs.Add(&FrameError{Board: b.index, Raw: raw, Err: res.Err})
		}
	}
	return errs.Aggregate()
}
