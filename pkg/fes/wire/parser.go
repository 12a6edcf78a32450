package wire

// Parser assembles frames from received bytes.
//
// It only frames by length; it never drops bytes, so garbage reaches
// Inspect and is reported invalid instead of being skipped silently.
type Parser struct {
	state parseState
	buf   []byte
	want  int
}

type parseState int

const (
	stateHeader parseState = iota // collecting header bytes
	stateBody                     // collecting data and checksum
)

// Parse consumes one byte and returns the raw bytes of a frame when b
// completes one.
func (p *Parser) Parse(b byte) []byte {
	p.buf = append(p.buf, b)
	switch p.state {
	case stateHeader:
		if len(p.buf) == HeaderLen {
			p.want = HeaderLen + int(p.buf[3]) + 1
			p.state = stateBody
		}
	case stateBody:
		if len(p.buf) >= p.want {
			return p.frameReady()
		}
	}
	return nil
}

// Timeout notifies the parser that the read timed out. Any partial frame
// is returned and the parser starts over with the next byte.
func (p *Parser) Timeout() []byte {
	if len(p.buf) == 0 {
		return nil
	}
	return p.frameReady()
}

// Pending returns the number of bytes of an incomplete frame.
func (p *Parser) Pending() int {
	return len(p.buf)
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.buf, p.want, p.state = nil, 0, stateHeader
}

func (p *Parser) frameReady() []byte {
	raw := p.buf
	p.Reset()
	return raw
}
