package frame

import "fmt"

// Stage is the next piece of a frame the decoder is waiting for.
type Stage int

const (
	StageHeaderLength Stage = iota
	StageHeader
	StagePayload
)

func (s Stage) String() string {
	switch s {
	case StageHeaderLength:
		return "awaiting_header_length"
	case StageHeader:
		return "awaiting_header"
	case StagePayload:
		return "awaiting_payload"
	default:
		return "unknown"
	}
}

// Decoder extracts frames incrementally. Each completed stage is consumed from
// the caller's buffer so a later call resumes without re-parsing it.
type Decoder struct {
	limits    Limits
	stage     Stage
	headerLen uint16
	header    Header
}

func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

func (d *Decoder) Stage() Stage {
	return d.stage
}

// Reset drops any partially decoded header state.
func (d *Decoder) Reset() {
	d.stage = StageHeaderLength
	d.headerLen = 0
	d.header = Header{}
}

// Next advances through as many stages as buf allows. consumed is the number of
// leading bytes of buf the caller must drop, even when ok is false.
func (d *Decoder) Next(buf []byte) (f Frame, consumed int, ok bool, err error) {
	if d.stage == StageHeaderLength {
		n, used, ready := TryDecodeHeaderLength(buf)
		if !ready {
			return Frame{}, consumed, false, nil
		}
		consumed += used
		d.headerLen = n
		d.stage = StageHeader
	}

	if d.stage == StageHeader {
		h, used, ready, herr := TryDecodeHeader(buf[consumed:], d.headerLen)
		if herr != nil {
			return Frame{}, consumed + used, false, herr
		}
		if !ready {
			return Frame{}, consumed, false, nil
		}
		consumed += used
		if d.limits.MaxPayloadBytes > 0 && h.ContentLength > d.limits.MaxPayloadBytes {
			return Frame{}, consumed, false, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, h.ContentLength, d.limits.MaxPayloadBytes)
		}
		d.header = h
		d.stage = StagePayload
	}

	payload, used, ready := TryDecodePayload(buf[consumed:], d.header)
	if !ready {
		return Frame{}, consumed, false, nil
	}
	consumed += used
	f = Frame{Header: d.header, Payload: payload}
	d.Reset()
	return f, consumed, true, nil
}
