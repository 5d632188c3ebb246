package frame

import (
	"fmt"
)

// Stage is the progress of a Decoder through the current frame
type Stage uint8

const (
	// StageHeaderLength waits for the 2 byte header length prefix
	StageHeaderLength Stage = iota
	// StageHeader waits for the structured header
	StageHeader
	// StagePayload waits for the payload
	StagePayload
)

// String returns string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageHeaderLength:
		return "header-length"
	case StageHeader:
		return "header"
	case StagePayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Decoder decodes frames incrementally from a growing buffer.
//
// Bytes are added with Feed in chunks of any size; Next returns a frame once all of
// its bytes are buffered. Calling Next again without new bytes is harmless, no byte
// is consumed twice. A Decoder is not safe for concurrent use.
type Decoder struct {
	buf              []byte
	stage            Stage
	headerLength     uint16
	header           *Header
	maxContentLength uint32
}

// NewDecoder creates a decoder that rejects payloads larger than maxContentLength
// (0 selects DefaultMaxContentLength)
func NewDecoder(maxContentLength uint32) *Decoder {
	if maxContentLength == 0 {
		maxContentLength = DefaultMaxContentLength
	}
	return &Decoder{maxContentLength: maxContentLength}
}

// Feed appends received bytes to the receive buffer
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Stage returns the part of the frame the decoder is waiting for
func (d *Decoder) Stage() Stage {
	return d.stage
}

// Buffered returns the number of buffered, not yet consumed bytes
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Next advances through the decode steps as far as the buffered bytes allow.
// It returns (nil, nil) if more bytes are needed. Errors are not recoverable, the
// stream must be discarded.
func (d *Decoder) Next() (*Frame, error) {
	if d.stage == StageHeaderLength {
		length, ok, rest := DecodeHeaderLength(d.buf)
		if !ok {
			return nil, nil
		}
		d.headerLength = length
		d.buf = rest
		d.stage = StageHeader
	}

	if d.stage == StageHeader {
		header, rest, err := DecodeHeader(d.buf, d.headerLength)
		if err != nil {
			return nil, err
		}
		if header == nil {
			return nil, nil
		}
		if header.ContentLength > d.maxContentLength {
			return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, header.ContentLength, d.maxContentLength)
		}
		d.header = header
		d.buf = rest
		d.stage = StagePayload
	}

	payload, rest := DecodePayload(d.buf, d.header)
	if payload == nil {
		return nil, nil
	}
	d.buf = rest

	f := &Frame{Header: *d.header, Payload: payload}

	// Ready for the next frame
	d.header = nil
	d.headerLength = 0
	d.stage = StageHeaderLength
	return f, nil
}
