package frame

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

const (
	// HeaderLengthSize is the size of the big endian header length prefix
	HeaderLengthSize = 2

	// DefaultMaxContentLength is the default limit for payloads (16 MiB)
	DefaultMaxContentLength = 16 << 20
)

// Required header fields
const (
	FieldByteOrder       = "byteorder"
	FieldContentLength   = "content-length"
	FieldContentType     = "content-type"
	FieldContentEncoding = "content-encoding"
)

// requiredFields are checked in this order when decoding a header
var requiredFields = []string{FieldByteOrder, FieldContentLength, FieldContentType, FieldContentEncoding}

// Header is the structured (json) header of a frame
type Header struct {
	ByteOrder       string `json:"byteorder"`
	ContentType     string `json:"content-type"`
	ContentEncoding string `json:"content-encoding"`
	ContentLength   uint32 `json:"content-length"`
}

// Frame is one decoded unit of wire data
type Frame struct {
	Header  Header
	Payload []byte
}

// nativeByteOrder is reported in the header of every encoded frame ("little" or "big")
var nativeByteOrder = func() string {
	if binary.NativeEndian.Uint16([]byte{1, 0}) == 1 {
		return "little"
	}
	return "big"
}()

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// Encode creates a frame: u16-BE(len(header)) | header | content
func Encode(content []byte, contentType, contentEncoding string) ([]byte, error) {
	if uint64(len(content)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(content))
	}

	headerBytes, err := encodeHeader(Header{
		ByteOrder:       nativeByteOrder,
		ContentType:     contentType,
		ContentEncoding: contentEncoding,
		ContentLength:   uint32(len(content)),
	})
	if err != nil {
		return nil, err
	}
	if len(headerBytes) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerBytes))
	}

	out := make([]byte, HeaderLengthSize+len(headerBytes)+len(content))
	binary.BigEndian.PutUint16(out[:HeaderLengthSize], uint16(len(headerBytes)))
	copy(out[HeaderLengthSize:], headerBytes)
	copy(out[HeaderLengthSize+len(headerBytes):], content)
	return out, nil
}

func encodeHeader(h Header) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(h); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// --------------------------------------------------------------------------
// Decoding steps
// --------------------------------------------------------------------------

// DecodeHeaderLength reads the u16 header length prefix.
// ok is false (and buf returned unchanged) if fewer than 2 bytes are buffered.
func DecodeHeaderLength(buf []byte) (length uint16, ok bool, rest []byte) {
	if len(buf) < HeaderLengthSize {
		return 0, false, buf
	}
	return binary.BigEndian.Uint16(buf[:HeaderLengthSize]), true, buf[HeaderLengthSize:]
}

// DecodeHeader decodes the structured header of the given length.
// It returns a nil header (and buf unchanged) until length bytes are available.
func DecodeHeader(buf []byte, length uint16) (*Header, []byte, error) {
	if len(buf) < int(length) {
		return nil, buf, nil
	}

	raw := buf[:length]
	rest := buf[length:]

	// Check required fields first to report the missing one
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, rest, &MalformedHeaderError{Err: err}
	}
	for _, field := range requiredFields {
		if _, ok := fields[field]; !ok {
			return nil, rest, &MalformedHeaderError{Field: field}
		}
	}

	var h Header
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, rest, &MalformedHeaderError{Err: err}
	}
	return &h, rest, nil
}

// DecodePayload returns the payload once header.ContentLength bytes are available,
// nil (and buf unchanged) before.
func DecodePayload(buf []byte, header *Header) ([]byte, []byte) {
	n := int(header.ContentLength)
	if len(buf) < n {
		return nil, buf
	}
	payload := make([]byte, n)
	copy(payload, buf[:n])
	return payload, buf[n:]
}
