package frame

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates that a header announces more content than allowed
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrHeaderTooLarge indicates that the structured header does not fit the u16 length prefix
	ErrHeaderTooLarge = errors.New("structured header too large")

	// ErrIncomplete indicates that the stream ended before a full frame was received
	ErrIncomplete = errors.New("incomplete frame")
)

// MalformedHeaderError is returned when the structured header cannot be decoded or a
// required field is missing. It is fatal to the connection that sent the frame.
type MalformedHeaderError struct {
	// Field is the missing header field, empty if the header was not decodable at all
	Field string
	// Err is the decoding error, nil if a field was missing
	Err error
}

func (e *MalformedHeaderError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed header: missing required header %q", e.Field)
	}
	return fmt.Sprintf("malformed header: %v", e.Err)
}

func (e *MalformedHeaderError) Unwrap() error {
	return e.Err
}
