package device

import "errors"

var (
	// ErrTimeout indicates that a command was not executed within the configured timeout
	ErrTimeout = errors.New("command timeout")

	// ErrUnknownMethod indicates that the driver does not provide the called method
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidCommand indicates that a command text could not be parsed
	ErrInvalidCommand = errors.New("invalid command")

	// ErrArgument indicates a missing or mistyped method argument
	ErrArgument = errors.New("invalid argument")

	// ErrClosed indicates that the command bridge was closed
	ErrClosed = errors.New("command bridge closed")
)
