package common

import (
	"fmt"
)

// --------------------------------------------------------------------------
// Actions
// --------------------------------------------------------------------------

// Action selects how the server answers a request
type Action string

const (
	// ActionQuery reads a key of the device snapshot without touching the device
	ActionQuery Action = "query"
	// ActionCommand queues a method call for the executor and waits for its result
	ActionCommand Action = "command"
	// ActionInfo returns the static device info
	ActionInfo Action = "info"
)

// IsValid returns true for the known actions
func (a Action) IsValid() bool {
	switch a {
	case ActionQuery, ActionCommand, ActionInfo:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Request / Response
// --------------------------------------------------------------------------

// Request is the decoded payload of a structured request frame
type Request struct {
	Action Action `json:"action" cbor:"action"`
	Value  string `json:"value" cbor:"value"`
}

// Response carries either Result or Error
type Response struct {
	Result any    `json:"result,omitempty" cbor:"result,omitempty"`
	Error  string `json:"error,omitempty" cbor:"error,omitempty"`
}

// IsError returns true if the response carries an error
func (r *Response) IsError() bool {
	return r.Error != ""
}

// NewQueryRequest creates a new query request
func NewQueryRequest(key string) *Request {
	return &Request{Action: ActionQuery, Value: key}
}

// NewCommandRequest creates a new command request from the textual command
func NewCommandRequest(command string) *Request {
	return &Request{Action: ActionCommand, Value: command}
}

// NewInfoRequest creates a new info request
func NewInfoRequest() *Request {
	return &Request{Action: ActionInfo}
}

// NewResultResponse creates a successful response
func NewResultResponse(result any) *Response {
	return &Response{Result: result}
}

// NewErrorResponse creates an error response
func NewErrorResponse(err string) *Response {
	return &Response{Error: err}
}

// NewNoMatchResponse is the answer to a query for an unknown or empty snapshot key
func NewNoMatchResponse(key string) *Response {
	return NewErrorResponse(fmt.Sprintf("No match for %q.", key))
}

// NewInvalidActionResponse is the answer to a request with an unknown action
func NewInvalidActionResponse(action Action) *Response {
	return NewErrorResponse(fmt.Sprintf("invalid action %q.", string(action)))
}
