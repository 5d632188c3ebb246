package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// ExceptionPrefix marks a result value that carries an execution error
	ExceptionPrefix = "Exception: "

	// exceptionMarker is searched for when classifying result values
	exceptionMarker = "Exception"

	// timeoutPrefix and timeoutSuffix frame the timeout marker "not executed, <T>s timeout"
	timeoutPrefix = "not executed, "
	timeoutSuffix = "s timeout"
)

// Result is the outcome of one executed (or timed out) command
type Result struct {
	Timestamp time.Time
	Command   string
	Value     any
}

// NewResult creates a result stamped with the given time
func NewResult(ts time.Time, command string, value any) Result {
	return Result{Timestamp: ts, Command: command, Value: value}
}

// NewExceptionResult creates the result of a failed execution
func NewExceptionResult(ts time.Time, command string, err any) Result {
	return Result{Timestamp: ts, Command: command, Value: ExceptionPrefix + fmt.Sprint(err)}
}

// NewTimeoutResult creates the result of a command that was not executed in time
func NewTimeoutResult(ts time.Time, command string, timeout time.Duration) Result {
	return Result{Timestamp: ts, Command: command, Value: TimeoutMessage(timeout)}
}

// TimeoutMessage renders the timeout marker, e.g. "not executed, 2s timeout".
// Seconds are printed in their shortest form without a forced decimal point:
// 2s, 0.5s, 1.25s (never "2.0s"). Clients matching the literal text must expect
// this form; IsTimeout only checks the prefix and suffix.
func TimeoutMessage(timeout time.Duration) string {
	return timeoutPrefix + strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64) + timeoutSuffix
}

// Tuple returns the wire representation [timestamp_seconds, command, value]
func (r Result) Tuple() []any {
	return []any{UnixSeconds(r.Timestamp), r.Command, r.Value}
}

// IsException reports whether the value carries the exception marker
func (r Result) IsException() bool {
	return IsException(r.Value)
}

// IsTimeout reports whether the value is the timeout marker
func (r Result) IsTimeout() bool {
	return IsTimeout(r.Value)
}

// ResultFromTuple converts a decoded wire tuple back into a Result
func ResultFromTuple(v any) (Result, error) {
	tuple, ok := v.([]any)
	if !ok || len(tuple) != 3 {
		return Result{}, fmt.Errorf("result is not a 3-tuple: %v", v)
	}

	sec, ok := ToFloat(tuple[0])
	if !ok {
		return Result{}, fmt.Errorf("result timestamp is not a number: %v", tuple[0])
	}
	command, ok := tuple[1].(string)
	if !ok {
		return Result{}, fmt.Errorf("result command is not a string: %v", tuple[1])
	}
	return Result{Timestamp: FromUnixSeconds(sec), Command: command, Value: tuple[2]}, nil
}

// IsException reports whether v is a string containing the exception marker
func IsException(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, exceptionMarker)
}

// IsTimeout reports whether v is a timeout marker
func IsTimeout(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, timeoutPrefix) && strings.HasSuffix(s, timeoutSuffix)
}

// UnixSeconds converts a time to fractional unix seconds
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts fractional unix seconds to a time
func FromUnixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
