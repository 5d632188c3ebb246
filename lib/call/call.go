package call

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("call")

// Failure is returned in place of a value when a command failed on the device
var Failure = math.NaN()

// ErrFailed is used by typed proxies that report a Failure value as an error
var ErrFailed = errors.New("command failed on device")

// IsFailure reports whether v is the Failure sentinel
func IsFailure(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// ICaller runs a command and returns its result. Implemented by the in-process
// bridge and by the network client.
type ICaller interface {
	// Call executes cmd. Device side failures are reported in the result value,
	// err is only set if the command could not be run (timeout, transport).
	Call(ctx context.Context, cmd device.Command) (device.Result, error)
}

// Wrapper turns result tuples back into plain values, so calling a device method
// through a wrapper looks like calling the driver directly.
type Wrapper struct {
	device   string
	caller   ICaller
	snapshot *device.Snapshot
}

// NewWrapper creates a wrapper for the named device
func NewWrapper(deviceName string, caller ICaller) *Wrapper {
	return &Wrapper{device: deviceName, caller: caller}
}

// WithSnapshot sets the snapshot ReadValue results are republished to
func (w *Wrapper) WithSnapshot(s *device.Snapshot) *Wrapper {
	w.snapshot = s
	return w
}

// Device returns the device name
func (w *Wrapper) Device() string {
	return w.device
}

// Invoke calls method with positional arguments
func (w *Wrapper) Invoke(ctx context.Context, method string, args ...any) (any, error) {
	return w.InvokeCommand(ctx, device.NewCommand(method, args...))
}

// InvokeKw calls method with keyword and positional arguments
func (w *Wrapper) InvokeKw(ctx context.Context, method string, kwargs map[string]any, args ...any) (any, error) {
	return w.InvokeCommand(ctx, device.Command{Method: method, Args: args, Kwargs: kwargs})
}

// InvokeCommand calls cmd and classifies the result value:
//
//   - nil stays nil
//   - an exception value is logged and replaced by Failure
//   - a timeout value yields Failure and device.ErrTimeout
//   - everything else is returned unchanged
func (w *Wrapper) InvokeCommand(ctx context.Context, cmd device.Command) (any, error) {
	r, err := w.caller.Call(ctx, cmd)
	if err != nil {
		if !errors.Is(err, device.ErrTimeout) {
			log.Warningf("[%s] %s: %v", w.device, cmd, err)
		}
		return Failure, err
	}
	return w.classify(r)
}

// ReadValue calls ReadValue and republishes the reading without its leading
// timestamp as [timestamp, values...] under device.KeyReadValue
func (w *Wrapper) ReadValue(ctx context.Context) (any, error) {
	r, err := w.caller.Call(ctx, device.NewCommand(device.KeyReadValue))
	if err != nil {
		return Failure, err
	}
	value, err := w.classify(r)
	if err != nil || value == nil || IsFailure(value) {
		return value, err
	}

	if w.snapshot != nil {
		w.snapshot.Set(device.KeyReadValue, []any{device.UnixSeconds(r.Timestamp), dropFirst(value)})
	}
	return value, nil
}

func (w *Wrapper) classify(r device.Result) (any, error) {
	switch {
	case r.Value == nil:
		return nil, nil
	case r.IsTimeout():
		log.Warningf("[%s] %s: %v", w.device, r.Command, r.Value)
		return Failure, fmt.Errorf("%w: %s", device.ErrTimeout, r.Value)
	case r.IsException():
		log.Warningf("[%s] %s: %v", w.device, r.Command, r.Value)
		return Failure, nil
	default:
		return r.Value, nil
	}
}

// dropFirst removes the driver's own timestamp from a reading
func dropFirst(v any) any {
	switch values := v.(type) {
	case []any:
		if len(values) > 0 {
			return values[1:]
		}
	case []float64:
		if len(values) > 0 {
			return values[1:]
		}
	}
	return v
}

// Deadline returns a context bounded by timeout (0 = no bound)
func Deadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
