package server

import (
	"fmt"
	"reflect"
	"time"

	"github.com/ValentinKolb/sockdev/lib/bridge"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
)

// NewDeviceServerAdapter creates the adapter of a device server.
// Queries and info requests are answered from the snapshot, commands are queued
// on the bridge and answered once the executor published their result or the
// timeout passed.
func NewDeviceServerAdapter(deviceName string, b *bridge.Bridge, snapshot *device.Snapshot, timeout time.Duration) IRPCServerAdapter {
	counter := func(action string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_requests_total{device=%q,action=%q}`, deviceName, action))
	}
	return &deviceServerAdapter{
		deviceName: deviceName,
		bridge:     b,
		snapshot:   snapshot,
		timeout:    timeout,
		queries:    counter(string(common.ActionQuery)),
		commands:   counter(string(common.ActionCommand)),
		infos:      counter(string(common.ActionInfo)),
		invalid:    counter("invalid"),
		timeouts:   metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_command_timeouts_total{device=%q}`, deviceName)),
	}
}

type deviceServerAdapter struct {
	deviceName string
	bridge     *bridge.Bridge
	snapshot   *device.Snapshot
	timeout    time.Duration

	queries  *metrics.Counter
	commands *metrics.Counter
	infos    *metrics.Counter
	invalid  *metrics.Counter
	timeouts *metrics.Counter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.IRPCServerAdapter)
// --------------------------------------------------------------------------

func (a *deviceServerAdapter) Handle(connID string, req *common.Request) transport.Reply {
	Logger.Infof("[%s] conn %s: execute %s %q", a.deviceName, connID, req.Action, req.Value)

	switch req.Action {
	case common.ActionQuery:
		a.queries.Inc()
		value, ok := a.snapshot.Get(req.Value)
		if !ok || isEmpty(value) {
			return transport.Ready(common.NewNoMatchResponse(req.Value))
		}
		return transport.Ready(common.NewResultResponse(value))

	case common.ActionInfo:
		a.infos.Inc()
		info, ok := a.snapshot.Info()
		if !ok {
			return transport.Ready(common.NewNoMatchResponse(device.KeyInfo))
		}
		return transport.Ready(common.NewResultResponse(info))

	case common.ActionCommand:
		a.commands.Inc()
		return a.handleCommand(req.Value)

	default:
		a.invalid.Inc()
		return transport.Ready(common.NewInvalidActionResponse(req.Action))
	}
}

// --------------------------------------------------------------------------
// Commands
// --------------------------------------------------------------------------

func (a *deviceServerAdapter) handleCommand(text string) transport.Reply {
	cmd, err := device.ParseCommand(text)
	if err != nil {
		// never queued, the executor would only report the same exception
		return transport.Ready(common.NewResultResponse(device.NewExceptionResult(time.Now(), text, err).Tuple()))
	}

	p, err := a.bridge.EnqueueText(text, cmd)
	if err != nil {
		return transport.Ready(common.NewErrorResponse(fmt.Sprintf("command not queued: %v", err)))
	}

	var deadline time.Time
	if a.timeout > 0 {
		deadline = time.Now().Add(a.timeout)
	}
	return &commandReply{adapter: a, pending: p, deadline: deadline}
}

// commandReply waits for the result of one queued command
type commandReply struct {
	adapter  *deviceServerAdapter
	pending  *bridge.Pending
	deadline time.Time
}

func (r *commandReply) Poll(now time.Time) (*common.Response, bool) {
	select {
	case <-r.pending.Done():
		result, ok := r.pending.Result()
		if !ok {
			return common.NewErrorResponse(fmt.Sprintf("%s: %v", r.pending.Text, device.ErrClosed)), true
		}
		return common.NewResultResponse(result.Tuple()), true
	default:
	}

	if !r.deadline.IsZero() && !now.Before(r.deadline) {
		r.adapter.bridge.Abandon(r.pending.ID)
		r.adapter.timeouts.Inc()
		Logger.Warningf("[%s] %s not executed within %s", r.adapter.deviceName, r.pending.Text, r.adapter.timeout)
		return common.NewResultResponse(device.NewTimeoutResult(now, r.pending.Text, r.adapter.timeout).Tuple()), true
	}
	return nil, false
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// isEmpty reports values a query treats as missing: nil, empty strings and
// empty collections
func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
