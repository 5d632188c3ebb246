package server

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/sockdev/lib/call"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/lib/device/sim"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/serializer"
	"github.com/ValentinKolb/sockdev/rpc/transport/tcp"
	"github.com/VictoriaMetrics/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDeviceServer(t *testing.T, config common.ServerConfig) (*DeviceServer, string) {
	t.Helper()
	supply, err := sim.New(sim.DefaultProfile())
	require.NoError(t, err)
	return serveDriver(t, config, supply)
}

func serveDriver(t *testing.T, config common.ServerConfig, driver device.IDriver) (*DeviceServer, string) {
	t.Helper()
	s := NewRPCServer(config, tcp.NewTCPServerTransport(), driver)
	addr, err := s.Bind()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("device server did not stop")
		}
	})
	return s, addr.String()
}

func testConfig() common.ServerConfig {
	return common.ServerConfig{
		DeviceName:               "psu",
		Endpoint:                 "127.0.0.1:0",
		TimeoutSecond:            0.5,
		SelectTimeoutMillisecond: 10,
		LogLevel:                 "warn",
	}
}

func request(t *testing.T, endpoint string, req *common.Request) *common.Response {
	t.Helper()
	resp, err := doRequest(endpoint, req)
	require.NoError(t, err)
	return resp
}

// doRequest sends req on its own connection, usable off the test goroutine
func doRequest(endpoint string, req *common.Request) (*common.Response, error) {
	c := tcp.NewTCPClientTransport()
	if err := c.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{endpoint}},
	}); err != nil {
		return nil, err
	}
	defer c.Close()

	ser := serializer.NewJSONSerializer()
	payload, err := ser.Serialize(req)
	if err != nil {
		return nil, err
	}
	f, err := c.Send(context.Background(), ser.ContentType(), ser.ContentEncoding(), payload)
	if err != nil {
		return nil, err
	}

	resp := &common.Response{}
	if err := ser.Deserialize(f.Payload, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func TestDeviceServerCommandScenarios(t *testing.T) {
	_, endpoint := startDeviceServer(t, testConfig())

	resp := request(t, endpoint, common.NewCommandRequest("SetVoltage(5.0)"))
	require.False(t, resp.IsError(), resp.Error)
	tuple := resp.Result.([]any)
	assert.Equal(t, "SetVoltage(5.0)", tuple[1])
	assert.Nil(t, tuple[2])

	resp = request(t, endpoint, common.NewCommandRequest("GetVoltage()"))
	tuple = resp.Result.([]any)
	assert.Equal(t, 5.0, tuple[2])

	resp = request(t, endpoint, common.NewCommandRequest("Fail('overheated')"))
	tuple = resp.Result.([]any)
	assert.Equal(t, "Exception: overheated", tuple[2])

	start := time.Now()
	resp = request(t, endpoint, common.NewCommandRequest("Sleep(2)"))
	tuple = resp.Result.([]any)
	assert.Equal(t, "not executed, 0.5s timeout", tuple[2])
	assert.Less(t, time.Since(start), 1500*time.Millisecond, "timeout answered within timeout plus select timeout")
}

func TestDeviceServerQueryAndInfo(t *testing.T) {
	s, endpoint := startDeviceServer(t, testConfig())

	resp := request(t, endpoint, common.NewQueryRequest("ReadValue"))
	assert.Equal(t, `No match for "ReadValue".`, resp.Error)

	resp = request(t, endpoint, common.NewQueryRequest("verification"))
	assert.Equal(t, "SIM-PSU-30,0001", resp.Result)

	resp = request(t, endpoint, common.NewInfoRequest())
	info := resp.Result.(map[string]any)
	assert.Equal(t, "psu", info["name"])

	// ReadValue through the in-process wrapper republishes the snapshot
	_, err := s.Wrapper().ReadValue(context.Background())
	require.NoError(t, err)

	resp = request(t, endpoint, common.NewQueryRequest("ReadValue"))
	require.False(t, resp.IsError(), resp.Error)
	reading := resp.Result.([]any)
	require.Len(t, reading, 2)
	assert.Equal(t, []any{0.0, 0.0, 0.0}, reading[1])

	resp = request(t, endpoint, &common.Request{Action: "reboot"})
	assert.Equal(t, `invalid action "reboot".`, resp.Error)
}

func TestDeviceServerReadValuePoller(t *testing.T) {
	config := testConfig()
	config.ReadIntervalMillisecond = 10
	s, _ := startDeviceServer(t, config)

	assert.Eventually(t, func() bool {
		_, ok := s.Snapshot().Get(device.KeyReadValue)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeviceServerInProcessWrapper(t *testing.T) {
	s, endpoint := startDeviceServer(t, testConfig())
	w := s.Wrapper()
	ctx := context.Background()

	_, err := w.Invoke(ctx, "SetVoltage", 12.0)
	require.NoError(t, err)

	// in-process and remote callers share the executor
	resp := request(t, endpoint, common.NewCommandRequest("GetVoltage()"))
	assert.Equal(t, 12.0, resp.Result.([]any)[2])

	v, err := w.Invoke(ctx, "Explode")
	require.NoError(t, err)
	assert.True(t, call.IsFailure(v))
}

func TestDeviceServerServesWhileExecutorBusy(t *testing.T) {
	_, endpoint := startDeviceServer(t, testConfig())

	type reply struct {
		resp *common.Response
		err  error
	}
	slow := make(chan reply, 1)
	go func() {
		resp, err := doRequest(endpoint, common.NewCommandRequest("Sleep(0.3)"))
		slow <- reply{resp, err}
	}()
	time.Sleep(20 * time.Millisecond)

	// queries never wait for the device
	start := time.Now()
	resp := request(t, endpoint, common.NewQueryRequest("verification"))
	assert.False(t, resp.IsError())
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	r := <-slow
	require.NoError(t, r.err)
	assert.Equal(t, 0.3, r.resp.Result.([]any)[2])
}

// countingDriver numbers its Work calls and records how many ran at once
type countingDriver struct {
	table       *device.Table
	calls       atomic.Int64
	running     atomic.Int64
	maxParallel atomic.Int64
}

func newCountingDriver() *countingDriver {
	d := &countingDriver{}
	d.table = device.NewTable().Register("Work", func(device.Call) (any, error) {
		n := d.running.Add(1)
		defer d.running.Add(-1)
		for {
			m := d.maxParallel.Load()
			if n <= m || d.maxParallel.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return d.calls.Add(1), nil
	})
	return d
}

func (d *countingDriver) Name() string { return "counter" }
func (d *countingDriver) Verification() string { return "counter,1" }
func (d *countingDriver) Info() map[string]any { return map[string]any{"name": "counter"} }
func (d *countingDriver) Methods() *device.Table { return d.table }
func (d *countingDriver) Close() error { return nil }

func TestDeviceServerIdenticalConcurrentCommands(t *testing.T) {
	config := testConfig()
	config.DeviceName = "counter"
	config.TimeoutSecond = 5
	driver := newCountingDriver()
	_, endpoint := serveDriver(t, config, driver)

	const clients = 40
	type reply struct {
		resp *common.Response
		err  error
	}
	replies := make(chan reply, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := doRequest(endpoint, common.NewCommandRequest("Work()"))
			replies <- reply{resp, err}
		}()
	}
	wg.Wait()
	close(replies)

	seen := make(map[float64]bool)
	for r := range replies {
		require.NoError(t, r.err)
		require.False(t, r.resp.IsError(), r.resp.Error)
		tuple := r.resp.Result.([]any)
		assert.Equal(t, "Work()", tuple[1])
		n, ok := tuple[2].(float64)
		require.True(t, ok, "unexpected value %v", tuple[2])
		assert.False(t, seen[n], "result %v delivered twice", n)
		seen[n] = true
	}

	assert.Len(t, seen, clients, "every request gets its own result")
	assert.Equal(t, int64(clients), driver.calls.Load())
	assert.Equal(t, int64(1), driver.maxParallel.Load(), "driver calls never overlap")
}

func TestDeviceServerGaugesFollowLatestServer(t *testing.T) {
	config := testConfig()
	config.DeviceName = "gauge-psu"
	startDeviceServer(t, config)

	// bound but not serving: its executor does not drain the queue
	supply, err := sim.New(sim.DefaultProfile())
	require.NoError(t, err)
	second := NewRPCServer(config, tcp.NewTCPServerTransport(), supply)
	_, err = second.Bind()
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := second.Bridge().Enqueue(device.NewCommand("GetVoltage"))
		require.NoError(t, err)
	}

	gauge := func(name string) float64 {
		return metrics.GetOrCreateGauge(fmt.Sprintf(`%s{device="gauge-psu"}`, name), func() float64 { return -1 }).Get()
	}
	assert.Equal(t, 2.0, gauge("sockdev_bridge_queue_length"))
	assert.Equal(t, 2.0, gauge("sockdev_bridge_waiting"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, second.Serve(ctx))

	assert.Equal(t, 0.0, gauge("sockdev_bridge_queue_length"))
	assert.Equal(t, 0.0, gauge("sockdev_bridge_waiting"))
}
