package server

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/sockdev/lib/bridge"
	"github.com/ValentinKolb/sockdev/lib/call"
	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/lib/executor"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// DeviceServer makes one device available over the network.
//
// It owns the command bridge, the executor (the only goroutine touching the
// driver), the device snapshot and the transport's event loop.
type DeviceServer struct {
	config    common.ServerConfig
	transport transport.IRPCServerTransport
	driver    device.IDriver

	bridge   *bridge.Bridge
	snapshot *device.Snapshot
	executor *executor.Executor
	wrapper  *call.Wrapper
	adapter  IRPCServerAdapter
	wake     chan struct{}

	addr net.Addr
}

// NewRPCServer creates a new device server
// It takes a config, transport and the device driver as parameters
//
// Usage:
//
//	supply, _ := sim.New(sim.DefaultProfile())
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		supply,
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	driver device.IDriver,
) *DeviceServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.DeviceName == "" {
		config.DeviceName = driver.Name()
	}

	b := bridge.New(bridge.Options{Timeout: config.Timeout()})
	snapshot := device.NewSnapshot()
	device.InitSnapshot(snapshot, driver)

	s := &DeviceServer{
		config:    config,
		transport: transport,
		driver:    driver,
		bridge:    b,
		snapshot:  snapshot,
		executor:  executor.New(b, driver),
		wrapper:   call.NewWrapper(config.DeviceName, b).WithSnapshot(snapshot),
		adapter:   NewDeviceServerAdapter(config.DeviceName, b, snapshot, config.Timeout()),
		wake:      make(chan struct{}, 1),
	}
	b.Notify(s.wake)
	return s
}

// Snapshot returns the device snapshot served to query requests
func (s *DeviceServer) Snapshot() *device.Snapshot {
	return s.snapshot
}

// Bridge returns the command bridge in front of the executor
func (s *DeviceServer) Bridge() *bridge.Bridge {
	return s.bridge
}

// Wrapper returns a wrapper running commands in-process through the bridge
func (s *DeviceServer) Wrapper() *call.Wrapper {
	return s.wrapper
}

// Bind initializes logging and creates the listener. It is called by Serve if
// needed; calling it first reveals the address of a ":0" endpoint.
func (s *DeviceServer) Bind() (net.Addr, error) {
	if s.addr != nil {
		return s.addr, nil
	}
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return nil, err
	}

	Logger.Infof("Created device server")
	Logger.Infof(s.config.String())

	s.transport.RegisterHandler(s.adapter.Handle, s.wake)
	addr, err := s.transport.Bind(s.config)
	if err != nil {
		return nil, err
	}
	s.registerGauges()
	s.addr = addr
	return addr, nil
}

// Serve runs the server until ctx is done. On return the bridge is closed, the
// executor stopped and the driver closed.
func (s *DeviceServer) Serve(ctx context.Context) error {
	if _, err := s.Bind(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	run := func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	}

	run(func() {
		if err := s.executor.Run(ctx); err != nil && ctx.Err() == nil {
			Logger.Errorf("[%s] executor stopped: %v", s.config.DeviceName, err)
		}
	})
	if interval := s.config.ReadInterval(); interval > 0 {
		run(func() { s.pollReadValue(ctx, interval) })
	}
	if s.config.MetricsEndpoint != "" {
		run(func() { s.serveMetrics(ctx) })
	}

	err := s.transport.Serve(ctx)

	cancel()
	s.bridge.Close()
	wg.Wait()
	s.unregisterGauges()

	if closeErr := s.driver.Close(); closeErr != nil {
		Logger.Warningf("[%s] failed to close driver: %v", s.config.DeviceName, closeErr)
	}
	Logger.Infof("[%s] device server stopped", s.config.DeviceName)

	if err != nil {
		return fmt.Errorf("transport failed: %w", err)
	}
	return nil
}

// pollReadValue keeps the ReadValue snapshot fresh by calling ReadValue through
// the bridge, like any other client
func (s *DeviceServer) pollReadValue(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			callCtx, cancel := call.Deadline(ctx, s.config.Timeout())
			if _, err := s.wrapper.ReadValue(callCtx); err != nil && ctx.Err() == nil {
				Logger.Warningf("[%s] ReadValue failed: %v", s.config.DeviceName, err)
			}
			cancel()
		}
	}
}
