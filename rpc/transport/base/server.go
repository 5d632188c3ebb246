package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// readChunkSize is the size of a single socket read
const readChunkSize = 4096

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// openConns counts the open connections per device name over all transports
// serving that name. The gauge of a name is registered together with its counter.
var openConns = xsync.NewMapOf[string, *atomic.Int64]()

func openConnections(device string) *atomic.Int64 {
	open, loaded := openConns.LoadOrStore(device, &atomic.Int64{})
	if !loaded {
		metrics.GetOrCreateGauge(fmt.Sprintf(`sockdev_connections_open{device=%q}`, device), func() float64 {
			return float64(open.Load())
		})
	}
	return open
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

type eventKind uint8

const (
	evAccept eventKind = iota
	evRead
	evWritten
)

// event is reported by the I/O goroutines to the event loop
type event struct {
	kind eventKind
	id   string
	conn net.Conn
	data []byte
	n    int
	err  error
}

// connEntry is an open connection owned by the event loop
type connEntry struct {
	sm      *serverConn
	conn    net.Conn
	writing bool
}

// serverTransport multiplexes all connections of one listener on a single event
// loop goroutine. Accept, read and write goroutines only move bytes and report
// events, every state transition happens on the loop.
type serverTransport struct {
	connector IServerConnector
	handler   transport.ServerHandleFunc
	wake      <-chan struct{}
	config    common.ServerConfig
	listener  net.Listener

	events     chan event
	conns      map[string]*connEntry
	bufferPool *sync.Pool

	open     *atomic.Int64
	accepted *metrics.Counter
	failed   *metrics.Counter
	served   *metrics.Counter
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new event loop based server transport
func NewBaseServerTransport(connector IServerConnector) transport.IRPCServerTransport {
	return &serverTransport{
		connector: connector,
		events:    make(chan event, 64),
		conns:     make(map[string]*connEntry),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, readChunkSize)
				return &buf
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ServerHandleFunc, wake <-chan struct{}) {
	t.handler = handler
	t.wake = wake
}

func (t *serverTransport) Bind(config common.ServerConfig) (net.Addr, error) {
	t.config = config

	listener, err := t.connector.Listen(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}
	t.listener = listener

	device := config.DeviceName
	t.accepted = metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_connections_accepted_total{device=%q}`, device))
	t.failed = metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_connections_failed_total{device=%q}`, device))
	t.served = metrics.GetOrCreateCounter(fmt.Sprintf(`sockdev_requests_served_total{device=%q}`, device))
	t.open = openConnections(device)

	Logger.Infof("[%s] %s server listening on %s", device, t.connector.GetName(), listener.Addr())
	return listener.Addr(), nil
}

func (t *serverTransport) Listen(ctx context.Context, config common.ServerConfig) error {
	if _, err := t.Bind(config); err != nil {
		return err
	}
	return t.Serve(ctx)
}

func (t *serverTransport) Serve(ctx context.Context) error {
	if t.listener == nil {
		return fmt.Errorf("server transport is not bound")
	}
	if t.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer t.shutdown()

	go t.acceptLoop(ctx)

	ticker := time.NewTicker(t.config.SelectTimeout())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			Logger.Infof("[%s] stopping server, closing %d open connections", t.config.DeviceName, len(t.conns))
			return nil
		case ev := <-t.events:
			t.handleEvent(ctx, ev)
		case <-t.wake:
			t.pollAll(ctx)
		case <-ticker.C:
			t.pollAll(ctx)
		}
	}
}

// --------------------------------------------------------------------------
// Event Loop
// --------------------------------------------------------------------------

// handleEvent applies one I/O event. A panic closes only the affected connection.
func (t *serverTransport) handleEvent(ctx context.Context, ev event) {
	defer t.recoverConn(ev.id)

	switch ev.kind {
	case evAccept:
		t.register(ctx, ev.conn)

	case evRead:
		entry, ok := t.conns[ev.id]
		if !ok {
			return
		}
		if len(ev.data) > 0 {
			if err := entry.sm.onReadable(ev.data, time.Now()); err != nil {
				t.fail(ev.id, fmt.Errorf("protocol error: %w", err))
				return
			}
		}
		if ev.err != nil && entry.sm.state.reading() {
			t.fail(ev.id, fmt.Errorf("read failed in state %s: %w", entry.sm.state, ev.err))
			return
		}
		t.flush(ctx, ev.id, entry)

	case evWritten:
		entry, ok := t.conns[ev.id]
		if !ok {
			return
		}
		entry.writing = false
		if ev.err != nil {
			t.fail(ev.id, fmt.Errorf("write failed: %w", ev.err))
			return
		}
		if entry.sm.onWritable(ev.n) {
			t.served.Inc()
			Logger.Debugf("[%s] conn %s: served %s", t.config.DeviceName, ev.id, entry.sm.describe())
			t.closeConn(ev.id)
			return
		}
		t.flush(ctx, ev.id, entry)
	}
}

// pollAll re-checks the pending replies of all connections
func (t *serverTransport) pollAll(ctx context.Context) {
	now := time.Now()
	for id, entry := range t.conns {
		if entry.sm.state != StateAwaitResult {
			continue
		}
		t.pollConn(ctx, id, entry, now)
	}
}

func (t *serverTransport) pollConn(ctx context.Context, id string, entry *connEntry, now time.Time) {
	defer t.recoverConn(id)

	if err := entry.sm.poll(now); err != nil {
		t.fail(id, fmt.Errorf("failed to create response: %w", err))
		return
	}
	t.flush(ctx, id, entry)
}

// flush starts a write of the pending response, one write in flight per connection
func (t *serverTransport) flush(ctx context.Context, id string, entry *connEntry) {
	if entry.writing {
		return
	}
	out := entry.sm.pendingWrite()
	if len(out) == 0 {
		return
	}
	entry.writing = true

	conn := entry.conn
	if timeout := t.ioTimeout(); timeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	go func() {
		n, err := conn.Write(out)
		select {
		case t.events <- event{kind: evWritten, id: id, n: n, err: err}:
		case <-ctx.Done():
		}
	}()
}

// register creates the state machine of an accepted connection
func (t *serverTransport) register(ctx context.Context, conn net.Conn) {
	id := uuid.NewString()
	t.accepted.Inc()

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		Logger.Warningf("[%s] conn %s: failed to upgrade connection: %v", t.config.DeviceName, id, err)
	}
	if timeout := t.ioTimeout(); timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
	}

	t.conns[id] = &connEntry{
		sm:   newServerConn(id, t.handler, t.config.MaxContentLength),
		conn: conn,
	}
	t.open.Add(1)
	Logger.Debugf("[%s] conn %s: accepted from %s", t.config.DeviceName, id, conn.RemoteAddr())

	go t.readLoop(ctx, id, conn)
}

// fail logs a per connection error and closes only that connection
func (t *serverTransport) fail(id string, err error) {
	t.failed.Inc()
	Logger.Warningf("[%s] conn %s: %v", t.config.DeviceName, id, err)
	t.closeConn(id)
}

// recoverConn turns a panic while servicing a connection into a closed connection
func (t *serverTransport) recoverConn(id string) {
	if r := recover(); r != nil {
		t.failed.Inc()
		Logger.Errorf("[%s] conn %s: panic: %v", t.config.DeviceName, id, r)
		t.closeConn(id)
	}
}

func (t *serverTransport) closeConn(id string) {
	entry, ok := t.conns[id]
	if !ok {
		return
	}
	delete(t.conns, id)
	t.open.Add(-1)
	entry.sm.close()
	_ = entry.conn.Close()
}

// shutdown closes the listener and all open connections without draining
func (t *serverTransport) shutdown() {
	if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		Logger.Warningf("[%s] failed to close listener: %v", t.config.DeviceName, err)
	}
	for id := range t.conns {
		t.closeConn(id)
	}
}

func (t *serverTransport) ioTimeout() time.Duration {
	return time.Duration(t.config.Transport.ReadTimeoutSecond) * time.Second
}

// --------------------------------------------------------------------------
// I/O goroutines
// --------------------------------------------------------------------------

// acceptLoop reports accepted connections until the listener is closed
func (t *serverTransport) acceptLoop(ctx context.Context) {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("[%s] accept error: %v", t.config.DeviceName, err)
			time.Sleep(t.config.SelectTimeout())
			continue
		}

		select {
		case t.events <- event{kind: evAccept, conn: conn}:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

// readLoop reports received chunks until the connection fails or is closed
func (t *serverTransport) readLoop(ctx context.Context, id string, conn net.Conn) {
	for {
		bufPtr := t.bufferPool.Get().(*[]byte)
		n, err := conn.Read(*bufPtr)

		var data []byte
		if n > 0 {
			data = make([]byte, n)
			copy(data, (*bufPtr)[:n])
		}
		t.bufferPool.Put(bufPtr)

		select {
		case t.events <- event{kind: evRead, id: id, data: data, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
