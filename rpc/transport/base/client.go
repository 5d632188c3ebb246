package base

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/frame"
	"github.com/ValentinKolb/sockdev/rpc/transport"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport sends every request on a new connection, the protocol carries
// exactly one request per connection. Endpoints are used round robin. Failed
// requests are not retried, that is up to the caller.
type clientTransport struct {
	connector    IClientConnector
	config       common.ClientConfig
	nextEndpoint atomic.Uint64
	connected    atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{connector: connector}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}
	t.config = config
	t.connected.Store(true)

	Logger.Debugf("using %d endpoint(s) with %s transport", len(config.Transport.Endpoints), t.connector.GetName())
	return nil
}

func (t *clientTransport) Send(ctx context.Context, contentType, contentEncoding string, payload []byte) (*frame.Frame, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("transport is not connected")
	}

	if timeout := t.config.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := t.endpoint()
	conn, err := t.connector.Connect(ctx, endpoint)
	if err != nil {
		return nil, t.wrapError(ctx, endpoint, "connect", err)
	}
	defer conn.Close()

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		return nil, fmt.Errorf("failed to upgrade connection to %s: %w", endpoint, err)
	}

	// the deadline covers the whole exchange, cancellation interrupts blocked I/O
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := writeFrame(conn, payload, contentType, contentEncoding); err != nil {
		return nil, t.wrapError(ctx, endpoint, "send request", err)
	}

	f, err := readFrame(conn, t.config.MaxContentLength)
	if err != nil {
		return nil, t.wrapError(ctx, endpoint, "read response", err)
	}
	return f, nil
}

func (t *clientTransport) Close() error {
	t.connected.Store(false)
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// endpoint selects the next endpoint via Round Robin
func (t *clientTransport) endpoint() string {
	endpoints := t.config.Transport.Endpoints
	if len(endpoints) == 1 {
		return endpoints[0]
	}
	index := t.nextEndpoint.Add(1) - 1
	return endpoints[index%uint64(len(endpoints))]
}

func (t *clientTransport) wrapError(ctx context.Context, endpoint, op string, err error) error {
	if ctx.Err() == context.Canceled {
		return fmt.Errorf("failed to %s (%s): %w", op, endpoint, ctx.Err())
	}
	if isTimeout(err) || ctx.Err() != nil {
		return fmt.Errorf("%w: %s (%s)", transport.ErrResponseTimeout, op, endpoint)
	}
	return fmt.Errorf("failed to %s (%s): %w", op, endpoint, err)
}
