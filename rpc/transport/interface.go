package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/frame"
)

// ErrResponseTimeout is returned by client transports when no complete response
// arrived in time
var ErrResponseTimeout = errors.New("response timeout")

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// Reply is the answer to one request, possibly not available yet.
// Poll is only called from the server's event loop goroutine: immediately after the
// request was handled, after every wake up signal and on every loop tick. It
// returns the response as soon as it is available.
type Reply interface {
	Poll(now time.Time) (*common.Response, bool)
}

// ReplyFunc adapts a function to the Reply interface
type ReplyFunc func(now time.Time) (*common.Response, bool)

func (f ReplyFunc) Poll(now time.Time) (*common.Response, bool) {
	return f(now)
}

// Ready returns a Reply that is available immediately
func Ready(resp *common.Response) Reply {
	return ReplyFunc(func(time.Time) (*common.Response, bool) {
		return resp, true
	})
}

// ServerHandleFunc handles a decoded request. It is called on the event loop
// goroutine and must not block; slow work is handed off and reported through the
// returned Reply.
type ServerHandleFunc func(connID string, req *common.Request) Reply

// IRPCServerTransport is the interface for the server side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the request handler. A signal on wake makes the
	// transport poll all pending replies (nil = poll on ticks only).
	RegisterHandler(handler ServerHandleFunc, wake <-chan struct{})

	// Bind creates the listener and returns its address
	Bind(config common.ServerConfig) (net.Addr, error)

	// Serve runs the event loop on the bound listener until ctx is done
	Serve(ctx context.Context) error

	// Listen binds and serves
	Listen(ctx context.Context, config common.ServerConfig) error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error

	// Send sends one framed payload on a fresh connection and returns the response frame
	Send(ctx context.Context, contentType, contentEncoding string, payload []byte) (*frame.Frame, error)

	// Close closes the transport, further sends fail
	Close() error
}
