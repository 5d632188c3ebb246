package server

import (
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/transport"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for turning requests into (possibly deferred) responses
type IRPCServerAdapter interface {
	// Handle handles a request of the given connection and returns its reply.
	// It is called on the transport's event loop and must not block.
	// Errors are reported in the response, never returned.
	Handle(connID string, req *common.Request) transport.Reply
}
