package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/serializer"
	"github.com/ValentinKolb/sockdev/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")

	// ErrRemote wraps the error message of an error response
	ErrRemote = errors.New("remote error")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the device client with composition pattern
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC clients to send requests
// It takes a request, a transport layer and a serializer as parameters
// It returns the response and an error if the request failed or the server
// answered with an error response
func invokeRPCRequest(ctx context.Context, req *common.Request, transport transport.IRPCClientTransport, ser serializer.IRPCSerializer) (*common.Response, error) {
	// Serialize the request
	reqBytes, err := ser.Serialize(req)
	if err != nil {
		return nil, err
	}

	// Send the request
	f, err := transport.Send(ctx, ser.ContentType(), ser.ContentEncoding(), reqBytes)
	if err != nil {
		return nil, wrapTransportError(err)
	}

	// Decode with the serializer announced by the response
	respSer, ok := serializer.ForContentType(f.Header.ContentType)
	if !ok {
		return nil, fmt.Errorf("unexpected response content type %q", f.Header.ContentType)
	}
	resp := &common.Response{}
	if err := respSer.Deserialize(f.Payload, resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Check if the response is an error response
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrRemote, resp.Error)
	}
	return resp, nil
}

// wrapTransportError marks response timeouts as device.ErrTimeout
func wrapTransportError(err error) error {
	if errors.Is(err, transport.ErrResponseTimeout) {
		return fmt.Errorf("%w: %w", device.ErrTimeout, err)
	}
	return err
}
