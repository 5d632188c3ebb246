package client

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/sockdev/lib/device"
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/ValentinKolb/sockdev/rpc/frame"
	"github.com/ValentinKolb/sockdev/rpc/serializer"
	"github.com/ValentinKolb/sockdev/rpc/transport"
)

// NewDeviceClient creates a new client of a device server
// The function takes a config, a transport and a serializer as parameters
// The serializer selects the request content type (json or cbor)
func NewDeviceClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*DeviceClient, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &DeviceClient{
		rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// DeviceClient sends query, command and info requests to a device server.
// It is safe for concurrent use, every request uses its own connection.
type DeviceClient struct {
	rpcClientAdapter
}

// Query returns the snapshot value stored under key (e.g. ReadValue)
func (c *DeviceClient) Query(ctx context.Context, key string) (any, error) {
	resp, err := invokeRPCRequest(ctx, common.NewQueryRequest(key), c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Info returns the static device info
func (c *DeviceClient) Info(ctx context.Context) (any, error) {
	resp, err := invokeRPCRequest(ctx, common.NewInfoRequest(), c.transport, c.serializer)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Command executes a command text such as "SetVoltage(5.0)" on the device.
// Device side failures and server side timeouts are part of the result value.
func (c *DeviceClient) Command(ctx context.Context, text string) (device.Result, error) {
	resp, err := invokeRPCRequest(ctx, common.NewCommandRequest(text), c.transport, c.serializer)
	if err != nil {
		return device.Result{}, err
	}
	r, err := device.ResultFromTuple(resp.Result)
	if err != nil {
		return device.Result{}, fmt.Errorf("invalid command response: %w", err)
	}
	return r, nil
}

// SendRaw sends a payload with an arbitrary content type and returns the raw
// response frame
func (c *DeviceClient) SendRaw(ctx context.Context, contentType, contentEncoding string, payload []byte) (*frame.Frame, error) {
	f, err := c.transport.Send(ctx, contentType, contentEncoding, payload)
	if err != nil {
		return nil, wrapTransportError(err)
	}
	return f, nil
}

// Close closes the transport
func (c *DeviceClient) Close() error {
	return c.transport.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see call.ICaller)
// --------------------------------------------------------------------------

// Call runs cmd on the remote device, which makes the client usable as the
// caller of a call.Wrapper
func (c *DeviceClient) Call(ctx context.Context, cmd device.Command) (device.Result, error) {
	return c.Command(ctx, cmd.String())
}
