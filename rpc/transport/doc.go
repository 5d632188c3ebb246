// Package transport defines the interfaces between the RPC server/client and the
// byte stream transports.
//
// A server transport owns the listener and every accepted connection. It decodes
// request frames, hands the decoded request to the registered ServerHandleFunc and
// writes the response once the returned Reply is available. One connection carries
// exactly one request and one response.
//
// Implementations live in the sub packages:
//
//   - base: the event loop, connection state machine and one-shot client
//   - tcp: TCP connectors
//   - unix: unix domain socket connectors
package transport
