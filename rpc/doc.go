// Package rpc is the network layer of sockdev. It makes a single device
// available to remote clients and lets them call device methods as if the
// driver were local.
//
// The package is organized into several subpackages:
//
//   - frame: The wire format. Every message is a big endian u16 header length,
//     a JSON header (byteorder, content-type, content-encoding, content-length)
//     and the payload.
//
//   - common: Request and response payloads, server and client configuration
//     and the logger factory.
//
//   - serializer: Payload encodings selected by content type (text/json and
//     application/cbor).
//
//   - transport: The server event loop driving the per connection state
//     machine, and a client transport using one connection per request
//     (TCP and Unix sockets).
//
//   - server: The device server wiring bridge, executor, snapshot and transport,
//     and the adapter answering query, command and info requests.
//
//   - client: The device client and typed proxies built on call.Wrapper.
package rpc
