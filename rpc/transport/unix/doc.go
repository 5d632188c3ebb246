// Package unix implements the transport of the device RPC system on Unix domain
// sockets, for clients running on the same machine as the device server.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners, removing stale socket files
//
// The endpoint of both sides is the socket path.
package unix
