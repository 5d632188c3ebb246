// Package tcp implements the TCP transport of the device RPC system. It provides
// the TCP specific connectors for the base package's event loop server and
// one-shot client.
//
// Key Components:
//
//   - clientConnector: TCP implementation of base.IClientConnector
//
//   - serverConnector: TCP implementation of base.IServerConnector
//
// Both apply the socket options from common.TCPConf and common.SocketConf
// (TCP_NODELAY, keep-alive, linger, socket buffer sizes) to every connection.
package tcp
