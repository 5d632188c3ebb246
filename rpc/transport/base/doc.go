// Package base provides the protocol independent part of the transport layer. The
// concrete transports (tcp, unix) only contribute connectors that create listeners
// and connections.
//
// Server:
//
// One event loop goroutine owns every accepted connection and its state machine
// (serverConn). Small I/O goroutines do the blocking work and report events:
//
//	accept goroutine ──► evAccept ─┐
//	reader per conn  ──► evRead   ─┼──► event loop ──► serverConn state machine
//	writer per write ──► evWritten ┘        ▲
//	                 wake (result published)┤
//	                 ticker (select timeout)┘
//
// A connection moves through
//
//	await-header-len → await-header → await-body → dispatch → await-result → respond → closed
//
// and carries exactly one request. After dispatch further inbound bytes are ignored.
// Pending replies are polled on every wake signal and tick, so a command reply
// observes its deadline even without socket activity. Errors and panics while
// servicing a connection are logged with the connection id and close only that
// connection. Cancelling the context closes the listener and all connections.
//
// Client:
//
// clientTransport opens a new connection per request, round robin over the
// configured endpoints, and never retries.
package base
