// Package serializer provides payload serialization for the sockdev RPC system. The
// frame header announces a content type, and the serializer registered for that
// content type encodes and decodes the request and response payloads.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: content type "text/json", encoding "utf-8". The default and the
//     format understood by every client of the protocol.
//
//   - cborSerializerImpl: content type "application/cbor", encoding "binary". Compact
//     binary alternative using deterministic (canonical) CBOR encoding.
//
// Frames with any other content type are not decoded at all; the server answers them
// with a raw binary response (see the transport package).
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s, ok := serializer.ForContentType(header.ContentType)
//	if !ok {
//	  // raw payload
//	}
//	var req common.Request
//	err := s.Deserialize(payload, &req)
package serializer
