// Package frame implements the sockdev wire format. Every request and every response is
// one frame:
//
//	+-----------------------+----------------------------+---------------------+
//	| header length (u16 BE)| structured header (json)   | payload             |
//	+-----------------------+----------------------------+---------------------+
//
// The structured header is a json object with the required fields
//
//	{"byteorder": "little", "content-type": "text/json",
//	 "content-encoding": "utf-8", "content-length": 42}
//
// The header length only covers the structured header; the payload length is given by
// content-length. A header with a missing field is rejected with a
// *MalformedHeaderError.
//
// Decoding is split in three steps (DecodeHeaderLength, DecodeHeader, DecodePayload),
// each of which returns "not yet" until enough bytes are buffered. The Decoder type
// drives these steps over a buffer that grows with every read, so a frame can be fed
// in chunks of any size, down to single bytes.
package frame
