package serializer

// IRPCSerializer is the interface for all payload serializers.
// A serializer is bound to the content type it announces in the frame header.
type IRPCSerializer interface {
	// Serialize serializes a value (usually a common.Request or common.Response)
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// ContentType returns the frame header content type (e.g. text/json)
	ContentType() string
	// ContentEncoding returns the frame header content encoding (e.g. utf-8)
	ContentEncoding() string
}

// --------------------------------------------------------------------------
// Content type registry
// --------------------------------------------------------------------------

const (
	// ContentTypeJSON is the structured text content type
	ContentTypeJSON = "text/json"
	// ContentTypeCBOR is the structured binary content type
	ContentTypeCBOR = "application/cbor"
	// ContentTypeBinary marks raw, unstructured payloads
	ContentTypeBinary = "binary/custom-server-binary-type"

	// EncodingUTF8 is the content encoding of structured text payloads
	EncodingUTF8 = "utf-8"
	// EncodingBinary is the content encoding of raw and cbor payloads
	EncodingBinary = "binary"
)

// ForContentType returns the serializer for a frame content type.
// The second return value is false for unstructured (raw) content types.
func ForContentType(contentType string) (IRPCSerializer, bool) {
	switch contentType {
	case ContentTypeJSON:
		return NewJSONSerializer(), true
	case ContentTypeCBOR:
		return NewCBORSerializer(), true
	default:
		return nil, false
	}
}

// ByName returns a serializer by its short name (json, cbor) as used in the cli
func ByName(name string) (IRPCSerializer, bool) {
	switch name {
	case "json":
		return NewJSONSerializer(), true
	case "cbor":
		return NewCBORSerializer(), true
	default:
		return nil, false
	}
}
