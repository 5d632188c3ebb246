package serializer

import (
	"fmt"
	"github.com/fxamacker/cbor/v2"
	"reflect"
)

// encMode and decMode are the CBOR modes for sockdev payloads
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	// Deterministic output, unix timestamps
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Decode maps into map[string]any so results look the same as with json
	decMode, err = cbor.DecOptions{
		DupMapKey:      cbor.DupMapKeyQuiet,
		IndefLength:    cbor.IndefLengthAllowed,
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// NewCBORSerializer creates a new serializer using cbor encoding
func NewCBORSerializer() IRPCSerializer {
	return &cborSerializerImpl{}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func (c cborSerializerImpl) Deserialize(b []byte, v any) error {
	return decMode.Unmarshal(b, v)
}

func (c cborSerializerImpl) ContentType() string {
	return ContentTypeCBOR
}

func (c cborSerializerImpl) ContentEncoding() string {
	return EncodingBinary
}
