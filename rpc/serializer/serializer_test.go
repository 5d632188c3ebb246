package serializer

import (
	"github.com/ValentinKolb/sockdev/rpc/common"
	"github.com/stretchr/testify/require"
	"reflect"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON": NewJSONSerializer,
	"CBOR": NewCBORSerializer,
}

// testRequests creates a set of test requests
func testRequests() []common.Request {
	return []common.Request{
		{Action: common.ActionQuery, Value: "ReadValue"},
		{Action: common.ActionCommand, Value: "SetVoltage(5.0)"},
		{Action: common.ActionCommand, Value: `SetLabel("a <b> & c", mode='x')`},
		{Action: common.ActionInfo},
		{Action: "unknown", Value: "ünïcödé"},
	}
}

// TestSerializerRoundTrip tests that requests can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	requests := testRequests()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, req := range requests {
				// Serialize
				data, err := serializer.Serialize(req)
				if err != nil {
					t.Errorf("Failed to serialize request %d: %v", i, err)
					continue
				}

				// Deserialize
				var result common.Request
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize request %d: %v", i, err)
					continue
				}

				// Compare
				if !reflect.DeepEqual(req, result) {
					t.Errorf("Request %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, req, result)
				}
			}
		})
	}
}

// TestResponseShapes checks that a response carries exactly one of result or error
func TestResponseShapes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			serializer := factory()

			data, err := serializer.Serialize(common.NewResultResponse([]any{1.5, "SetVoltage(5.0)", "ok"}))
			require.NoError(err)

			var raw map[string]any
			require.NoError(serializer.Deserialize(data, &raw))
			require.Len(raw, 1)
			require.Contains(raw, "result")

			var resp common.Response
			require.NoError(serializer.Deserialize(data, &resp))
			require.False(resp.IsError())
			require.Equal([]any{1.5, "SetVoltage(5.0)", "ok"}, resp.Result)

			data, err = serializer.Serialize(common.NewNoMatchResponse("ReadValue"))
			require.NoError(err)

			raw = nil
			require.NoError(serializer.Deserialize(data, &raw))
			require.Equal(map[string]any{"error": `No match for "ReadValue".`}, raw)
		})
	}
}

// TestJSONNoHTMLEscaping checks that the json payload keeps utf-8 text as is
func TestJSONNoHTMLEscaping(t *testing.T) {
	data, err := NewJSONSerializer().Serialize(common.Request{Action: common.ActionCommand, Value: "a<b>&c"})
	require.NoError(t, err)
	require.Equal(t, `{"action":"command","value":"a<b>&c"}`, string(data))
}

// TestForContentType checks the content type registry
func TestForContentType(t *testing.T) {
	for _, ct := range []string{ContentTypeJSON, ContentTypeCBOR} {
		s, ok := ForContentType(ct)
		require.True(t, ok, ct)
		require.Equal(t, ct, s.ContentType())
	}

	_, ok := ForContentType(ContentTypeBinary)
	require.False(t, ok)

	_, ok = ByName("gob")
	require.False(t, ok)
}

// TestInvalidData tests how the serializers handle corrupt data
func TestInvalidData(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			var req common.Request
			if err := factory().Deserialize([]byte{0xff, 0x00, '{'}, &req); err == nil {
				t.Errorf("Expected error but got none")
			}
		})
	}
}
