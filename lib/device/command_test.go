package device

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{"no args", NewCommand("ReadValue"), "ReadValue()"},
		{"float", NewCommand("SetVoltage", 5.0), "SetVoltage(5.0)"},
		{"mixed", NewCommand("Configure", int64(2), "ch1", true, nil), `Configure(2, "ch1", true, null)`},
		{"kwargs sorted", NewCommand("Set").WithKwarg("z", 1).WithKwarg("a", 0.5), "Set(a=0.5, z=1)"},
		{"list", NewCommand("Load", []any{1, 2.5, "x"}), `Load([1, 2.5, "x"])`},
		{"special floats", NewCommand("F", math.Inf(-1), math.NaN()), "F(-inf, nan)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cmd.String())
		})
	}
}

func TestWithKwargDoesNotModifyOriginal(t *testing.T) {
	base := NewCommand("Set").WithKwarg("a", 1)
	derived := base.WithKwarg("b", 2)

	assert.Len(t, base.Kwargs, 1)
	assert.Len(t, derived.Kwargs, 2)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		want Command
	}{
		{"ReadValue()", Command{Method: "ReadValue"}},
		{"  SetVoltage( 5.0 ) ", Command{Method: "SetVoltage", Args: []any{5.0}}},
		{"SetVoltage(-2)", Command{Method: "SetVoltage", Args: []any{int64(-2)}}},
		{"SetVoltage(+1e3)", Command{Method: "SetVoltage", Args: []any{1e3}}},
		{"Fail('bad thing')", Command{Method: "Fail", Args: []any{"bad thing"}}},
		{`Fail("it's \"quoted\"")`, Command{Method: "Fail", Args: []any{`it's "quoted"`}}},
		{`Label('it\'s')`, Command{Method: "Label", Args: []any{"it's"}}},
		{"SetOutput(True)", Command{Method: "SetOutput", Args: []any{true}}},
		{"SetOutput(on=false)", Command{Method: "SetOutput", Kwargs: map[string]any{"on": false}}},
		{"X(None, null)", Command{Method: "X", Args: []any{nil, nil}}},
		{"Load([1, [2.5, 'a'], ], mode=0x10,)", Command{
			Method: "Load",
			Args:   []any{[]any{int64(1), []any{2.5, "a"}}},
			Kwargs: map[string]any{"mode": int64(16)},
		}},
		{"Empty([])", Command{Method: "Empty", Args: []any{[]any{}}}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseCommand(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandSpecialFloats(t *testing.T) {
	cmd, err := ParseCommand("F(nan, inf, -inf)")
	require.NoError(t, err)
	require.Len(t, cmd.Args, 3)

	assert.True(t, math.IsNaN(cmd.Args[0].(float64)))
	assert.True(t, math.IsInf(cmd.Args[1].(float64), 1))
	assert.True(t, math.IsInf(cmd.Args[2].(float64), -1))
}

func TestParseCommandErrors(t *testing.T) {
	inputs := []string{
		"",
		"ReadValue",
		"ReadValue(",
		"ReadValue())",
		"ReadValue() extra",
		"5.0()",
		"Set(a=1, 2)",
		"Set(a=1, a=2)",
		"Set(undefined)",
		"Set(1 2)",
		"Set('open)",
		"Set([1, 2)",
		"__import__('os').system('ls')",
		"Set(-'x')",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := ParseCommand(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCommand), "unexpected error type: %v", err)
		})
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	commands := []Command{
		NewCommand("ReadValue"),
		NewCommand("SetVoltage", 5.0),
		NewCommand("SetVoltage", 1e-9),
		NewCommand("SetVoltage", 1e21),
		NewCommand("Configure", "ch\"1\"", int64(-3), false).WithKwarg("limit", 2.5).WithKwarg("tags", []any{"a", int64(1)}),
		NewCommand("Nothing", nil),
	}

	for _, cmd := range commands {
		t.Run(cmd.String(), func(t *testing.T) {
			parsed, err := ParseCommand(cmd.String())
			require.NoError(t, err)
			assert.Equal(t, cmd, parsed)
			assert.Equal(t, cmd.String(), parsed.String())
		})
	}
}

func TestResultTuple(t *testing.T) {
	ts := time.Unix(1700000000, 500_000_000)
	r := NewResult(ts, "GetVoltage()", 5.0)

	tuple := r.Tuple()
	require.Len(t, tuple, 3)
	assert.InDelta(t, 1700000000.5, tuple[0], 1e-6)
	assert.Equal(t, "GetVoltage()", tuple[1])
	assert.Equal(t, 5.0, tuple[2])

	back, err := ResultFromTuple(tuple)
	require.NoError(t, err)
	assert.Equal(t, r.Command, back.Command)
	assert.Equal(t, r.Value, back.Value)
	assert.WithinDuration(t, ts, back.Timestamp, time.Microsecond)

	// integer timestamps as produced by the cbor decoder
	back, err = ResultFromTuple([]any{uint64(12), "X()", nil})
	require.NoError(t, err)
	assert.Equal(t, int64(12), back.Timestamp.Unix())

	_, err = ResultFromTuple([]any{1.0, "X()"})
	assert.Error(t, err)
	_, err = ResultFromTuple([]any{"ts", "X()", 1})
	assert.Error(t, err)
	_, err = ResultFromTuple("no tuple")
	assert.Error(t, err)
}

func TestResultMarkers(t *testing.T) {
	now := time.Now()

	exc := NewExceptionResult(now, "Fail()", errors.New("boom"))
	assert.Equal(t, "Exception: boom", exc.Value)
	assert.True(t, exc.IsException())
	assert.False(t, exc.IsTimeout())

	timeout := NewTimeoutResult(now, "Sleep(5)", 2*time.Second)
	assert.Equal(t, "not executed, 2s timeout", timeout.Value)
	assert.True(t, timeout.IsTimeout())
	assert.False(t, timeout.IsException())

	assert.Equal(t, "not executed, 0.5s timeout", TimeoutMessage(500*time.Millisecond))
	assert.False(t, IsException(5.0))
	assert.False(t, IsTimeout("not executed"))
}

func TestTimeoutMessageFormat(t *testing.T) {
	tests := []struct {
		timeout time.Duration
		want    string
	}{
		{2 * time.Second, "not executed, 2s timeout"},
		{500 * time.Millisecond, "not executed, 0.5s timeout"},
		{1250 * time.Millisecond, "not executed, 1.25s timeout"},
		{100 * time.Second, "not executed, 100s timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			msg := TimeoutMessage(tt.timeout)
			assert.Equal(t, tt.want, msg)
			assert.NotContains(t, msg, ".0s")
			assert.True(t, IsTimeout(msg))
		})
	}

	// the long form some clients print is still classified as a timeout
	assert.True(t, IsTimeout("not executed, 2.0s timeout"))
}
