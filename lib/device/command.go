package device

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Command is a typed method invocation against a device driver.
// Its textual form is Method(arg1, arg2, key=value) with keyword arguments sorted
// by name, so equal commands always render to the same text.
type Command struct {
	Method string
	Args   []any
	Kwargs map[string]any
}

// NewCommand creates a command with positional arguments
func NewCommand(method string, args ...any) Command {
	return Command{Method: method, Args: args}
}

// WithKwarg returns a copy of the command with an additional keyword argument
func (c Command) WithKwarg(name string, value any) Command {
	kwargs := make(map[string]any, len(c.Kwargs)+1)
	for k, v := range c.Kwargs {
		kwargs[k] = v
	}
	kwargs[name] = value
	c.Kwargs = kwargs
	return c
}

// String renders the command text
func (c Command) String() string {
	var sb strings.Builder
	sb.WriteString(c.Method)
	sb.WriteByte('(')

	first := true
	sep := func() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
	}

	for _, arg := range c.Args {
		sep()
		sb.WriteString(FormatValue(arg))
	}

	names := make([]string, 0, len(c.Kwargs))
	for name := range c.Kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sep()
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(FormatValue(c.Kwargs[name]))
	}

	sb.WriteByte(')')
	return sb.String()
}

// FormatValue renders an argument literal understood by ParseCommand
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []float64:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatFloat(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []string:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = strconv.Quote(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return strconv.Quote(fmt.Sprint(val))
	}
}

// formatFloat always renders a decimal point, so 5.0 stays a float after parsing
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
