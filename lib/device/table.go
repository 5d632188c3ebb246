package device

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Method arguments
// --------------------------------------------------------------------------

// Call holds the arguments of one method invocation
type Call struct {
	Args   []any
	Kwargs map[string]any
}

// Arg returns the keyword argument name, or else the positional argument at index pos
func (c Call) Arg(pos int, name string) (any, bool) {
	if v, ok := c.Kwargs[name]; ok {
		return v, true
	}
	if pos >= 0 && pos < len(c.Args) {
		return c.Args[pos], true
	}
	return nil, false
}

// Float returns a numeric argument
func (c Call) Float(pos int, name string) (float64, error) {
	v, ok := c.Arg(pos, name)
	if !ok {
		return 0, fmt.Errorf("%w: missing argument %q", ErrArgument, name)
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be a number, got %s", ErrArgument, name, FormatValue(v))
	}
	return f, nil
}

// Int returns an integral argument
func (c Call) Int(pos int, name string) (int64, error) {
	v, ok := c.Arg(pos, name)
	if !ok {
		return 0, fmt.Errorf("%w: missing argument %q", ErrArgument, name)
	}
	n, ok := ToInt(v)
	if !ok {
		return 0, fmt.Errorf("%w: %q must be an integer, got %s", ErrArgument, name, FormatValue(v))
	}
	return n, nil
}

// Text returns a string argument
func (c Call) Text(pos int, name string) (string, error) {
	v, ok := c.Arg(pos, name)
	if !ok {
		return "", fmt.Errorf("%w: missing argument %q", ErrArgument, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %s", ErrArgument, name, FormatValue(v))
	}
	return s, nil
}

// Bool returns a boolean argument, 0 and 1 are accepted as well
func (c Call) Bool(pos int, name string) (bool, error) {
	v, ok := c.Arg(pos, name)
	if !ok {
		return false, fmt.Errorf("%w: missing argument %q", ErrArgument, name)
	}
	if b, isBool := v.(bool); isBool {
		return b, nil
	}
	if n, isInt := ToInt(v); isInt && (n == 0 || n == 1) {
		return n == 1, nil
	}
	return false, fmt.Errorf("%w: %q must be a bool, got %s", ErrArgument, name, FormatValue(v))
}

// NArgs returns the number of positional and keyword arguments
func (c Call) NArgs() int {
	return len(c.Args) + len(c.Kwargs)
}

// --------------------------------------------------------------------------
// Method table
// --------------------------------------------------------------------------

// Method is a device operation callable by name
type Method func(call Call) (any, error)

// Table maps method names to device operations. It replaces dynamic dispatch on
// the command text: only registered methods can be invoked.
type Table struct {
	methods *xsync.MapOf[string, Method]
}

// NewTable creates an empty method table
func NewTable() *Table {
	return &Table{methods: xsync.NewMapOf[string, Method]()}
}

// Register adds (or replaces) a method
func (t *Table) Register(name string, m Method) *Table {
	t.methods.Store(name, m)
	return t
}

// Lookup returns the method registered under name
func (t *Table) Lookup(name string) (Method, bool) {
	return t.methods.Load(name)
}

// Names returns the sorted method names
func (t *Table) Names() []string {
	names := make([]string, 0, t.methods.Size())
	t.methods.Range(func(name string, _ Method) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Invoke runs the method named by the command
func (t *Table) Invoke(cmd Command) (any, error) {
	m, ok := t.methods.Load(cmd.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, cmd.Method)
	}
	return m(Call{Args: cmd.Args, Kwargs: cmd.Kwargs})
}
