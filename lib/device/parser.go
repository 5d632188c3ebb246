package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/scanner"
)

// ParseCommand parses a command text such as
//
//	SetVoltage(5.0)
//	SetLabel("probe", channel=2, enabled=true)
//	Configure([1, 2.5, 'x'], mode=null)
//
// Supported literals are integers, floats (including nan and inf), double or single
// quoted and back-quoted strings, true/false, null and lists. The text is only
// parsed, never evaluated.
func ParseCommand(text string) (Command, error) {
	p := &parser{}
	p.s.Init(strings.NewReader(text))
	p.s.Mode = scanner.ScanIdents | scanner.ScanFloats | scanner.ScanStrings | scanner.ScanRawStrings
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s", ErrInvalidCommand, msg)
		}
	}
	p.next()

	cmd, err := p.parseCall()
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

// MustParseCommand is like ParseCommand but panics on error (for constants and tests)
func MustParseCommand(text string) Command {
	cmd, err := ParseCommand(text)
	if err != nil {
		panic(err)
	}
	return cmd
}

type parser struct {
	s    scanner.Scanner
	tok  rune
	text string
	err  error
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
}

func (p *parser) errorf(format string, args ...any) error {
	if p.err != nil {
		return p.err
	}
	return fmt.Errorf("%w: %s at %s", ErrInvalidCommand, fmt.Sprintf(format, args...), p.s.Position)
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		return p.errorf("expected %s, found %q", scanner.TokenString(tok), p.text)
	}
	p.next()
	return nil
}

func (p *parser) parseCall() (Command, error) {
	if p.tok != scanner.Ident {
		return Command{}, p.errorf("expected method name, found %q", p.text)
	}
	cmd := Command{Method: p.text}
	p.next()

	if err := p.expect('('); err != nil {
		return Command{}, err
	}

	for p.tok != ')' {
		if p.tok == scanner.EOF {
			return Command{}, p.errorf("unexpected end of command")
		}

		// keyword argument (name=value) or positional value
		if p.tok == scanner.Ident && !isLiteralIdent(p.text) {
			name := p.text
			p.next()
			if err := p.expect('='); err != nil {
				return Command{}, err
			}
			value, err := p.parseValue()
			if err != nil {
				return Command{}, err
			}
			if _, dup := cmd.Kwargs[name]; dup {
				return Command{}, p.errorf("duplicate keyword argument %q", name)
			}
			if cmd.Kwargs == nil {
				cmd.Kwargs = make(map[string]any)
			}
			cmd.Kwargs[name] = value
		} else {
			if len(cmd.Kwargs) > 0 {
				return Command{}, p.errorf("positional argument follows keyword argument")
			}
			value, err := p.parseValue()
			if err != nil {
				return Command{}, err
			}
			cmd.Args = append(cmd.Args, value)
		}

		if p.tok == ',' {
			p.next()
			continue
		}
		if p.tok != ')' {
			return Command{}, p.errorf("expected ',' or ')', found %q", p.text)
		}
	}
	p.next()

	if p.tok != scanner.EOF {
		return Command{}, p.errorf("unexpected %q after command", p.text)
	}
	if p.err != nil {
		return Command{}, p.err
	}
	return cmd, nil
}

func (p *parser) parseValue() (any, error) {
	switch p.tok {
	case '-', '+':
		neg := p.tok == '-'
		p.next()
		v, err := p.parseNumber()
		if err != nil {
			return nil, err
		}
		if neg {
			switch n := v.(type) {
			case int64:
				return -n, nil
			case float64:
				return -n, nil
			}
		}
		return v, nil
	case scanner.Int, scanner.Float:
		return p.parseNumber()
	case scanner.String, scanner.RawString:
		s, err := strconv.Unquote(p.text)
		if err != nil {
			return nil, p.errorf("invalid string %s", p.text)
		}
		p.next()
		return s, nil
	case '\'':
		return p.parseSingleQuoted()
	case '[':
		return p.parseList()
	case scanner.Ident:
		v, ok := identLiteral(p.text)
		if !ok {
			return nil, p.errorf("unexpected identifier %q", p.text)
		}
		p.next()
		return v, nil
	default:
		return nil, p.errorf("unexpected %q", p.text)
	}
}

func (p *parser) parseNumber() (any, error) {
	switch p.tok {
	case scanner.Int:
		n, err := strconv.ParseInt(p.text, 0, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %s", p.text)
		}
		p.next()
		return n, nil
	case scanner.Float:
		f, err := strconv.ParseFloat(p.text, 64)
		if err != nil {
			return nil, p.errorf("invalid float %s", p.text)
		}
		p.next()
		return f, nil
	case scanner.Ident:
		// nan and inf
		if v, ok := identLiteral(p.text); ok {
			if f, isFloat := v.(float64); isFloat {
				p.next()
				return f, nil
			}
		}
	}
	return nil, p.errorf("expected number, found %q", p.text)
}

// parseSingleQuoted reads a 'quoted' string directly from the scanner's input
func (p *parser) parseSingleQuoted() (any, error) {
	var sb strings.Builder
	for {
		ch := p.s.Next()
		switch ch {
		case scanner.EOF:
			return nil, p.errorf("unterminated string")
		case '\\':
			esc := p.s.Next()
			if esc == scanner.EOF {
				return nil, p.errorf("unterminated string")
			}
			sb.WriteRune(esc)
		case '\'':
			p.next()
			return sb.String(), nil
		default:
			sb.WriteRune(ch)
		}
	}
}

func (p *parser) parseList() (any, error) {
	p.next() // '['
	list := make([]any, 0)
	for p.tok != ']' {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		list = append(list, v)
		if p.tok == ',' {
			p.next()
			continue
		}
		if p.tok != ']' {
			return nil, p.errorf("expected ',' or ']', found %q", p.text)
		}
	}
	p.next()
	return list, nil
}

// identLiteral maps identifier literals to values
func identLiteral(ident string) (any, bool) {
	switch ident {
	case "true", "True":
		return true, true
	case "false", "False":
		return false, true
	case "null", "nil", "None":
		return nil, true
	case "nan", "NaN":
		return math.NaN(), true
	case "inf", "Inf":
		return math.Inf(1), true
	default:
		return nil, false
	}
}

func isLiteralIdent(ident string) bool {
	_, ok := identLiteral(ident)
	return ok
}
