package cacheproto

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Decode parses a cache value literal. Supported are numbers, strings,
// None/True/False, inf/nan, lists and tuples (as []any) and dicts
// (as map[any]any). Anything else is a corrupt entry.
func Decode(s string) (any, error) {
	d := &decoder{s: s}
	v, err := d.value()
	if err == nil {
		d.skipSpace()
		if d.pos != len(d.s) {
			err = fmt.Errorf("trailing data at offset %d", d.pos)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("corrupt cache entry %q: %w", s, err)
	}
	return v, nil
}

type decoder struct {
	s   string
	pos int
}

func (d *decoder) skipSpace() {
	for d.pos < len(d.s) && strings.IndexByte(" \t\r\n", d.s[d.pos]) >= 0 {
		d.pos++
	}
}

func (d *decoder) peek() byte {
	if d.pos < len(d.s) {
		return d.s[d.pos]
	}
	return 0
}

func (d *decoder) value() (any, error) {
	d.skipSpace()
	c := d.peek()
	switch {
	case c == 0:
		return nil, fmt.Errorf("unexpected end of input")
	case c == '[':
		d.pos++
		items, _, err := d.items(']')
		return items, err
	case c == '(':
		d.pos++
		items, trailing, err := d.items(')')
		if err != nil {
			return nil, err
		}
		if len(items) == 1 && !trailing {
			return items[0], nil
		}
		return items, nil
	case c == '{':
		d.pos++
		return d.dict()
	case c == '\'' || c == '"':
		return d.str()
	case (c == 'u' || c == 'b' || c == 'r') && d.pos+1 < len(d.s) && (d.s[d.pos+1] == '\'' || d.s[d.pos+1] == '"'):
		raw := c == 'r'
		d.pos++
		if raw {
			return d.rawStr()
		}
		return d.str()
	case c == '-' || c == '+':
		d.pos++
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		if c == '+' {
			return v, nil
		}
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
		return nil, fmt.Errorf("cannot negate %T", v)
	case c == '.' || (c >= '0' && c <= '9'):
		return d.number()
	case c == '_' || unicode.IsLetter(rune(c)):
		return d.name()
	}
	return nil, fmt.Errorf("unexpected %q at offset %d", c, d.pos)
}

func (d *decoder) items(closing byte) ([]any, bool, error) {
	out := []any{}
	trailing := false
	for {
		d.skipSpace()
		if d.peek() == closing {
			d.pos++
			return out, trailing, nil
		}
		v, err := d.value()
		if err != nil {
			return nil, false, err
		}
		out = append(out, v)
		trailing = false
		d.skipSpace()
		switch d.peek() {
		case ',':
			d.pos++
			trailing = true
		case closing:
		default:
			return nil, false, fmt.Errorf("expected ',' or %q at offset %d", closing, d.pos)
		}
	}
}

func (d *decoder) dict() (map[any]any, error) {
	out := map[any]any{}
	for {
		d.skipSpace()
		if d.peek() == '}' {
			d.pos++
			return out, nil
		}
		k, err := d.value()
		if err != nil {
			return nil, err
		}
		switch k.(type) {
		case []any, map[any]any:
			return nil, fmt.Errorf("unsupported dict key type %T", k)
		}
		d.skipSpace()
		if d.peek() != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", d.pos)
		}
		d.pos++
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out[k] = v
		d.skipSpace()
		switch d.peek() {
		case ',':
			d.pos++
		case '}':
		default:
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", d.pos)
		}
	}
}

func (d *decoder) str() (string, error) {
	quote := d.s[d.pos]
	d.pos++
	var b strings.Builder
	for d.pos < len(d.s) {
		c := d.s[d.pos]
		switch {
		case c == quote:
			d.pos++
			return b.String(), nil
		case c == '\\' && d.pos+1 < len(d.s):
			d.pos++
			e := d.s[d.pos]
			d.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '0':
				b.WriteByte(0)
			case '\\', '\'', '"':
				b.WriteByte(e)
			case 'x', 'u', 'U':
				width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
				if d.pos+width > len(d.s) {
					return "", fmt.Errorf("truncated escape")
				}
				r, err := strconv.ParseUint(d.s[d.pos:d.pos+width], 16, 32)
				if err != nil {
					return "", fmt.Errorf("bad escape: %w", err)
				}
				b.WriteRune(rune(r))
				d.pos += width
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
			d.pos++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (d *decoder) rawStr() (string, error) {
	quote := d.s[d.pos]
	d.pos++
	end := strings.IndexByte(d.s[d.pos:], quote)
	if end < 0 {
		return "", fmt.Errorf("unterminated string")
	}
	s := d.s[d.pos : d.pos+end]
	d.pos += end + 1
	return s, nil
}

func (d *decoder) number() (any, error) {
	start := d.pos
	isFloat := false
scan:
	for d.pos < len(d.s) {
		c := d.s[d.pos]
		switch {
		case c >= '0' && c <= '9':
		case c == '.':
			isFloat = true
		case c == 'e' || c == 'E':
			isFloat = true
			if n := d.pos + 1; n < len(d.s) && (d.s[n] == '+' || d.s[n] == '-') {
				d.pos++
			}
		default:
			break scan
		}
		d.pos++
	}
	text := d.s[start:d.pos]
	if d.peek() == 'L' || d.peek() == 'l' {
		d.pos++
	}
	if !isFloat {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", text)
	}
	return f, nil
}

var safeNames = map[string]any{
	"None":  nil,
	"True":  true,
	"False": false,
	"inf":   math.Inf(1),
	"nan":   math.NaN(),
}

func (d *decoder) name() (any, error) {
	start := d.pos
	for d.pos < len(d.s) {
		c := rune(d.s[d.pos])
		if c != '_' && !unicode.IsLetter(c) && !unicode.IsDigit(c) {
			break
		}
		d.pos++
	}
	ident := d.s[start:d.pos]
	v, ok := safeNames[ident]
	if !ok {
		return nil, fmt.Errorf("unsupported name %q", ident)
	}
	return v, nil
}

// Encode renders v as a cache value literal.
func Encode(v any) (string, error) {
	var b strings.Builder
	if err := encode(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func encode(b *strings.Builder, v any) error {
	switch x := v.(type) {
	case nil:
		b.WriteString("None")
	case bool:
		if x {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case int:
		b.WriteString(strconv.Itoa(x))
	case int32:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(x, 10))
	case float32:
		b.WriteString(formatFloat(float64(x)))
	case float64:
		b.WriteString(formatFloat(x))
	case string:
		b.WriteString(quoteString(x))
	case []string:
		b.WriteByte('[')
		for _, s := range x {
			b.WriteString(quoteString(s))
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case []any:
		b.WriteByte('[')
		for _, item := range x {
			if err := encode(b, item); err != nil {
				return err
			}
			b.WriteByte(',')
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for _, k := range keys {
			b.WriteString(quoteString(k))
			b.WriteByte(':')
			if err := encode(b, x[k]); err != nil {
				return err
			}
			b.WriteByte(',')
		}
		b.WriteByte('}')
	case map[any]any:
		keys := make([]string, 0, len(x))
		rendered := make(map[string]any, len(x))
		for k, val := range x {
			ks, err := Encode(k)
			if err != nil {
				return err
			}
			keys = append(keys, ks)
			rendered[ks] = val
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for _, ks := range keys {
			b.WriteString(ks)
			b.WriteByte(':')
			if err := encode(b, rendered[ks]); err != nil {
				return err
			}
			b.WriteByte(',')
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("unserializable value of type %T", v)
	}
	return nil
}

// formatFloat matches the shortest round-trip float notation of the wire:
// plain decimals for exponents in [-4, 16), scientific otherwise, and a
// mandatory fractional part.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

func quoteString(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}
