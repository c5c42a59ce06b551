//go:build cgo

package pyexec

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// evalString evaluates a string literal, including f-string
// interpolations.
func (ip *Interp) evalString(n *node) (string, error) {
	raw, fstring := false, false
	var b strings.Builder
	literal := func(text string) {
		if fstring {
			text = strings.NewReplacer("{{", "{", "}}", "}").Replace(text)
		}
		if !raw {
			text = decodeEscapes(text)
		}
		b.WriteString(text)
	}

	pos := n.StartByte()
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "string_start":
			prefix := strings.ToLower(strings.TrimRight(ip.text(c), `"'`))
			raw = strings.Contains(prefix, "r")
			fstring = strings.Contains(prefix, "f")
			pos = c.EndByte()
		case "interpolation":
			literal(string(ip.src[pos:c.StartByte()]))
			s, err := ip.evalInterpolation(c)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
			pos = c.EndByte()
		case "string_end":
			literal(string(ip.src[pos:c.StartByte()]))
			pos = c.EndByte()
		}
	}
	return b.String(), nil
}

func (ip *Interp) evalInterpolation(n *node) (string, error) {
	exprNode := n.ChildByFieldName("expression")
	if exprNode == nil {
		return "", syntaxError(lineOf(n), "f-string: empty expression not allowed")
	}
	v, err := ip.eval(exprNode)
	if err != nil {
		return "", err
	}

	debug := false
	conversion := ""
	spec := ""
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "=":
			debug = true
		case "type_conversion":
			conversion = strings.TrimPrefix(ip.text(c), "!")
		case "format_specifier":
			s, err := ip.formatSpecifier(c)
			if err != nil {
				return "", err
			}
			spec = s
		}
	}

	prefix := ""
	if debug {
		prefix = ip.text(exprNode) + "="
		if conversion == "" && spec == "" {
			conversion = "r"
		}
	}
	switch conversion {
	case "":
	case "r", "a":
		v = Repr(v)
	case "s":
		v = Str(v)
	default:
		return "", syntaxError(lineOf(n), "f-string: invalid conversion character '%s'", conversion)
	}
	s, err := formatValue(v, spec)
	if err != nil {
		return "", err
	}
	return prefix + s, nil
}

// formatSpecifier renders the text after ':' in an interpolation,
// evaluating nested replacement fields such as {width}.
func (ip *Interp) formatSpecifier(n *node) (string, error) {
	var b strings.Builder
	pos := n.StartByte()
	for _, c := range children(n) {
		b.Write(ip.src[pos:c.StartByte()])
		expr := c
		if inner := c.ChildByFieldName("expression"); inner != nil {
			expr = inner
		} else if kids := children(c); len(kids) > 0 {
			expr = kids[0]
		}
		v, err := ip.eval(expr)
		if err != nil {
			return "", err
		}
		b.WriteString(Str(v))
		pos = c.EndByte()
	}
	b.Write(ip.src[pos:n.EndByte()])
	return strings.TrimPrefix(b.String(), ":"), nil
}

// decodeEscapes processes backslash escapes in a non-raw string literal.
func decodeEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+width < len(s) {
				if r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32); err == nil && utf8.ValidRune(rune(r)) {
					b.WriteRune(rune(r))
					i += width
					continue
				}
			}
			b.WriteByte('\\')
			b.WriteByte(e)
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			r, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(r))
			i = j - 1
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String()
}
