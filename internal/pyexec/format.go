package pyexec

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var formatSpecRegex = regexp.MustCompile(`^(?:(.)?([<>=^]))?([+\- ])?(#)?(0)?(\d+)?([,_])?(?:\.(\d+))?([bcdeEfFgGnosxX%])?$`)

type formatSpec struct {
	fill      string
	align     string
	sign      string
	alternate bool
	width     int
	grouping  string
	precision int
	kind      string
}

func parseFormatSpec(spec string) (formatSpec, error) {
	m := formatSpecRegex.FindStringSubmatch(spec)
	if m == nil {
		return formatSpec{}, valueError("Invalid format specifier '%s'", spec)
	}
	fs := formatSpec{fill: m[1], align: m[2], sign: m[3], alternate: m[4] != "", grouping: m[7], precision: -1, kind: m[9]}
	if m[5] != "" && fs.align == "" {
		fs.fill, fs.align = "0", "="
	}
	if m[6] != "" {
		fs.width, _ = strconv.Atoi(m[6])
	}
	if m[8] != "" {
		fs.precision, _ = strconv.Atoi(m[8])
	}
	if fs.fill == "" {
		fs.fill = " "
	}
	return fs, nil
}

// formatValue implements format(v, spec) for the format-spec mini
// language used by f-strings and str.format.
func formatValue(v Value, spec string) (string, error) {
	if spec == "" {
		return Str(v), nil
	}
	fs, err := parseFormatSpec(spec)
	if err != nil {
		return "", err
	}

	var body string
	numeric := false
	switch x := v.(type) {
	case bool:
		if fs.kind == "" {
			body = Str(x)
			break
		}
		i, _ := asInt(x)
		return formatValue(i, spec)
	case int:
		numeric = true
		body, err = formatInt(x, fs)
	case float64:
		numeric = true
		body, err = formatFloatSpec(x, fs)
	case string:
		if fs.kind != "" && fs.kind != "s" {
			return "", valueError("Unknown format code '%s' for object of type 'str'", fs.kind)
		}
		body = x
		if fs.precision >= 0 && utf8.RuneCountInString(body) > fs.precision {
			body = string([]rune(body)[:fs.precision])
		}
	default:
		if fs.kind != "" && fs.kind != "s" {
			return "", typeError("unsupported format string passed to %s.__format__", typeName(v))
		}
		body = Str(v)
	}
	if err != nil {
		return "", err
	}
	return pad(body, fs, numeric), nil
}

func formatInt(i int, fs formatSpec) (string, error) {
	neg := i < 0
	u := i
	if neg {
		u = -i
	}
	var digits string
	switch fs.kind {
	case "", "d", "n":
		digits = strconv.Itoa(u)
		digits = group(digits, fs.grouping)
	case "x", "X", "o", "b":
		base := map[string]int{"x": 16, "X": 16, "o": 8, "b": 2}[fs.kind]
		digits = strconv.FormatInt(int64(u), base)
		if fs.kind == "X" {
			digits = strings.ToUpper(digits)
		}
		if fs.alternate {
			digits = "0" + strings.ToLower(fs.kind) + digits
		}
	case "c":
		return string(rune(i)), nil
	case "e", "E", "f", "F", "g", "G", "%":
		return formatFloatSpec(float64(i), fs)
	default:
		return "", valueError("Unknown format code '%s' for object of type 'int'", fs.kind)
	}
	return signed(digits, neg, fs.sign), nil
}

func formatFloatSpec(f float64, fs formatSpec) (string, error) {
	neg := f < 0
	if neg {
		f = -f
	}
	prec := fs.precision
	var body string
	switch fs.kind {
	case "f", "F":
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(f, 'f', prec, 64)
	case "e", "E":
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(f, 'e', prec, 64)
		if fs.kind == "E" {
			body = strings.ToUpper(body)
		}
	case "g", "G", "n":
		if prec < 0 {
			prec = 6
		}
		if prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(f, 'g', prec, 64)
		if fs.kind == "G" {
			body = strings.ToUpper(body)
		}
	case "%":
		if prec < 0 {
			prec = 6
		}
		body = strconv.FormatFloat(f*100, 'f', prec, 64) + "%"
	case "":
		if prec >= 0 {
			body = strconv.FormatFloat(f, 'g', max(prec, 1), 64)
		} else {
			body = formatFloat(f)
		}
	default:
		return "", valueError("Unknown format code '%s' for object of type 'float'", fs.kind)
	}
	if fs.grouping != "" {
		intPart, rest, _ := strings.Cut(body, ".")
		body = group(intPart, fs.grouping)
		if rest != "" {
			body += "." + rest
		}
	}
	return signed(body, neg, fs.sign), nil
}

func group(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

func signed(body string, neg bool, sign string) string {
	switch {
	case neg:
		return "-" + body
	case sign == "+":
		return "+" + body
	case sign == " ":
		return " " + body
	}
	return body
}

func pad(body string, fs formatSpec, numeric bool) string {
	n := utf8.RuneCountInString(body)
	if fs.width <= n {
		return body
	}
	fill := strings.Repeat(fs.fill, fs.width-n)
	align := fs.align
	if align == "" {
		align = "<"
		if numeric {
			align = ">"
		}
	}
	switch align {
	case ">":
		return fill + body
	case "^":
		left := (fs.width - n) / 2
		return strings.Repeat(fs.fill, left) + body + strings.Repeat(fs.fill, fs.width-n-left)
	case "=":
		if body != "" && strings.ContainsAny(body[:1], "+- ") {
			return body[:1] + fill + body[1:]
		}
		return fill + body
	default:
		return body + fill
	}
}

// percentFormat implements printf-style "fmt" % args.
func percentFormat(format string, args Value) (Value, error) {
	var list []Value
	if t, ok := args.(Tuple); ok {
		list = t
	} else {
		list = []Value{args}
	}
	var b strings.Builder
	next := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(format) && strings.IndexByte("-+ 0#", format[j]) >= 0 {
			j++
		}
		flags := format[i+1 : j]
		for j < len(format) && format[j] >= '0' && format[j] <= '9' {
			j++
		}
		width := format[i+1+len(flags) : j]
		prec := ""
		if j < len(format) && format[j] == '.' {
			k := j + 1
			for k < len(format) && format[k] >= '0' && format[k] <= '9' {
				k++
			}
			prec = format[j+1 : k]
			j = k
		}
		if j >= len(format) {
			return nil, valueError("incomplete format")
		}
		conv := format[j]
		i = j
		if conv == '%' {
			b.WriteByte('%')
			continue
		}
		if next >= len(list) {
			return nil, typeError("not enough arguments for format string")
		}
		arg := list[next]
		next++

		spec := ""
		switch {
		case strings.Contains(flags, "-"):
			spec = "<"
		case strings.Contains(flags, "0"):
			spec = "0"
		case width != "":
			spec = ">"
		}
		if strings.Contains(flags, "+") {
			spec += "+"
		}
		spec += width
		if prec != "" {
			spec += "." + prec
		}
		var s string
		var err error
		switch conv {
		case 's':
			s, err = formatValue(Str(arg), strings.TrimPrefix(spec, "0"))
		case 'r':
			s, err = formatValue(Repr(arg), strings.TrimPrefix(spec, "0"))
		case 'd', 'i':
			f, ok := asFloat(arg)
			if !ok {
				return nil, typeError("%%%c format: a real number is required, not %s", conv, typeName(arg))
			}
			s, err = formatValue(int(f), spec+"d")
		case 'f', 'F', 'e', 'E', 'g', 'G', 'x', 'X', 'o':
			if !isNumber(arg) {
				return nil, typeError("must be real number, not %s", typeName(arg))
			}
			s, err = formatValue(arg, spec+string(conv))
		default:
			return nil, valueError("unsupported format character '%c'", conv)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	if next < len(list) {
		return nil, typeError("not all arguments converted during string formatting")
	}
	return b.String(), nil
}

// strFormat implements str.format with positional, indexed and named
// fields, !r/!s conversions and format specs.
func strFormat(format string, args []Value, kwargs map[string]Value) (string, error) {
	var b strings.Builder
	auto := 0
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c == '}' {
			if i+1 < len(format) && format[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
			continue
		}
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(format) && format[i+1] == '{' {
			b.WriteByte('{')
			i++
			continue
		}
		end := strings.IndexByte(format[i:], '}')
		if end < 0 {
			return "", valueError("Single '{' encountered in format string")
		}
		field := format[i+1 : i+end]
		i += end

		field, spec, _ := strings.Cut(field, ":")
		field, conv, _ := strings.Cut(field, "!")
		name, rest := field, ""
		if k := strings.IndexAny(field, ".["); k >= 0 {
			name, rest = field[:k], field[k:]
		}

		var v Value
		switch {
		case name == "":
			if auto >= len(args) {
				return "", newException("IndexError", "Replacement index %d out of range for positional args tuple", auto)
			}
			v = args[auto]
			auto++
		case name[0] >= '0' && name[0] <= '9':
			idx, err := strconv.Atoi(name)
			if err != nil || idx >= len(args) {
				return "", newException("IndexError", "Replacement index %s out of range for positional args tuple", name)
			}
			v = args[idx]
		default:
			kv, ok := kwargs[name]
			if !ok {
				return "", &Exception{Kind: "KeyError", Message: Repr(name)}
			}
			v = kv
		}

		for rest != "" {
			if rest[0] == '.' {
				attr := rest[1:]
				if k := strings.IndexAny(attr, ".["); k >= 0 {
					attr, rest = attr[:k], attr[k:]
				} else {
					rest = ""
				}
				var err error
				if v, err = getAttr(v, attr); err != nil {
					return "", err
				}
				continue
			}
			closeIdx := strings.IndexByte(rest, ']')
			if closeIdx < 0 {
				return "", valueError("Missing ']' in format string")
			}
			key := rest[1:closeIdx]
			rest = rest[closeIdx+1:]
			var kv Value = key
			if n, err := strconv.Atoi(key); err == nil {
				kv = n
			}
			var err error
			if v, err = getItem(v, kv); err != nil {
				return "", err
			}
		}

		switch conv {
		case "r":
			v = Repr(v)
		case "s":
			v = Str(v)
		case "":
		default:
			return "", valueError("Unknown conversion specifier %s", conv)
		}
		s, err := formatValue(v, spec)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	return b.String(), nil
}
