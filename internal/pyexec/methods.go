package pyexec

import (
	"strings"
	"unicode"
)

type boundMethod struct {
	name string
	fn   func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)
}

func (m *boundMethod) Call(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	return m.fn(ip, args, kwargs)
}

func method(owner, name string, fn func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)) *boundMethod {
	return &boundMethod{name: owner + "." + name, fn: fn}
}

// getAttr resolves obj.name.
func getAttr(obj Value, name string) (Value, error) {
	var (
		v  Value
		ok bool
	)
	switch x := obj.(type) {
	case string:
		v, ok = stringMethod(x, name)
	case *List:
		v, ok = listMethod(x, name)
	case Tuple:
		v, ok = tupleMethod(x, name)
	case *Dict:
		v, ok = dictMethod(x, name)
	case float64:
		if name == "is_integer" {
			v, ok = method("float", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
				return x == float64(int(x)), nil
			}), true
		}
	case *Exception:
		if name == "args" {
			v, ok = Tuple{x.Message}, true
		}
	case *ExceptionClass:
		if name == "__name__" {
			v, ok = x.Name, true
		}
	case *TypeObject:
		if name == "__name__" {
			v, ok = x.Name, true
		}
	case Attributer:
		v, ok = x.Attr(name)
	}
	if !ok {
		if m, isMod := obj.(*Module); isMod {
			return nil, newException("AttributeError", "module '%s' has no attribute '%s'", m.Name, name)
		}
		return nil, attributeError(obj, name)
	}
	return v, nil
}

func stringArg(fn string, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError("%s() argument must be str, not %s", fn, typeName(v))
	}
	return s, nil
}

func stringMethod(s, name string) (Value, bool) {
	unary := func(f func(string) string) *boundMethod {
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) > 0 || len(kwargs) > 0 {
				return nil, typeError("str.%s() takes no arguments (%d given)", name, len(args)+len(kwargs))
			}
			return f(s), nil
		})
	}
	predicate := func(f func(rune) bool) *boundMethod {
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			if s == "" {
				return false, nil
			}
			for _, r := range s {
				if !f(r) {
					return false, nil
				}
			}
			return true, nil
		})
	}
	strip := func(f func(string, string) string, g func(string) string) *boundMethod {
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"chars"}, 0)
			if err != nil {
				return nil, err
			}
			if isNone(a[0]) {
				return g(s), nil
			}
			chars, err := stringArg(name, a[0])
			if err != nil {
				return nil, err
			}
			return f(s, chars), nil
		})
	}
	affix := func(f func(string, string) bool) *boundMethod {
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"prefix"}, 1)
			if err != nil {
				return nil, err
			}
			candidates := []Value{a[0]}
			if t, ok := a[0].(Tuple); ok {
				candidates = t
			}
			for _, c := range candidates {
				p, err := stringArg(name, c)
				if err != nil {
					return nil, err
				}
				if f(s, p) {
					return true, nil
				}
			}
			return false, nil
		})
	}
	justify := func(align string) *boundMethod {
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"width", "fillchar"}, 1)
			if err != nil {
				return nil, err
			}
			w, ok := asInt(a[0])
			if !ok {
				return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a[0]))
			}
			fill := " "
			if a[1] != nil {
				if fill, err = stringArg(name, a[1]); err != nil {
					return nil, err
				}
			}
			return pad(s, formatSpec{fill: fill, align: align, width: w}, false), nil
		})
	}

	switch name {
	case "lower":
		return unary(strings.ToLower), true
	case "upper":
		return unary(strings.ToUpper), true
	case "title":
		return unary(titleCase), true
	case "capitalize":
		return unary(func(s string) string {
			if s == "" {
				return s
			}
			r := []rune(strings.ToLower(s))
			r[0] = unicode.ToUpper(r[0])
			return string(r)
		}), true
	case "strip":
		return strip(strings.Trim, strings.TrimSpace), true
	case "lstrip":
		return strip(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }), true
	case "rstrip":
		return strip(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }), true
	case "startswith":
		return affix(strings.HasPrefix), true
	case "endswith":
		return affix(strings.HasSuffix), true
	case "isdigit":
		return predicate(unicode.IsDigit), true
	case "isalpha":
		return predicate(unicode.IsLetter), true
	case "isspace":
		return predicate(unicode.IsSpace), true
	case "ljust":
		return justify("<"), true
	case "rjust":
		return justify(">"), true
	case "center":
		return justify("^"), true
	case "join":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("join", args, kwargs, []string{"iterable"}, 1)
			if err != nil {
				return nil, err
			}
			items, err := iterate(a[0])
			if err != nil {
				return nil, err
			}
			parts := make([]string, len(items))
			for i, it := range items {
				p, ok := it.(string)
				if !ok {
					return nil, typeError("sequence item %d: expected str instance, %s found", i, typeName(it))
				}
				parts[i] = p
			}
			return strings.Join(parts, s), nil
		}), true
	case "split", "rsplit":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sep", "maxsplit"}, 0)
			if err != nil {
				return nil, err
			}
			limit := -1
			if a[1] != nil {
				if limit, _ = asInt(a[1]); limit >= 0 {
					limit++
				}
			}
			var parts []string
			if isNone(a[0]) {
				parts = strings.Fields(s)
				if limit > 0 && len(parts) > limit {
					parts = strings.Fields(s)[:limit-1]
					rest := s
					for _, p := range parts {
						rest = strings.TrimLeftFunc(rest, unicode.IsSpace)[len(p):]
					}
					parts = append(parts, strings.TrimLeftFunc(rest, unicode.IsSpace))
				}
			} else {
				sep, err := stringArg(name, a[0])
				if err != nil {
					return nil, err
				}
				if sep == "" {
					return nil, valueError("empty separator")
				}
				if name == "rsplit" && limit > 0 {
					parts = rsplitN(s, sep, limit)
				} else {
					parts = strings.SplitN(s, sep, limit)
				}
			}
			out := make([]Value, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return NewList(out...), nil
		}), true
	case "replace":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("replace", args, kwargs, []string{"old", "new", "count"}, 2)
			if err != nil {
				return nil, err
			}
			old, err := stringArg("replace", a[0])
			if err != nil {
				return nil, err
			}
			repl, err := stringArg("replace", a[1])
			if err != nil {
				return nil, err
			}
			n := -1
			if a[2] != nil {
				n, _ = asInt(a[2])
			}
			return strings.Replace(s, old, repl, n), nil
		}), true
	case "find", "count", "index":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"sub"}, 1)
			if err != nil {
				return nil, err
			}
			sub, err := stringArg(name, a[0])
			if err != nil {
				return nil, err
			}
			if name == "count" {
				return strings.Count(s, sub), nil
			}
			i := strings.Index(s, sub)
			if i >= 0 {
				i = len([]rune(s[:i]))
			} else if name == "index" {
				return nil, valueError("substring not found")
			}
			return i, nil
		}), true
	case "format":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			return strFormat(s, args, kwargs)
		}), true
	case "zfill":
		return method("str", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("zfill", args, kwargs, []string{"width"}, 1)
			if err != nil {
				return nil, err
			}
			w, _ := asInt(a[0])
			return pad(s, formatSpec{fill: "0", align: "=", width: w}, true), nil
		}), true
	}
	return nil, false
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}

func rsplitN(s, sep string, n int) []string {
	var parts []string
	for len(parts) < n-1 {
		i := strings.LastIndex(s, sep)
		if i < 0 {
			break
		}
		parts = append([]string{s[i+len(sep):]}, parts...)
		s = s[:i]
	}
	return append([]string{s}, parts...)
}

func listMethod(l *List, name string) (Value, bool) {
	m := func(fn func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)) (Value, bool) {
		return method("list", name, fn), true
	}
	switch name {
	case "append":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("append", args, kwargs, []string{"object"}, 1)
			if err != nil {
				return nil, err
			}
			if len(l.Items) >= maxSequenceLen {
				return nil, newException("MemoryError", "list is too large")
			}
			l.Items = append(l.Items, a[0])
			return None, nil
		})
	case "extend":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("extend", args, kwargs, []string{"iterable"}, 1)
			if err != nil {
				return nil, err
			}
			items, err := iterate(a[0])
			if err != nil {
				return nil, err
			}
			if len(l.Items)+len(items) > maxSequenceLen {
				return nil, newException("MemoryError", "list is too large")
			}
			l.Items = append(l.Items, items...)
			return None, nil
		})
	case "insert":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("insert", args, kwargs, []string{"index", "object"}, 2)
			if err != nil {
				return nil, err
			}
			i, ok := asInt(a[0])
			if !ok {
				return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a[0]))
			}
			n := len(l.Items)
			if i < 0 {
				i = max(i+n, 0)
			}
			i = min(i, n)
			l.Items = append(l.Items[:i], append([]Value{a[1]}, l.Items[i:]...)...)
			return None, nil
		})
	case "pop":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("pop", args, kwargs, []string{"index"}, 0)
			if err != nil {
				return nil, err
			}
			if len(l.Items) == 0 {
				return nil, newException("IndexError", "pop from empty list")
			}
			var idx Value = -1
			if a[0] != nil {
				idx = a[0]
			}
			i, err := normalizeIndex("pop", idx, len(l.Items))
			if err != nil {
				return nil, err
			}
			v := l.Items[i]
			l.Items = append(l.Items[:i], l.Items[i+1:]...)
			return v, nil
		})
	case "remove", "index", "count":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"value"}, 1)
			if err != nil {
				return nil, err
			}
			count := 0
			for i, it := range l.Items {
				if !Equal(it, a[0]) {
					continue
				}
				switch name {
				case "remove":
					l.Items = append(l.Items[:i], l.Items[i+1:]...)
					return None, nil
				case "index":
					return i, nil
				}
				count++
			}
			if name == "count" {
				return count, nil
			}
			return nil, valueError("list.%s(x): x not in list", name)
		})
	case "sort":
		return m(func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			if len(args) > 0 {
				return nil, typeError("sort() takes no positional arguments")
			}
			a, err := bindArgs("sort", nil, kwargs, []string{"key", "reverse"}, 0)
			if err != nil {
				return nil, err
			}
			return None, sortValues(ip, l.Items, a[0], a[1] != nil && Truthy(a[1]))
		})
	case "reverse":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			for i, j := 0, len(l.Items)-1; i < j; i, j = i+1, j-1 {
				l.Items[i], l.Items[j] = l.Items[j], l.Items[i]
			}
			return None, nil
		})
	case "copy":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			return NewList(append([]Value(nil), l.Items...)...), nil
		})
	case "clear":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			l.Items = nil
			return None, nil
		})
	}
	return nil, false
}

func tupleMethod(t Tuple, name string) (Value, bool) {
	switch name {
	case "count", "index":
		return method("tuple", name, func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"value"}, 1)
			if err != nil {
				return nil, err
			}
			count := 0
			for i, it := range t {
				if Equal(it, a[0]) {
					if name == "index" {
						return i, nil
					}
					count++
				}
			}
			if name == "index" {
				return nil, valueError("tuple.index(x): x not in tuple")
			}
			return count, nil
		}), true
	}
	return nil, false
}

func dictMethod(d *Dict, name string) (Value, bool) {
	m := func(fn func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)) (Value, bool) {
		return method("dict", name, fn), true
	}
	switch name {
	case "get":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("get", args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, found, err := d.Get(a[0])
			if err != nil {
				return nil, err
			}
			if !found {
				if a[1] == nil {
					return None, nil
				}
				return a[1], nil
			}
			return v, nil
		})
	case "keys":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			return NewList(d.Keys()...), nil
		})
	case "values":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			return NewList(d.Values()...), nil
		})
	case "items":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			return NewList(d.Items()...), nil
		})
	case "copy":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			return d.Copy(), nil
		})
	case "clear":
		return m(func(_ *Interp, _ []Value, _ map[string]Value) (Value, error) {
			*d = *NewDict()
			return None, nil
		})
	case "update":
		return m(func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			other, err := newDict(ip, args, kwargs)
			if err != nil {
				return nil, err
			}
			src := other.(*Dict)
			for i, k := range src.keys {
				if err := d.Set(k, src.vals[i]); err != nil {
					return nil, err
				}
			}
			return None, nil
		})
	case "pop":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("pop", args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, found, err := d.Delete(a[0])
			if err != nil {
				return nil, err
			}
			if !found {
				if a[1] == nil {
					return nil, &Exception{Kind: "KeyError", Message: Repr(a[0])}
				}
				return a[1], nil
			}
			return v, nil
		})
	case "setdefault":
		return m(func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("setdefault", args, kwargs, []string{"key", "default"}, 1)
			if err != nil {
				return nil, err
			}
			v, found, err := d.Get(a[0])
			if err != nil {
				return nil, err
			}
			if found {
				return v, nil
			}
			def := a[1]
			if def == nil {
				def = None
			}
			return def, d.Set(a[0], def)
		})
	}
	return nil, false
}
