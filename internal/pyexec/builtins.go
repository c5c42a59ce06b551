package pyexec

import (
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// bindArgs maps positional and keyword arguments onto names. Slots that
// were not supplied are nil.
func bindArgs(fn string, args []Value, kwargs map[string]Value, names []string, required int) ([]Value, error) {
	if len(args) > len(names) {
		return nil, typeError("%s() takes at most %d arguments (%d given)", fn, len(names), len(args))
	}
	out := make([]Value, len(names))
	copy(out, args)
	for k, v := range kwargs {
		idx := -1
		for i, n := range names {
			if n == k {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, typeError("%s() got an unexpected keyword argument '%s'", fn, k)
		}
		if out[idx] != nil {
			return nil, typeError("%s() got multiple values for argument '%s'", fn, k)
		}
		out[idx] = v
	}
	for i := 0; i < required; i++ {
		if out[i] == nil {
			return nil, typeError("%s() missing required argument '%s' (pos %d)", fn, names[i], i+1)
		}
	}
	return out, nil
}

func noKwargs(fn string, kwargs map[string]Value) error {
	if len(kwargs) > 0 {
		return typeError("%s() takes no keyword arguments", fn)
	}
	return nil
}

func isNone(v Value) bool {
	_, ok := v.(noneType)
	return v == nil || ok
}

// iterator is a materialized lazy iterator such as the result of enumerate.
type iterator struct {
	kind  string
	items []Value
}

func (it *iterator) Iter() []Value    { return it.items }
func (it *iterator) TypeName() string { return it.kind }
func (it *iterator) String() string   { return "<" + it.kind + " object>" }

// instanceChecker is implemented by everything usable as the second
// argument of isinstance.
type instanceChecker interface {
	IsInstance(v Value) bool
}

func (t *TypeObject) IsInstance(v Value) bool { return t.Check(v) }

func (c *ExceptionClass) IsInstance(v Value) bool {
	e, ok := v.(*Exception)
	return ok && matchesKind(e.Kind, c.Name)
}

// builtinNames returns the builtin namespace visible to scripts.
func builtinNames() map[string]Value {
	fns := []*Builtin{
		{Name: "print", Fn: builtinPrint},
		{Name: "len", Fn: builtinLen},
		{Name: "range", Fn: builtinRange},
		{Name: "enumerate", Fn: builtinEnumerate},
		{Name: "zip", Fn: builtinZip},
		{Name: "sum", Fn: builtinSum},
		{Name: "min", Fn: func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			return extremum(ip, "min", args, kwargs, -1)
		}},
		{Name: "max", Fn: func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			return extremum(ip, "max", args, kwargs, 1)
		}},
		{Name: "sorted", Fn: builtinSorted},
		{Name: "round", Fn: builtinRound},
		{Name: "isinstance", Fn: builtinIsinstance},
	}
	out := make(map[string]Value, len(fns)+6)
	for _, fn := range fns {
		out[fn.Name] = fn
	}
	for _, t := range builtinTypes {
		out[t.Name] = t
	}
	return out
}

var builtinTypes = []*TypeObject{
	{
		Name:  "str",
		Check: func(v Value) bool { _, ok := v.(string); return ok },
		New: func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("str", args, kwargs, []string{"object"}, 0)
			if err != nil {
				return nil, err
			}
			if a[0] == nil {
				return "", nil
			}
			return Str(a[0]), nil
		},
	},
	{
		Name:  "int",
		Check: func(v Value) bool { _, ok := asInt(v); return ok },
		New:   newInt,
	},
	{
		Name:  "float",
		Check: func(v Value) bool { _, ok := v.(float64); return ok },
		New:   newFloat,
	},
	{
		Name:  "bool",
		Check: func(v Value) bool { _, ok := v.(bool); return ok },
		New: func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("bool", args, kwargs, []string{"x"}, 0)
			if err != nil {
				return nil, err
			}
			return a[0] != nil && Truthy(a[0]), nil
		},
	},
	{
		Name:  "list",
		Check: func(v Value) bool { _, ok := v.(*List); return ok },
		New: func(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
			a, err := bindArgs("list", args, kwargs, []string{"iterable"}, 0)
			if err != nil {
				return nil, err
			}
			if a[0] == nil {
				return NewList(), nil
			}
			items, err := iterate(a[0])
			if err != nil {
				return nil, err
			}
			return NewList(items...), nil
		},
	},
	{
		Name:  "dict",
		Check: func(v Value) bool { _, ok := v.(*Dict); return ok },
		New:   newDict,
	},
}

func builtinPrint(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	sep, end := " ", "\n"
	for k, v := range kwargs {
		switch k {
		case "sep", "end":
			if isNone(v) {
				continue
			}
			s, ok := v.(string)
			if !ok {
				return nil, typeError("%s must be None or a string, not %s", k, typeName(v))
			}
			if k == "sep" {
				sep = s
			} else {
				end = s
			}
		case "flush", "file":
		default:
			return nil, typeError("print() got an unexpected keyword argument '%s'", k)
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Str(a)
	}
	if _, err := io.WriteString(ip.out, strings.Join(parts, sep)+end); err != nil {
		return nil, newException("OSError", "write failed: %v", err)
	}
	return None, nil
}

func builtinLen(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if err := noKwargs("len", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, typeError("len() takes exactly one argument (%d given)", len(args))
	}
	switch x := args[0].(type) {
	case string:
		return len([]rune(x)), nil
	case *List:
		return len(x.Items), nil
	case Tuple:
		return len(x), nil
	case *Dict:
		return x.Len(), nil
	case *Range:
		return x.Len(), nil
	case interface{ Len() int }:
		return x.Len(), nil
	}
	return nil, typeError("object of type '%s' has no len()", typeName(args[0]))
}

func builtinRange(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if err := noKwargs("range", kwargs); err != nil {
		return nil, err
	}
	ints := make([]int, len(args))
	for i, a := range args {
		n, ok := asInt(a)
		if !ok {
			return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a))
		}
		ints[i] = n
	}
	switch len(ints) {
	case 1:
		return &Range{Start: 0, Stop: ints[0], Step: 1}, nil
	case 2:
		return &Range{Start: ints[0], Stop: ints[1], Step: 1}, nil
	case 3:
		if ints[2] == 0 {
			return nil, valueError("range() arg 3 must not be zero")
		}
		return &Range{Start: ints[0], Stop: ints[1], Step: ints[2]}, nil
	}
	return nil, typeError("range expected 1 to 3 arguments, got %d", len(ints))
}

func builtinEnumerate(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("enumerate", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	start := 0
	if a[1] != nil {
		var ok bool
		if start, ok = asInt(a[1]); !ok {
			return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a[1]))
		}
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = Tuple{start + i, it}
	}
	return &iterator{kind: "enumerate", items: out}, nil
}

func builtinZip(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if err := noKwargs("zip", kwargs); err != nil {
		return nil, err
	}
	seqs := make([][]Value, len(args))
	n := -1
	for i, a := range args {
		items, err := iterate(a)
		if e, ok := err.(*Exception); ok && e.Kind == "TypeError" {
			return nil, typeError("zip argument #%d must support iteration", i+1)
		} else if err != nil {
			return nil, err
		}
		seqs[i] = items
		if n < 0 || len(items) < n {
			n = len(items)
		}
	}
	out := make([]Value, max(n, 0))
	for i := range out {
		row := make(Tuple, len(seqs))
		for j, items := range seqs {
			row[j] = items[i]
		}
		out[i] = row
	}
	return &iterator{kind: "zip", items: out}, nil
}

func builtinSum(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("sum", args, kwargs, []string{"iterable", "start"}, 1)
	if err != nil {
		return nil, err
	}
	var total Value = 0
	if a[1] != nil {
		total = a[1]
	}
	if _, ok := total.(string); ok {
		return nil, typeError("sum() can't sum strings [use ''.join(seq) instead]")
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if total, err = binaryOp("+", total, it); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func extremum(ip *Interp, fn string, args []Value, kwargs map[string]Value, want int) (Value, error) {
	var key, def Value
	for k, v := range kwargs {
		switch k {
		case "key":
			key = v
		case "default":
			def = v
		default:
			return nil, typeError("%s() got an unexpected keyword argument '%s'", fn, k)
		}
	}
	var items []Value
	switch len(args) {
	case 0:
		return nil, typeError("%s expected at least 1 argument, got 0", fn)
	case 1:
		var err error
		if items, err = iterate(args[0]); err != nil {
			return nil, err
		}
	default:
		items = args
	}
	if len(items) == 0 {
		if def != nil {
			return def, nil
		}
		return nil, valueError("%s() arg is an empty sequence", fn)
	}
	best := items[0]
	bestKey, err := applyKey(ip, key, best)
	if err != nil {
		return nil, err
	}
	op := "<"
	if want > 0 {
		op = ">"
	}
	for _, it := range items[1:] {
		k, err := applyKey(ip, key, it)
		if err != nil {
			return nil, err
		}
		c, err := compare(k, bestKey, op)
		if err != nil {
			return nil, err
		}
		if c == want {
			best, bestKey = it, k
		}
	}
	return best, nil
}

func applyKey(ip *Interp, key, v Value) (Value, error) {
	if isNone(key) {
		return v, nil
	}
	return ip.call(key, []Value{v}, nil)
}

func builtinSorted(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("sorted", args, kwargs, []string{"iterable", "key", "reverse"}, 1)
	if err != nil {
		return nil, err
	}
	items, err := iterate(a[0])
	if err != nil {
		return nil, err
	}
	if err := sortValues(ip, items, a[1], a[2] != nil && Truthy(a[2])); err != nil {
		return nil, err
	}
	return NewList(items...), nil
}

// sortValues sorts items in place, stably, surfacing the first comparison
// error.
func sortValues(ip *Interp, items []Value, key Value, reverse bool) error {
	keys := make([]Value, len(items))
	for i, it := range items {
		k, err := applyKey(ip, key, it)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	var cmpErr error
	sort.SliceStable(idx, func(i, j int) bool {
		if cmpErr != nil {
			return false
		}
		c, err := compare(keys[idx[i]], keys[idx[j]], "<")
		if err != nil {
			cmpErr = err
			return false
		}
		if reverse {
			return c > 0
		}
		return c < 0
	})
	if cmpErr != nil {
		return cmpErr
	}
	sorted := make([]Value, len(items))
	for i, j := range idx {
		sorted[i] = items[j]
	}
	copy(items, sorted)
	return nil
}

func builtinRound(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("round", args, kwargs, []string{"number", "ndigits"}, 1)
	if err != nil {
		return nil, err
	}
	if i, ok := asInt(a[0]); ok {
		return i, nil
	}
	f, ok := a[0].(float64)
	if !ok {
		return nil, typeError("type %s doesn't define __round__ method", typeName(a[0]))
	}
	if isNone(a[1]) {
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, valueError("cannot convert float %s to integer", formatFloat(f))
		}
		return int(math.RoundToEven(f)), nil
	}
	nd, ok := asInt(a[1])
	if !ok {
		return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a[1]))
	}
	if nd < 0 {
		p := math.Pow(10, float64(-nd))
		return math.RoundToEven(f/p) * p, nil
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', nd, 64), 64)
	if err != nil {
		return nil, valueError("%v", err)
	}
	return r, nil
}

func builtinIsinstance(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if err := noKwargs("isinstance", kwargs); err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, typeError("isinstance expected 2 arguments, got %d", len(args))
	}
	classes := []Value{args[1]}
	if t, ok := args[1].(Tuple); ok {
		classes = t
	}
	for _, c := range classes {
		checker, ok := c.(instanceChecker)
		if !ok {
			return nil, typeError("isinstance() arg 2 must be a type, a tuple of types, or a union")
		}
		if checker.IsInstance(args[0]) {
			return true, nil
		}
	}
	return false, nil
}

func newInt(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("int", args, kwargs, []string{"x", "base"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return 0, nil
	}
	base := 10
	if a[1] != nil {
		var ok bool
		if base, ok = asInt(a[1]); !ok {
			return nil, typeError("'%s' object cannot be interpreted as an integer", typeName(a[1]))
		}
	}
	switch x := a[0].(type) {
	case bool, int:
		i, _ := asInt(x)
		return i, nil
	case float64:
		if math.IsInf(x, 0) || math.IsNaN(x) {
			return nil, valueError("cannot convert float %s to integer", formatFloat(x))
		}
		return int(x), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(x), "_", "")
		n, err := strconv.ParseInt(s, base, 64)
		if err != nil {
			return nil, valueError("invalid literal for int() with base %d: %s", base, reprString(x))
		}
		return int(n), nil
	}
	return nil, typeError("int() argument must be a string, a bytes-like object or a real number, not '%s'", typeName(a[0]))
}

func newFloat(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	a, err := bindArgs("float", args, kwargs, []string{"x"}, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == nil {
		return 0.0, nil
	}
	if f, ok := asFloat(a[0]); ok {
		return f, nil
	}
	if s, ok := a[0].(string); ok {
		t := strings.ToLower(strings.TrimSpace(s))
		switch strings.TrimLeft(t, "+-") {
		case "inf", "infinity", "nan":
		default:
			if strings.ContainsAny(t, "x") {
				return nil, valueError("could not convert string to float: %s", reprString(s))
			}
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(t, "_", ""), 64)
		if err != nil {
			return nil, valueError("could not convert string to float: %s", reprString(s))
		}
		return f, nil
	}
	return nil, typeError("float() argument must be a string or a real number, not '%s'", typeName(a[0]))
}

func newDict(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if len(args) > 1 {
		return nil, typeError("dict expected at most 1 argument, got %d", len(args))
	}
	d := NewDict()
	if len(args) == 1 {
		if src, ok := args[0].(*Dict); ok {
			d = src.Copy()
		} else {
			pairs, err := iterate(args[0])
			if err != nil {
				return nil, err
			}
			for i, p := range pairs {
				kv, err := iterate(p)
				if err != nil || len(kv) != 2 {
					return nil, valueError("dictionary update sequence element #%d has wrong length", i)
				}
				if err := d.Set(kv[0], kv[1]); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, k := range sortedKeys(kwargs) {
		if err := d.Set(k, kwargs[k]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
