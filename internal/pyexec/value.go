package pyexec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is any runtime value of the interpreter. Python scalars map onto
// Go scalars: None, bool, int, float64 and string.
type Value any

type noneType struct{}

// None is the interpreter's None singleton.
var None Value = noneType{}

// maxSequenceLen bounds materialized sequences so a script cannot exhaust
// memory with list(range(10**12)) or "x" * 10**12.
const maxSequenceLen = 1 << 20

// Callable is implemented by builtins, bound methods, types and classes.
type Callable interface {
	Call(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)
}

// Attributer exposes attribute lookup for module and SDK objects.
type Attributer interface {
	Attr(name string) (Value, bool)
}

// List is a mutable Python list.
type List struct {
	Items []Value
}

func NewList(items ...Value) *List {
	return &List{Items: items}
}

// Tuple is an immutable Python tuple.
type Tuple []Value

// Range is a lazy range object.
type Range struct {
	Start, Stop, Step int
}

func (r *Range) Len() int {
	if r.Step > 0 && r.Start < r.Stop {
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Step < 0 && r.Start > r.Stop {
		return (r.Start - r.Stop - r.Step - 1) / -r.Step
	}
	return 0
}

// Builtin is a native function.
type Builtin struct {
	Name string
	Fn   func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)
}

func (b *Builtin) Call(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	return b.Fn(ip, args, kwargs)
}

// TypeObject is a builtin type such as str or int: callable as a
// constructor and usable with isinstance.
type TypeObject struct {
	Name  string
	Check func(Value) bool
	New   func(ip *Interp, args []Value, kwargs map[string]Value) (Value, error)
}

func (t *TypeObject) Call(ip *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	return t.New(ip, args, kwargs)
}

// Module is an importable module.
type Module struct {
	Name  string
	Attrs map[string]Value
}

func (m *Module) Attr(name string) (Value, bool) {
	v, ok := m.Attrs[name]
	return v, ok
}

func typeName(v Value) string {
	switch x := v.(type) {
	case noneType:
		return "NoneType"
	case bool:
		return "bool"
	case int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *Range:
		return "range"
	case *Builtin, *boundMethod:
		return "builtin_function_or_method"
	case *TypeObject, *ExceptionClass:
		return "type"
	case *Module:
		return "module"
	case *Exception:
		return x.Kind
	case interface{ TypeName() string }:
		return x.TypeName()
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Truthy implements Python truth testing.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case noneType:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case Tuple:
		return len(x) > 0
	case *Dict:
		return x.Len() > 0
	case *Range:
		return x.Len() > 0
	default:
		return true
	}
}

// Str formats v the way str(v) would.
func Str(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case *Exception:
		return x.Message
	default:
		return Repr(v)
	}
}

// Repr formats v the way repr(v) would.
func Repr(v Value) string {
	switch x := v.(type) {
	case noneType:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case string:
		return reprString(x)
	case *List:
		return "[" + joinRepr(x.Items) + "]"
	case Tuple:
		if len(x) == 1 {
			return "(" + Repr(x[0]) + ",)"
		}
		return "(" + joinRepr(x) + ")"
	case *Dict:
		parts := make([]string, 0, x.Len())
		for i, k := range x.keys {
			parts = append(parts, Repr(k)+": "+Repr(x.vals[i]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Range:
		if x.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", x.Start, x.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case *Builtin:
		return "<built-in function " + x.Name + ">"
	case *boundMethod:
		return "<built-in method " + x.name + ">"
	case *TypeObject:
		return "<class '" + x.Name + "'>"
	case *ExceptionClass:
		return "<class '" + x.Name + "'>"
	case *Module:
		return "<module '" + x.Name + "'>"
	case *Exception:
		return x.Repr()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("<%s object>", typeName(v))
	}
}

func joinRepr(items []Value) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = Repr(it)
	}
	return strings.Join(parts, ", ")
}

func reprString(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
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

// formatFloat mirrors Python's float repr: shortest round-trip digits,
// scientific notation outside [1e-4, 1e16).
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// Dict is an insertion-ordered Python dict.
type Dict struct {
	keys  []Value
	vals  []Value
	index map[any]int
}

func NewDict() *Dict {
	return &Dict{index: make(map[any]int)}
}

type tupleKey struct{ repr string }

func hashKey(v Value) (any, error) {
	switch x := v.(type) {
	case noneType, string, int:
		return x, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<62 {
			return int(x), nil
		}
		return x, nil
	case Tuple:
		for _, it := range x {
			if _, err := hashKey(it); err != nil {
				return nil, err
			}
		}
		return tupleKey{Repr(x)}, nil
	case *List, *Dict:
		return nil, typeError("unhashable type: '%s'", typeName(v))
	default:
		return v, nil
	}
}

func (d *Dict) Len() int { return len(d.keys) }

func (d *Dict) Get(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	return d.vals[i], true, nil
}

func (d *Dict) Set(k, v Value) error {
	hk, err := hashKey(k)
	if err != nil {
		return err
	}
	if i, ok := d.index[hk]; ok {
		d.vals[i] = v
		return nil
	}
	d.index[hk] = len(d.keys)
	d.keys = append(d.keys, k)
	d.vals = append(d.vals, v)
	return nil
}

func (d *Dict) Delete(k Value) (Value, bool, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, false, nil
	}
	v := d.vals[i]
	d.keys = append(d.keys[:i], d.keys[i+1:]...)
	d.vals = append(d.vals[:i], d.vals[i+1:]...)
	delete(d.index, hk)
	for j := i; j < len(d.keys); j++ {
		hj, _ := hashKey(d.keys[j])
		d.index[hj] = j
	}
	return v, true, nil
}

func (d *Dict) Keys() []Value {
	return append([]Value(nil), d.keys...)
}

func (d *Dict) Values() []Value {
	return append([]Value(nil), d.vals...)
}

func (d *Dict) Items() []Value {
	out := make([]Value, len(d.keys))
	for i := range d.keys {
		out[i] = Tuple{d.keys[i], d.vals[i]}
	}
	return out
}

func (d *Dict) Copy() *Dict {
	c := NewDict()
	for i, k := range d.keys {
		_ = c.Set(k, d.vals[i])
	}
	return c
}

// iterate materializes an iterable into a slice.
func iterate(v Value) ([]Value, error) {
	switch x := v.(type) {
	case *List:
		return append([]Value(nil), x.Items...), nil
	case Tuple:
		return append([]Value(nil), x...), nil
	case string:
		out := make([]Value, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case *Dict:
		return x.Keys(), nil
	case *Range:
		n := x.Len()
		if n > maxSequenceLen {
			return nil, newException("MemoryError", "range of %d elements is too large", n)
		}
		out := make([]Value, n)
		for i := range out {
			out[i] = x.Start + i*x.Step
		}
		return out, nil
	case interface{ Iter() []Value }:
		return x.Iter(), nil
	default:
		return nil, typeError("'%s' object is not iterable", typeName(v))
	}
}

func asInt(v Value) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func isNumber(v Value) bool {
	_, ok := asFloat(v)
	return ok
}

// Equal implements ==.
func Equal(a, b Value) bool {
	if isNumber(a) && isNumber(b) {
		ai, aInt := asInt(a)
		bi, bInt := asInt(b)
		if aInt && bInt {
			return ai == bi
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return af == bf
	}
	switch x := a.(type) {
	case noneType:
		_, ok := b.(noneType)
		return ok
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		return ok && equalSlices(x.Items, y.Items)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && equalSlices(x, y)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			v, found, err := y.Get(k)
			if err != nil || !found || !Equal(x.vals[i], v) {
				return false
			}
		}
		return true
	case *Range:
		y, ok := b.(*Range)
		return ok && *x == *y
	default:
		return identical(a, b)
	}
}

func equalSlices(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// identical implements the is operator.
func identical(a, b Value) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	switch a.(type) {
	case Tuple:
		return false
	}
	return a == b
}

// compare orders a and b for <, <=, > and >=.
func compare(a, b Value, op string) (int, error) {
	if isNumber(a) && isNumber(b) {
		ai, aInt := asInt(a)
		bi, bInt := asInt(b)
		if aInt && bInt {
			return cmpOrdered(ai, bi), nil
		}
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return cmpOrdered(af, bf), nil
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y), nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return compareSlices(x.Items, y.Items, op)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return compareSlices(x, y, op)
		}
	}
	return 0, typeError("'%s' not supported between instances of '%s' and '%s'", op, typeName(a), typeName(b))
}

func compareSlices(a, b []Value, op string) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		return compare(a[i], b[i], op)
	}
	return cmpOrdered(len(a), len(b)), nil
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
