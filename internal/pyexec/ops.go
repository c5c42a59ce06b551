package pyexec

import (
	"math"
	"strings"
)

func unsupportedOperands(op string, a, b Value) *Exception {
	return typeError("unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(a), typeName(b))
}

// binaryOp evaluates an arithmetic or bitwise operator.
func binaryOp(op string, a, b Value) (Value, error) {
	ai, aInt := asInt(a)
	bi, bInt := asInt(b)
	if aInt && bInt {
		return intOp(op, ai, bi)
	}
	if isNumber(a) && isNumber(b) {
		af, _ := asFloat(a)
		bf, _ := asFloat(b)
		return floatOp(op, af, bf)
	}

	switch x := a.(type) {
	case string:
		switch op {
		case "+":
			if y, ok := b.(string); ok {
				return x + y, nil
			}
			return nil, typeError("can only concatenate str (not \"%s\") to str", typeName(b))
		case "*":
			if n, ok := asInt(b); ok {
				return repeatString(x, n)
			}
		case "%":
			return percentFormat(x, b)
		}
	case *List:
		switch op {
		case "+":
			if y, ok := b.(*List); ok {
				return NewList(append(append([]Value(nil), x.Items...), y.Items...)...), nil
			}
			return nil, typeError("can only concatenate list (not \"%s\") to list", typeName(b))
		case "*":
			if n, ok := asInt(b); ok {
				items, err := repeatSlice(x.Items, n)
				if err != nil {
					return nil, err
				}
				return NewList(items...), nil
			}
		}
	case Tuple:
		switch op {
		case "+":
			if y, ok := b.(Tuple); ok {
				return append(append(Tuple(nil), x...), y...), nil
			}
		case "*":
			if n, ok := asInt(b); ok {
				items, err := repeatSlice(x, n)
				return Tuple(items), err
			}
		}
	case *Dict:
		if y, ok := b.(*Dict); ok && op == "|" {
			merged := x.Copy()
			for i, k := range y.keys {
				if err := merged.Set(k, y.vals[i]); err != nil {
					return nil, err
				}
			}
			return merged, nil
		}
	}
	if op == "*" && aInt {
		switch b.(type) {
		case string, *List, Tuple:
			return binaryOp(op, b, a)
		}
	}
	return nil, unsupportedOperands(op, a, b)
}

func intOp(op string, a, b int) (Value, error) {
	switch op {
	case "+":
		r := a + b
		if (a >= 0) == (b >= 0) && (r >= 0) != (a >= 0) {
			return nil, errIntOverflow()
		}
		return r, nil
	case "-":
		r := a - b
		if (a >= 0) != (b >= 0) && (r >= 0) != (a >= 0) {
			return nil, errIntOverflow()
		}
		return r, nil
	case "*":
		return intMul(a, b)
	case "/":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "division by zero")
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "integer division or modulo by zero")
		}
		if a == math.MinInt && b == -1 {
			return nil, errIntOverflow()
		}
		return floorDiv(a, b), nil
	case "%":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "integer modulo by zero")
		}
		if b == -1 {
			return 0, nil
		}
		return a - floorDiv(a, b)*b, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		return intPow(a, b)
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "<<":
		if b < 0 {
			return nil, valueError("negative shift count")
		}
		if b > 62 {
			return nil, newException("OverflowError", "shift count too large")
		}
		r := a << b
		if r>>b != a {
			return nil, errIntOverflow()
		}
		return r, nil
	case ">>":
		if b < 0 {
			return nil, valueError("negative shift count")
		}
		return a >> min(b, 63), nil
	}
	return nil, unsupportedOperands(op, a, b)
}

func errIntOverflow() error {
	return newException("OverflowError", "integer result too large")
}

func intMul(a, b int) (Value, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return nil, errIntOverflow()
	}
	return r, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func intPow(base, exp int) (Value, error) {
	switch base {
	case 0:
		if exp == 0 {
			return 1, nil
		}
		return 0, nil
	case 1:
		return 1, nil
	case -1:
		if exp%2 == 0 {
			return 1, nil
		}
		return -1, nil
	}
	result := 1
	for i := 0; i < exp; i++ {
		next, err := intMul(result, base)
		if err != nil {
			return nil, err
		}
		result = next.(int)
	}
	return result, nil
}

func floatOp(op string, a, b float64) (Value, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "float division by zero")
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "float floor division by zero")
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, newException("ZeroDivisionError", "float modulo")
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m, nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, unsupportedOperands(op, a, b)
}

func repeatString(s string, n int) (Value, error) {
	if n <= 0 {
		return "", nil
	}
	if len(s)*n > maxSequenceLen*8 {
		return nil, newException("MemoryError", "string repetition is too large")
	}
	return strings.Repeat(s, n), nil
}

func repeatSlice(items []Value, n int) ([]Value, error) {
	if n <= 0 {
		return nil, nil
	}
	if len(items)*n > maxSequenceLen {
		return nil, newException("MemoryError", "sequence repetition is too large")
	}
	out := make([]Value, 0, len(items)*n)
	for i := 0; i < n; i++ {
		out = append(out, items...)
	}
	return out, nil
}

// unaryOp evaluates -x, +x and ~x.
func unaryOp(op string, v Value) (Value, error) {
	if i, ok := asInt(v); ok {
		switch op {
		case "-":
			if i == math.MinInt {
				return nil, errIntOverflow()
			}
			return -i, nil
		case "+":
			return i, nil
		case "~":
			return ^i, nil
		}
	}
	if f, ok := v.(float64); ok {
		switch op {
		case "-":
			return -f, nil
		case "+":
			return f, nil
		}
	}
	return nil, typeError("bad operand type for unary %s: '%s'", op, typeName(v))
}

// compareOp evaluates one link of a comparison chain.
func compareOp(op string, a, b Value) (bool, error) {
	switch op {
	case "==":
		return Equal(a, b), nil
	case "!=", "<>":
		return !Equal(a, b), nil
	case "is":
		return identical(a, b), nil
	case "is not":
		return !identical(a, b), nil
	case "in":
		return contains(b, a)
	case "not in":
		found, err := contains(b, a)
		return !found, err
	}
	c, err := compare(a, b, op)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, newException("SyntaxError", "unknown comparison operator %q", op)
}

func contains(container, item Value) (bool, error) {
	switch c := container.(type) {
	case string:
		s, ok := item.(string)
		if !ok {
			return false, typeError("'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(c, s), nil
	case *Dict:
		_, found, err := c.Get(item)
		return found, err
	case *Range:
		i, ok := asInt(item)
		if !ok {
			return false, nil
		}
		n := c.Len()
		if n == 0 || (i-c.Start)%c.Step != 0 {
			return false, nil
		}
		idx := (i - c.Start) / c.Step
		return idx >= 0 && idx < n, nil
	}
	items, err := iterate(container)
	if err != nil {
		return false, typeError("argument of type '%s' is not iterable", typeName(container))
	}
	for _, it := range items {
		if Equal(it, item) {
			return true, nil
		}
	}
	return false, nil
}

// sliceValue is the evaluated form of a[start:stop:step]; missing bounds
// are None.
type sliceValue struct {
	Start, Stop, Step Value
}

// indices resolves the slice against a sequence of length n.
func (s sliceValue) indices(n int) (start, stop, step int, err error) {
	step = 1
	if _, isNone := s.Step.(noneType); !isNone {
		var ok bool
		if step, ok = asInt(s.Step); !ok {
			return 0, 0, 0, typeError("slice indices must be integers or None")
		}
		if step == 0 {
			return 0, 0, 0, valueError("slice step cannot be zero")
		}
	}
	lower, upper := 0, n
	if step < 0 {
		lower, upper = -1, n-1
	}
	bound := func(v Value, def int) (int, error) {
		if _, isNone := v.(noneType); isNone {
			return def, nil
		}
		i, ok := asInt(v)
		if !ok {
			return 0, typeError("slice indices must be integers or None")
		}
		if i < 0 {
			i += n
			if i < lower {
				i = lower
			}
		} else if i > upper {
			i = upper
		}
		return i, nil
	}
	if step > 0 {
		start, err = bound(s.Start, lower)
		if err == nil {
			stop, err = bound(s.Stop, upper)
		}
	} else {
		start, err = bound(s.Start, upper)
		if err == nil {
			stop, err = bound(s.Stop, lower)
		}
	}
	return start, stop, step, err
}

func sliceIndexes(s sliceValue, n int) ([]int, error) {
	start, stop, step, err := s.indices(n)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, i)
	}
	return out, nil
}

func normalizeIndex(kind string, idx Value, n int) (int, error) {
	i, ok := asInt(idx)
	if !ok {
		return 0, typeError("%s indices must be integers or slices, not %s", kind, typeName(idx))
	}
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, newException("IndexError", "%s index out of range", kind)
	}
	return i, nil
}

// Subscriptable is implemented by SDK objects that support obj[key].
type Subscriptable interface {
	GetItem(key Value) (Value, error)
}

func getItem(container, key Value) (Value, error) {
	switch c := container.(type) {
	case *List:
		if s, ok := key.(sliceValue); ok {
			idx, err := sliceIndexes(s, len(c.Items))
			if err != nil {
				return nil, err
			}
			out := make([]Value, len(idx))
			for i, j := range idx {
				out[i] = c.Items[j]
			}
			return NewList(out...), nil
		}
		i, err := normalizeIndex("list", key, len(c.Items))
		if err != nil {
			return nil, err
		}
		return c.Items[i], nil
	case Tuple:
		if s, ok := key.(sliceValue); ok {
			idx, err := sliceIndexes(s, len(c))
			if err != nil {
				return nil, err
			}
			out := make(Tuple, len(idx))
			for i, j := range idx {
				out[i] = c[j]
			}
			return out, nil
		}
		i, err := normalizeIndex("tuple", key, len(c))
		if err != nil {
			return nil, err
		}
		return c[i], nil
	case string:
		runes := []rune(c)
		if s, ok := key.(sliceValue); ok {
			idx, err := sliceIndexes(s, len(runes))
			if err != nil {
				return nil, err
			}
			var b strings.Builder
			for _, j := range idx {
				b.WriteRune(runes[j])
			}
			return b.String(), nil
		}
		i, err := normalizeIndex("string", key, len(runes))
		if err != nil {
			return nil, err
		}
		return string(runes[i]), nil
	case *Range:
		items, err := iterate(c)
		if err != nil {
			return nil, err
		}
		return getItem(NewList(items...), key)
	case *Dict:
		v, found, err := c.Get(key)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &Exception{Kind: "KeyError", Message: Repr(key)}
		}
		return v, nil
	case Subscriptable:
		return c.GetItem(key)
	}
	return nil, typeError("'%s' object is not subscriptable", typeName(container))
}

func setItem(container, key, value Value) error {
	switch c := container.(type) {
	case *List:
		if s, ok := key.(sliceValue); ok {
			start, stop, step, err := s.indices(len(c.Items))
			if err != nil {
				return err
			}
			if step != 1 {
				return valueError("extended slice assignment is not supported")
			}
			repl, err := iterate(value)
			if err != nil {
				return err
			}
			if stop < start {
				stop = start
			}
			items := append(append(append([]Value(nil), c.Items[:start]...), repl...), c.Items[stop:]...)
			c.Items = items
			return nil
		}
		i, err := normalizeIndex("list", key, len(c.Items))
		if err != nil {
			return err
		}
		c.Items[i] = value
		return nil
	case *Dict:
		return c.Set(key, value)
	}
	return typeError("'%s' object does not support item assignment", typeName(container))
}

func deleteItem(container, key Value) error {
	switch c := container.(type) {
	case *List:
		i, err := normalizeIndex("list", key, len(c.Items))
		if err != nil {
			return err
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	case *Dict:
		_, found, err := c.Delete(key)
		if err != nil {
			return err
		}
		if !found {
			return &Exception{Kind: "KeyError", Message: Repr(key)}
		}
		return nil
	}
	return typeError("'%s' object doesn't support item deletion", typeName(container))
}
