//go:build cgo

package pyexec

import (
	"strconv"
	"strings"
)

func (ip *Interp) eval(n *node) (Value, error) {
	switch n.Kind() {
	case "identifier":
		return ip.lookup(ip.text(n))
	case "integer":
		return parseIntLiteral(ip.text(n))
	case "float":
		return parseFloatLiteral(ip.text(n))
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "none", "ellipsis":
		return None, nil
	case "string":
		return ip.evalString(n)
	case "concatenated_string":
		var b strings.Builder
		for _, part := range children(n) {
			s, err := ip.evalString(part)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	case "parenthesized_expression":
		kids := children(n)
		if len(kids) == 0 {
			return Tuple{}, nil
		}
		return ip.eval(kids[0])
	case "list":
		items, err := ip.evalElements(n)
		if err != nil {
			return nil, err
		}
		return NewList(items...), nil
	case "tuple", "expression_list", "pattern_list":
		items, err := ip.evalElements(n)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case "dictionary":
		return ip.evalDict(n)
	case "list_comprehension", "generator_expression":
		return ip.evalComprehension(n)
	case "dictionary_comprehension":
		return ip.evalDictComprehension(n)
	case "attribute":
		obj, err := ip.eval(n.ChildByFieldName("object"))
		if err != nil {
			return nil, err
		}
		return getAttr(obj, ip.text(n.ChildByFieldName("attribute")))
	case "subscript":
		container, err := ip.eval(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		key, err := ip.subscriptKey(n)
		if err != nil {
			return nil, err
		}
		return getItem(container, key)
	case "call":
		return ip.evalCall(n)
	case "binary_operator":
		left, err := ip.eval(n.ChildByFieldName("left"))
		if err != nil {
			return nil, err
		}
		right, err := ip.eval(n.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		return binaryOp(n.ChildByFieldName("operator").Kind(), left, right)
	case "unary_operator":
		v, err := ip.eval(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return unaryOp(n.ChildByFieldName("operator").Kind(), v)
	case "not_operator":
		v, err := ip.eval(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	case "boolean_operator":
		left, err := ip.eval(n.ChildByFieldName("left"))
		if err != nil {
			return nil, err
		}
		isAnd := n.ChildByFieldName("operator").Kind() == "and"
		if Truthy(left) != isAnd {
			return left, nil
		}
		return ip.eval(n.ChildByFieldName("right"))
	case "comparison_operator":
		return ip.evalComparison(n)
	case "conditional_expression":
		kids := children(n)
		cond, err := ip.eval(kids[1])
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return ip.eval(kids[0])
		}
		return ip.eval(kids[2])
	case "named_expression":
		v, err := ip.eval(n.ChildByFieldName("value"))
		if err != nil {
			return nil, err
		}
		ip.globals[ip.text(n.ChildByFieldName("name"))] = v
		return v, nil
	}
	if msg, bad := unsupported[n.Kind()]; bad {
		return nil, syntaxError(lineOf(n), "%s", msg)
	}
	return nil, syntaxError(lineOf(n), "unsupported expression '%s'", n.Kind())
}

func parseIntLiteral(text string) (Value, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if strings.HasSuffix(strings.ToLower(clean), "j") {
		return nil, valueError("complex numbers are not supported")
	}
	if len(clean) > 1 && clean[0] == '0' && clean[1] >= '0' && clean[1] <= '9' {
		clean = strings.TrimLeft(clean, "0")
		if clean == "" {
			return 0, nil
		}
	}
	i, err := strconv.ParseInt(clean, 0, 64)
	if err != nil {
		return nil, newException("OverflowError", "integer literal %s is too large", text)
	}
	return int(i), nil
}

func parseFloatLiteral(text string) (Value, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if strings.HasSuffix(strings.ToLower(clean), "j") {
		return nil, valueError("complex numbers are not supported")
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, valueError("invalid float literal %s", text)
	}
	return f, nil
}

// evalElements evaluates the members of a list or tuple display,
// expanding *splats.
func (ip *Interp) evalElements(n *node) ([]Value, error) {
	var out []Value
	for _, c := range children(n) {
		if c.Kind() == "list_splat" {
			v, err := ip.eval(children(c)[0])
			if err != nil {
				return nil, err
			}
			items, err := iterate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
			continue
		}
		v, err := ip.eval(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if len(out) > maxSequenceLen {
		return nil, newException("MemoryError", "sequence is too large")
	}
	return out, nil
}

func (ip *Interp) evalDict(n *node) (Value, error) {
	d := NewDict()
	for _, c := range children(n) {
		switch c.Kind() {
		case "pair":
			k, err := ip.eval(c.ChildByFieldName("key"))
			if err != nil {
				return nil, err
			}
			v, err := ip.eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			if err := d.Set(k, v); err != nil {
				return nil, err
			}
		case "dictionary_splat":
			v, err := ip.eval(children(c)[0])
			if err != nil {
				return nil, err
			}
			src, ok := v.(*Dict)
			if !ok {
				return nil, typeError("'%s' object is not a mapping", typeName(v))
			}
			for i, k := range src.keys {
				if err := d.Set(k, src.vals[i]); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

// comprehension runs the for/if clauses of a comprehension and calls emit
// for every binding. Loop variables do not leak into the script's names.
func (ip *Interp) comprehension(n *node, emit func() error) error {
	var clauses []*node
	body := n.ChildByFieldName("body")
	for _, c := range children(n) {
		if c.StartByte() == body.StartByte() && c.EndByte() == body.EndByte() {
			continue
		}
		clauses = append(clauses, c)
	}

	saved := make(map[string]Value)
	for _, c := range clauses {
		if c.Kind() != "for_in_clause" {
			continue
		}
		for _, name := range ip.boundNames(c.ChildByFieldName("left")) {
			if _, seen := saved[name]; seen {
				continue
			}
			saved[name] = ip.globals[name]
		}
	}
	defer func() {
		for name, v := range saved {
			if v == nil {
				delete(ip.globals, name)
			} else {
				ip.globals[name] = v
			}
		}
	}()

	var walk func(i int) error
	walk = func(i int) error {
		if i == len(clauses) {
			return emit()
		}
		c := clauses[i]
		switch c.Kind() {
		case "for_in_clause":
			src, err := ip.eval(c.ChildByFieldName("right"))
			if err != nil {
				return err
			}
			items, err := iterate(src)
			if err != nil {
				return err
			}
			left := c.ChildByFieldName("left")
			for _, it := range items {
				if err := ip.tick(); err != nil {
					return err
				}
				if err := ip.assign(left, it); err != nil {
					return err
				}
				if err := walk(i + 1); err != nil {
					return err
				}
			}
			return nil
		case "if_clause":
			cond, err := ip.eval(children(c)[0])
			if err != nil {
				return err
			}
			if Truthy(cond) {
				return walk(i + 1)
			}
			return nil
		}
		return syntaxError(lineOf(c), "unsupported comprehension clause '%s'", c.Kind())
	}
	return walk(0)
}

func (ip *Interp) boundNames(target *node) []string {
	if target == nil {
		return nil
	}
	if target.Kind() == "identifier" {
		return []string{ip.text(target)}
	}
	var names []string
	for _, c := range children(target) {
		names = append(names, ip.boundNames(c)...)
	}
	return names
}

func (ip *Interp) evalComprehension(n *node) (Value, error) {
	body := n.ChildByFieldName("body")
	var out []Value
	err := ip.comprehension(n, func() error {
		v, err := ip.eval(body)
		if err != nil {
			return err
		}
		if len(out) >= maxSequenceLen {
			return newException("MemoryError", "comprehension result is too large")
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewList(out...), nil
}

func (ip *Interp) evalDictComprehension(n *node) (Value, error) {
	pair := n.ChildByFieldName("body")
	d := NewDict()
	err := ip.comprehension(n, func() error {
		k, err := ip.eval(pair.ChildByFieldName("key"))
		if err != nil {
			return err
		}
		v, err := ip.eval(pair.ChildByFieldName("value"))
		if err != nil {
			return err
		}
		return d.Set(k, v)
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// subscriptKey evaluates the index part of a[...]; several indexes form a
// tuple.
func (ip *Interp) subscriptKey(n *node) (Value, error) {
	value := n.ChildByFieldName("value")
	var keys []Value
	for _, c := range children(n) {
		if c.StartByte() == value.StartByte() && c.EndByte() == value.EndByte() {
			continue
		}
		k, err := ip.evalIndex(c)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	switch len(keys) {
	case 0:
		return nil, syntaxError(lineOf(n), "invalid syntax")
	case 1:
		return keys[0], nil
	}
	return Tuple(keys), nil
}

func (ip *Interp) evalIndex(n *node) (Value, error) {
	if n.Kind() != "slice" {
		return ip.eval(n)
	}
	parts := [3]Value{None, None, None}
	slot := 0
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.IsExtra() {
			continue
		}
		if !c.IsNamed() {
			if c.Kind() == ":" {
				slot++
			}
			continue
		}
		if slot > 2 {
			return nil, syntaxError(lineOf(n), "invalid slice")
		}
		v, err := ip.eval(c)
		if err != nil {
			return nil, err
		}
		parts[slot] = v
	}
	return sliceValue{Start: parts[0], Stop: parts[1], Step: parts[2]}, nil
}

func (ip *Interp) evalCall(n *node) (Value, error) {
	fn, err := ip.eval(n.ChildByFieldName("function"))
	if err != nil {
		return nil, err
	}
	argsNode := n.ChildByFieldName("arguments")
	var args []Value
	kwargs := make(map[string]Value)

	if argsNode.Kind() == "generator_expression" {
		v, err := ip.evalComprehension(argsNode)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		return ip.call(fn, args, kwargs)
	}

	for _, c := range children(argsNode) {
		switch c.Kind() {
		case "keyword_argument":
			name := ip.text(c.ChildByFieldName("name"))
			if _, dup := kwargs[name]; dup {
				return nil, syntaxError(lineOf(c), "keyword argument repeated: %s", name)
			}
			v, err := ip.eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			kwargs[name] = v
		case "list_splat":
			v, err := ip.eval(children(c)[0])
			if err != nil {
				return nil, err
			}
			items, err := iterate(v)
			if err != nil {
				return nil, err
			}
			args = append(args, items...)
		case "dictionary_splat":
			v, err := ip.eval(children(c)[0])
			if err != nil {
				return nil, err
			}
			d, ok := v.(*Dict)
			if !ok {
				return nil, typeError("argument after ** must be a mapping, not %s", typeName(v))
			}
			for i, k := range d.keys {
				ks, ok := k.(string)
				if !ok {
					return nil, typeError("keywords must be strings")
				}
				kwargs[ks] = d.vals[i]
			}
		default:
			v, err := ip.eval(c)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return ip.call(fn, args, kwargs)
}

func (ip *Interp) evalComparison(n *node) (Value, error) {
	var operands []*node
	var ops []string
	pending := ""
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c == nil || c.IsExtra() {
			continue
		}
		if c.IsNamed() {
			if len(operands) > 0 {
				ops = append(ops, pending)
				pending = ""
			}
			operands = append(operands, c)
			continue
		}
		pending = strings.TrimSpace(pending + " " + c.Kind())
	}

	left, err := ip.eval(operands[0])
	if err != nil {
		return nil, err
	}
	for i, op := range ops {
		right, err := ip.eval(operands[i+1])
		if err != nil {
			return nil, err
		}
		ok, err := compareOp(op, left, right)
		if err != nil {
			return nil, err
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}
