//go:build cgo

package pyexec

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codefionn/geocopilot/internal/syntax"
)

type node = tree_sitter.Node

type flow int

const (
	flowNext flow = iota
	flowBreak
	flowContinue
)

// unsupported lists the constructs outside the executable subset, keyed by
// node kind.
var unsupported = map[string]string{
	"while_statement":          "'while' loops are not supported",
	"function_definition":      "function definitions are not supported",
	"class_definition":         "class definitions are not supported",
	"decorated_definition":     "decorators are not supported",
	"with_statement":           "'with' statements are not supported",
	"match_statement":          "'match' statements are not supported",
	"lambda":                   "lambda expressions are not supported",
	"await":                    "'await' outside function",
	"yield":                    "'yield' outside function",
	"return_statement":         "'return' outside function",
	"nonlocal_statement":       "nonlocal declaration not allowed at module level",
	"print_statement":          "Missing parentheses in call to 'print'. Did you mean print(...)?",
	"exec_statement":           "Missing parentheses in call to 'exec'",
	"set":                      "set literals are not supported",
	"set_comprehension":        "set comprehensions are not supported",
	"type_alias_statement":     "type aliases are not supported",
	"except_group_clause":      "exception groups are not supported",
	"list_splat_pattern":       "starred assignment targets are not supported",
	"dictionary_splat_pattern": "starred assignment targets are not supported",
}

func lineOf(n *node) int {
	return int(n.StartPosition().Row) + 1
}

// children returns the named children of n, skipping comments and line
// continuations.
func children(n *node) []*node {
	out := make([]*node, 0, n.NamedChildCount())
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil || c.IsExtra() || c.Kind() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (ip *Interp) text(n *node) string {
	return n.Utf8Text(ip.src)
}

// run parses and executes code.
func (ip *Interp) run(code string) error {
	ip.src = []byte(code)
	tree, err := syntax.ParsePython(ip.src)
	if err != nil {
		return newException("SystemError", "%v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		errs := syntax.ErrorsIn(root, ip.src)
		first := errs[0]
		return syntaxError(first.Line, "%s", first.Message)
	}
	if err := checkSupported(root, false); err != nil {
		return err
	}
	_, err = ip.execBlock(root)
	return err
}

// checkSupported rejects the whole script up front when it uses a
// construct outside the subset, so no partial output is produced.
func checkSupported(n *node, inLoop bool) error {
	kind := n.Kind()
	if msg, bad := unsupported[kind]; bad {
		return syntaxError(lineOf(n), "%s", msg)
	}
	switch kind {
	case "break_statement", "continue_statement":
		if !inLoop {
			return syntaxError(lineOf(n), "'%s' outside loop", strings.TrimSuffix(kind, "_statement"))
		}
	case "integer", "float":
		return nil
	case "for_statement":
		for _, c := range children(n) {
			if err := checkSupported(c, inLoop || c.Kind() == "block"); err != nil {
				return err
			}
		}
		return nil
	}
	for _, c := range children(n) {
		if err := checkSupported(c, inLoop); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interp) execBlock(n *node) (flow, error) {
	for _, stmt := range children(n) {
		if err := ip.tick(); err != nil {
			return flowNext, err
		}
		f, err := ip.exec(stmt)
		if err != nil {
			if e, ok := err.(*Exception); ok && e.Line == 0 {
				e.Line = lineOf(stmt)
			}
			return flowNext, err
		}
		if f != flowNext {
			return f, nil
		}
	}
	return flowNext, nil
}

func (ip *Interp) exec(n *node) (flow, error) {
	switch n.Kind() {
	case "expression_statement":
		return flowNext, ip.execExpressionStatement(n)
	case "if_statement":
		return ip.execIf(n)
	case "for_statement":
		return ip.execFor(n)
	case "try_statement":
		return ip.execTry(n)
	case "block":
		return ip.execBlock(n)
	case "pass_statement", "global_statement", "future_import_statement":
		return flowNext, nil
	case "break_statement":
		return flowBreak, nil
	case "continue_statement":
		return flowContinue, nil
	case "import_statement":
		return flowNext, ip.execImport(n)
	case "import_from_statement":
		return flowNext, ip.execImportFrom(n)
	case "raise_statement":
		return flowNext, ip.execRaise(n)
	case "assert_statement":
		return flowNext, ip.execAssert(n)
	case "delete_statement":
		return flowNext, ip.execDelete(n)
	}
	if msg, bad := unsupported[n.Kind()]; bad {
		return flowNext, syntaxError(lineOf(n), "%s", msg)
	}
	return flowNext, syntaxError(lineOf(n), "unsupported statement '%s'", n.Kind())
}

func (ip *Interp) execExpressionStatement(n *node) error {
	kids := children(n)
	if len(kids) == 1 {
		switch kids[0].Kind() {
		case "assignment":
			return ip.execAssignment(kids[0])
		case "augmented_assignment":
			return ip.execAugmented(kids[0])
		}
	}
	for _, k := range kids {
		if _, err := ip.eval(k); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interp) execAssignment(n *node) error {
	var targets []*node
	cur := n
	for cur.Kind() == "assignment" {
		left := cur.ChildByFieldName("left")
		right := cur.ChildByFieldName("right")
		if right == nil {
			// Bare annotation such as "x: int".
			return nil
		}
		targets = append(targets, left)
		cur = right
	}
	value, err := ip.eval(cur)
	if err != nil {
		return err
	}
	for _, t := range targets {
		if err := ip.assign(t, value); err != nil {
			return err
		}
	}
	return nil
}

func (ip *Interp) execAugmented(n *node) error {
	left := n.ChildByFieldName("left")
	op := strings.TrimSuffix(n.ChildByFieldName("operator").Kind(), "=")
	rhs, err := ip.eval(n.ChildByFieldName("right"))
	if err != nil {
		return err
	}
	cur, err := ip.eval(left)
	if err != nil {
		return err
	}
	if l, ok := cur.(*List); ok && op == "+" {
		items, err := iterate(rhs)
		if err != nil {
			return err
		}
		if len(l.Items)+len(items) > maxSequenceLen {
			return newException("MemoryError", "list is too large")
		}
		l.Items = append(l.Items, items...)
		return nil
	}
	next, err := binaryOp(op, cur, rhs)
	if err != nil {
		return err
	}
	return ip.assign(left, next)
}

// assign binds value to an assignment target.
func (ip *Interp) assign(target *node, value Value) error {
	switch target.Kind() {
	case "identifier":
		ip.globals[ip.text(target)] = value
		return nil
	case "parenthesized_expression":
		return ip.assign(children(target)[0], value)
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list", "expression_list":
		targets := children(target)
		items, err := iterate(value)
		if err != nil {
			return typeError("cannot unpack non-iterable %s object", typeName(value))
		}
		if len(items) < len(targets) {
			return valueError("not enough values to unpack (expected %d, got %d)", len(targets), len(items))
		}
		if len(items) > len(targets) {
			return valueError("too many values to unpack (expected %d)", len(targets))
		}
		for i, t := range targets {
			if err := ip.assign(t, items[i]); err != nil {
				return err
			}
		}
		return nil
	case "subscript":
		container, err := ip.eval(target.ChildByFieldName("value"))
		if err != nil {
			return err
		}
		key, err := ip.subscriptKey(target)
		if err != nil {
			return err
		}
		return setItem(container, key, value)
	case "attribute":
		obj, err := ip.eval(target.ChildByFieldName("object"))
		if err != nil {
			return err
		}
		return newException("AttributeError", "'%s' object attribute '%s' is read-only",
			typeName(obj), ip.text(target.ChildByFieldName("attribute")))
	}
	return syntaxError(lineOf(target), "cannot assign to %s", strings.ReplaceAll(target.Kind(), "_", " "))
}

func (ip *Interp) execIf(n *node) (flow, error) {
	cond, err := ip.eval(n.ChildByFieldName("condition"))
	if err != nil {
		return flowNext, err
	}
	if Truthy(cond) {
		return ip.execBlock(n.ChildByFieldName("consequence"))
	}
	for _, alt := range children(n) {
		switch alt.Kind() {
		case "elif_clause":
			c, err := ip.eval(alt.ChildByFieldName("condition"))
			if err != nil {
				return flowNext, err
			}
			if Truthy(c) {
				return ip.execBlock(alt.ChildByFieldName("consequence"))
			}
		case "else_clause":
			return ip.execBlock(alt.ChildByFieldName("body"))
		}
	}
	return flowNext, nil
}

func (ip *Interp) execFor(n *node) (flow, error) {
	iterable, err := ip.eval(n.ChildByFieldName("right"))
	if err != nil {
		return flowNext, err
	}
	items, err := iterate(iterable)
	if err != nil {
		return flowNext, err
	}
	left := n.ChildByFieldName("left")
	body := n.ChildByFieldName("body")
	for _, it := range items {
		if err := ip.tick(); err != nil {
			return flowNext, err
		}
		if err := ip.assign(left, it); err != nil {
			return flowNext, err
		}
		f, err := ip.execBlock(body)
		if err != nil {
			return flowNext, err
		}
		if f == flowBreak {
			return flowNext, nil
		}
	}
	if alt := n.ChildByFieldName("alternative"); alt != nil {
		return ip.execBlock(alt.ChildByFieldName("body"))
	}
	return flowNext, nil
}

func (ip *Interp) execTry(n *node) (flow, error) {
	var handlers []*node
	var elseBody, finallyBody *node
	for _, c := range children(n) {
		switch c.Kind() {
		case "except_clause":
			handlers = append(handlers, c)
		case "else_clause":
			elseBody = c.ChildByFieldName("body")
		case "finally_clause":
			kids := children(c)
			finallyBody = kids[len(kids)-1]
		}
	}

	f, err := ip.execBlock(n.ChildByFieldName("body"))
	if exc, ok := err.(*Exception); ok && !exc.fatal {
		for _, h := range handlers {
			matched, alias, block, herr := ip.matchHandler(h, exc)
			if herr != nil {
				err = herr
				break
			}
			if !matched {
				continue
			}
			if alias != "" {
				ip.globals[alias] = exc
			}
			ip.handling = append(ip.handling, exc)
			f, err = ip.execBlock(block)
			ip.handling = ip.handling[:len(ip.handling)-1]
			if alias != "" {
				delete(ip.globals, alias)
			}
			break
		}
	} else if err == nil && f == flowNext && elseBody != nil {
		f, err = ip.execBlock(elseBody)
	}

	if finallyBody != nil {
		if ff, ferr := ip.execBlock(finallyBody); ferr != nil || ff != flowNext {
			return ff, ferr
		}
	}
	return f, err
}

// matchHandler decides whether an except clause catches exc.
func (ip *Interp) matchHandler(h *node, exc *Exception) (bool, string, *node, error) {
	kids := children(h)
	block := kids[len(kids)-1]
	kids = kids[:len(kids)-1]
	if len(kids) == 0 {
		return true, "", block, nil
	}

	typeNode := kids[0]
	alias := ""
	if typeNode.Kind() == "as_pattern" {
		parts := children(typeNode)
		if a := typeNode.ChildByFieldName("alias"); a != nil {
			alias = ip.text(a)
		} else if len(parts) > 1 {
			alias = ip.text(parts[len(parts)-1])
		}
		typeNode = parts[0]
	} else if len(kids) > 1 {
		alias = ip.text(kids[1])
	}

	ip.exceptionNames++
	classes, err := ip.eval(typeNode)
	ip.exceptionNames--
	if err != nil {
		return false, "", nil, err
	}
	candidates := []Value{classes}
	if t, ok := classes.(Tuple); ok {
		candidates = t
	}
	for _, c := range candidates {
		class, ok := c.(*ExceptionClass)
		if !ok {
			return false, "", nil, typeError("catching classes that do not inherit from BaseException is not allowed")
		}
		if matchesKind(exc.Kind, class.Name) {
			return true, alias, block, nil
		}
	}
	return false, "", nil, nil
}

func (ip *Interp) execRaise(n *node) error {
	kids := children(n)
	if len(kids) == 0 {
		if len(ip.handling) == 0 {
			return newException("RuntimeError", "No active exception to reraise")
		}
		return ip.handling[len(ip.handling)-1]
	}
	ip.exceptionNames++
	v, err := ip.eval(kids[0])
	ip.exceptionNames--
	if err != nil {
		return err
	}
	switch x := v.(type) {
	case *Exception:
		return x
	case *ExceptionClass:
		return &Exception{Kind: x.Name}
	}
	return typeError("exceptions must derive from BaseException")
}

func (ip *Interp) execAssert(n *node) error {
	kids := children(n)
	cond, err := ip.eval(kids[0])
	if err != nil {
		return err
	}
	if Truthy(cond) {
		return nil
	}
	msg := ""
	if len(kids) > 1 {
		m, err := ip.eval(kids[1])
		if err != nil {
			return err
		}
		msg = Str(m)
	}
	return &Exception{Kind: "AssertionError", Message: msg}
}

func (ip *Interp) execDelete(n *node) error {
	targets := children(n)
	if len(targets) == 1 && targets[0].Kind() == "expression_list" {
		targets = children(targets[0])
	}
	for _, t := range targets {
		switch t.Kind() {
		case "identifier":
			name := ip.text(t)
			if _, ok := ip.globals[name]; !ok {
				return nameError(name)
			}
			delete(ip.globals, name)
		case "subscript":
			container, err := ip.eval(t.ChildByFieldName("value"))
			if err != nil {
				return err
			}
			key, err := ip.subscriptKey(t)
			if err != nil {
				return err
			}
			if err := deleteItem(container, key); err != nil {
				return err
			}
		default:
			return syntaxError(lineOf(t), "cannot delete %s", strings.ReplaceAll(t.Kind(), "_", " "))
		}
	}
	return nil
}

func dottedName(ip *Interp, n *node) string {
	return strings.Join(strings.Fields(ip.text(n)), "")
}

func (ip *Interp) execImport(n *node) error {
	for _, c := range children(n) {
		switch c.Kind() {
		case "dotted_name":
			name := dottedName(ip, c)
			if _, err := ip.importModule(name); err != nil {
				return err
			}
			top, _, _ := strings.Cut(name, ".")
			mod, err := ip.importModule(top)
			if err != nil {
				return err
			}
			ip.globals[top] = mod
		case "aliased_import":
			mod, err := ip.importModule(dottedName(ip, c.ChildByFieldName("name")))
			if err != nil {
				return err
			}
			ip.globals[ip.text(c.ChildByFieldName("alias"))] = mod
		}
	}
	return nil
}

func (ip *Interp) execImportFrom(n *node) error {
	modNode := n.ChildByFieldName("module_name")
	if modNode.Kind() == "relative_import" {
		return newException("ImportError", "attempted relative import with no known parent package")
	}
	modName := dottedName(ip, modNode)
	mod, err := ip.importModule(modName)
	if err != nil {
		return err
	}
	for _, c := range children(n) {
		if c.StartByte() == modNode.StartByte() {
			continue
		}
		var name, bind string
		switch c.Kind() {
		case "wildcard_import":
			for _, k := range sortedKeys(mod.Attrs) {
				if !strings.HasPrefix(k, "_") {
					ip.globals[k] = mod.Attrs[k]
				}
			}
			continue
		case "dotted_name":
			name = dottedName(ip, c)
			bind = name
		case "aliased_import":
			name = dottedName(ip, c.ChildByFieldName("name"))
			bind = ip.text(c.ChildByFieldName("alias"))
		default:
			continue
		}
		v, ok := mod.Attrs[name]
		if !ok {
			sub, subErr := ip.importModule(modName + "." + name)
			if subErr != nil {
				return newException("ImportError", "cannot import name '%s' from '%s'", name, modName)
			}
			v = sub
		}
		ip.globals[bind] = v
	}
	return nil
}
