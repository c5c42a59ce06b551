//go:build cgo

package syntax

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Available reports whether tree-sitter parsing is compiled in.
const Available = true

var pythonLanguage = tree_sitter.NewLanguage(tree_sitter_python.Language())

// ParsePython parses src with the tree-sitter Python grammar. The caller
// must Close the returned tree.
func ParsePython(src []byte) (*tree_sitter.Tree, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("failed to set parser language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code: parser returned nil tree")
	}
	return tree, nil
}

// Validator checks generated Python source for syntax errors.
type Validator struct{}

// NewValidator creates a new syntax validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses code and reports every ERROR and MISSING node.
func (v *Validator) Validate(code string) (*ValidationResult, error) {
	if strings.TrimSpace(code) == "" {
		return &ValidationResult{Valid: true, Language: LanguagePython}, nil
	}

	source := []byte(code)
	tree, err := ParsePython(source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &ValidationResult{
		Valid:       true,
		Language:    LanguagePython,
		ParsedBytes: len(source),
	}
	if !root.HasError() {
		return result, nil
	}

	result.Errors = ErrorsIn(root, source)
	result.Valid = len(result.Errors) == 0
	return result, nil
}

// ErrorsIn collects syntax errors below node in document order.
func ErrorsIn(node *tree_sitter.Node, source []byte) []SyntaxError {
	var errs []SyntaxError

	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			pos := n.StartPosition()
			errs = append(errs, SyntaxError{
				Line:      int(pos.Row) + 1,
				Column:    int(pos.Column) + 1,
				Message:   describe(n, source),
				ErrorNode: n.Kind(),
			})
			if n.IsMissing() {
				return
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)

	if node.HasError() && len(errs) == 0 {
		pos := node.StartPosition()
		errs = append(errs, SyntaxError{
			Line:      int(pos.Row) + 1,
			Column:    int(pos.Column) + 1,
			Message:   "invalid syntax",
			ErrorNode: "ERROR",
		})
	}
	return errs
}

func describe(n *tree_sitter.Node, source []byte) string {
	if n.IsMissing() {
		return fmt.Sprintf("expected '%s'", n.Kind())
	}

	text := ""
	if start, end := n.StartByte(), n.EndByte(); start < end && end <= uint(len(source)) {
		text = string(source[start:end])
		if len(text) > 40 {
			text = text[:40] + "..."
		}
		text = strings.ReplaceAll(text, "\n", "\\n")
	}
	if text == "" {
		return "invalid syntax"
	}
	return fmt.Sprintf("invalid syntax near '%s'", text)
}
