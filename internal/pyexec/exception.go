package pyexec

import "fmt"

// Exception is a fault raised while executing a script. Message is what
// Python's str(e) would show.
type Exception struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`

	// fatal exceptions (cancellation, step limit) skip except clauses.
	fatal bool
}

func (e *Exception) Error() string {
	return e.Message
}

// Repr formats the exception the way repr(e) would.
func (e *Exception) Repr() string {
	return fmt.Sprintf("%s(%s)", e.Kind, reprString(e.Message))
}

func newException(kind, format string, args ...any) *Exception {
	return &Exception{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func nameError(name string) *Exception {
	return newException("NameError", "name '%s' is not defined", name)
}

func typeError(format string, args ...any) *Exception {
	return newException("TypeError", format, args...)
}

func valueError(format string, args ...any) *Exception {
	return newException("ValueError", format, args...)
}

func attributeError(v Value, name string) *Exception {
	return newException("AttributeError", "'%s' object has no attribute '%s'", typeName(v), name)
}

func syntaxError(line int, format string, args ...any) *Exception {
	msg := fmt.Sprintf(format, args...)
	return &Exception{Kind: "SyntaxError", Message: fmt.Sprintf("%s (<string>, line %d)", msg, line), Line: line}
}

// exceptionHierarchy maps the exception names usable in except clauses and
// raise statements to their parent.
var exceptionHierarchy = map[string]string{
	"BaseException":       "",
	"Exception":           "BaseException",
	"ArithmeticError":     "Exception",
	"ZeroDivisionError":   "ArithmeticError",
	"OverflowError":       "ArithmeticError",
	"AssertionError":      "Exception",
	"AttributeError":      "Exception",
	"ImportError":         "Exception",
	"ModuleNotFoundError": "ImportError",
	"LookupError":         "Exception",
	"IndexError":          "LookupError",
	"KeyError":            "LookupError",
	"NameError":           "Exception",
	"RuntimeError":        "Exception",
	"NotImplementedError": "RuntimeError",
	"RecursionError":      "RuntimeError",
	"TypeError":           "Exception",
	"ValueError":          "Exception",
	"MemoryError":         "Exception",
	"ConnectionError":     "OSError",
	"PermissionError":     "OSError",
	"TimeoutError":        "OSError",
	"OSError":             "Exception",
	"StopIteration":       "Exception",
	"SyntaxError":         "Exception",
	"SystemError":         "Exception",
	"KeyboardInterrupt":   "BaseException",
}

// matchesKind reports whether an exception of kind is caught by handler.
func matchesKind(kind, handler string) bool {
	for k := kind; k != ""; k = exceptionHierarchy[k] {
		if k == handler {
			return true
		}
		if _, known := exceptionHierarchy[k]; !known {
			return handler == "Exception" || handler == "BaseException"
		}
	}
	return false
}

// ExceptionClass is the value bound to an exception name inside except
// clauses and raise statements.
type ExceptionClass struct {
	Name string
}

func (c *ExceptionClass) Call(_ *Interp, args []Value, kwargs map[string]Value) (Value, error) {
	if len(kwargs) > 0 {
		return nil, typeError("%s() takes no keyword arguments", c.Name)
	}
	msg := ""
	switch len(args) {
	case 0:
	case 1:
		if c.Name == "KeyError" {
			msg = Repr(args[0])
		} else {
			msg = Str(args[0])
		}
	default:
		msg = Repr(Tuple(args))
	}
	return &Exception{Kind: c.Name, Message: msg}, nil
}
