package pyexec

import (
	"context"
	"io"

	"github.com/codefionn/geocopilot/internal/consts"
)

// DefaultMaxSteps caps the statements and loop iterations a single script
// may run.
const DefaultMaxSteps = consts.DefaultMaxSteps

// Interp holds the state of one script execution. A fresh Interp is built
// for every Execute call so nothing leaks between runs.
type Interp struct {
	ctx      context.Context
	out      io.Writer
	src      []byte
	globals  map[string]Value
	builtins map[string]Value
	modules  map[string]*Module
	steps    int
	maxSteps int
	handling []*Exception

	// exceptionNames > 0 while evaluating except clause types and raise
	// operands, where the builtin exception classes are resolvable.
	exceptionNames int
}

func newInterp(ctx context.Context, out io.Writer, portal Portal, maxSteps int) *Interp {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	mods := arcgisModules(portal)
	ip := &Interp{
		ctx:      ctx,
		out:      out,
		globals:  make(map[string]Value),
		builtins: builtinNames(),
		modules:  mods,
		maxSteps: maxSteps,
	}
	ip.globals["arcgis"] = mods["arcgis"]
	ip.globals["GIS"] = mods["arcgis.gis"].Attrs["GIS"]
	ip.globals["__name__"] = "__main__"
	return ip
}

// Context returns the context of the running script. SDK bindings use it
// for portal requests.
func (ip *Interp) Context() context.Context {
	return ip.ctx
}

// tick counts one unit of work and checks for cancellation.
func (ip *Interp) tick() error {
	ip.steps++
	if ip.steps > ip.maxSteps {
		e := newException("RuntimeError", "execution step limit of %d exceeded", ip.maxSteps)
		e.fatal = true
		return e
	}
	if err := ip.ctx.Err(); err != nil {
		kind := "KeyboardInterrupt"
		if err == context.DeadlineExceeded {
			kind = "TimeoutError"
		}
		e := newException(kind, "execution cancelled: %v", err)
		e.fatal = true
		return e
	}
	return nil
}

func (ip *Interp) lookup(name string) (Value, error) {
	if v, ok := ip.globals[name]; ok {
		return v, nil
	}
	if v, ok := ip.builtins[name]; ok {
		return v, nil
	}
	if ip.exceptionNames > 0 {
		if _, ok := exceptionHierarchy[name]; ok {
			return &ExceptionClass{Name: name}, nil
		}
	}
	return nil, nameError(name)
}

func (ip *Interp) importModule(name string) (*Module, error) {
	if m, ok := ip.modules[name]; ok {
		return m, nil
	}
	return nil, &Exception{Kind: "ModuleNotFoundError", Message: "No module named '" + name + "'"}
}

func (ip *Interp) call(fn Value, args []Value, kwargs map[string]Value) (Value, error) {
	c, ok := fn.(Callable)
	if !ok {
		return nil, typeError("'%s' object is not callable", typeName(fn))
	}
	return c.Call(ip, args, kwargs)
}
