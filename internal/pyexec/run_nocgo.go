//go:build !cgo

package pyexec

// Available reports whether the interpreter is compiled in. The parser
// needs cgo.
const Available = false

func runScript(_ *Interp, _ string) error {
	return newException("SystemError", "the Python interpreter is unavailable in builds without cgo")
}
