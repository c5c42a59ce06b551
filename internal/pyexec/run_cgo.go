//go:build cgo

package pyexec

// Available reports whether the interpreter is compiled in.
const Available = true

func runScript(ip *Interp, code string) error {
	return ip.run(code)
}
