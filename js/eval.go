package js

import "github.com/dop251/goja"

// EvalOptions configures code evaluation.
type EvalOptions struct {
	// Filename names the code in stack traces. Empty means "eval".
	Filename string
}

// Eval runs code in the module's runtime and returns the completion value.
// Exceptions come back as *goja.Exception.
func (m *Module) Eval(code string, opts *EvalOptions) (goja.Value, error) {
	if len(code) == 0 {
		return goja.Undefined(), nil
	}
	name := "eval"
	if opts != nil && opts.Filename != "" {
		name = opts.Filename
	}
	return m.vm.RunScript(name, code)
}
