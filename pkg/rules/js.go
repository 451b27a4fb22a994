//go:build js_eval

package rules

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsProgram struct {
	prog  *goja.Program
	funcs map[string]Function
}

func compileJS(source string, cfg config) (program, error) {
	prog, err := goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", source), true)
	if err != nil {
		return nil, err
	}
	return jsProgram{prog: prog, funcs: cfg.funcs}, nil
}

// run uses a fresh runtime per call since a goja.Runtime is not goroutine safe.
func (p jsProgram) run(vars Vars) (any, error) {
	vm := goja.New()
	for key, value := range vars {
		if err := vm.Set(key, value); err != nil {
			return nil, err
		}
	}
	for name, fn := range p.funcs {
		if err := vm.Set(name, fn); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(p.prog)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
