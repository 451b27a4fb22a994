package rules

import (
	exprlang "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

type exprProgram struct {
	prog *vm.Program
}

func compileExpr(source string, cfg config) (program, error) {
	options := []exprlang.Option{exprlang.AllowUndefinedVariables()}
	for _, name := range cfg.funcNames() {
		fn := cfg.funcs[name]
		options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
			return fn(args...)
		}))
	}
	prog, err := exprlang.Compile(source, options...)
	if err != nil {
		return nil, err
	}
	return exprProgram{prog: prog}, nil
}

func (p exprProgram) run(vars Vars) (any, error) {
	return exprlang.Run(p.prog, map[string]any(vars))
}
