package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CEL has no variadic functions, so each host function gets dyn overloads up
// to this arity.
const celMaxArity = 4

type celProgram struct {
	prog cel.Program
}

func compileCEL(source string, cfg config) (program, error) {
	opts := make([]cel.EnvOption, 0, len(cfg.vars)+len(cfg.funcs))
	for _, name := range cfg.vars {
		opts = append(opts, cel.Variable(name, cel.DynType))
	}
	for _, name := range cfg.funcNames() {
		opts = append(opts, celFunction(name, cfg.funcs[name]))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return celProgram{prog: prog}, nil
}

func (p celProgram) run(vars Vars) (any, error) {
	out, _, err := p.prog.Eval(map[string]any(vars))
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func celFunction(name string, fn Function) cel.EnvOption {
	binding := cel.FunctionBinding(func(values ...ref.Val) ref.Val {
		args := make([]any, len(values))
		for i, val := range values {
			args[i] = val.Value()
		}
		result, err := fn(args...)
		if err != nil {
			return types.NewErr("%s: %v", name, err)
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	})

	overloads := make([]cel.FunctionOpt, 0, celMaxArity)
	for arity := 1; arity <= celMaxArity; arity++ {
		params := make([]*cel.Type, arity)
		for i := range params {
			params[i] = cel.DynType
		}
		overloads = append(overloads, cel.Overload(fmt.Sprintf("%s_dyn_%d", name, arity), params, cel.DynType, binding))
	}
	return cel.Function(name, overloads...)
}
