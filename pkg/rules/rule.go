// Package rules compiles a pricing formula once and runs it for each request.
//
// Formulas are written for one of three engines: expr (default), CEL, or
// JavaScript via goja when built with the js_eval tag. Request inputs are
// exposed as top-level variables and host functions are callable by name.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Function is a host function callable from a formula.
type Function func(args ...any) (any, error)

// Vars holds the inputs of one evaluation.
type Vars map[string]any

type program interface {
	run(vars Vars) (any, error)
}

type compiler func(source string, cfg config) (program, error)

var compilers = map[string]compiler{
	"expr": compileExpr,
	"cel":  compileCEL,
	"js":   compileJS,
}

type config struct {
	vars   []string
	funcs  map[string]Function
	logger *zap.Logger
	err    error
}

func (c config) funcNames() []string {
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Option configures Compile.
type Option func(*config)

// WithVariables declares the variable names a formula may read. CEL checks
// references against them at compile time; the other engines accept any name.
func WithVariables(names ...string) Option {
	return func(c *config) {
		c.vars = append(c.vars, names...)
	}
}

// WithFunction exposes fn to the formula as name.
func WithFunction(name string, fn Function) Option {
	return func(c *config) {
		switch {
		case name == "":
			c.err = fmt.Errorf("rules: function name must not be empty")
		case fn == nil:
			c.err = fmt.Errorf("rules: function %q is nil", name)
		case c.funcs[name] != nil:
			c.err = fmt.Errorf("rules: function %q already registered", name)
		default:
			if c.funcs == nil {
				c.funcs = map[string]Function{}
			}
			c.funcs[name] = fn
		}
	}
}

// WithLogger logs each evaluation: failures at warn, successes at debug.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Rule is a compiled formula. It is safe for concurrent use.
type Rule struct {
	engine string
	source string
	prog   program
	logger *zap.Logger
}

// Compile parses source for engine ("expr", "cel" or "js"). An empty engine
// selects expr.
func Compile(engine, source string, opts ...Option) (*Rule, error) {
	if engine == "" {
		engine = "expr"
	}
	build, ok := compilers[engine]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownEngine, engine, strings.Join(Engines(), ", "))
	}
	if build == nil {
		return nil, fmt.Errorf("rules: %s engine requires the js_eval build tag", engine)
	}
	if strings.TrimSpace(source) == "" {
		return nil, &EvaluationError{Engine: engine, Phase: PhaseCompile, Err: ErrEmptySource}
	}

	cfg := config{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	prog, err := build(source, cfg)
	if err != nil {
		return nil, &EvaluationError{Engine: engine, Source: source, Phase: PhaseCompile, Err: err}
	}
	return &Rule{engine: engine, source: source, prog: prog, logger: cfg.logger}, nil
}

// Engines lists the engine names Compile recognises, including js even when
// this build cannot run it.
func Engines() []string {
	names := make([]string, 0, len(compilers))
	for name := range compilers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available reports whether engine can be compiled in this build.
func Available(engine string) bool {
	return compilers[engine] != nil
}

// Engine names the engine r was compiled for.
func (r *Rule) Engine() string { return r.engine }

// Source returns the formula text.
func (r *Rule) Source() string { return r.source }

// Eval runs r against vars.
func (r *Rule) Eval(vars Vars) (any, error) {
	if vars == nil {
		vars = Vars{}
	}
	start := time.Now()
	value, err := r.prog.run(vars)
	fields := []zap.Field{
		zap.String("engine", r.engine),
		zap.String("rule", r.source),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		err = &EvaluationError{Engine: r.engine, Source: r.source, Phase: PhaseEval, Err: err}
		r.logger.Warn("rule evaluation failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	r.logger.Debug("rule evaluated", fields...)
	return value, nil
}
