// Package cel adapts compiled CEL boolean expressions into permission
// type callbacks: compile an expression once with [NewCompiler] and
// [Compiler.Compile], then hand [NewCallback]'s result to
// [github.com/ordermind/logical-permissions-go/pkg/registry.Registry.Add].
//
// Every expression sees two variables: value (the permission value
// being checked, e.g. "admin" in {"role": "admin"}) and context (the
// evaluation context map passed to CheckAccess), the same input shape
// [github.com/ordermind/logical-permissions-go/pkg/permtypes/rego] gives
// its policies.
package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
)

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	envOptions []cel.EnvOption
}

// CompilerOptionFunc modifies CompilerOptions.
type CompilerOptionFunc func(*CompilerOptions)

// WithEnvOptions appends additional CEL environment options, for
// example extra variable declarations or extension libraries.
func WithEnvOptions(opts ...cel.EnvOption) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.envOptions = append(o.envOptions, opts...) }
}

// Compiler compiles textual CEL expressions into reusable Programs.
type Compiler struct {
	env *cel.Env
}

// Program is a compiled CEL expression, ready for repeated evaluation.
type Program struct {
	name string
	prg  cel.Program
}

// NewCompiler creates a Compiler with the given options. By default
// its environment declares "value" (string) and "context" (a
// string-keyed map of dynamic values).
func NewCompiler(options ...CompilerOptionFunc) (*Compiler, error) {
	opts := &CompilerOptions{}
	for _, o := range options {
		o(opts)
	}

	envOptions := append([]cel.EnvOption{
		cel.Variable("value", cel.StringType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
	}, opts.envOptions...)

	env, err := cel.NewEnv(envOptions...)
	if err != nil {
		return nil, err
	}

	return &Compiler{env: env}, nil
}

// Compile compiles expr into a reusable Program. expr must evaluate
// to a bool.
func (c *Compiler) Compile(name string, expr string) (*Program, error) {
	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("cel expression %s must evaluate to bool, got %s", name, ast.OutputType())
	}

	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, err
	}

	return &Program{name: name, prg: prg}, nil
}

// Evaluate runs the compiled expression against value and permCtx and
// returns its raw bool result.
func (p *Program) Evaluate(_ context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
	out, _, err := p.prg.Eval(map[string]interface{}{
		"value":   value,
		"context": permCtx,
	})
	if err != nil {
		return nil, common.Newf(common.InvalidCallbackReturnType, err.Error(), "cel evaluation of %s failed", p.name)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return nil, common.Newf(common.InvalidCallbackReturnType, out.Value(), "cel expression %s did not produce a bool", p.name)
	}

	return result, nil
}

// NewCallback wraps a compiled Program into a [registry.Callback].
func NewCallback(program *Program) registry.Callback {
	return func(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
		return program.Evaluate(ctx, value, permCtx)
	}
}
