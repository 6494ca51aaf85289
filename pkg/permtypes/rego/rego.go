// Package rego adapts compiled Rego policies into permission-type
// callbacks: compile a policy bundle once with [NewCompiler] and
// [Compiler.Compile], then hand [NewCallback]'s result to
// [github.com/ordermind/logical-permissions-go/pkg/registry.Registry.Add].
//
// This mirrors the compile-once-evaluate-many split the wider module
// uses for every permission type backed by a real evaluation engine:
// the expensive compilation step happens outside the hot path, and
// the returned callback only runs the query.
package rego

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohae/deepcopy"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/ordermind/logical-permissions-go/internal/logging"
	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
)

var logger = logging.GetLogger("permtypes.rego")
var agent = "rego"

// Builtins is a set of builtin function names.
type Builtins map[string]struct{}

// Compiler compiles textual Rego policies into a reusable Ast.
type Compiler struct {
	options *CompilerOptions
}

// Ast is a compiled Rego policy bundle, ready for repeated evaluation.
type Ast struct {
	name     string
	compiler *ast.Compiler
	trace    bool
}

// Modules is a map of module name to module source code.
type Modules map[string]string

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	regoVersion  ast.RegoVersion
	capabilities *ast.Capabilities
	trace        bool
}

func filter[T any](ss []T, test func(T) bool) (ret []T) {
	for _, s := range ss {
		if test(s) {
			ret = append(ret, s)
		}
	}
	return
}

// CompilerOptionFunc modifies CompilerOptions.
type CompilerOptionFunc func(*CompilerOptions)

// WithRegoVersion sets the Rego language version for the compiler.
func WithRegoVersion(regoVersion ast.RegoVersion) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.regoVersion = regoVersion }
}

// WithCapabilities sets the Rego Capabilities the compiler enforces.
// Must precede WithUnsafeBuiltins when both are used.
func WithCapabilities(capabilities *ast.Capabilities) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.capabilities = capabilities }
}

// WithUnsafeBuiltins removes the named builtins from the compiler's
// capabilities. Must follow WithCapabilities when both are used.
//
// See: https://github.com/open-policy-agent/opa/security/advisories/GHSA-f524-rf33-2jjr
func WithUnsafeBuiltins(unsafeBuiltins Builtins) CompilerOptionFunc {
	return func(o *CompilerOptions) {
		o.capabilities.Builtins = filter(o.capabilities.Builtins, func(b *ast.Builtin) bool {
			_, ok := unsafeBuiltins[b.Name]
			return !ok
		})
	}
}

// WithDefaultTracing sets the tracing default used during evaluation
// when a call doesn't override it via [WithTrace].
func WithDefaultTracing(trace bool) CompilerOptionFunc {
	return func(o *CompilerOptions) { o.trace = trace }
}

// NewCompiler creates a Compiler with the given options.
func NewCompiler(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{
		regoVersion:  ast.RegoV0,
		capabilities: ast.CapabilitiesForThisVersion(),
		trace:        logger.IsTraceEnabled(),
	}
	for _, o := range options {
		o(opts)
	}
	return &Compiler{options: opts}
}

// Clone creates a new Compiler carrying this one's configuration,
// optionally overridden by additional options.
func (c *Compiler) Clone(options ...CompilerOptionFunc) *Compiler {
	opts := &CompilerOptions{
		regoVersion:  c.options.regoVersion,
		capabilities: deepcopy.Copy(c.options.capabilities).(*ast.Capabilities),
		trace:        c.options.trace,
	}
	for _, o := range options {
		o(opts)
	}
	return &Compiler{options: opts}
}

// Compile compiles modules into a reusable Ast.
func (c *Compiler) Compile(name string, modules Modules) (*Ast, error) {
	parsed := make(map[string]*ast.Module, len(modules))
	for f, module := range modules {
		pm, err := ast.ParseModuleWithOpts(f, module, ast.ParserOptions{RegoVersion: c.options.regoVersion})
		if err != nil {
			return nil, err
		}
		parsed[f] = pm
	}

	compiler := ast.NewCompiler().WithCapabilities(c.options.capabilities)
	compiler.Compile(parsed)
	if compiler.Failed() {
		return nil, compiler.Errors
	}

	return &Ast{name: name, compiler: compiler, trace: c.options.trace}, nil
}

// EvalOptions configures a single Evaluate call.
type EvalOptions struct {
	trace bool
}

// EvalOptionFunc modifies EvalOptions.
type EvalOptionFunc func(*EvalOptions)

// WithTrace enables or disables trace output for one evaluation.
func WithTrace(trace bool) EvalOptionFunc {
	return func(o *EvalOptions) { o.trace = trace }
}

// Evaluate runs queryStr against the compiled policy with input, and
// returns the raw Rego result.
func (p *Ast) Evaluate(ctx context.Context, queryStr string, input interface{}, options ...EvalOptionFunc) (rego.Result, error) {
	logger.Debug(agent, "Evaluate", "Enter")
	defer logger.Debug(agent, "Evaluate", "Exit")
	logger.Debugf(agent, "Evaluate", "input to rego: %+v", input)

	opts := &EvalOptions{trace: p.trace}
	for _, o := range options {
		o(opts)
	}

	query := rego.New(
		rego.Query(queryStr),
		rego.Compiler(p.compiler),
		rego.Input(input),
		rego.Trace(opts.trace),
	)

	results, err := query.Eval(ctx)
	if err != nil {
		logger.Debugf(agent, "Evaluate", "queryEval %+v", err)
		return rego.Result{}, common.Newf(common.InvalidCallbackReturnType, err.Error(), "rego evaluation of %s failed", p.name)
	}
	if len(results) == 0 {
		logger.Debugf(agent, "Evaluate", "no rego results: %s, input: %+v", p.name, input)
		return rego.Result{}, common.Newf(common.InvalidCallbackReturnType, nil, "rego policy %s produced no results", p.name)
	}
	if opts.trace {
		regoTrace := new(strings.Builder)
		rego.PrintTraceWithLocation(regoTrace, query)
		logger.Trace(agent, "Evaluate", "rego trace:")
		fmt.Println(regoTrace.String()) // force internal format
	}
	return results[0], nil
}

// NewCallback wraps a compiled policy into a [registry.Callback]. The
// query is run with input {"value": value, "context": permCtx}, and
// its first expression's value is expected to be a bool — anything
// else is surfaced by the evaluator as InvalidCallbackReturnType,
// same as a hand-written Go callback returning a non-bool.
func NewCallback(policy *Ast, queryStr string, options ...EvalOptionFunc) registry.Callback {
	return func(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
		result, err := policy.Evaluate(ctx, queryStr, map[string]interface{}{
			"value":   value,
			"context": permCtx,
		}, options...)
		if err != nil {
			return nil, err
		}
		if len(result.Expressions) == 0 {
			return nil, fmt.Errorf("rego policy %s produced an empty expression list", policy.name)
		}
		return result.Expressions[0].Value, nil
	}
}
