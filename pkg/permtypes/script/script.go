// Package script adapts JavaScript predicate functions into
// permission type callbacks using [goja], a pure-Go ECMAScript
// runtime. Compile a script once with [Compile], then hand
// [NewCallback]'s result to
// [github.com/ordermind/logical-permissions-go/pkg/registry.Registry.Add].
//
// A script must define a top-level function named check(value,
// context) that returns a bool; value is the permission value being
// checked (e.g. "admin" in {"role": "admin"}) and context is the
// evaluation context map passed to CheckAccess, the same input shape
// the rego and cel adapters give their policies.
//
// [goja]: https://github.com/dop251/goja
package script

import (
	"context"
	"sync"

	"github.com/dop251/goja"

	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
)

const entryPoint = "check"

// Program is a compiled script, ready for repeated evaluation. A
// goja.Runtime is not safe for concurrent use, so each Program guards
// its own runtime with a mutex; scripts are expected to be small,
// side-effect-free predicates, not long-running computations.
type Program struct {
	name string
	mu   sync.Mutex
	vm   *goja.Runtime
	fn   goja.Callable
}

// Compile parses source and resolves its check(value, context)
// entry point.
func Compile(name string, source string) (*Program, error) {
	vm := goja.New()

	if _, err := vm.RunScript(name, source); err != nil {
		return nil, err
	}

	value := vm.Get(entryPoint)
	fn, ok := goja.AssertFunction(value)
	if !ok {
		return nil, common.New(common.InvalidCallbackReturnType, "script must define a check(value, context) function", name)
	}

	return &Program{name: name, vm: vm, fn: fn}, nil
}

// Evaluate runs the compiled script's check function against value
// and permCtx and returns its raw bool result.
func (p *Program) Evaluate(_ context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result, err := p.fn(goja.Undefined(), p.vm.ToValue(value), p.vm.ToValue(permCtx))
	if err != nil {
		return nil, common.Newf(common.InvalidCallbackReturnType, err.Error(), "script evaluation of %s failed", p.name)
	}

	exported := result.Export()
	b, ok := exported.(bool)
	if !ok {
		return nil, common.Newf(common.InvalidCallbackReturnType, exported, "script %s did not return a bool", p.name)
	}

	return b, nil
}

// NewCallback wraps a compiled Program into a [registry.Callback].
func NewCallback(program *Program) registry.Callback {
	return func(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
		return program.Evaluate(ctx, value, permCtx)
	}
}
