// Package bypass implements the single bypass predicate consulted by
// the evaluator before it walks a permission tree: a principal that
// satisfies it is granted access outright, unless the tree carries a
// NO_BYPASS suppression marker (see package tree and internal/engine).
package bypass

import (
	"context"
	"sync"

	"github.com/ordermind/logical-permissions-go/pkg/common"
)

// Callback decides whether the requesting principal bypasses tree
// evaluation entirely. Like [registry.Callback] its result is
// interface{} rather than bool, for the same dynamically-typed-engine
// reason documented there.
type Callback func(ctx context.Context, permCtx map[string]interface{}) (interface{}, error)

// Evaluator holds at most one bypass callback at a time. The zero
// value has no callback set and always defers to the tree.
type Evaluator struct {
	mu sync.RWMutex
	cb Callback
}

// New creates an Evaluator with no bypass callback set.
func New() *Evaluator {
	return &Evaluator{}
}

// Set installs cb as the bypass predicate, replacing any previous
// one. It fails if cb is nil.
func (e *Evaluator) Set(cb Callback) error {
	if cb == nil {
		return common.New(common.InvalidArgumentType, "bypass callback must not be nil", cb)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cb = cb
	return nil
}

// Get returns the currently installed callback, or nil if none is set.
func (e *Evaluator) Get() Callback {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cb
}

// Invoke runs the installed callback, if any, and coerces its result
// to bool. With no callback installed it reports (false, nil): bypass
// is simply unavailable, not an error. A non-bool result is reported
// as [common.InvalidCallbackReturnType].
func (e *Evaluator) Invoke(ctx context.Context, permCtx map[string]interface{}) (bool, error) {
	cb := e.Get()
	if cb == nil {
		return false, nil
	}

	result, err := cb(ctx, permCtx)
	if err != nil {
		return false, err
	}

	b, ok := result.(bool)
	if !ok {
		return false, common.Newf(common.InvalidCallbackReturnType, result,
			"bypass callback must return a bool, got %T", result)
	}
	return b, nil
}
