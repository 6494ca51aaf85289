// Package registry implements the permission-type registry: the
// name → callback associations that back every non-reserved key in a
// permission tree. It has no notion of trees; it just stores and
// validates callbacks, guarded for concurrent read-heavy use.
package registry

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

// Callback is the shape of a permission-type predicate. It receives
// the raw permission value from the tree leaf and the evaluation
// context, and reports whether the requesting principal holds that
// permission.
//
// The result is declared interface{} rather than bool because a
// permission type may be backed by a dynamically-typed evaluation
// engine (see package permtypes) whose native result isn't a Go bool
// until coerced. The evaluator performs that coercion and raises
// [common.InvalidCallbackReturnType] on mismatch — the same check
// applies uniformly whether the callback is a hand-written Go closure
// or a permtypes adapter.
type Callback func(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error)

// Registry stores permission-type callbacks. The zero value is not
// usable; construct one with [New].
type Registry struct {
	mu    sync.RWMutex
	types map[string]Callback
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{types: make(map[string]Callback)}
}

// Add registers cb under name. It fails if name is empty, reserved,
// already registered, or if cb is nil.
func (r *Registry) Add(name string, cb Callback) error {
	if err := validateName(name); err != nil {
		return err
	}
	if cb == nil {
		return common.New(common.InvalidArgumentType, "permission type callback must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return common.New(common.PermissionTypeAlreadyExists, "permission type is already registered", name)
	}
	r.types[name] = cb
	return nil
}

// Remove unregisters name. It fails if name isn't registered.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return common.New(common.PermissionTypeNotRegistered, "permission type is not registered", name)
	}
	delete(r.types, name)
	return nil
}

// Exists reports whether name is currently registered.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.types[name]
	return exists
}

// Get returns the callback registered under name. It fails if name
// isn't registered.
func (r *Registry) Get(name string) (Callback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, exists := r.types[name]
	if !exists {
		return nil, common.New(common.PermissionTypeNotRegistered, "permission type is not registered", name)
	}
	return cb, nil
}

// Replace overwrites the callback registered under name. It fails if
// name isn't already registered, or if cb is nil.
func (r *Registry) Replace(name string, cb Callback) error {
	if cb == nil {
		return common.New(common.InvalidArgumentType, "permission type callback must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; !exists {
		return common.New(common.PermissionTypeNotRegistered, "permission type is not registered", name)
	}
	r.types[name] = cb
	return nil
}

// GetAll returns a shallow copy of the registered name → callback map.
func (r *Registry) GetAll() map[string]Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Callback, len(r.types))
	for k, v := range r.types {
		out[k] = v
	}
	return out
}

// SetAll validates every entry in types — rejecting the same names
// [Add] would reject, plus "numeric-looking" keys that parse as a
// finite number — before replacing the registry wholesale. On any
// invalid entry, the existing registry is left untouched (I2's
// validate-before-mutate discipline extended to the bulk case).
func (r *Registry) SetAll(types map[string]Callback) error {
	for name, cb := range types {
		if err := validateName(name); err != nil {
			return err
		}
		if isNumericLike(name) {
			return common.New(common.InvalidArgumentValue, "permission type name must not be numeric-looking", name)
		}
		if cb == nil {
			return common.New(common.InvalidArgumentType, "permission type callback must not be nil", name)
		}
	}

	replacement := make(map[string]Callback, len(types))
	for k, v := range types {
		replacement[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = replacement
	return nil
}

// ListValidKeys returns the union of the grammar's reserved keywords
// and the currently registered permission type names, sorted.
func (r *Registry) ListValidKeys() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.types))
	for k := range r.types {
		names = append(names, k)
	}
	r.mu.RUnlock()

	keys := append(tree.ReservedKeys(), names...)
	sortStrings(keys)
	return keys
}

func validateName(name string) error {
	if name == "" {
		return common.New(common.InvalidArgumentValue, "permission type name must not be empty", name)
	}
	if tree.IsReserved(name) {
		return common.New(common.InvalidArgumentValue, "permission type name must not be a reserved grammar keyword", name)
	}
	return nil
}

// isNumericLike reports whether s parses as a finite number. A
// numeric-looking key is rejected by SetAll because a map with
// numeric string keys is indistinguishable, in many hosts' native
// data model, from an array — accepting it here would invite grammar
// ambiguity between KindMap and KindList permission bodies.
func isNumericLike(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func sortStrings(s []string) {
	// small, allocation-free insertion sort; ListValidKeys is called
	// far less often than the sets it sorts are large.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
