// Package permtree is the public facade over the permission tree
// evaluator: it wires together a type registry, a bypass evaluator,
// and the recursive tree walker in internal/engine behind a single
// Engine type suitable for embedding in a host application.
package permtree

import (
	"context"

	"github.com/ordermind/logical-permissions-go/internal/engine"
	"github.com/ordermind/logical-permissions-go/internal/logging"
	"github.com/ordermind/logical-permissions-go/pkg/bypass"
	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/config"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

var logger = logging.GetLogger("logicalpermissions.permtree")

// Callback is the permission-type predicate shape, re-exported from
// package registry so callers need not import it directly.
type Callback = registry.Callback

// BypassCallback is the bypass predicate shape, re-exported from
// package bypass.
type BypassCallback = bypass.Callback

// Engine is a ready-to-use permission tree evaluator: a type
// registry, a bypass evaluator, and the tree walker that ties them
// together. The zero value is not usable; construct with [NewEngine].
type Engine struct {
	registry           *registry.Registry
	bypass             *bypass.Evaluator
	core               *engine.Engine
	defaultAllowBypass bool
}

// NewEngine creates an Engine with an empty type registry and no
// bypass predicate installed. It loads the module's [config] package
// as a side effect (applying LP_LOG_LEVEL and any other configured log
// levels) and seeds the per-call allow_bypass default that
// [Engine.CheckAccess] falls back to when a caller supplies neither
// [WithBypass] nor [WithoutBypass] from [config.BypassDefaultAllow].
func NewEngine() *Engine {
	if err := config.Load(); err != nil {
		logger.SysWarnf("configuration failed to load, using built-in defaults: %v", err)
	}

	reg := registry.New()
	byp := bypass.New()
	return &Engine{
		registry:           reg,
		bypass:             byp,
		core:               engine.New(reg, byp),
		defaultAllowBypass: config.VConfig.GetBool(config.BypassDefaultAllow),
	}
}

// AddType registers a new permission type. See [registry.Registry.Add].
func (e *Engine) AddType(name string, cb Callback) error {
	return e.registry.Add(name, cb)
}

// RemoveType unregisters a permission type. See [registry.Registry.Remove].
func (e *Engine) RemoveType(name string) error {
	return e.registry.Remove(name)
}

// TypeExists reports whether name is a registered permission type.
func (e *Engine) TypeExists(name string) bool {
	return e.registry.Exists(name)
}

// GetTypeCallback returns the callback registered under name.
func (e *Engine) GetTypeCallback(name string) (Callback, error) {
	return e.registry.Get(name)
}

// SetTypeCallback replaces the callback registered under name.
func (e *Engine) SetTypeCallback(name string, cb Callback) error {
	return e.registry.Replace(name, cb)
}

// GetTypes returns a shallow copy of all registered permission types.
func (e *Engine) GetTypes() map[string]Callback {
	return e.registry.GetAll()
}

// SetTypes atomically replaces the entire set of registered
// permission types. See [registry.Registry.SetAll].
func (e *Engine) SetTypes(types map[string]Callback) error {
	return e.registry.SetAll(types)
}

// GetValidPermissionKeys returns the union of reserved grammar
// keywords and registered permission type names, sorted.
func (e *Engine) GetValidPermissionKeys() []string {
	return e.registry.ListValidKeys()
}

// GetBypassCallback returns the currently installed bypass predicate,
// or nil if none is set.
func (e *Engine) GetBypassCallback() BypassCallback {
	return e.bypass.Get()
}

// SetBypassCallback installs the bypass predicate, replacing any
// previous one. It fails if cb is nil.
func (e *Engine) SetBypassCallback(cb BypassCallback) error {
	return e.bypass.Set(cb)
}

// AnyTree is anything [tree.FromAny] can normalize into a [tree.Node]:
// a tree.Node itself, a bool, a string, a []interface{}/[]tree.Node,
// or a map[string]interface{}. A map[string]interface{} is normalized
// with its keys sorted; passing a tree.Node directly is the path to
// use when the caller's own map entry order must be kept; see
// [tree.FromJSON] and [tree.FromYAML] for order-preserving decoding
// from serialized input.
type AnyTree = interface{}

// CheckAccess evaluates root against permCtx and returns the access
// decision. permCtx defaults to an empty map when nil. Options
// customize bypass behavior for this call only; with none given, the
// call falls back to e's allow_bypass default, seeded from
// [config.BypassDefaultAllow] when the Engine was built with
// [NewEngine] (true, matching spec.md §4.3's default, unless
// overridden via LP_BYPASS_DEFAULTALLOW or the config file).
func (e *Engine) CheckAccess(ctx context.Context, root AnyTree, opts ...EvalOption) (bool, error) {
	if root == nil {
		return false, common.New(common.MissingArgument, "permission tree must not be nil", nil)
	}

	node, err := tree.FromAny(root)
	if err != nil {
		return false, common.New(common.InvalidArgumentType, "permission tree could not be normalized", err.Error())
	}

	cfg := evalConfig{allowBypass: e.defaultAllowBypass, permCtx: map[string]interface{}{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	return e.core.CheckAccess(ctx, node, cfg.permCtx, cfg.allowBypass)
}

// evalConfig holds the per-call overrides applied by [EvalOption]s.
type evalConfig struct {
	permCtx     map[string]interface{}
	allowBypass bool
}

// EvalOption customizes a single [Engine.CheckAccess] call.
type EvalOption func(*evalConfig)

// WithContext supplies the evaluation context consulted by permission
// type callbacks and the bypass predicate.
func WithContext(permCtx map[string]interface{}) EvalOption {
	return func(c *evalConfig) { c.permCtx = permCtx }
}

// WithoutBypass disables the bypass predicate for this call, forcing
// full tree evaluation regardless of what the predicate would return.
func WithoutBypass() EvalOption {
	return func(c *evalConfig) { c.allowBypass = false }
}

// WithBypass enables the bypass predicate for this call, overriding an
// Engine whose default (seeded from [config.BypassDefaultAllow]) is
// false. With the default true it changes nothing; provided for
// callers building options conditionally.
func WithBypass() EvalOption {
	return func(c *evalConfig) { c.allowBypass = true }
}
