// Package engine implements the recursive tree evaluator: the
// interpreter that walks a permission tree, dispatches leaves to
// registered permission-type callbacks under a rolling type context,
// enforces the grammar's structural invariants, and computes gate
// semantics including NO_BYPASS resolution.
//
// Everything here is unexported from the module's public surface;
// package permtree wraps Engine into the facade callers use.
package engine

import (
	"context"
	"strings"

	"github.com/mohae/deepcopy"

	"github.com/ordermind/logical-permissions-go/pkg/bypass"
	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

// Engine ties a permission-type Registry and a bypass Evaluator to the
// tree-walking logic in this package. It holds no per-call state; all
// of CheckAccess's working state lives on the call stack.
type Engine struct {
	Registry *registry.Registry
	Bypass   *bypass.Evaluator
}

// New creates an Engine backed by the given registry and bypass
// evaluator. Both must be non-nil.
func New(reg *registry.Registry, byp *bypass.Evaluator) *Engine {
	return &Engine{Registry: reg, Bypass: byp}
}

// CheckAccess implements spec.md §4.3: it clones root (I1), resolves
// any NO_BYPASS entry at the top level, optionally consults the
// bypass predicate, then dispatches the (possibly NO_BYPASS-stripped)
// root with no active type.
func (e *Engine) CheckAccess(ctx context.Context, root tree.Node, permCtx map[string]interface{}, allowBypass bool) (bool, error) {
	if permCtx == nil {
		permCtx = map[string]interface{}{}
	}

	// Step 1: clone. deepcopy.Copy operates by reflection over the
	// exported Kind/Bool/Str/List/Map fields, so the working copy
	// shares no backing arrays with the caller's tree.
	working, ok := deepcopy.Copy(root).(tree.Node)
	if !ok {
		working = root.Clone()
	}

	// Step 2: NO_BYPASS resolution, root-map only.
	if working.Kind == tree.KindMap {
		resolved, newAllowBypass, err := e.resolveNoBypass(ctx, working, permCtx, allowBypass)
		if err != nil {
			return false, err
		}
		working = resolved
		allowBypass = newAllowBypass
	}

	// Step 3: bypass check.
	if allowBypass {
		granted, err := e.Bypass.Invoke(ctx, permCtx)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}

	// Step 4: empty shortcut, then dispatch.
	if working.Kind == tree.KindMap && working.Len() == 0 {
		return true, nil
	}
	if working.Kind == tree.KindList && working.Len() == 0 {
		return true, nil
	}
	switch working.Kind {
	case tree.KindStr, tree.KindBool:
		return e.dispatch(ctx, working, "", permCtx)
	case tree.KindMap, tree.KindList:
		return e.processOr(ctx, working, "", permCtx)
	default:
		return false, common.New(common.InvalidArgumentType, "permission tree root must be a bool, string, list, or map", working)
	}
}

// resolveNoBypass renames the legacy no_bypass key, interprets a
// NO_BYPASS entry if present, and returns the working root with any
// NO_BYPASS entry stripped and the (possibly overridden) allowBypass.
func (e *Engine) resolveNoBypass(ctx context.Context, root tree.Node, permCtx map[string]interface{}, allowBypass bool) (tree.Node, bool, error) {
	entries := make([]tree.Entry, 0, len(root.Map))
	var noBypassValue *tree.Node

	for _, entry := range root.Map {
		key := entry.Key
		if tree.LegacyNoBypass(key) {
			key = tree.NoBypass
		}
		if strings.EqualFold(key, tree.NoBypass) {
			// a later NO_BYPASS-shaped key overrides an earlier one,
			// matching map semantics elsewhere in this evaluator.
			v := entry.Value
			noBypassValue = &v
			continue
		}
		entries = append(entries, entry)
	}

	if noBypassValue == nil {
		return root, allowBypass, nil
	}

	newRoot := tree.Map(entries...)

	if !allowBypass {
		// still stripped above; the value itself is never evaluated.
		return newRoot, allowBypass, nil
	}

	switch noBypassValue.Kind {
	case tree.KindBool:
		return newRoot, !noBypassValue.Bool, nil
	case tree.KindStr:
		if v, ok := tree.IsBoolLiteral(noBypassValue.Str); ok {
			return newRoot, !v, nil
		}
		return tree.Node{}, false, common.New(common.InvalidArgumentValue, "NO_BYPASS string value must be TRUE or FALSE", noBypassValue.Str)
	case tree.KindMap:
		sub, err := e.processOr(ctx, *noBypassValue, "", permCtx)
		if err != nil {
			return tree.Node{}, false, err
		}
		return newRoot, !sub, nil
	default:
		return tree.Node{}, false, common.New(common.InvalidArgumentValue, "NO_BYPASS value must be a bool, string, or map", *noBypassValue)
	}
}
