package engine

import (
	"context"

	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

// dispatch implements spec.md §4.4: it interprets a single node under
// activeType (the empty string means "no active type") and returns
// its boolean value.
func (e *Engine) dispatch(ctx context.Context, node tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	switch node.Kind {
	case tree.KindBool:
		if activeType != "" {
			return false, common.New(common.InvalidArgumentValue, "boolean literal is not valid under an active permission type", node)
		}
		return node.Bool, nil

	case tree.KindStr:
		if v, ok := tree.IsBoolLiteral(node.Str); ok {
			if activeType != "" {
				return false, common.New(common.InvalidArgumentValue, "boolean literal is not valid under an active permission type", node)
			}
			return v, nil
		}
		if activeType == "" {
			return false, common.New(common.InvalidArgumentValue, "a bare permission value requires a surrounding permission type", node)
		}
		return e.invokeType(ctx, activeType, node.Str, permCtx)

	case tree.KindList:
		if node.Len() == 0 {
			return true, nil
		}
		return e.processOr(ctx, node, activeType, permCtx)

	case tree.KindMap:
		return e.dispatchMap(ctx, node, activeType, permCtx)

	default:
		return false, common.New(common.InvalidArgumentType, "permission tree node must be a bool, string, list, or map", node)
	}
}

func (e *Engine) dispatchMap(ctx context.Context, node tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	switch node.Len() {
	case 0:
		return true, nil

	case 1:
		entry := node.Map[0]
		canonical := tree.Canonical(entry.Key)

		if canonical == tree.NoBypass {
			return false, common.New(common.InvalidArgumentValue, "NO_BYPASS is only valid at the top level of the root map", entry.Key)
		}

		if gateFn, ok := e.gateFor(canonical); ok {
			return gateFn(ctx, entry.Value, activeType, permCtx)
		}

		if canonical == tree.True || canonical == tree.False {
			return false, common.New(common.InvalidArgumentValue, "boolean literal cannot have children", entry.Key)
		}

		// entry.Key is a candidate permission type name.
		if activeType != "" {
			return false, common.New(common.InvalidArgumentValue, "nested permission types are not allowed", entry.Key)
		}
		if !e.Registry.Exists(entry.Key) {
			return false, common.New(common.PermissionTypeNotRegistered, "permission type is not registered", entry.Key)
		}

		return e.dispatch(ctx, entry.Value, entry.Key, permCtx)

	default:
		return e.processOr(ctx, node, activeType, permCtx)
	}
}

// processOr implements the shorthand-OR desugaring shared by
// multi-entry maps, lists, and type bodies: every element of value is
// evaluated as an independent sub-node and the result is true iff any
// one of them is true. Each KindMap entry becomes a synthetic
// single-entry map so that "map entry = independent sub-permission"
// holds uniformly with the list case, letting the entry's key become
// a new active type, or be recognized as a gate keyword, via
// dispatch's map-of-size-1 handling (see subNodesOf).
func (e *Engine) processOr(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	subNodes, err := subNodesOf(value)
	if err != nil {
		return false, err
	}
	for _, sub := range subNodes {
		result, err := e.dispatch(ctx, sub, activeType, permCtx)
		if err != nil {
			return false, err
		}
		if result {
			return true, nil
		}
	}
	return false, nil
}

// subNodesOf splits a gate/type body into its independently
// evaluable sub-nodes, per spec.md §4.5: list elements as themselves;
// map entries as a synthetic single-entry map {k: v}, unconditionally,
// so the entry's key can be re-examined by dispatch's map-of-size-1
// handling. That re-examination is what lets a gate keyword nested
// inside another gate's body (e.g. AND: {NOT: "x"}) still be
// recognized as NOT rather than have its key silently discarded.
//
// A non-reserved key is barred from becoming a further active type
// once one is already active (I4); that check lives in dispatchMap,
// not here, so a positional map body ({0: "a", 1: "b"}) used where a
// type is already active correctly errors instead of silently being
// treated as list-equivalent.
func subNodesOf(value tree.Node) ([]tree.Node, error) {
	switch value.Kind {
	case tree.KindList:
		return value.List, nil
	case tree.KindMap:
		out := make([]tree.Node, len(value.Map))
		for i, entry := range value.Map {
			out[i] = tree.Map(entry)
		}
		return out, nil
	default:
		return nil, common.New(common.InvalidValueForLogicGate, "value must be a list or map", value)
	}
}

func (e *Engine) invokeType(ctx context.Context, typeName, value string, permCtx map[string]interface{}) (bool, error) {
	cb, err := e.Registry.Get(typeName)
	if err != nil {
		return false, err
	}
	result, err := cb(ctx, value, permCtx)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, common.Newf(common.InvalidCallbackReturnType, result,
			"the registered callback for permission type %q must return a boolean", typeName)
	}
	return b, nil
}
