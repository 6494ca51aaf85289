package engine

import (
	"context"

	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

// gate is the shape of a gate routine: it receives the gate's raw
// value node, the active type it inherits, and the eval context.
type gate func(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error)

// gateFor resolves a canonicalized reserved key to its gate routine.
func (e *Engine) gateFor(canonicalKey string) (gate, bool) {
	switch canonicalKey {
	case tree.And:
		return e.gateAnd, true
	case tree.Nand:
		return e.gateNand, true
	case tree.Or:
		return e.gateOr, true
	case tree.Nor:
		return e.gateNor, true
	case tree.Xor:
		return e.gateXor, true
	case tree.Not:
		return e.gateNot, true
	default:
		return nil, false
	}
}

func (e *Engine) gateAnd(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	subNodes, err := gateSubNodes(tree.And, value)
	if err != nil {
		return false, err
	}
	for _, sub := range subNodes {
		result, err := e.dispatch(ctx, sub, activeType, permCtx)
		if err != nil {
			return false, err
		}
		if !result {
			return false, nil
		}
	}
	return true, nil
}

func (e *Engine) gateNand(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	result, err := e.gateAnd(ctx, value, activeType, permCtx)
	if err != nil {
		return false, err
	}
	return !result, nil
}

func (e *Engine) gateOr(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	subNodes, err := gateSubNodes(tree.Or, value)
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

func (e *Engine) gateNor(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	result, err := e.gateOr(ctx, value, activeType, permCtx)
	if err != nil {
		return false, err
	}
	return !result, nil
}

func (e *Engine) gateXor(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	subNodes, err := gateSubNodes(tree.Xor, value)
	if err != nil {
		return false, err
	}
	sawTrue, sawFalse := false, false
	for _, sub := range subNodes {
		result, err := e.dispatch(ctx, sub, activeType, permCtx)
		if err != nil {
			return false, err
		}
		if result {
			sawTrue = true
		} else {
			sawFalse = true
		}
		if sawTrue && sawFalse {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) gateNot(ctx context.Context, value tree.Node, activeType string, permCtx map[string]interface{}) (bool, error) {
	switch value.Kind {
	case tree.KindMap:
		if value.Len() != 1 {
			return false, common.New(common.InvalidValueForLogicGate, "NOT map value must have exactly one entry", value)
		}
	case tree.KindStr:
		if value.Str == "" {
			return false, common.New(common.InvalidValueForLogicGate, "NOT string value must not be empty", value)
		}
	default:
		return false, common.New(common.InvalidValueForLogicGate, "NOT value must be a single-entry map or a non-empty string", value)
	}

	result, err := e.dispatch(ctx, value, activeType, permCtx)
	if err != nil {
		return false, err
	}
	return !result, nil
}

// gateSubNodes validates value's shape and arity floor for the gate
// named by its canonical key, then splits it into independently
// evaluable sub-nodes (spec.md §4.5). The arity floor comes from
// [tree.GateArity]; NOT isn't a valid gateKey here since its rule is
// shape-based, not count-based (see gateNot).
func gateSubNodes(gateKey string, value tree.Node) ([]tree.Node, error) {
	if value.Kind != tree.KindList && value.Kind != tree.KindMap {
		return nil, common.Newf(common.InvalidValueForLogicGate, value, "%s value must be a list or map", gateKey)
	}
	minArity, _ := tree.GateArity(gateKey)
	if value.Len() < minArity {
		return nil, common.Newf(common.InvalidValueForLogicGate, value, "%s requires at least %d elements", gateKey, minArity)
	}
	return subNodesOf(value)
}
