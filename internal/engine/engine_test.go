package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermind/logical-permissions-go/pkg/bypass"
	"github.com/ordermind/logical-permissions-go/pkg/common"
	"github.com/ordermind/logical-permissions-go/pkg/registry"
	"github.com/ordermind/logical-permissions-go/pkg/tree"
)

func newTestEngine(t *testing.T) (*Engine, *registry.Registry, *bypass.Evaluator) {
	t.Helper()
	reg := registry.New()
	byp := bypass.New()
	return New(reg, byp), reg, byp
}

func flagCallback(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
	user, _ := permCtx["user"].(map[string]interface{})
	return user[value] == true, nil
}

func roleCallback(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
	user, _ := permCtx["user"].(map[string]interface{})
	roles, _ := user["roles"].([]string)
	for _, r := range roles {
		if r == value {
			return true, nil
		}
	}
	return false, nil
}

// Scenario 1: single leaf, grant.
func TestScenarioSingleLeafGrant(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Str("testflag")})
	permCtx := map[string]interface{}{"user": map[string]interface{}{"testflag": true}}

	granted, err := e.CheckAccess(context.Background(), root, permCtx, true)
	require.NoError(t, err)
	assert.True(t, granted)
}

// Scenario 2: shorthand OR across types.
func TestScenarioShorthandORAcrossTypes(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))
	require.NoError(t, reg.Add("role", roleCallback))

	root := tree.Map(
		tree.Entry{Key: "flag", Value: tree.Str("testflag")},
		tree.Entry{Key: "role", Value: tree.Str("admin")},
	)
	permCtx := map[string]interface{}{"user": map[string]interface{}{
		"testflag": false,
		"roles":    []string{"admin"},
	}}

	granted, err := e.CheckAccess(context.Background(), root, permCtx, true)
	require.NoError(t, err)
	assert.True(t, granted)
}

// Scenario 3: AND truth table.
func TestScenarioANDTruthTable(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))

	root := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key:   "AND",
		Value: tree.List(tree.Str("admin"), tree.Str("editor"), tree.Str("writer")),
	})})

	granted, err := e.CheckAccess(context.Background(), root,
		map[string]interface{}{"user": map[string]interface{}{"roles": []string{"admin", "editor"}}}, true)
	require.NoError(t, err)
	assert.False(t, granted)

	granted, err = e.CheckAccess(context.Background(), root,
		map[string]interface{}{"user": map[string]interface{}{"roles": []string{"admin", "editor", "writer"}}}, true)
	require.NoError(t, err)
	assert.True(t, granted)
}

// Scenario 4: XOR arity.
func TestScenarioXORArity(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))

	root := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "XOR", Value: tree.List(tree.Str("admin")),
	})})
	_, err := e.CheckAccess(context.Background(), root, nil, true)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidValueForLogicGate))

	root = tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "XOR", Value: tree.Map(tree.Entry{Key: "0", Value: tree.Str("admin")}),
	})})
	_, err = e.CheckAccess(context.Background(), root, nil, true)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidValueForLogicGate))
}

// Scenario 5: NO_BYPASS as object.
func TestScenarioNoBypassAsObject(t *testing.T) {
	e, reg, byp := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))
	require.NoError(t, byp.Set(func(ctx context.Context, permCtx map[string]interface{}) (interface{}, error) {
		return true, nil
	}))

	root := tree.Map(
		tree.Entry{Key: "no_bypass", Value: tree.Map(tree.Entry{Key: "flag", Value: tree.Str("never_bypass")})},
		tree.Entry{Key: "flag", Value: tree.Str("testflag")},
	)

	granted, err := e.CheckAccess(context.Background(), root,
		map[string]interface{}{"user": map[string]interface{}{"never_bypass": true}}, true)
	require.NoError(t, err)
	assert.False(t, granted, "bypass must be suppressed and the tree itself denies")

	granted, err = e.CheckAccess(context.Background(), root,
		map[string]interface{}{"user": map[string]interface{}{"never_bypass": false, "testflag": true}}, true)
	require.NoError(t, err)
	assert.True(t, granted)
}

// Scenario 6: nested type rejected.
func TestScenarioNestedTypeRejected(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Map(tree.Entry{Key: "flag", Value: tree.Str("x")})})
	_, err := e.CheckAccess(context.Background(), root, nil, true)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidArgumentValue))

	root = tree.Map(tree.Entry{Key: "flag", Value: tree.Map(tree.Entry{
		Key: "OR", Value: tree.Map(tree.Entry{Key: "flag", Value: tree.Str("x")}),
	})})
	_, err = e.CheckAccess(context.Background(), root, nil, true)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidArgumentValue))
}

func TestBypassGrantsWhenAllowed(t *testing.T) {
	e, reg, byp := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))
	require.NoError(t, byp.Set(func(ctx context.Context, permCtx map[string]interface{}) (interface{}, error) {
		return true, nil
	}))

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Str("testflag")})
	granted, err := e.CheckAccess(context.Background(), root, nil, true)
	require.NoError(t, err)
	assert.True(t, granted, "bypass predicate returning true must short-circuit to grant")
}

func TestWithoutBypassIgnoresBypassPredicate(t *testing.T) {
	e, reg, byp := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))
	require.NoError(t, byp.Set(func(ctx context.Context, permCtx map[string]interface{}) (interface{}, error) {
		return true, nil
	}))

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Str("testflag")})
	granted, err := e.CheckAccess(context.Background(), root,
		map[string]interface{}{"user": map[string]interface{}{"testflag": false}}, false)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestEmptyTreeGrantsByDefault(t *testing.T) {
	e, _, _ := newTestEngine(t)

	granted, err := e.CheckAccess(context.Background(), tree.Map(), nil, false)
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = e.CheckAccess(context.Background(), tree.List(), nil, false)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestNonMutationOfCallerTree(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))

	root := tree.Map(
		tree.Entry{Key: "no_bypass", Value: tree.Bool(true)},
		tree.Entry{Key: "flag", Value: tree.Str("testflag")},
	)
	before := root.Clone()

	_, err := e.CheckAccess(context.Background(), root, nil, true)
	require.NoError(t, err)

	assert.True(t, tree.Equal(before, root), "check_access must not observably mutate the caller's tree")
}

func TestDeMorganNANDIsNotOfAND(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))
	permCtx := map[string]interface{}{"user": map[string]interface{}{"roles": []string{"admin"}}}

	and := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "AND", Value: tree.List(tree.Str("admin"), tree.Str("editor")),
	})})
	nand := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "NAND", Value: tree.List(tree.Str("admin"), tree.Str("editor")),
	})})

	andResult, err := e.CheckAccess(context.Background(), and, permCtx, false)
	require.NoError(t, err)
	nandResult, err := e.CheckAccess(context.Background(), nand, permCtx, false)
	require.NoError(t, err)

	assert.Equal(t, !andResult, nandResult)
}

func TestDeMorganNORIsNotOfOR(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))
	permCtx := map[string]interface{}{"user": map[string]interface{}{"roles": []string{}}}

	or := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "OR", Value: tree.List(tree.Str("admin"), tree.Str("editor")),
	})})
	nor := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "NOR", Value: tree.List(tree.Str("admin"), tree.Str("editor")),
	})})

	orResult, err := e.CheckAccess(context.Background(), or, permCtx, false)
	require.NoError(t, err)
	norResult, err := e.CheckAccess(context.Background(), nor, permCtx, false)
	require.NoError(t, err)

	assert.Equal(t, !orResult, norResult)
}

// A gate keyword nested inside another gate's body must still be
// recognized as a gate, not swallowed as a bare positional value.
func TestNestedGateKeywordInsideGateBodyIsRecognized(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))
	permCtx := map[string]interface{}{"user": map[string]interface{}{"roles": []string{"editor"}}}

	root := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "AND", Value: tree.List(
			tree.Map(tree.Entry{Key: "NOT", Value: tree.Str("admin")}),
			tree.Str("editor"),
		),
	})})

	granted, err := e.CheckAccess(context.Background(), root, permCtx, false)
	require.NoError(t, err)
	assert.True(t, granted, "AND(NOT(admin), editor) must grant when roles = [editor]")

	permCtx = map[string]interface{}{"user": map[string]interface{}{"roles": []string{"admin", "editor"}}}
	granted, err = e.CheckAccess(context.Background(), root, permCtx, false)
	require.NoError(t, err)
	assert.False(t, granted, "AND(NOT(admin), editor) must deny once admin is also present")
}

// Once a permission type is active, a positional map body can never
// smuggle in a further type name (I4) — unlike a list, whose elements
// carry no keys to offer.
func TestPositionalMapBodyUnderActiveTypeIsRejected(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("role", roleCallback))
	permCtx := map[string]interface{}{"user": map[string]interface{}{"roles": []string{"admin", "writer"}}}

	root := tree.Map(tree.Entry{Key: "role", Value: tree.Map(tree.Entry{
		Key: "AND", Value: tree.Map(
			tree.Entry{Key: "0", Value: tree.Str("admin")},
			tree.Entry{Key: "1", Value: tree.Str("writer")},
		),
	})})

	_, err := e.CheckAccess(context.Background(), root, permCtx, false)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidArgumentValue))
}

func TestNotAcceptsMapOrString(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", flagCallback))
	permCtx := map[string]interface{}{"user": map[string]interface{}{"testflag": true}}

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Map(tree.Entry{
		Key: "NOT", Value: tree.Str("testflag"),
	})})
	granted, err := e.CheckAccess(context.Background(), root, permCtx, false)
	require.NoError(t, err)
	assert.False(t, granted)

	root = tree.Map(tree.Entry{Key: "flag", Value: tree.Map(tree.Entry{
		Key: "NOT", Value: tree.Map(tree.Entry{Key: "OR", Value: tree.List(tree.Str("testflag"))}),
	})})
	granted, err = e.CheckAccess(context.Background(), root, permCtx, false)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestRegisteredTypeRequired(t *testing.T) {
	e, _, _ := newTestEngine(t)

	root := tree.Map(tree.Entry{Key: "role", Value: tree.Str("admin")})
	_, err := e.CheckAccess(context.Background(), root, nil, false)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.PermissionTypeNotRegistered))
}

func TestBareStringLeafWithoutActiveTypeErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.CheckAccess(context.Background(), tree.Str("admin"), nil, false)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidArgumentValue))
}

func TestInvalidCallbackReturnType(t *testing.T) {
	e, reg, _ := newTestEngine(t)
	require.NoError(t, reg.Add("flag", func(ctx context.Context, value string, permCtx map[string]interface{}) (interface{}, error) {
		return "yes", nil
	}))

	root := tree.Map(tree.Entry{Key: "flag", Value: tree.Str("x")})
	_, err := e.CheckAccess(context.Background(), root, nil, false)
	require.Error(t, err)
	assert.True(t, common.Is(err, common.InvalidCallbackReturnType))
}
