package queryast_test

import (
	"testing"

	"github.com/mesa-orm/mesa/queryast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvalLiteral(t *testing.T) {
	e, err := queryast.ParseEval(42)
	require.NoError(t, err)
	lit, ok := e.(queryast.Lit)
	require.True(t, ok)
	assert.Equal(t, 42, lit.Value)
}

func TestParseEvalPathSimple(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$": "age"})
	require.NoError(t, err)
	p := e.(queryast.Path)
	assert.Equal(t, "age", p.Field)
	assert.Empty(t, p.Segments)
	assert.Empty(t, p.Alias)
}

func TestParseEvalPathDotted(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$": "meta.address.city"})
	require.NoError(t, err)
	p := e.(queryast.Path)
	assert.Equal(t, "meta", p.Field)
	assert.Equal(t, []string{"address", "city"}, p.Segments)
}

func TestParseEvalPathAliased(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$": []any{"u", "profile.bio"}})
	require.NoError(t, err)
	p := e.(queryast.Path)
	assert.Equal(t, "u", p.Alias)
	assert.Equal(t, "profile", p.Field)
	assert.Equal(t, []string{"bio"}, p.Segments)
}

func TestParseEvalPathBadShape(t *testing.T) {
	_, err := queryast.ParseEval(map[string]any{"$": []any{"only-one"}})
	require.Error(t, err)
}

func TestParseEvalArith(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$add": []any{map[string]any{"$": "a"}, 1},
	})
	require.NoError(t, err)
	a := e.(queryast.Arith)
	assert.Equal(t, queryast.ArithAdd, a.Op)
	assert.Len(t, a.Args, 2)
}

func TestParseEvalArithRequiresTwoArgs(t *testing.T) {
	_, err := queryast.ParseEval(map[string]any{"$add": []any{1}})
	require.Error(t, err)
}

func TestParseEvalCmp(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$gt": []any{map[string]any{"$": "a"}, map[string]any{"$": "b"}},
	})
	require.NoError(t, err)
	c := e.(queryast.Cmp)
	assert.Equal(t, queryast.CmpGt, c.Op)
}

func TestParseEvalLogicalNot(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$not": true})
	require.NoError(t, err)
	l := e.(queryast.Logical)
	assert.Equal(t, queryast.LogicalNot, l.Op)
	require.Len(t, l.Args, 1)
}

func TestParseEvalConcat(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$concat": []any{map[string]any{"$": "first"}, " ", map[string]any{"$": "last"}},
	})
	require.NoError(t, err)
	c := e.(queryast.Concat)
	assert.Len(t, c.Args, 3)
}

func TestParseEvalIf(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$if": []any{true, 1, 0},
	})
	require.NoError(t, err)
	i := e.(queryast.If)
	assert.Equal(t, queryast.Lit{Value: true}, i.Cond)
}

func TestParseEvalIfNull(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$ifNull": []any{map[string]any{"$": "nickname"}, "anon"},
	})
	require.NoError(t, err)
	i := e.(queryast.IfNull)
	assert.Equal(t, queryast.Lit{Value: "anon"}, i.Default)
}

func TestParseEvalAggregation(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$sum": map[string]any{"$": "amount"}})
	require.NoError(t, err)
	a := e.(queryast.Aggr)
	assert.Equal(t, queryast.AggrSum, a.Op)
}

func TestParseEvalLength(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$length": map[string]any{"$": "tags"}})
	require.NoError(t, err)
	l := e.(queryast.Length)
	_, ok := l.Arg.(queryast.Path)
	assert.True(t, ok)
}
