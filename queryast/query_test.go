package queryast_test

import (
	"testing"

	"github.com/mesa-orm/mesa/queryast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryEmpty(t *testing.T) {
	q, err := queryast.ParseQuery(nil)
	require.NoError(t, err)
	and, ok := q.(queryast.And)
	require.True(t, ok)
	assert.Empty(t, and.Children)
}

func TestParseQueryEquality(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{"name": "ada"})
	require.NoError(t, err)
	and := q.(queryast.And)
	require.Len(t, and.Children, 1)
	fq := and.Children[0].(queryast.FieldQuery)
	assert.Equal(t, "name", fq.Field)
	require.Len(t, fq.Operands, 1)
	assert.Equal(t, queryast.OpEq, fq.Operands[0].Op)
	assert.Equal(t, "ada", fq.Operands[0].Value)
}

func TestParseQueryNullShorthand(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{"deletedAt": nil})
	require.NoError(t, err)
	fq := q.(queryast.And).Children[0].(queryast.FieldQuery)
	assert.Equal(t, queryast.OpIsNull, fq.Operands[0].Op)
}

func TestParseQueryInShorthand(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{"id": []any{1, 2, 3}})
	require.NoError(t, err)
	fq := q.(queryast.And).Children[0].(queryast.FieldQuery)
	require.Len(t, fq.Operands, 1)
	assert.Equal(t, queryast.OpIn, fq.Operands[0].Op)
	assert.Equal(t, []any{1, 2, 3}, fq.Operands[0].Value)
}

func TestParseQueryOperatorObject(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"age": map[string]any{"$gt": 18, "$lte": 65},
	})
	require.NoError(t, err)
	fq := q.(queryast.And).Children[0].(queryast.FieldQuery)
	assert.Len(t, fq.Operands, 2)
}

func TestParseQueryUnknownOperator(t *testing.T) {
	_, err := queryast.ParseQuery(map[string]any{
		"age": map[string]any{"$bogus": 1},
	})
	require.Error(t, err)
	var me *queryast.MalformedError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "$bogus", me.Op)
}

func TestParseQueryInExpectsArray(t *testing.T) {
	_, err := queryast.ParseQuery(map[string]any{
		"id": map[string]any{"$in": "not-an-array"},
	})
	require.Error(t, err)
}

func TestParseQuerySizeExpectsNonNegativeInt(t *testing.T) {
	_, err := queryast.ParseQuery(map[string]any{
		"tags": map[string]any{"$size": -1},
	})
	require.Error(t, err)
}

func TestParseQueryLogical(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"$and": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2},
		},
	})
	require.NoError(t, err)
	and := q.(queryast.And).Children[0].(queryast.And)
	assert.Len(t, and.Children, 2)
}

func TestParseQueryOr(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"b": 2},
		},
	})
	require.NoError(t, err)
	or := q.(queryast.And).Children[0].(queryast.Or)
	assert.Len(t, or.Children, 2)
}

func TestParseQueryNot(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"$not": map[string]any{"a": 1},
	})
	require.NoError(t, err)
	not := q.(queryast.And).Children[0].(queryast.Not)
	require.NotNil(t, not.Child)
}

func TestParseQueryExpr(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"$expr": map[string]any{"$gt": []any{
			map[string]any{"$": "a"},
			map[string]any{"$": "b"},
		}},
	})
	require.NoError(t, err)
	eq := q.(queryast.And).Children[0].(queryast.ExprQuery)
	_, ok := eq.Expr.(queryast.Cmp)
	assert.True(t, ok)
}

func TestMalformedErrorString(t *testing.T) {
	_, parseErr := queryast.ParseQuery(map[string]any{"x": map[string]any{"$exists": "not-a-bool"}})
	require.Error(t, parseErr)
	assert.Contains(t, parseErr.Error(), "$exists")
}
