package sql_test

import (
	"testing"

	"github.com/mesa-orm/mesa/dialect"
	"github.com/mesa-orm/mesa/dialect/sql"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New("users", []field.Descriptor{
		field.Primary("id").AutoIncrement().Descriptor(),
		field.String("name").Descriptor(),
		field.Integer("age").Descriptor(),
		field.JSON("meta").Descriptor(),
		field.List("tags").Descriptor(),
	}, model.Options{})
	require.NoError(t, err)
	return m
}

func TestCompileQueryEmpty(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(nil)
	require.NoError(t, err)
	frag, args := c.CompileQuery(q)
	assert.Equal(t, "1", frag)
	assert.Empty(t, args)
}

func TestCompileQueryEquality(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(map[string]any{"name": "ada"})
	require.NoError(t, err)
	frag, args := c.CompileQuery(q)
	assert.Equal(t, "`name` = ?", frag)
	assert.Equal(t, []any{"ada"}, args)
}

func TestCompileQueryEmptyInShortCircuits(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(map[string]any{"id": []any{}})
	require.NoError(t, err)
	frag, _ := c.CompileQuery(q)
	assert.Equal(t, "0", frag)
}

func TestCompileQueryOr(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(map[string]any{
		"$or": []any{
			map[string]any{"name": "ada"},
			map[string]any{"age": 30},
		},
	})
	require.NoError(t, err)
	frag, args := c.CompileQuery(q)
	assert.Equal(t, "(`name` = ? OR `age` = ?)", frag)
	assert.Equal(t, []any{"ada", 30}, args)
}

func TestCompileQueryBitsAllSet(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(map[string]any{
		"age": map[string]any{"$bitsAllSet": 4},
	})
	require.NoError(t, err)
	frag, args := c.CompileQuery(q)
	assert.Equal(t, "(`age` & ?) = ?", frag)
	assert.Equal(t, []any{4, 4}, args)
}

func TestCompileQuerySizeZero(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	q, err := queryast.ParseQuery(map[string]any{
		"tags": map[string]any{"$size": 0},
	})
	require.NoError(t, err)
	frag, _ := c.CompileQuery(q)
	assert.Equal(t, "NOT(`tags`)", frag)
}

func TestCompileQueryElJSONDialects(t *testing.T) {
	q, err := queryast.ParseQuery(map[string]any{
		"meta": map[string]any{"$el": "x"},
	})
	require.NoError(t, err)

	mysql := sql.NewCompiler(dialect.MySQL, usersModel(t), "users", nil)
	frag, _ := mysql.CompileQuery(q)
	assert.Contains(t, frag, "JSON_CONTAINS")

	sqlite := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	frag, _ = sqlite.CompileQuery(q)
	assert.Contains(t, frag, "json_array_contains")
}

func TestCompileEvalPath(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	e, err := queryast.ParseEval(map[string]any{"$": "name"})
	require.NoError(t, err)
	frag, _ := c.CompileEval(e)
	assert.Equal(t, "`name`", frag)
}

func TestCompileEvalJSONPath(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	e, err := queryast.ParseEval(map[string]any{"$": "meta.address.city"})
	require.NoError(t, err)
	frag, _ := c.CompileEval(e)
	assert.Equal(t, "json_unquote(json_extract(`meta`, '$.address.city'))", frag)
}

func TestCompileEvalConcatDialects(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{
		"$concat": []any{map[string]any{"$": "name"}, "!"},
	})
	require.NoError(t, err)

	mysql := sql.NewCompiler(dialect.MySQL, usersModel(t), "users", nil)
	frag, _ := mysql.CompileEval(e)
	assert.Equal(t, "CONCAT(`name`, ?)", frag)

	sqlite := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	frag, _ = sqlite.CompileEval(e)
	assert.Equal(t, "(`name` || ?)", frag)
}

func TestCompileEvalIfDialects(t *testing.T) {
	e, err := queryast.ParseEval(map[string]any{"$if": []any{true, 1, 0}})
	require.NoError(t, err)

	mysql := sql.NewCompiler(dialect.MySQL, usersModel(t), "users", nil)
	frag, _ := mysql.CompileEval(e)
	assert.Contains(t, frag, "IF(")

	sqlite := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	frag, _ = sqlite.CompileEval(e)
	assert.Contains(t, frag, "iif(")
}

func TestCompileEvalAggregationOutsideGroup(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	e, err := queryast.ParseEval(map[string]any{"$sum": map[string]any{"$": "age"}})
	require.NoError(t, err)
	frag, _ := c.CompileEval(e)
	assert.Contains(t, frag, "SELECT sum(value) FROM json_each(")
}

func TestCompileEvalArith(t *testing.T) {
	c := sql.NewCompiler(dialect.SQLite, usersModel(t), "users", nil)
	e, err := queryast.ParseEval(map[string]any{
		"$add": []any{map[string]any{"$": "age"}, 1},
	})
	require.NoError(t, err)
	frag, args := c.CompileEval(e)
	assert.Equal(t, "(`age` + ?)", frag)
	assert.Equal(t, []any{1}, args)
}
