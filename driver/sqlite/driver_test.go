package sqlite_test

import (
	"context"
	"testing"

	mesa "github.com/mesa-orm/mesa"
	sqlitedriver "github.com/mesa-orm/mesa/driver/sqlite"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"

	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *mesa.Database {
	t.Helper()
	drv := sqlitedriver.New(sqlitedriver.Config{})
	require.NoError(t, drv.Start(context.Background()))
	t.Cleanup(func() { _ = drv.Stop(context.Background()) })
	return mesa.New(drv)
}

func usersFields() []field.Descriptor {
	return []field.Descriptor{
		field.Primary("id").AutoIncrement().Descriptor(),
		field.String("name").Descriptor(),
		field.Integer("age").Nullable().Initial(0).Descriptor(),
	}
}

func TestSQLiteCreateAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)

	created, err := db.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.NoError(t, err)
	require.Equal(t, "ada", created["name"])
	require.NotZero(t, created["id"])

	rows, err := db.Get(ctx, "users", map[string]any{"name": map[string]any{"$eq": "ada"}}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 30, rows[0]["age"])
}

func TestSQLiteSetUpdatesMatchingRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	_, err = db.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.NoError(t, err)

	n, err := db.Set(ctx, "users", map[string]any{"name": map[string]any{"$eq": "ada"}}, mesa.Update{"age": 31})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows, err := db.Get(ctx, "users", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.EqualValues(t, 31, rows[0]["age"])
}

func TestSQLiteRemoveDeletesMatchingRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	_, err = db.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.NoError(t, err)

	n, err := db.Remove(ctx, "users", map[string]any{"name": map[string]any{"$eq": "ada"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rows, err := db.Get(ctx, "users", nil, nil)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestSQLiteUpsertInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)

	rows, err := db.Upsert(ctx, "users", []map[string]any{
		{"id": 1, "name": "ada", "age": 30},
	}, []string{"id"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"])

	rows, err = db.Upsert(ctx, "users", []map[string]any{
		{"id": 1, "name": "ada lovelace", "age": 31},
	}, []string{"id"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada lovelace", rows[0]["name"])

	all, err := db.Get(ctx, "users", nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

// TestSQLiteUpsertPreservesColumnsOmittedByOtherBatchItems covers the case
// where one item in an upsert batch supplies a column another item omits:
// the DO UPDATE SET clause must not let that other item's excluded.col
// clobber the existing stored value for the item that didn't supply it.
func TestSQLiteUpsertPreservesColumnsOmittedByOtherBatchItems(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	fields := []field.Descriptor{
		field.Primary("id").AutoIncrement().Descriptor(),
		field.String("name").Descriptor(),
		field.String("text").Nullable().Descriptor(),
		field.Integer("num").Nullable().Descriptor(),
	}
	_, err := db.Extend(ctx, "bar", fields, model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)

	seeded, err := db.Create(ctx, "bar", map[string]any{"name": "seed", "text": "pku"})
	require.NoError(t, err)
	existingID := seeded["id"]

	newID := int64(99)
	rows, err := db.Upsert(ctx, "bar", []map[string]any{
		{"id": existingID, "name": "seed", "num": 1911},
		{"id": newID, "name": "fresh", "text": "new"},
	}, []string{"id"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	all, err := db.Get(ctx, "bar", map[string]any{"id": existingID}, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "pku", all[0]["text"])
	require.EqualValues(t, 1911, all[0]["num"])

	fresh, err := db.Get(ctx, "bar", map[string]any{"id": newID}, nil)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	require.Equal(t, "new", fresh[0]["text"])
	require.Nil(t, fresh[0]["num"])
}

func TestSQLiteEvalSumsMatchingRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	_, err = db.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.NoError(t, err)
	_, err = db.Create(ctx, "users", map[string]any{"name": "bob", "age": 20})
	require.NoError(t, err)

	total, err := db.Eval(ctx, "users", nil, map[string]any{"$sum": map[string]any{"$": "age"}})
	require.NoError(t, err)
	require.EqualValues(t, 50, total)
}

func TestSQLitePrepareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	drv := sqlitedriver.New(sqlitedriver.Config{})
	require.NoError(t, drv.Start(ctx))
	t.Cleanup(func() { _ = drv.Stop(ctx) })

	m, err := model.New("widgets", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	require.NoError(t, drv.Prepare(ctx, m))
	require.NoError(t, drv.Prepare(ctx, m))
}

func TestSQLiteDropRemovesTable(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	_, err := db.Extend(ctx, "users", usersFields(), model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	require.NoError(t, db.Drop(ctx, "users"))

	_, err = db.Get(ctx, "users", nil, nil)
	require.ErrorIs(t, err, mesa.ErrTableNotRegistered)
}
