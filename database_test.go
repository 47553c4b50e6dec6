package mesa_test

import (
	"context"
	"strings"
	"testing"
	"time"

	mesa "github.com/mesa-orm/mesa"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
	"github.com/mesa-orm/mesa/queryast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver is an in-memory stand-in for the Driver protocol, enough to
// exercise Database's orchestration (registry lookups, query parsing,
// cache wiring, invalidation) without a real backend.
type fakeDriver struct {
	prepared  []string
	rows      map[string][]map[string]any
	getCalls  int
	lastQuery queryast.Query
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{rows: make(map[string][]map[string]any)}
}

func (d *fakeDriver) Start(context.Context) error { return nil }
func (d *fakeDriver) Stop(context.Context) error  { return nil }

func (d *fakeDriver) Prepare(_ context.Context, m *model.Model) error {
	d.prepared = append(d.prepared, m.Name)
	return nil
}

func (d *fakeDriver) Drop(_ context.Context, table string) error {
	if table == "" {
		d.rows = make(map[string][]map[string]any)
		return nil
	}
	delete(d.rows, table)
	return nil
}

func (d *fakeDriver) Stats(context.Context) (mesa.Stats, error) { return mesa.Stats{}, nil }

func (d *fakeDriver) Get(_ context.Context, sel model.Selection) ([]map[string]any, error) {
	d.getCalls++
	d.lastQuery = sel.Query
	return d.rows[sel.Table], nil
}

func (d *fakeDriver) Eval(context.Context, model.Selection, queryast.Eval) (any, error) {
	return nil, nil
}

func (d *fakeDriver) Set(context.Context, model.Selection, mesa.Update) (int64, error) {
	return 1, nil
}

func (d *fakeDriver) Remove(context.Context, model.Selection) (int64, error) { return 1, nil }

func (d *fakeDriver) Create(_ context.Context, table string, data map[string]any) (map[string]any, error) {
	d.rows[table] = append(d.rows[table], data)
	return data, nil
}

func (d *fakeDriver) Upsert(_ context.Context, table string, data []map[string]any, _ []string) ([]map[string]any, error) {
	d.rows[table] = append(d.rows[table], data...)
	return data, nil
}

func usersFields() []field.Descriptor {
	return []field.Descriptor{
		field.Primary("id").AutoIncrement().Descriptor(),
		field.String("name").Descriptor(),
	}
}

func TestDatabaseExtendCallsDriverPrepare(t *testing.T) {
	drv := newFakeDriver()
	db := mesa.New(drv)
	_, err := db.Extend(context.Background(), "users", usersFields(), model.Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, drv.prepared)
}

func TestDatabaseGetUnregisteredTable(t *testing.T) {
	db := mesa.New(newFakeDriver())
	_, err := db.Get(context.Background(), "ghost", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, mesa.ErrTableNotRegistered)
}

func TestDatabaseGetRejectsMalformedQuery(t *testing.T) {
	drv := newFakeDriver()
	db := mesa.New(drv)
	_, err := db.Extend(context.Background(), "users", usersFields(), model.Options{})
	require.NoError(t, err)

	_, err = db.Get(context.Background(), "users", map[string]any{
		"id": map[string]any{"$unknownOp": 1},
	}, nil)
	require.Error(t, err)
	assert.True(t, mesa.IsQueryMalformed(err))
}

func TestDatabaseGetEmptyQueryMatchesAll(t *testing.T) {
	drv := newFakeDriver()
	db := mesa.New(drv)
	_, err := db.Extend(context.Background(), "users", usersFields(), model.Options{})
	require.NoError(t, err)

	_, err = db.Create(context.Background(), "users", map[string]any{"id": 1, "name": "ada"})
	require.NoError(t, err)

	rows, err := db.Get(context.Background(), "users", nil, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

type memCache struct {
	store map[string][]byte
	gets  int
	sets  int
}

func newMemCache() *memCache { return &memCache{store: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.gets++
	return c.store[key], nil
}
func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.sets++
	c.store[key] = value
	return nil
}
func (c *memCache) Delete(_ context.Context, key string) error {
	delete(c.store, key)
	return nil
}
func (c *memCache) DeletePrefix(_ context.Context, prefix string) error {
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}
func (c *memCache) Clear(context.Context) error {
	c.store = make(map[string][]byte)
	return nil
}

func TestDatabaseGetCachesAndInvalidatesOnMutation(t *testing.T) {
	drv := newFakeDriver()
	cache := newMemCache()
	db := mesa.NewWithCache(drv, cache)

	_, err := db.Extend(context.Background(), "users", usersFields(), model.Options{})
	require.NoError(t, err)
	_, err = db.Create(context.Background(), "users", map[string]any{"id": 1, "name": "ada"})
	require.NoError(t, err)

	_, err = db.Get(context.Background(), "users", nil, nil)
	require.NoError(t, err)
	_, err = db.Get(context.Background(), "users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, drv.getCalls, "second Get should be served from cache")

	_, err = db.Create(context.Background(), "users", map[string]any{"id": 2, "name": "bob"})
	require.NoError(t, err)

	_, err = db.Get(context.Background(), "users", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, drv.getCalls, "cache must be invalidated after a mutation")
}

func TestDatabaseDropAllDeregistersEveryTable(t *testing.T) {
	drv := newFakeDriver()
	db := mesa.New(drv)
	_, err := db.Extend(context.Background(), "users", usersFields(), model.Options{})
	require.NoError(t, err)

	require.NoError(t, db.Drop(context.Background(), ""))

	_, err = db.Get(context.Background(), "users", nil, nil)
	assert.ErrorIs(t, err, mesa.ErrTableNotRegistered)
}
