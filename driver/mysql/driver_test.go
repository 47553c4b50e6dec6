package mysql

import (
	"context"
	"testing"

	mesa "github.com/mesa-orm/mesa"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func usersModel(t *testing.T) *model.Model {
	t.Helper()
	m, err := model.New("users", []field.Descriptor{
		field.Primary("id").AutoIncrement().Descriptor(),
		field.String("name").Descriptor(),
		field.Integer("age").Nullable().Initial(0).Descriptor(),
	}, model.Options{AutoInc: true, Primary: []string{"id"}})
	require.NoError(t, err)
	return m
}

func newTestDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := New(Config{Database: "testdb"})
	d.attachDB(db)
	m := usersModel(t)
	d.tables[m.Name] = m
	return d, mock
}

func TestMySQLCreateAssignsAutoIncrementID(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectExec("INSERT INTO").
		WithArgs("ada", 30).
		WillReturnResult(sqlmock.NewResult(7, 1))

	row, err := d.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.NoError(t, err)
	require.EqualValues(t, 7, row["id"])
	require.Equal(t, "ada", row["name"])
}

func TestMySQLCreateDuplicateEntry(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectExec("INSERT INTO").
		WithArgs("ada", 30).
		WillReturnError(&mysqlDupError{})

	_, err := d.Create(ctx, "users", map[string]any{"name": "ada", "age": 30})
	require.True(t, mesa.IsDuplicateEntry(err))
}

// mysqlDupError mimics *go-sql-driver/mysql.MySQLError's Number() shape
// dberrors.IsUniqueConstraintError type-switches on, without importing the
// driver package into the test just for one error value.
type mysqlDupError struct{}

func (*mysqlDupError) Error() string  { return "Error 1062: Duplicate entry" }
func (*mysqlDupError) Number() uint16 { return 1062 }

func TestMySQLSetAppliesConstantUpdate(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectExec("UPDATE").
		WithArgs(31, "ada").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sel := model.NewSelection("users", usersModel(t), nil, nil)
	n, err := d.Set(ctx, sel, mesa.Update{"age": 31, "name": "ada"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestMySQLRemoveDeletesMatchingRows(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectExec("DELETE FROM").WillReturnResult(sqlmock.NewResult(0, 2))

	sel := model.NewSelection("users", usersModel(t), nil, nil)
	n, err := d.Remove(ctx, sel)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestMySQLGetUsesBatchQueue(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(1, "ada", 30))

	sel := model.NewSelection("users", usersModel(t), nil, nil)
	rows, err := d.Get(ctx, sel)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"])
}

func TestMySQLUpsertInsertsWithOnDuplicateKeyUpdate(t *testing.T) {
	ctx := context.Background()
	d, mock := newTestDriver(t)

	mock.ExpectExec("INSERT INTO").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(1, "ada", 30))

	rows, err := d.Upsert(ctx, "users", []map[string]any{
		{"id": 1, "name": "ada", "age": 30},
	}, []string{"id"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"])
}
