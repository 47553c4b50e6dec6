package mesa_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesa-orm/mesa"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mesa.NewNotFoundError("users")
		assert.Equal(t, "mesa: users not found", err.Error())
	})

	t.Run("ErrorWithID", func(t *testing.T) {
		err := mesa.NewNotFoundErrorWithID("users", 7)
		assert.Equal(t, "mesa: users not found (id=7)", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := mesa.NewNotFoundError("posts")
		assert.True(t, errors.Is(err, mesa.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := mesa.NewNotFoundError("comments")
		assert.True(t, mesa.IsNotFound(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, mesa.IsNotFound(wrapped))

		assert.True(t, mesa.IsNotFound(mesa.ErrNotFound))
		assert.False(t, mesa.IsNotFound(errors.New("other error")))
		assert.False(t, mesa.IsNotFound(nil))
	})
}

func TestSchemaMismatchError(t *testing.T) {
	err := mesa.NewSchemaMismatchError("users", "age", "column is text, field declares integer")
	assert.Equal(t, `mesa: schema mismatch on users.age: column is text, field declares integer`, err.Error())
	assert.True(t, mesa.IsSchemaMismatch(err))
	assert.False(t, mesa.IsSchemaMismatch(errors.New("other")))
	assert.False(t, mesa.IsSchemaMismatch(nil))
}

func TestDuplicateEntryError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := mesa.NewDuplicateEntryError("users", []string{"email"}, nil)
		assert.Equal(t, "mesa: duplicate entry on users (email)", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("UNIQUE constraint failed: users.email")
		err := mesa.NewDuplicateEntryError("users", []string{"email"}, underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsDuplicateEntry", func(t *testing.T) {
		err := mesa.NewDuplicateEntryError("users", nil, nil)
		assert.True(t, mesa.IsDuplicateEntry(err))

		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, mesa.IsDuplicateEntry(wrapped))

		assert.False(t, mesa.IsDuplicateEntry(errors.New("other error")))
		assert.False(t, mesa.IsDuplicateEntry(nil))
	})
}

func TestQueryMalformedError(t *testing.T) {
	err := mesa.NewQueryMalformedError("posts.tags", "$el", "operand must be scalar or array")
	assert.Equal(t, `mesa: malformed query at posts.tags ($el): operand must be scalar or array`, err.Error())
	assert.True(t, mesa.IsQueryMalformed(err))
	assert.False(t, mesa.IsQueryMalformed(errors.New("other")))
}

func TestStorageError(t *testing.T) {
	underlying := errors.New("connection reset by peer")
	err := mesa.NewStorageError("eval", "SELECT * FROM users WHERE secret = ?", underlying)

	// The offending SQL never appears in the user-visible message.
	assert.NotContains(t, err.Error(), "SELECT")
	assert.Contains(t, err.Error(), "eval")
	assert.Contains(t, err.Error(), err.CorrelationID)
	assert.NotEmpty(t, err.Diagnostic)
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, mesa.IsStorageError(err))

	// Each StorageError gets its own correlation id.
	other := mesa.NewStorageError("eval", "SELECT 1", underlying)
	assert.NotEqual(t, err.CorrelationID, other.CorrelationID)
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		err := mesa.NewAggregateError()
		assert.Nil(t, err)
	})

	t.Run("NilErrors", func(t *testing.T) {
		err := mesa.NewAggregateError(nil, nil, nil)
		assert.Nil(t, err)
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		err := mesa.NewAggregateError(single)
		assert.Equal(t, single, err)
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := mesa.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
	})

	t.Run("MixedNilAndErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err := mesa.NewAggregateError(nil, err1, nil)

		require.NotNil(t, err)
		assert.Equal(t, err1, err)
	})
}

func TestSentinelErrors(t *testing.T) {
	t.Run("ErrNotFound", func(t *testing.T) {
		assert.Error(t, mesa.ErrNotFound)
		assert.Contains(t, mesa.ErrNotFound.Error(), "not found")
	})

	t.Run("ErrTableNotRegistered", func(t *testing.T) {
		assert.Error(t, mesa.ErrTableNotRegistered)
		assert.Contains(t, mesa.ErrTableNotRegistered.Error(), "not registered")
	})
}

func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = mesa.NewNotFoundError("users")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := mesa.NewNotFoundError("users")
		for i := 0; i < b.N; i++ {
			_ = mesa.IsNotFound(err)
		}
	})

	b.Run("NewStorageError", func(b *testing.B) {
		underlying := errors.New("reset")
		for i := 0; i < b.N; i++ {
			_ = mesa.NewStorageError("eval", "SELECT 1", underlying)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		err3 := errors.New("err3")
		for i := 0; i < b.N; i++ {
			_ = mesa.NewAggregateError(err1, err2, err3)
		}
	})
}
