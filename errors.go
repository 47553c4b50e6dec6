package mesa

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("mesa: entity not found")

	// ErrTableNotRegistered is returned when an operation names a table that
	// was never declared via Database.Extend.
	ErrTableNotRegistered = errors.New("mesa: table not registered")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	Table string
	ID    any // optional: the primary key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("mesa: %s not found (id=%v)", e.Table, e.ID)
	}
	return fmt.Sprintf("mesa: %s not found", e.Table)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// NewNotFoundError returns a new NotFoundError for the given table.
func NewNotFoundError(table string) *NotFoundError {
	return &NotFoundError{Table: table}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the key that was searched for.
func NewNotFoundErrorWithID(table string, id any) *NotFoundError {
	return &NotFoundError{Table: table, ID: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// SchemaMismatchError is the schema-mismatch kind from spec §7: a declared
// field's type cannot be mapped onto the live column (or onto any supported
// dialect type). It is fatal at prepare — synchronization aborts entirely
// rather than applying a partial migration.
type SchemaMismatchError struct {
	Table  string
	Field  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("mesa: schema mismatch on %s.%s: %s", e.Table, e.Field, e.Reason)
}

// NewSchemaMismatchError returns a new SchemaMismatchError.
func NewSchemaMismatchError(table, field, reason string) *SchemaMismatchError {
	return &SchemaMismatchError{Table: table, Field: field, Reason: reason}
}

// IsSchemaMismatch returns true if the error is a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	var e *SchemaMismatchError
	return errors.As(err, &e)
}

// DuplicateEntryError is the duplicate-entry kind from spec §7: a primary or
// unique-group conflict on insert. It is surfaced to the caller unchanged,
// wrapping whatever driver-level constraint error triggered it so
// errors.Is/dberrors.IsUniqueConstraintError keep working through it.
type DuplicateEntryError struct {
	Table string
	Keys  []string // the unique group (or primary key) fields that conflicted
	wrap  error
}

func (e *DuplicateEntryError) Error() string {
	if len(e.Keys) > 0 {
		return fmt.Sprintf("mesa: duplicate entry on %s (%s)", e.Table, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("mesa: duplicate entry on %s", e.Table)
}

// Unwrap returns the underlying driver-level constraint error, if any.
func (e *DuplicateEntryError) Unwrap() error { return e.wrap }

// NewDuplicateEntryError returns a new DuplicateEntryError.
func NewDuplicateEntryError(table string, keys []string, wrap error) *DuplicateEntryError {
	return &DuplicateEntryError{Table: table, Keys: keys, wrap: wrap}
}

// IsDuplicateEntry returns true if the error is a DuplicateEntryError.
func IsDuplicateEntry(err error) bool {
	if err == nil {
		return false
	}
	var e *DuplicateEntryError
	return errors.As(err, &e)
}

// QueryMalformedError is the query-malformed kind from spec §7: an operator
// was given a shape it does not accept (e.g. $el against a non-scalar,
// non-array operand). It is always raised synchronously at compile time,
// before any I/O is attempted.
type QueryMalformedError struct {
	Path string // dotted field/operator path where the malformed shape was found
	Op   string
	Msg  string
}

func (e *QueryMalformedError) Error() string {
	return fmt.Sprintf("mesa: malformed query at %s (%s): %s", e.Path, e.Op, e.Msg)
}

// NewQueryMalformedError returns a new QueryMalformedError.
func NewQueryMalformedError(path, op, msg string) *QueryMalformedError {
	return &QueryMalformedError{Path: path, Op: op, Msg: msg}
}

// IsQueryMalformed returns true if the error is a QueryMalformedError.
func IsQueryMalformed(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryMalformedError
	return errors.As(err, &e)
}

// StorageError is the storage-error kind from spec §7: a wrapped
// transport/engine error. The offending SQL is attached to Diagnostic,
// never included in Error()'s user-visible message, per spec §7's
// propagation policy. CorrelationID lets an operator find the matching line
// in the diagnostic log channel without leaking the statement itself.
type StorageError struct {
	CorrelationID string
	Op            string // driver protocol op: get/eval/set/remove/create/upsert/...
	Diagnostic    string // offending SQL, logged separately, never surfaced here
	wrap          error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("mesa: storage error during %s [%s]: %v", e.Op, e.CorrelationID, e.wrap)
}

// Unwrap returns the underlying transport error.
func (e *StorageError) Unwrap() error { return e.wrap }

// NewStorageError wraps err as a StorageError, minting a fresh correlation ID.
func NewStorageError(op, diagnosticSQL string, err error) *StorageError {
	return &StorageError{
		CorrelationID: uuid.NewString(),
		Op:            op,
		Diagnostic:    diagnosticSQL,
		wrap:          err,
	}
}

// IsStorageError returns true if the error is a StorageError.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	var e *StorageError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during a batched
// operation. Per spec §7's propagation policy, partial failure of a batched
// multi-statement operation rejects every item in the batch identically, so
// this is used to report the set of per-item causes behind that single
// rejection, not to allow selective success.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "mesa: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("mesa: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
