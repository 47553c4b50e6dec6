package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"regexp"
	"sync"

	modernc "modernc.org/sqlite"
)

// registerUDFsOnce guards the embedded-engine UDF registration spec §6
// requires at start(): modernc.org/sqlite's scalar-function registry is
// process-wide, not per-connection, so this only needs to run once no
// matter how many sqlite Drivers a process opens.
//
// The exact registration call (RegisterDeterministicScalarFunction, a
// ScalarFunction taking []driver.Value and returning (driver.Value, error))
// reflects modernc.org/sqlite's public API as documented upstream; unlike
// nearly everything else in this tree it could not be checked against a
// vendored copy of the library, since none was available locally to read.
var (
	registerUDFsOnce sync.Once
	registerUDFsErr  error
)

func registerUDFs() error {
	registerUDFsOnce.Do(func() {
		if err := modernc.RegisterDeterministicScalarFunction("regexp", 2, regexpUDF); err != nil {
			registerUDFsErr = err
			return
		}
		registerUDFsErr = modernc.RegisterDeterministicScalarFunction("json_array_contains", 2, jsonArrayContainsUDF)
	})
	return registerUDFsErr
}

// regexpUDF backs the $regex/$regexFor query operators' SQLite compilation
// (compile.go emits "col REGEXP ?" and "? REGEXP col", which SQLite
// evaluates as regexp(?, col) and regexp(col, ?)): args[0] is the pattern,
// args[1] the subject.
func regexpUDF(_ *modernc.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, _ := args[0].(string)
	subject, _ := args[1].(string)
	matched, err := regexp.MatchString(pattern, subject)
	if err != nil {
		return nil, err
	}
	if matched {
		return int64(1), nil
	}
	return int64(0), nil
}

// jsonArrayContainsUDF backs the $el query operator against a JSON array
// column on SQLite: args[0] is the array's JSON text, args[1] the
// candidate element's JSON text. Either side failing to parse as JSON is
// treated as "not found" rather than an error, matching the tolerant
// per-row semantics the rest of the compiler's JSON-path handling uses.
func jsonArrayContainsUDF(_ *modernc.FunctionContext, args []driver.Value) (driver.Value, error) {
	arrText, _ := args[0].(string)
	valText, _ := args[1].(string)

	var arr []any
	if err := json.Unmarshal([]byte(arrText), &arr); err != nil {
		return int64(0), nil
	}
	var want any
	if err := json.Unmarshal([]byte(valText), &want); err != nil {
		return int64(0), nil
	}
	for _, el := range arr {
		if reflect.DeepEqual(el, want) {
			return int64(1), nil
		}
	}
	return int64(0), nil
}
