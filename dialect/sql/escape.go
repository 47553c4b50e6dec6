package sql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mesa-orm/mesa/dialect"
)

// EscapeID quotes a (possibly qualified) SQL identifier per spec §4.1.
// "a.b" is split on its dot and each part is quoted independently, so
// schema/table qualifiers survive: `a`.`b`.
func EscapeID(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

// EscapeValue renders v as a SQL literal per spec §4.1. This is the single
// point of untrusted-value-to-SQL-text translation; every other layer must
// route literal emission through it (or through parameterized args, where
// the caller chose placeholders instead).
func EscapeValue(d string, v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return "'" + escapeStringValue(val) + "'"
	case time.Time:
		return escapeTime(d, val)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return strconv.FormatFloat(asFloat64(val), 'f', -1, 64)
	default:
		return "'" + escapeStringValue(fmt.Sprint(val)) + "'"
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

// InlineArgs substitutes each "?" placeholder in exprSQL, in order, with
// args' literal rendering via EscapeValue. The Selector/UpdateBuilder
// placeholder mechanism only threads args through a statement's WHERE/SET
// clauses; a compiled expression embedded in a projection column list or an
// ORDER BY term has nowhere to carry its own args, so callers inline them
// as literals instead.
func InlineArgs(d string, exprSQL string, args []any) string {
	if len(args) == 0 {
		return exprSQL
	}
	var sb strings.Builder
	i := 0
	for _, r := range exprSQL {
		if r == '?' && i < len(args) {
			sb.WriteString(EscapeValue(d, args[i]))
			i++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// escapeTime implements spec §4.1's per-dialect date literal rule: SQLite
// stores dates as epoch milliseconds, MySQL as a DATETIME string literal.
func escapeTime(d string, t time.Time) string {
	switch d {
	case dialect.MySQL:
		return "'" + t.UTC().Format("2006-01-02 15:04:05") + "'"
	default: // dialect.SQLite
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
}
