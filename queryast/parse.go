package queryast

import (
	"fmt"
	"regexp"
)

// MalformedError describes a query/eval shape ParseQuery/ParseEval could not
// compile, per spec §7's query-malformed error kind. Path identifies where
// in the input tree the problem was found; Op names the offending operator,
// if any.
type MalformedError struct {
	Path string
	Op   string
	Msg  string
}

func (e *MalformedError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("queryast: %s: %s: %s", e.Path, e.Op, e.Msg)
	}
	return fmt.Sprintf("queryast: %s: %s", e.Path, e.Msg)
}

func malformed(path, op, msg string) error {
	return &MalformedError{Path: path, Op: op, Msg: msg}
}

// fieldOps maps the reserved operator keys of a field-query object to their
// FieldOp, per spec §3's field-query operator list.
var fieldOps = map[string]FieldOp{
	"$eq":           OpEq,
	"$ne":           OpNe,
	"$gt":           OpGt,
	"$gte":          OpGte,
	"$lt":           OpLt,
	"$lte":          OpLte,
	"$in":           OpIn,
	"$nin":          OpNin,
	"$regex":        OpRegex,
	"$regexFor":     OpRegexFor,
	"$exists":       OpExists,
	"$bitsAllSet":   OpBitsAllSet,
	"$bitsAllClear": OpBitsAllClear,
	"$bitsAnySet":   OpBitsAnySet,
	"$bitsAnyClear": OpBitsAnyClear,
	"$el":           OpEl,
	"$size":         OpSize,
}

// ParseQuery compiles a raw query map (spec §3's Query Expression) into a
// Query tree. q may be nil or empty, which compiles to And{} — the
// logical-reduction rule in spec §4.3 reduces this to the constant "1" at
// SQL-compile time.
func ParseQuery(q map[string]any) (Query, error) {
	return parseQueryMap("$", q)
}

func parseQueryMap(path string, q map[string]any) (Query, error) {
	children := make([]Query, 0, len(q))
	for key, v := range q {
		switch key {
		case "$and":
			items, err := asSlice(path, "$and", v)
			if err != nil {
				return nil, err
			}
			sub := make([]Query, 0, len(items))
			for i, it := range items {
				m, err := asQueryMap(path, "$and", it)
				if err != nil {
					return nil, err
				}
				child, err := parseQueryMap(fmt.Sprintf("%s.$and[%d]", path, i), m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, child)
			}
			children = append(children, And{Children: sub})
		case "$or":
			items, err := asSlice(path, "$or", v)
			if err != nil {
				return nil, err
			}
			sub := make([]Query, 0, len(items))
			for i, it := range items {
				m, err := asQueryMap(path, "$or", it)
				if err != nil {
					return nil, err
				}
				child, err := parseQueryMap(fmt.Sprintf("%s.$or[%d]", path, i), m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, child)
			}
			children = append(children, Or{Children: sub})
		case "$not":
			m, err := asQueryMap(path, "$not", v)
			if err != nil {
				return nil, err
			}
			child, err := parseQueryMap(path+".$not", m)
			if err != nil {
				return nil, err
			}
			children = append(children, Not{Child: child})
		case "$expr":
			expr, err := ParseEval(v)
			if err != nil {
				return nil, err
			}
			children = append(children, ExprQuery{Expr: expr})
		default:
			fq, err := ParseFieldQuery(key, v)
			if err != nil {
				return nil, err
			}
			children = append(children, fq)
		}
	}
	return And{Children: children}, nil
}

// ParseFieldQuery compiles the value attached to one field key: spec §3's
// parse_field_query. An array compiles to the $in shorthand; a *regexp.
// Regexp to $regex; nil to IS NULL; a scalar to equality; a map to the
// conjunction of its named operators.
func ParseFieldQuery(field string, v any) (FieldQuery, error) {
	switch val := v.(type) {
	case nil:
		return FieldQuery{Field: field, Operands: []Operand{{Op: OpIsNull}}}, nil
	case []any:
		return FieldQuery{Field: field, Operands: []Operand{{Op: OpIn, Value: val}}}, nil
	case *regexp.Regexp:
		return FieldQuery{Field: field, Operands: []Operand{{Op: OpRegex, Value: val}}}, nil
	case map[string]any:
		if len(val) == 0 {
			return FieldQuery{}, malformed(field, "", "empty operator object")
		}
		operands := make([]Operand, 0, len(val))
		for opKey, opVal := range val {
			op, ok := fieldOps[opKey]
			if !ok {
				return FieldQuery{}, malformed(field, opKey, "unrecognized field-query operator")
			}
			if err := validateOperand(field, opKey, op, opVal); err != nil {
				return FieldQuery{}, err
			}
			operands = append(operands, Operand{Op: op, Value: opVal})
		}
		return FieldQuery{Field: field, Operands: operands}, nil
	default:
		return FieldQuery{Field: field, Operands: []Operand{{Op: OpEq, Value: val}}}, nil
	}
}

// validateOperand enforces the shapes spec §4.3 calls out explicitly: $in/
// $nin take arrays, $el takes a scalar or array, $size takes a non-negative
// int, the bit operators take an integer mask.
func validateOperand(field, opKey string, op FieldOp, v any) error {
	switch op {
	case OpIn, OpNin:
		if _, ok := v.([]any); !ok {
			return malformed(field, opKey, "expects an array")
		}
	case OpSize:
		n, ok := asInt(v)
		if !ok || n < 0 {
			return malformed(field, opKey, "expects a non-negative integer")
		}
	case OpBitsAllSet, OpBitsAllClear, OpBitsAnySet, OpBitsAnyClear:
		if _, ok := asInt(v); !ok {
			return malformed(field, opKey, "expects an integer bitmask")
		}
	case OpEl:
		switch v.(type) {
		case []any, string, float64, int, int64, bool:
		default:
			return malformed(field, opKey, "expects a scalar or array value")
		}
	case OpExists:
		if _, ok := v.(bool); !ok {
			return malformed(field, opKey, "expects a boolean")
		}
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func asSlice(path, op string, v any) ([]any, error) {
	s, ok := v.([]any)
	if !ok {
		return nil, malformed(path, op, "expects an array")
	}
	return s, nil
}

func asQueryMap(path, op string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, malformed(path, op, "expects a query object")
	}
	return m, nil
}
