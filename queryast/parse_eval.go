package queryast

import "fmt"

// ParseEval compiles a raw eval value (spec §3's Eval Expression) into an
// Eval tree. Any value that is not a recognized operator map is treated as
// a literal (spec §4.3: "Literals via escape_value").
func ParseEval(v any) (Eval, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return Lit{Value: v}, nil
	}
	// A path accessor is the single reserved key "$"; every other operator
	// key is also reserved but mutually exclusive with it and with each
	// other — an eval node is a single operator application.
	if raw, ok := m["$"]; ok && len(m) == 1 {
		return parsePath(raw)
	}
	for key, arg := range m {
		switch key {
		case "$add":
			return parseArith(ArithAdd, arg)
		case "$multiply":
			return parseArith(ArithMultiply, arg)
		case "$subtract":
			return parseArith(ArithSubtract, arg)
		case "$divide":
			return parseArith(ArithDivide, arg)
		case "$eq":
			return parseCmp(CmpEq, arg)
		case "$ne":
			return parseCmp(CmpNe, arg)
		case "$gt":
			return parseCmp(CmpGt, arg)
		case "$gte":
			return parseCmp(CmpGte, arg)
		case "$lt":
			return parseCmp(CmpLt, arg)
		case "$lte":
			return parseCmp(CmpLte, arg)
		case "$and":
			return parseLogical(LogicalAnd, arg)
		case "$or":
			return parseLogical(LogicalOr, arg)
		case "$not":
			return parseLogicalNot(arg)
		case "$concat":
			return parseConcat(arg)
		case "$if":
			return parseIf(arg)
		case "$ifNull":
			return parseIfNull(arg)
		case "$sum":
			return parseAggr(AggrSum, arg)
		case "$avg":
			return parseAggr(AggrAvg, arg)
		case "$min":
			return parseAggr(AggrMin, arg)
		case "$max":
			return parseAggr(AggrMax, arg)
		case "$count":
			return parseAggr(AggrCount, arg)
		case "$length":
			arg, err := ParseEval(arg)
			if err != nil {
				return nil, err
			}
			return Length{Arg: arg}, nil
		}
		// An unrecognized key inside a single-key map is not an eval
		// operator; treat the whole map as an opaque literal (e.g. a JSON
		// object value being inserted verbatim).
		return Lit{Value: v}, nil
	}
	return Lit{Value: v}, nil
}

func parsePath(raw any) (Eval, error) {
	switch p := raw.(type) {
	case string:
		field, segs := splitPath(p)
		return Path{Field: field, Segments: segs}, nil
	case []any:
		if len(p) != 2 {
			return nil, malformed("$", "$", "path accessor array must have exactly 2 elements")
		}
		alias, ok := p[0].(string)
		if !ok {
			return nil, malformed("$", "$", "path alias must be a string")
		}
		pathStr, ok := p[1].(string)
		if !ok {
			return nil, malformed("$", "$", "path must be a string")
		}
		field, segs := splitPath(pathStr)
		return Path{Alias: alias, Field: field, Segments: segs}, nil
	default:
		return nil, malformed("$", "$", "path accessor must be a string or [alias, path]")
	}
}

// splitPath separates the leading field name from any dotted sub-path.
// Resolving which prefix is a declared field name (spec §4.3: "split at
// the longest declared-field prefix") requires the Model and happens at SQL
// compile time, not here; at parse time we only separate the first path
// segment, leaving the compiler to re-join/re-split against the schema if
// the field itself contains a dot-free name that still needs JSON
// sub-extraction.
func splitPath(p string) (field string, segments []string) {
	segments = splitDot(p)
	if len(segments) == 0 {
		return "", nil
	}
	return segments[0], segments[1:]
}

func splitDot(p string) []string {
	var out []string
	start := 0
	for i := 0; i < len(p); i++ {
		if p[i] == '.' {
			out = append(out, p[start:i])
			start = i + 1
		}
	}
	out = append(out, p[start:])
	return out
}

func parseArith(op ArithOp, arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok || len(items) < 2 {
		return nil, malformed("$", fmt.Sprintf("arith(%d)", op), "expects an array of at least 2 operands")
	}
	args := make([]Eval, 0, len(items))
	for _, it := range items {
		e, err := ParseEval(it)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return Arith{Op: op, Args: args}, nil
}

func parseCmp(op CmpOp, arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok || len(items) != 2 {
		return nil, malformed("$", fmt.Sprintf("cmp(%d)", op), "expects a 2-element array [left, right]")
	}
	left, err := ParseEval(items[0])
	if err != nil {
		return nil, err
	}
	right, err := ParseEval(items[1])
	if err != nil {
		return nil, err
	}
	return Cmp{Op: op, Left: left, Right: right}, nil
}

func parseLogical(op LogicalOp, arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok {
		return nil, malformed("$", "logical", "expects an array")
	}
	args := make([]Eval, 0, len(items))
	for _, it := range items {
		e, err := ParseEval(it)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return Logical{Op: op, Args: args}, nil
}

func parseLogicalNot(arg any) (Eval, error) {
	e, err := ParseEval(arg)
	if err != nil {
		return nil, err
	}
	return Logical{Op: LogicalNot, Args: []Eval{e}}, nil
}

func parseConcat(arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok {
		return nil, malformed("$", "$concat", "expects an array")
	}
	args := make([]Eval, 0, len(items))
	for _, it := range items {
		e, err := ParseEval(it)
		if err != nil {
			return nil, err
		}
		args = append(args, e)
	}
	return Concat{Args: args}, nil
}

func parseIf(arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok || len(items) != 3 {
		return nil, malformed("$", "$if", "expects a 3-element array [cond, then, else]")
	}
	cond, err := ParseEval(items[0])
	if err != nil {
		return nil, err
	}
	then, err := ParseEval(items[1])
	if err != nil {
		return nil, err
	}
	els, err := ParseEval(items[2])
	if err != nil {
		return nil, err
	}
	return If{Cond: cond, Then: then, Else: els}, nil
}

func parseIfNull(arg any) (Eval, error) {
	items, ok := arg.([]any)
	if !ok || len(items) != 2 {
		return nil, malformed("$", "$ifNull", "expects a 2-element array [value, default]")
	}
	value, err := ParseEval(items[0])
	if err != nil {
		return nil, err
	}
	def, err := ParseEval(items[1])
	if err != nil {
		return nil, err
	}
	return IfNull{Value: value, Default: def}, nil
}

func parseAggr(op AggrOp, arg any) (Eval, error) {
	e, err := ParseEval(arg)
	if err != nil {
		return nil, err
	}
	return Aggr{Op: op, Arg: e}, nil
}
