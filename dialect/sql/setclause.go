package sql

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/mesa-orm/mesa/queryast"
)

// ApplyUpdate compiles update (a field name, or a dotted JSON sub-path
// rooted at a field name, mapped to either a constant Go value or a
// queryast.Eval) into b's SET clauses, per spec §4.3's Set algorithm.
// Dotted paths sharing a root column are folded into one chained
// json_set(ifnull(col, '{}'), '$.a.b', expr) expression; SQLite's json1
// extension supports the same json_set semantics this compiler already
// relies on for $-path field access, so both dialects share this one
// strategy rather than SQLite taking the fetch-then-per-row path spec §4.3
// describes as an alternative for embedded engines.
func (b *UpdateBuilder) ApplyUpdate(c *Compiler, update map[string]any) *UpdateBuilder {
	type subpath struct {
		path []string
		val  any
	}
	roots := make(map[string][]subpath)
	var order []string
	// Keys are visited in sorted order so the SET clauses and their args
	// come out in a stable order.
	keys := make([]string, 0, len(update))
	for k := range update {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := update[k]
		parts := strings.Split(k, ".")
		root := parts[0]
		if _, seen := roots[root]; !seen {
			order = append(order, root)
		}
		roots[root] = append(roots[root], subpath{path: parts[1:], val: v})
	}
	for _, root := range order {
		subs := roots[root]
		if len(subs) == 1 && len(subs[0].path) == 0 {
			b.applyScalarSet(c, root, subs[0].val)
			continue
		}
		cur := "ifnull(" + EscapeID(root) + ", '{}')"
		var args []any
		for _, s := range subs {
			valSQL, valArgs := compileUpdateValue(c, s.val)
			cur = "json_set(" + cur + ", '$." + strings.Join(s.path, ".") + "', " + valSQL + ")"
			args = append(args, valArgs...)
		}
		b.SetExpr(root, cur, args...)
	}
	return b
}

func (b *UpdateBuilder) applyScalarSet(c *Compiler, col string, v any) {
	if e, ok := v.(queryast.Eval); ok {
		exprSQL, args := c.CompileEval(e)
		b.SetExpr(col, exprSQL, args...)
		return
	}
	b.Set(col, normalizeUpdateValue(v))
}

func compileUpdateValue(c *Compiler, v any) (string, []any) {
	if e, ok := v.(queryast.Eval); ok {
		return c.CompileEval(e)
	}
	return "?", []any{normalizeUpdateValue(v)}
}

// normalizeUpdateValue JSON-encodes composite Go values (maps/slices) bound
// as a raw update constant, since the driver-level placeholder binding only
// accepts scalar types.
func normalizeUpdateValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	default:
		return v
	}
}
