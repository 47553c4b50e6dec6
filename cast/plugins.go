package cast

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/mesa-orm/mesa/dialect"
	"github.com/mesa-orm/mesa/field"
)

// defaultPlugins returns the stock plugin set spec §4.2 names, with the
// date-like plugin varying by dialect: SQLite stores epoch milliseconds,
// MySQL stores a "yyyy-MM-dd HH:mm:ss" string (the same split escape.go
// already makes for literal emission).
func defaultPlugins(dialectName string) []Plugin {
	plugins := []Plugin{booleanPlugin(), jsonPlugin(), listPlugin(), stringPlugin()}
	if dialectName == dialect.MySQL {
		plugins = append(plugins, mysqlDatePlugin())
	} else {
		plugins = append(plugins, sqliteDatePlugin())
	}
	return plugins
}

func booleanPlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeBoolean},
		Dump: func(v any) (any, error) {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("expected bool, got %T", v)
			}
			if b {
				return 1, nil
			}
			return 0, nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			if stored == nil {
				return initialOr(fd, false), nil
			}
			n, err := asInt64(stored)
			if err != nil {
				return nil, err
			}
			return n != 0, nil
		},
	}
}

func jsonPlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeJSON},
		Dump: func(v any) (any, error) {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("marshal json: %w", err)
			}
			return string(b), nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			s, _ := stored.(string)
			if s == "" {
				return initialOr(fd, nil), nil
			}
			var v any
			if err := json.Unmarshal([]byte(s), &v); err != nil {
				return nil, fmt.Errorf("unmarshal json: %w", err)
			}
			return v, nil
		},
	}
}

func listPlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeList},
		Dump: func(v any) (any, error) {
			if s, ok := v.(string); ok {
				return s, nil
			}
			items, err := toStringSlice(v)
			if err != nil {
				return nil, err
			}
			return strings.Join(items, ","), nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			s, _ := stored.(string)
			if s == "" {
				if init := initialOr(fd, []string{}); init != nil {
					return init, nil
				}
				return []string{}, nil
			}
			return strings.Split(s, ","), nil
		},
	}
}

// stringPlugin normalizes string-like values to NFC on dump so that
// visually-identical strings compare and index equally across inputs that
// arrive pre-composed vs. decomposed; load is passthrough.
func stringPlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeChar, field.TypeString, field.TypeText},
		Dump: func(v any) (any, error) {
			s, ok := v.(string)
			if !ok {
				return v, nil
			}
			return norm.NFC.String(s), nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			if stored == nil {
				return initialOr(fd, ""), nil
			}
			return stored, nil
		},
	}
}

func sqliteDatePlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeDate, field.TypeTime, field.TypeTimestamp},
		Dump: func(v any) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return t.UnixMilli(), nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			if stored == nil {
				return initialOr(fd, time.Time{}), nil
			}
			ms, err := asInt64(stored)
			if err != nil {
				return nil, err
			}
			return time.UnixMilli(ms).UTC(), nil
		},
	}
}

const mysqlDateLayout = "2006-01-02 15:04:05"

func mysqlDatePlugin() Plugin {
	return Plugin{
		Types: []field.Type{field.TypeDate, field.TypeTime, field.TypeTimestamp},
		Dump: func(v any) (any, error) {
			t, err := asTime(v)
			if err != nil {
				return nil, err
			}
			return t.UTC().Format(mysqlDateLayout), nil
		},
		Load: func(stored any, fd field.Descriptor) (any, error) {
			s, _ := stored.(string)
			if s == "" {
				return initialOr(fd, time.Time{}), nil
			}
			t, err := time.Parse(mysqlDateLayout, s)
			if err != nil {
				return nil, fmt.Errorf("parse datetime %q: %w", s, err)
			}
			return t, nil
		},
	}
}

func initialOr(fd field.Descriptor, zero any) any {
	if fd.HasInitial {
		return fd.Initial
	}
	return zero
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	case string:
		parsed, err := time.Parse(mysqlDateLayout, t)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse date %q: %w", t, err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("expected time.Time, got %T", v)
	}
}

func toStringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if ok {
		out := make([]string, len(items))
		for i, it := range items {
			out[i] = fmt.Sprintf("%v", it)
		}
		return out, nil
	}
	strs, ok := v.([]string)
	if ok {
		return strs, nil
	}
	return nil, fmt.Errorf("expected list, got %T", v)
}
