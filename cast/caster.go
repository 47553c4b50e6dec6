package cast

import (
	"fmt"

	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
)

// Error is raised when a value cannot be dumped or loaded against its
// declared field type — an undeclared field name, or a stored
// representation the plugin cannot parse.
type Error struct {
	Table  string
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("cast: %s.%s: %s", e.Table, e.Field, e.Reason)
}

// Plugin bridges one or more field.Type values between their in-memory
// semantic representation and the scalar form a dialect column stores.
// Dump is given the raw field value (never nil; nil is passed through by
// the Caster without invoking the plugin). Load is given the raw stored
// value and the field's descriptor, so it can apply fd.Initial when the
// stored representation is "empty" per field/doc.go's nullability rules.
type Plugin struct {
	Types []field.Type
	Dump  func(v any) (any, error)
	Load  func(stored any, fd field.Descriptor) (any, error)
}

// Caster is the per-driver type-cast registry of spec §4.2. Build one with
// New, which registers the default plugins for dialectName; Register
// layers driver-specific overrides on top (e.g. SQLite's epoch-ms date
// encoding vs. MySQL's datetime string).
type Caster struct {
	dialect string
	plugins map[field.Type]Plugin
}

// New returns a Caster with the default plugin set for dialectName wired
// in (see plugins.go).
func New(dialectName string) *Caster {
	c := &Caster{dialect: dialectName, plugins: make(map[field.Type]Plugin)}
	for _, p := range defaultPlugins(dialectName) {
		c.Register(p)
	}
	return c
}

// Register adds or overrides the plugin for every field.Type it declares
// and returns c for chaining.
func (c *Caster) Register(p Plugin) *Caster {
	for _, t := range p.Types {
		c.plugins[t] = p
	}
	return c
}

// Dump converts obj (a caller-supplied field-name -> value map, as passed
// to create/set/upsert) into its storage representation, first running the
// model's Format hook if one is registered. Every key in obj must name a
// declared field; dumping an undeclared field is a cast.Error, the same
// discipline Load enforces for unknown keys per spec §4.2.
func (c *Caster) Dump(m *model.Model, obj map[string]any) (map[string]any, error) {
	if m.Format != nil {
		obj = m.Format(obj)
	}
	out := make(map[string]any, len(obj))
	for key, v := range obj {
		fd, ok := m.Field(key)
		if !ok {
			return nil, &Error{Table: m.Name, Field: key, Reason: "undeclared field"}
		}
		if v == nil {
			out[key] = nil
			continue
		}
		p, ok := c.plugins[fd.Type]
		if !ok {
			out[key] = v
			continue
		}
		dumped, err := p.Dump(v)
		if err != nil {
			return nil, &Error{Table: m.Name, Field: key, Reason: err.Error()}
		}
		out[key] = dumped
	}
	return out, nil
}

// Load converts row (a raw storage row keyed by column name) into model
// values, rejecting any key that is not a declared field, applying each
// field's plugin (and its Initial fallback on an empty stored value), and
// finishing with the model's Parse hook if one is registered.
func (c *Caster) Load(m *model.Model, row map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(row))
	for key, stored := range row {
		fd, ok := m.Field(key)
		if !ok {
			return nil, &Error{Table: m.Name, Field: key, Reason: "unknown column"}
		}
		p, ok := c.plugins[fd.Type]
		if !ok {
			out[key] = stored
			continue
		}
		loaded, err := p.Load(stored, fd)
		if err != nil {
			return nil, &Error{Table: m.Name, Field: key, Reason: err.Error()}
		}
		out[key] = loaded
	}
	if m.Parse != nil {
		out = m.Parse(out)
	}
	return out, nil
}
