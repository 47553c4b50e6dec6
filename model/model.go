// Package model implements the in-memory catalog of declared tables — the
// Model Registry from spec §3/§4's Model Registry component. A Model is an
// immutable-after-registration record: name, field dictionary, primary key
// shape, unique-group and foreign-key declarations, and the auto-increment
// flag.
package model

import (
	"fmt"
	"slices"

	"github.com/mesa-orm/mesa/field"
)

// Foreign describes a single foreign-key declaration: the field on this
// model references (table, field) on another model.
type Foreign struct {
	Field           string
	ReferencedTable string
	ReferencedField string
}

// MigrationHook is the small callback record spec §9 describes for the
// "Model extension hooks" design note: a table's registered hooks run after
// the synchronizer brings the schema into shape, and may report columns that
// are now safe to drop.
type MigrationHook struct {
	// Before runs once the synchronizer has applied its plan, ahead of
	// every hook's After.
	Before func() error
	// After runs once the table is in shape; returning drop-safe column
	// names causes the synchronizer to re-run prepare with those names
	// accumulated into its drop-list (spec §4.5 step 7).
	After func() (dropKeys []string, err error)
	// Error receives the error returned by this hook's Before or After.
	Error func(error)
	// Finalize runs once, after no hook reports further drop keys.
	Finalize func()
}

// Model is the immutable-after-registration declaration of one table.
type Model struct {
	Name string

	fields map[string]field.Descriptor
	order  []string // declaration order, for deterministic column ordering

	// Primary is either a single field name (Len==1) or an ordered list of
	// field names forming a composite key.
	Primary []string
	// AutoInc requires Primary to be scalar (len(Primary) == 1) and that
	// field's Descriptor.Type == field.TypePrimary; the field's own
	// Descriptor.AutoInc flag is not checked.
	AutoInc bool

	// Unique is a list of field-name groups; each group is matched as a
	// single UNIQUE(...) constraint, in declared order.
	Unique [][]string

	// Foreign maps a field name to what it references.
	Foreign map[string]Foreign

	Hooks []MigrationHook

	// Format/Parse are optional model-level hooks invoked by the Caster
	// around per-field plugin dump/load, per spec §4.2.
	Format func(obj map[string]any) map[string]any
	Parse  func(row map[string]any) map[string]any
}

// Options configures a Model at Extend time.
type Options struct {
	Primary []string
	AutoInc bool
	Unique  [][]string
	Foreign map[string]Foreign
	Hooks   []MigrationHook
	Format  func(map[string]any) map[string]any
	Parse   func(map[string]any) map[string]any
}

// New validates and constructs a Model. Fields are supplied in declaration
// order; that order becomes the default column order for CREATE TABLE and
// `*`-projection.
func New(name string, fields []field.Descriptor, opts Options) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("model: empty table name")
	}
	m := &Model{
		Name:    name,
		fields:  make(map[string]field.Descriptor, len(fields)),
		order:   make([]string, 0, len(fields)),
		Primary: opts.Primary,
		AutoInc: opts.AutoInc,
		Unique:  opts.Unique,
		Foreign: opts.Foreign,
		Hooks:   opts.Hooks,
		Format:  opts.Format,
		Parse:   opts.Parse,
	}
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("model %s: field with empty name", name)
		}
		if _, dup := m.fields[f.Name]; dup {
			return nil, fmt.Errorf("model %s: duplicate field %q", name, f.Name)
		}
		m.fields[f.Name] = f
		m.order = append(m.order, f.Name)
	}
	if len(m.Primary) == 0 {
		// Default to a single field named "id" of type primary, if declared.
		if f, ok := m.fields["id"]; ok && f.Type == field.TypePrimary {
			m.Primary = []string{"id"}
		}
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) validate() error {
	if m.AutoInc {
		if len(m.Primary) != 1 {
			return fmt.Errorf("model %s: autoInc requires a scalar primary key", m.Name)
		}
		pf, ok := m.fields[m.Primary[0]]
		if !ok {
			return fmt.Errorf("model %s: primary field %q not declared", m.Name, m.Primary[0])
		}
		if pf.Type != field.TypePrimary {
			return fmt.Errorf("model %s: autoInc primary field %q must be of type primary", m.Name, m.Primary[0])
		}
	}
	for _, p := range m.Primary {
		if _, ok := m.fields[p]; !ok {
			return fmt.Errorf("model %s: primary field %q not declared", m.Name, p)
		}
	}
	for _, grp := range m.Unique {
		for _, f := range grp {
			if _, ok := m.fields[f]; !ok {
				return fmt.Errorf("model %s: unique group references undeclared field %q", m.Name, f)
			}
		}
	}
	for f, fk := range m.Foreign {
		if _, ok := m.fields[f]; !ok {
			return fmt.Errorf("model %s: foreign key references undeclared field %q", m.Name, f)
		}
		if fk.ReferencedTable == "" || fk.ReferencedField == "" {
			return fmt.Errorf("model %s: foreign key on %q has empty reference", m.Name, f)
		}
	}
	return nil
}

// Field looks up a field descriptor by name.
func (m *Model) Field(name string) (field.Descriptor, bool) {
	f, ok := m.fields[name]
	return f, ok
}

// Fields returns field descriptors in declaration order.
func (m *Model) Fields() []field.Descriptor {
	out := make([]field.Descriptor, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.fields[n])
	}
	return out
}

// FieldNames returns field names in declaration order.
func (m *Model) FieldNames() []string {
	return slices.Clone(m.order)
}

// HasField reports whether name is a declared field.
func (m *Model) HasField(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// IsScalarPrimary reports whether the model has exactly one primary key field.
func (m *Model) IsScalarPrimary() bool { return len(m.Primary) == 1 }
