package schema

// Table, Column, Index, and ForeignKey are this package's own live/declared
// schema representation — independent of (but structurally similar to)
// ariga.io/atlas's sql/schema types; atlas's own migration planner is not
// used. Diff and Apply (migrate.go) operate on these types; AtlasInspector (inspect.go)
// is what actually produces a *Table for a live connection by converting an
// atlas-introspected schema into this shape.
type Table struct {
	Name        string
	Columns     []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
	PrimaryKey  []*Column
}

// Column returns the column named name, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Column is one column of a Table.
type Column struct {
	Name     string
	Type     string // dialect-native type string, e.g. "int unsigned", "TEXT"
	Nullable bool
	Default  any
	Size     int  // string-like length, where applicable
	Unique   bool // single-column UNIQUE, distinct from a multi-column Index

	// Aliases lists prior names this declared column has been known by
	// (field.Descriptor.LegacyAliases), used to match a renamed live column
	// during Diff (spec §4.5 step 3). Empty on live-side columns.
	Aliases []string
}

// Index is a non-foreign-key index (PRIMARY KEY composites are tracked via
// Table.PrimaryKey, not here).
type Index struct {
	Name    string
	Columns []*Column
	Unique  bool
}

// ForeignKey is a single-column-or-composite FK constraint.
type ForeignKey struct {
	Name      string
	Columns   []*Column
	RefTable  *Table
	RefColumn []*Column
	OnDelete  string
	OnUpdate  string
}
