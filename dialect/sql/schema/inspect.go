package schema

import (
	"context"
	"database/sql"
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/sqlite"

	"github.com/mesa-orm/mesa/dialect"
)

// Inspector produces the live Table for name, or nil if the table does not
// exist, per spec §4.5's "no live columns" case.
type Inspector interface {
	InspectTable(ctx context.Context, name string) (*Table, error)
}

// AtlasInspector implements Inspector on top of ariga.io/atlas's per-dialect
// schema drivers — the one piece of schema introspection this spec
// deliberately leaves to an existing library rather than hand-rolling
// PRAGMA/information_schema parsing twice.
type AtlasInspector struct {
	driver atlasDriver
}

// atlasDriver is the subset of atlas's migrate.Driver this package needs.
type atlasDriver interface {
	InspectSchema(ctx context.Context, name string, opts *atlasschema.InspectOptions) (*atlasschema.Schema, error)
}

// NewAtlasInspector opens an atlas schema driver against db for dialectName
// (dialect.MySQL or dialect.SQLite).
func NewAtlasInspector(dialectName string, db *sql.DB) (*AtlasInspector, error) {
	var (
		drv atlasDriver
		err error
	)
	switch dialectName {
	case dialect.MySQL:
		drv, err = mysql.Open(db)
	case dialect.SQLite:
		drv, err = sqlite.Open(db)
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", dialectName)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: open atlas driver: %w", err)
	}
	return &AtlasInspector{driver: drv}, nil
}

// InspectTable implements Inspector.
func (a *AtlasInspector) InspectTable(ctx context.Context, name string) (*Table, error) {
	sc, err := a.driver.InspectSchema(ctx, "", &atlasschema.InspectOptions{Tables: []string{name}})
	if err != nil {
		return nil, fmt.Errorf("schema: inspect %s: %w", name, err)
	}
	t, ok := sc.Table(name)
	if !ok {
		return nil, nil
	}
	return convertAtlasTable(t), nil
}

// convertAtlasTable flattens an atlas *schema.Table into this package's
// Table, discarding the richer atlas type-system detail (ColumnType
// variants, attrs) that this spec's Diff doesn't need — it compares
// dialect-native type strings, not atlas's typed AST.
func convertAtlasTable(t *atlasschema.Table) *Table {
	out := &Table{Name: t.Name}
	colByName := make(map[string]*Column, len(t.Columns))
	for _, c := range t.Columns {
		col := &Column{
			Name:     c.Name,
			Type:     atlasschema.TypeName(c.Type.Type),
			Nullable: c.Type.Null,
			Default:  c.Default,
		}
		out.Columns = append(out.Columns, col)
		colByName[c.Name] = col
	}
	if t.PrimaryKey != nil {
		for _, p := range t.PrimaryKey.Parts {
			if p.C != nil {
				out.PrimaryKey = append(out.PrimaryKey, colByName[p.C.Name])
			}
		}
	}
	for _, idx := range t.Indexes {
		ix := &Index{Name: idx.Name, Unique: idx.Unique}
		for _, p := range idx.Parts {
			if p.C != nil {
				ix.Columns = append(ix.Columns, colByName[p.C.Name])
			}
		}
		out.Indexes = append(out.Indexes, ix)
	}
	for _, fk := range t.ForeignKeys {
		f := &ForeignKey{Name: fk.Symbol, RefTable: &Table{Name: fk.RefTable.Name}}
		for _, c := range fk.Columns {
			f.Columns = append(f.Columns, colByName[c.Name])
		}
		for _, c := range fk.RefColumns {
			f.RefColumn = append(f.RefColumn, &Column{Name: c.Name})
		}
		f.OnDelete = string(fk.OnDelete)
		f.OnUpdate = string(fk.OnUpdate)
		out.ForeignKeys = append(out.ForeignKeys, f)
	}
	return out
}
