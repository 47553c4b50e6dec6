// Package schema implements the Schema Synchronizer of spec §4.5: building
// a declared Table from a Model, diffing it against a live Table, and
// emitting the CREATE/ALTER/temp-table-rename DDL needed to bring the live
// table into shape.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesa-orm/mesa/dialect"
	"github.com/mesa-orm/mesa/field"
	"github.com/mesa-orm/mesa/model"
)

// Declare builds the declared Table for m: column definitions for every
// non-deprecated field, the composite primary key (when not single-column
// auto-increment), UNIQUE groups, and FOREIGN KEY clauses, per spec §4.5
// step 1-2.
func Declare(dialectName string, m *model.Model) *Table {
	t := &Table{Name: m.Name}
	for _, fd := range m.Fields() {
		if fd.Deprecated {
			continue
		}
		t.Columns = append(t.Columns, &Column{
			Name:     fd.Name,
			Type:     typeDef(dialectName, fd),
			Nullable: fd.Nullable,
			Default:  fd.Initial,
			Size:     fd.Length,
			Aliases:  fd.LegacyAliases,
		})
	}
	for _, p := range m.Primary {
		if c := t.Column(p); c != nil {
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
	}
	for i, group := range m.Unique {
		idx := &Index{Name: fmt.Sprintf("%s_uniq_%d", m.Name, i), Unique: true}
		for _, f := range group {
			if c := t.Column(f); c != nil {
				idx.Columns = append(idx.Columns, c)
			}
		}
		t.Indexes = append(t.Indexes, idx)
	}
	for f, fk := range m.Foreign {
		c := t.Column(f)
		if c == nil {
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Name:     fmt.Sprintf("%s_%s_fk", m.Name, f),
			Columns:  []*Column{c},
			RefTable: &Table{Name: fk.ReferencedTable},
			RefColumn: []*Column{{Name: fk.ReferencedField}},
			OnDelete: string(fieldDescFor(m, f).OnDelete),
			OnUpdate: string(fieldDescFor(m, f).OnUpdate),
		})
	}
	return t
}

func fieldDescFor(m *model.Model, name string) field.Descriptor {
	fd, _ := m.Field(name)
	return fd
}

// typeDef maps a field.Descriptor to its dialect-native column type, per
// spec §4.5 step 1's type table. The primary type maps to INTEGER (SQLite)
// or int unsigned (MySQL) when auto-incrementing.
func typeDef(dialectName string, fd field.Descriptor) string {
	mysql := dialectName == dialect.MySQL
	switch fd.Type {
	case field.TypePrimary:
		if mysql {
			if fd.AutoInc {
				return "int unsigned AUTO_INCREMENT"
			}
			return "bigint unsigned"
		}
		if fd.AutoInc {
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		}
		return "INTEGER"
	case field.TypeBoolean:
		if mysql {
			return "tinyint(1)"
		}
		return "INTEGER"
	case field.TypeInteger:
		if mysql {
			return "int"
		}
		return "INTEGER"
	case field.TypeUnsigned:
		if mysql {
			return "int unsigned"
		}
		return "INTEGER"
	case field.TypeFloat:
		if mysql {
			return "float"
		}
		return "REAL"
	case field.TypeDouble:
		if mysql {
			return "double"
		}
		return "REAL"
	case field.TypeDecimal:
		if mysql {
			return fmt.Sprintf("decimal(%d,%d)", orDefault(fd.Precision, 10), fd.Scale)
		}
		return "NUMERIC"
	case field.TypeChar:
		if mysql {
			return fmt.Sprintf("char(%d)", orDefault(fd.Length, 1))
		}
		return "TEXT"
	case field.TypeString:
		if mysql {
			return fmt.Sprintf("varchar(%d)", orDefault(fd.Length, 255))
		}
		return "TEXT"
	case field.TypeText, field.TypeList:
		if mysql {
			return "text"
		}
		return "TEXT"
	case field.TypeJSON:
		if mysql {
			return "json"
		}
		return "TEXT"
	case field.TypeDate, field.TypeTime, field.TypeTimestamp:
		if mysql {
			return "datetime"
		}
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// columnDDL renders one column definition, including PRIMARY KEY
// AUTOINCREMENT for SQLite (already embedded in typeDef's return for that
// case) and a DEFAULT clause for declared initial values.
func columnDDL(dialectName string, c *Column) string {
	var sb strings.Builder
	sb.WriteString(escapeID(c.Name))
	sb.WriteString(" ")
	sb.WriteString(c.Type)
	if !c.Nullable && !strings.Contains(c.Type, "PRIMARY KEY") {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT ")
		sb.WriteString(literalDefault(dialectName, c.Default))
	}
	return sb.String()
}

func literalDefault(dialectName string, v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func escapeID(name string) string { return "`" + strings.ReplaceAll(name, "`", "``") + "`" }

// Mapping records which live column a declared column was matched against,
// per spec §4.5 step 3: a match by name or legacy alias.
type Mapping struct {
	LiveName     string
	DeclaredName string
}

// Plan is the diff result the Synchronizer computed for one table.
type Plan struct {
	// Create is non-nil when the table does not exist yet.
	Create *Table
	// Additive lists columns to ADD on an existing table with no renames.
	Additive []*Column
	// Rename is non-nil when a legacy-alias rename or type change requires
	// rebuilding the table through a temp table.
	Rename *RenamePlan

	table string // declared table name, set by Diff for the Additive path
}

// RenamePlan is the SQLite-style rebuild-through-temp-table migration, per
// spec §4.5 step 5.
type RenamePlan struct {
	Declared  *Table
	Mappings  []Mapping // live column name -> declared column name, for the INSERT...SELECT
	Unmapped  []*Column // live columns kept verbatim (no declared counterpart), unless in dropKeys
	DropKeys  []string
}

// Diff compares live (nil if the table does not exist) against declared and
// produces the migration Plan, per spec §4.5 steps 3-6. dropKeys lists
// column names a migration hook has already approved dropping (step 7);
// they are excluded from RenamePlan.Unmapped.
func Diff(live, declared *Table, dropKeys []string) *Plan {
	if live == nil {
		return &Plan{Create: declared}
	}
	drop := make(map[string]bool, len(dropKeys))
	for _, k := range dropKeys {
		drop[k] = true
	}

	var mappings []Mapping
	var toAdd []*Column
	renameNeeded := false
	matchedLive := make(map[string]bool)

	for _, dc := range declared.Columns {
		lc := matchLiveColumn(live, dc)
		if lc == nil {
			toAdd = append(toAdd, dc)
			continue
		}
		matchedLive[lc.Name] = true
		mappings = append(mappings, Mapping{LiveName: lc.Name, DeclaredName: dc.Name})
		if lc.Name != dc.Name || !sameType(lc.Type, dc.Type) {
			renameNeeded = true
		}
	}

	if !renameNeeded {
		return &Plan{Additive: toAdd, table: declared.Name}
	}

	var unmapped []*Column
	for _, lc := range live.Columns {
		if matchedLive[lc.Name] || drop[lc.Name] {
			continue
		}
		unmapped = append(unmapped, lc)
	}
	return &Plan{Rename: &RenamePlan{
		Declared: declared,
		Mappings: mappings,
		Unmapped: unmapped,
		DropKeys: dropKeys,
	}}
}

// matchLiveColumn implements spec §4.5 step 3: a declared field matches a
// live column whose name equals the declared name or any of the field's
// declared legacy aliases.
func matchLiveColumn(live *Table, dc *Column) *Column {
	if c := live.Column(dc.Name); c != nil {
		return c
	}
	for _, alias := range dc.Aliases {
		if c := live.Column(alias); c != nil {
			return c
		}
	}
	return nil
}

// sameType compares base type names only (the text before any space or
// parenthesis), so a live "integer" matches a declared "INTEGER PRIMARY KEY
// AUTOINCREMENT"; a change of size or modifiers alone is not a type change.
func sameType(liveType, declaredType string) bool {
	base := func(t string) string {
		t = strings.TrimSpace(t)
		if i := strings.IndexAny(t, " ("); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return strings.EqualFold(base(liveType), base(declaredType))
}

// Synchronizer applies Plans as DDL against a dialect.ExecQuerier.
type Synchronizer struct {
	Dialect string
}

// NewSynchronizer returns a Synchronizer for dialectName.
func NewSynchronizer(dialectName string) *Synchronizer {
	return &Synchronizer{Dialect: dialectName}
}

// Apply executes the DDL for plan against conn and returns the statements it
// ran, in order (callers may log them; tests assert against them directly).
// Apply is idempotent: a Plan with nothing to do (Additive == nil, Create ==
// nil, Rename == nil) executes no statements, satisfying spec §4.5's
// "prepare is idempotent" invariant.
func (s *Synchronizer) Apply(ctx context.Context, conn dialect.ExecQuerier, plan *Plan) ([]string, error) {
	switch {
	case plan.Create != nil:
		return s.applyCreate(ctx, conn, plan.Create)
	case plan.Rename != nil:
		return s.applyRename(ctx, conn, plan.Rename)
	case len(plan.Additive) > 0:
		return s.applyAdditive(ctx, conn, plan.Additive, plan.tableNameHint())
	default:
		return nil, nil
	}
}

// tableNameHint lets Apply name the table being altered even when only
// Additive is populated (Diff does not carry the table name on that path).
func (p *Plan) tableNameHint() string {
	if p.Create != nil {
		return p.Create.Name
	}
	if p.Rename != nil {
		return p.Rename.Declared.Name
	}
	return p.table
}

func (s *Synchronizer) applyCreate(ctx context.Context, conn dialect.ExecQuerier, t *Table) ([]string, error) {
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, columnDDL(s.Dialect, c))
	}
	if len(t.PrimaryKey) > 1 {
		names := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			names[i] = escapeID(c.Name)
		}
		cols = append(cols, "PRIMARY KEY ("+strings.Join(names, ", ")+")")
	}
	for _, idx := range t.Indexes {
		if !idx.Unique {
			continue
		}
		names := make([]string, len(idx.Columns))
		for i, c := range idx.Columns {
			names[i] = escapeID(c.Name)
		}
		cols = append(cols, "UNIQUE ("+strings.Join(names, ", ")+")")
	}
	for _, fk := range t.ForeignKeys {
		colNames := make([]string, len(fk.Columns))
		for i, c := range fk.Columns {
			colNames[i] = escapeID(c.Name)
		}
		refNames := make([]string, len(fk.RefColumn))
		for i, c := range fk.RefColumn {
			refNames[i] = escapeID(c.Name)
		}
		clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)",
			strings.Join(colNames, ", "), escapeID(fk.RefTable.Name), strings.Join(refNames, ", "))
		if fk.OnDelete != "" {
			clause += " ON DELETE " + fk.OnDelete
		}
		if fk.OnUpdate != "" {
			clause += " ON UPDATE " + fk.OnUpdate
		}
		cols = append(cols, clause)
	}
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", escapeID(t.Name), strings.Join(cols, ", "))
	if err := conn.Exec(ctx, ddl, []any{}, nil); err != nil {
		return nil, fmt.Errorf("schema: create table %s: %w", t.Name, err)
	}
	return []string{ddl}, nil
}

func (s *Synchronizer) applyAdditive(ctx context.Context, conn dialect.ExecQuerier, cols []*Column, table string) ([]string, error) {
	var stmts []string
	for _, c := range cols {
		ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", escapeID(table), columnDDL(s.Dialect, c))
		if err := conn.Exec(ctx, ddl, []any{}, nil); err != nil {
			return stmts, fmt.Errorf("schema: add column %s.%s: %w", table, c.Name, err)
		}
		stmts = append(stmts, ddl)
	}
	return stmts, nil
}

// applyRename implements spec §4.5 step 5: create T_temp with the declared
// columns plus any unmapped live columns, copy data across via the recorded
// mappings, drop T, and rename T_temp to T. If the INSERT fails, T_temp is
// dropped and the error is returned.
func (s *Synchronizer) applyRename(ctx context.Context, conn dialect.ExecQuerier, rp *RenamePlan) ([]string, error) {
	table := rp.Declared.Name
	tempName := table + "_temp"
	var stmts []string

	tempCols := make([]string, 0, len(rp.Declared.Columns)+len(rp.Unmapped))
	for _, c := range rp.Declared.Columns {
		tempCols = append(tempCols, columnDDL(s.Dialect, c))
	}
	for _, c := range rp.Unmapped {
		tempCols = append(tempCols, columnDDL(s.Dialect, c))
	}
	createTemp := fmt.Sprintf("CREATE TABLE %s (%s)", escapeID(tempName), strings.Join(tempCols, ", "))
	if err := conn.Exec(ctx, createTemp, []any{}, nil); err != nil {
		return nil, fmt.Errorf("schema: create temp table %s: %w", tempName, err)
	}
	stmts = append(stmts, createTemp)

	destCols := make([]string, 0, len(rp.Mappings)+len(rp.Unmapped))
	srcCols := make([]string, 0, len(rp.Mappings)+len(rp.Unmapped))
	for _, m := range rp.Mappings {
		destCols = append(destCols, escapeID(m.DeclaredName))
		srcCols = append(srcCols, escapeID(m.LiveName))
	}
	for _, c := range rp.Unmapped {
		destCols = append(destCols, escapeID(c.Name))
		srcCols = append(srcCols, escapeID(c.Name))
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		escapeID(tempName), strings.Join(destCols, ", "), strings.Join(srcCols, ", "), escapeID(table))
	if err := conn.Exec(ctx, insert, []any{}, nil); err != nil {
		dropTemp := fmt.Sprintf("DROP TABLE %s", escapeID(tempName))
		_ = conn.Exec(ctx, dropTemp, []any{}, nil)
		return stmts, fmt.Errorf("schema: migrate %s: copy failed, rolled back: %w", table, err)
	}
	stmts = append(stmts, insert)

	dropOld := fmt.Sprintf("DROP TABLE %s", escapeID(table))
	if err := conn.Exec(ctx, dropOld, []any{}, nil); err != nil {
		return stmts, fmt.Errorf("schema: drop old table %s: %w", table, err)
	}
	stmts = append(stmts, dropOld)

	renameTemp := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", escapeID(tempName), escapeID(table))
	if err := conn.Exec(ctx, renameTemp, []any{}, nil); err != nil {
		return stmts, fmt.Errorf("schema: rename temp table %s: %w", tempName, err)
	}
	stmts = append(stmts, renameTemp)

	return stmts, nil
}
