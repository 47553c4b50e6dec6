// Package field — see doc.go for the package overview.
package field

import "fmt"

// Type enumerates the semantic field types a Model field may declare.
// Each Type belongs to exactly one Category, which determines cast-plugin
// selection and SQL type mapping per dialect.
type Type uint8

// The semantic field types from spec §3.
const (
	TypePrimary Type = iota
	TypeBoolean
	TypeInteger
	TypeUnsigned
	TypeFloat
	TypeDouble
	TypeDecimal
	TypeChar
	TypeString
	TypeText
	TypeList
	TypeJSON
	TypeDate
	TypeTime
	TypeTimestamp
)

// String returns the lowercase name of the type, used in error messages and
// schema-mismatch diagnostics.
func (t Type) String() string {
	switch t {
	case TypePrimary:
		return "primary"
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "integer"
	case TypeUnsigned:
		return "unsigned"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeDecimal:
		return "decimal"
	case TypeChar:
		return "char"
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeList:
		return "list"
	case TypeJSON:
		return "json"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("field.Type(%d)", uint8(t))
	}
}

// Category groups Types by the shape of cast plugin and SQL mapping they
// share, per spec §2 ("string-like, date-like, numeric, json, list").
type Category uint8

// Categories.
const (
	CategoryNumeric Category = iota
	CategoryStringLike
	CategoryDateLike
	CategoryJSON
	CategoryList
	CategoryBoolean
)

// Category returns the classification of t.
func (t Type) Category() Category {
	switch t {
	case TypeBoolean:
		return CategoryBoolean
	case TypePrimary, TypeInteger, TypeUnsigned, TypeFloat, TypeDouble, TypeDecimal:
		return CategoryNumeric
	case TypeChar, TypeString, TypeText:
		return CategoryStringLike
	case TypeList:
		return CategoryList
	case TypeJSON:
		return CategoryJSON
	case TypeDate, TypeTime, TypeTimestamp:
		return CategoryDateLike
	default:
		return CategoryStringLike
	}
}

// IsNumeric reports whether t is one of the numeric types.
func (t Type) IsNumeric() bool { return t.Category() == CategoryNumeric }

// ForeignAction is a referential-integrity action for a foreign key,
// extracted from the teacher's dropped dialect/sqlschema annotation surface
// down to the two actions this spec's Model.Foreign actually needs.
type ForeignAction string

// Supported foreign-key actions.
const (
	NoAction   ForeignAction = ""
	Cascade    ForeignAction = "CASCADE"
	SetNull    ForeignAction = "SET NULL"
	Restrict   ForeignAction = "RESTRICT"
	SetDefault ForeignAction = "SET DEFAULT"
)

// Descriptor is the immutable, fully-resolved description of one field,
// as produced by a builder's Descriptor() call and stored in a Model.
type Descriptor struct {
	Name string // column name
	Type Type

	Length    int // string-like: max length; char: fixed length
	Precision int // decimal: total digits
	Scale     int // decimal: digits after the decimal point

	Nullable   bool
	Initial    any // the "initial" fallback value, see doc.go
	HasInitial bool

	AutoInc bool // only meaningful for TypePrimary

	LegacyAliases []string
	Deprecated    bool

	OnDelete ForeignAction
	OnUpdate ForeignAction

	Comment string
}

// Builder constructs a Descriptor fluently. The zero value is not usable;
// obtain one via the Type constructor functions below (Primary, Boolean, ...).
type Builder struct {
	d Descriptor
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{d: Descriptor{Name: name, Type: t}}
}

// Primary declares an auto-incrementable scalar primary key field
// (field.Type = TypePrimary). Call AutoIncrement() to make it engine-assigned
// on insert, per spec §3's autoInc invariant (requires a scalar primary).
func Primary(name string) *Builder { return newBuilder(name, TypePrimary) }

// Boolean declares a boolean field.
func Boolean(name string) *Builder { return newBuilder(name, TypeBoolean) }

// Integer declares a signed integer field.
func Integer(name string) *Builder { return newBuilder(name, TypeInteger) }

// Unsigned declares an unsigned integer field.
func Unsigned(name string) *Builder { return newBuilder(name, TypeUnsigned) }

// Float declares a single-precision floating point field.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// Double declares a double-precision floating point field.
func Double(name string) *Builder { return newBuilder(name, TypeDouble) }

// Decimal declares a fixed-point decimal field. Use Precision/Scale to size it.
func Decimal(name string) *Builder { return newBuilder(name, TypeDecimal) }

// Char declares a fixed-length string field. Use Length to size it.
func Char(name string) *Builder { return newBuilder(name, TypeChar) }

// String declares a variable-length string field. Use Length to size it.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text declares an unbounded text field.
func Text(name string) *Builder { return newBuilder(name, TypeText) }

// List declares a comma-joined list-of-strings field (see cast.listPlugin).
func List(name string) *Builder { return newBuilder(name, TypeList) }

// JSON declares an arbitrary-JSON field.
func JSON(name string) *Builder { return newBuilder(name, TypeJSON) }

// Date declares a date-only field.
func Date(name string) *Builder { return newBuilder(name, TypeDate) }

// Time declares a time-of-day field.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// Timestamp declares a date+time field.
func Timestamp(name string) *Builder { return newBuilder(name, TypeTimestamp) }

// Length sets the max (string/char) length descriptor.
func (b *Builder) Length(n int) *Builder { b.d.Length = n; return b }

// Precision sets the decimal total-digit count.
func (b *Builder) Precision(n int) *Builder { b.d.Precision = n; return b }

// Scale sets the decimal post-point digit count.
func (b *Builder) Scale(n int) *Builder { b.d.Scale = n; return b }

// Nullable marks the column as NULL-able.
func (b *Builder) Nullable() *Builder { b.d.Nullable = true; return b }

// Initial sets the fallback value used on load when the stored
// representation is empty (see doc.go).
func (b *Builder) Initial(v any) *Builder {
	b.d.Initial = v
	b.d.HasInitial = true
	return b
}

// AutoIncrement marks a TypePrimary field as engine-assigned on insert.
func (b *Builder) AutoIncrement() *Builder { b.d.AutoInc = true; return b }

// LegacyAlias records one or more historical column names for this field,
// consulted by the schema synchronizer when matching live columns.
func (b *Builder) LegacyAlias(names ...string) *Builder {
	b.d.LegacyAliases = append(b.d.LegacyAliases, names...)
	return b
}

// Deprecated marks the field so the synchronizer will not recreate it if
// dropped by a migration hook (spec §4.5 step 7).
func (b *Builder) Deprecated() *Builder { b.d.Deprecated = true; return b }

// OnDelete sets the referential action for a foreign-key field.
func (b *Builder) OnDelete(a ForeignAction) *Builder { b.d.OnDelete = a; return b }

// OnUpdate sets the referential action for a foreign-key field.
func (b *Builder) OnUpdate(a ForeignAction) *Builder { b.d.OnUpdate = a; return b }

// Comment attaches a human-readable column comment.
func (b *Builder) Comment(s string) *Builder { b.d.Comment = s; return b }

// Descriptor finalizes and returns the field descriptor.
func (b *Builder) Descriptor() Descriptor { return b.d }
