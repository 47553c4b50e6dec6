// Package field describes the semantic field types a Model can declare and
// the descriptor options attached to a field: length/precision/scale, default
// ("initial") values, legacy column-name aliases, and deprecation.
//
// Field names follow database column conventions (snake_case). The package
// has no opinion on Go-side struct representation beyond the category a Type
// falls into (string-like, date-like, numeric, json, list) — that category
// drives which cast plugin the Caster selects (see package cast).
//
// # Field Types
//
//	field.Primary("id").AutoIncrement()
//	field.Boolean("is_active")
//	field.Integer("count")
//	field.Unsigned("views")
//	field.Float("ratio")
//	field.Double("amount")
//	field.Decimal("price").Precision(10).Scale(2)
//	field.Char("code").Length(8)
//	field.String("name").Length(255)
//	field.Text("body")
//	field.List("tags")
//	field.JSON("metadata")
//	field.Date("birthday")
//	field.Time("alarm")
//	field.Timestamp("created_at")
//
// # Descriptor options
//
//	field.String("email").
//	    Nullable().
//	    Initial("unknown").
//	    LegacyAlias("caption", "old_email").
//	    Comment("contact e-mail")
//
// # Nullability and initial values
//
// A field declared Nullable() with no Initial() value loads a stored NULL as
// the zero value of its category for boolean (false), string-like (""),
// list (empty list) and date-like (zero time.Time) fields; json fields load
// it as nil. A field with an Initial() value uses it as the fallback on load
// whenever the Caster's plugin for that type reports the stored
// representation is "empty" (e.g. an empty string for a json/list column),
// not only on SQL NULL. Numeric types have no plugin: their stored value,
// NULL included, loads as is and Initial() is not applied on load.
//
// # Legacy aliases
//
// LegacyAlias records older column names this field used to have. The
// schema synchronizer (package dialect/sql/schema) matches a live column
// against a field by name OR by any declared legacy alias, and renames
// rather than drops+recreates when only the name changed.
package field
