// Package cast implements the Caster of spec §4.2: a per-field-type
// registry of cast plugins bridging in-memory semantic values (booleans,
// lists, JSON blobs, dates) and the scalar storage representation a
// dialect's columns actually hold.
//
// A Caster is built once per driver (via New, which registers the default
// plugins for that driver's dialect) and is shared read-only thereafter.
// Dump converts a model-shaped object into a storage row; Load converts a
// storage row back into model values, applying each field's declared
// Initial value when the stored representation is empty. For every
// registered field type, Load(Dump(x)) must reproduce x up to model-level
// normalization — this is the round-trip invariant spec §4.2 and §8 require.
package cast
