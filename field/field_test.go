package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesa-orm/mesa/field"
)

func TestPrimaryAutoIncrement(t *testing.T) {
	d := field.Primary("id").AutoIncrement().Descriptor()
	assert.Equal(t, "id", d.Name)
	assert.Equal(t, field.TypePrimary, d.Type)
	assert.True(t, d.AutoInc)
}

func TestStringDescriptor(t *testing.T) {
	d := field.String("email").
		Length(255).
		Nullable().
		Initial("unknown").
		LegacyAlias("caption", "old_email").
		Comment("contact e-mail").
		Descriptor()

	assert.Equal(t, "email", d.Name)
	assert.Equal(t, field.TypeString, d.Type)
	assert.Equal(t, 255, d.Length)
	assert.True(t, d.Nullable)
	assert.True(t, d.HasInitial)
	assert.Equal(t, "unknown", d.Initial)
	assert.Equal(t, []string{"caption", "old_email"}, d.LegacyAliases)
	assert.Equal(t, "contact e-mail", d.Comment)
}

func TestDecimalDescriptor(t *testing.T) {
	d := field.Decimal("price").Precision(10).Scale(2).Descriptor()
	assert.Equal(t, 10, d.Precision)
	assert.Equal(t, 2, d.Scale)
}

func TestDeprecated(t *testing.T) {
	d := field.Text("old_body").Deprecated().Descriptor()
	assert.True(t, d.Deprecated)
}

func TestForeignActions(t *testing.T) {
	d := field.Unsigned("user_id").OnDelete(field.Cascade).OnUpdate(field.Restrict).Descriptor()
	assert.Equal(t, field.Cascade, d.OnDelete)
	assert.Equal(t, field.Restrict, d.OnUpdate)
}

func TestTypeString(t *testing.T) {
	tests := map[field.Type]string{
		field.TypePrimary:   "primary",
		field.TypeBoolean:   "boolean",
		field.TypeInteger:   "integer",
		field.TypeUnsigned:  "unsigned",
		field.TypeFloat:     "float",
		field.TypeDouble:    "double",
		field.TypeDecimal:   "decimal",
		field.TypeChar:      "char",
		field.TypeString:    "string",
		field.TypeText:      "text",
		field.TypeList:      "list",
		field.TypeJSON:      "json",
		field.TypeDate:      "date",
		field.TypeTime:      "time",
		field.TypeTimestamp: "timestamp",
	}
	for typ, want := range tests {
		assert.Equal(t, want, typ.String())
	}
}

func TestCategory(t *testing.T) {
	assert.Equal(t, field.CategoryBoolean, field.TypeBoolean.Category())
	assert.Equal(t, field.CategoryNumeric, field.TypeInteger.Category())
	assert.Equal(t, field.CategoryNumeric, field.TypePrimary.Category())
	assert.True(t, field.TypeInteger.IsNumeric())
	assert.Equal(t, field.CategoryStringLike, field.TypeString.Category())
	assert.Equal(t, field.CategoryStringLike, field.TypeChar.Category())
	assert.Equal(t, field.CategoryList, field.TypeList.Category())
	assert.Equal(t, field.CategoryJSON, field.TypeJSON.Category())
	assert.Equal(t, field.CategoryDateLike, field.TypeDate.Category())
	assert.Equal(t, field.CategoryDateLike, field.TypeTime.Category())
	assert.Equal(t, field.CategoryDateLike, field.TypeTimestamp.Category())
}
