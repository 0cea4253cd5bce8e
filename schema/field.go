// Package schema holds the declarative, in-memory representation of a
// database schema: tables, fields, keys and indexes. It has no knowledge of
// any live database or SQL dialect; it is the "declared" side of the
// alignment engine.
package schema

// FieldType enumerates the column datatype families the engine reasons
// about. FLOAT is accepted on input but is always normalized to NUMBER by
// Field.NormalizedType.
type FieldType string

const (
	TypeInteger   FieldType = "INTEGER"
	TypeNumber    FieldType = "NUMBER"
	TypeFloat     FieldType = "FLOAT"
	TypeChar      FieldType = "CHAR"
	TypeText      FieldType = "TEXT"
	TypeBinary    FieldType = "BINARY"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeDatetime  FieldType = "DATETIME"
)

// maxIntegerLength is the comparison ceiling for INTEGER.Length (spec §3).
const maxIntegerLength = 18

// Field describes one declared column.
type Field struct {
	Name     string
	Type     FieldType
	Length   int
	Decimals int
	NotNull  bool
	Default  *string
	Sequence bool
}

// NormalizedType returns Type with FLOAT folded into NUMBER, as required by
// every comparison and alignment decision in the engine.
func (f Field) NormalizedType() FieldType {
	if f.Type == TypeFloat {
		return TypeNumber
	}
	return f.Type
}

// NormalizedLength returns Length, clamping INTEGER declarations to the
// 18-digit ceiling the engine uses for comparison.
func (f Field) NormalizedLength() int {
	if f.Type == TypeInteger && f.Length > maxIntegerLength {
		return maxIntegerLength
	}
	return f.Length
}

// HasEffectiveDefault reports whether the field carries a usable default
// value for the purpose of adding a NOT NULL column to a non-empty table.
func (f Field) HasEffectiveDefault() bool {
	return f.Default != nil
}

// IsTextual reports whether Decimals is meaningless for this field's type.
func (f Field) IsTextual() bool {
	switch f.Type {
	case TypeChar, TypeText, TypeBinary:
		return true
	default:
		return false
	}
}
