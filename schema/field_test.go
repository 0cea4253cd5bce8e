package schema

import "testing"

func TestFieldNormalizedType(t *testing.T) {
	f := Field{Type: TypeFloat}
	if got := f.NormalizedType(); got != TypeNumber {
		t.Errorf("NormalizedType() = %v, want %v", got, TypeNumber)
	}

	f = Field{Type: TypeChar}
	if got := f.NormalizedType(); got != TypeChar {
		t.Errorf("NormalizedType() = %v, want %v", got, TypeChar)
	}
}

func TestFieldNormalizedLength(t *testing.T) {
	f := Field{Type: TypeInteger, Length: 20}
	if got := f.NormalizedLength(); got != maxIntegerLength {
		t.Errorf("NormalizedLength() = %d, want %d", got, maxIntegerLength)
	}

	f = Field{Type: TypeInteger, Length: 10}
	if got := f.NormalizedLength(); got != 10 {
		t.Errorf("NormalizedLength() = %d, want 10", got)
	}

	f = Field{Type: TypeChar, Length: 255}
	if got := f.NormalizedLength(); got != 255 {
		t.Errorf("NormalizedLength() = %d, want 255 (non-integer unaffected)", got)
	}
}

func TestFieldHasEffectiveDefault(t *testing.T) {
	f := Field{}
	if f.HasEffectiveDefault() {
		t.Error("expected no effective default on zero value")
	}
	v := "0"
	f.Default = &v
	if !f.HasEffectiveDefault() {
		t.Error("expected effective default once Default is set")
	}
}

func TestFieldIsTextual(t *testing.T) {
	for _, typ := range []FieldType{TypeChar, TypeText, TypeBinary} {
		if !(Field{Type: typ}).IsTextual() {
			t.Errorf("%v should be textual", typ)
		}
	}
	for _, typ := range []FieldType{TypeInteger, TypeNumber, TypeTimestamp, TypeDatetime} {
		if (Field{Type: typ}).IsTextual() {
			t.Errorf("%v should not be textual", typ)
		}
	}
}
