package schema

import "testing"

func sampleStructure() *Structure {
	return &Structure{
		Version: "1",
		StructTables: []Table{
			{Name: "user"},
			{Name: "user_session"},
			{Name: "post"},
		},
	}
}

func TestStructureTableLookup(t *testing.T) {
	s := sampleStructure()
	if _, ok := s.Table("post"); !ok {
		t.Error("expected to find table 'post'")
	}
	if _, ok := s.Table("missing"); ok {
		t.Error("did not expect to find table 'missing'")
	}
}

func TestStructureFilteredViewLimit(t *testing.T) {
	s := sampleStructure()
	out := s.FilteredView([]string{"user", "post"}, nil)
	if len(out.Tables()) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(out.Tables()))
	}
}

func TestStructureFilteredViewExclude(t *testing.T) {
	s := sampleStructure()
	out := s.FilteredView(nil, []string{"post"})
	if len(out.Tables()) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(out.Tables()))
	}
	if _, ok := out.Table("post"); ok {
		t.Error("'post' should have been excluded")
	}
}

func TestStructureFilteredViewLimitAndExclude(t *testing.T) {
	s := sampleStructure()
	out := s.FilteredView([]string{"user", "user_session", "post"}, []string{"post"})
	if len(out.Tables()) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(out.Tables()))
	}
}

func TestIsLiteralName(t *testing.T) {
	if !IsLiteralName("config_plugins") {
		t.Error("expected a plain identifier to be literal")
	}
	if IsLiteralName("config*") {
		t.Error("did not expect a glob to be literal")
	}
}

func TestExpectedTypeChar(t *testing.T) {
	c, ok := ExpectedTypeChar(TypeInteger)
	if !ok || c != 'I' {
		t.Errorf("ExpectedTypeChar(TypeInteger) = (%q, %v), want ('I', true)", c, ok)
	}
	if _, ok := ExpectedTypeChar(TypeFloat); ok {
		t.Error("TypeFloat has no reverse mapping and should report false")
	}
}
