package diff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/diff"
	"github.com/bwalkerl/moodle-schemasync/internal/testdb"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

func strPtr(s string) *string { return &s }

func TestRunMissingTable(t *testing.T) {
	db := testdb.New()
	declared := &schema.Structure{StructTables: []schema.Table{{Name: "course"}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	errs := result.Errors("course")
	require.Len(t, errs, 1)
	assert.Equal(t, diff.MissingTables, errs[0].Type)
	assert.Equal(t, diff.Safe, errs[0].Safety)
}

func TestRunMissingColumnUnfixableOnNonEmptyTable(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	db.Rows["course"] = []map[string]any{{"id": 1}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "newcol", NotNull: true}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	errs := result.Errors("course")
	require.Len(t, errs, 1)
	assert.Equal(t, diff.Unfixable, errs[0].Safety)
}

func TestRunMissingColumnSafeOnEmptyTable(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "newcol", NotNull: true}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	errs := result.Errors("course")
	require.Len(t, errs, 1)
	assert.Equal(t, diff.Safe, errs[0].Safety)
}

func TestRunExtraIndexOnExemptTableIsSkipped(t *testing.T) {
	db := testdb.New()
	db.AddTable("search_simpledb_index", nil, map[string]adapter.IndexInfo{
		"undeclared_ix": {Columns: []string{"docid"}},
	})

	declared := &schema.Structure{StructTables: []schema.Table{{Name: "search_simpledb_index"}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, result.Errors("search_simpledb_index"))
}

func TestRunExtraIndexOnOrdinaryTableIsReported(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, map[string]adapter.IndexInfo{
		"undeclared_ix": {Columns: []string{"shortname"}},
	})

	declared := &schema.Structure{StructTables: []schema.Table{{Name: "course"}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	errs := result.Errors("course")
	require.Len(t, errs, 1)
	assert.Equal(t, diff.ExtraIndexes, errs[0].Type)
	assert.Equal(t, diff.DBIndex, errs[0].Safety)
}

func TestRunChangedColumnCharLengthNarrowingIsRisky(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "shortname", MetaType: schema.MetaChar, MaxLength: 255},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "shortname", Type: schema.TypeChar, Length: 100}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	var found bool
	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueLength {
			found = true
			assert.Equal(t, diff.Risky, e.Safety, "narrowing a CHAR column must be risky, not safe")
		}
	}
	assert.True(t, found, "expected a length mismatch record")
}

func TestRunChangedColumnCharLengthWideningIsSafe(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "shortname", MetaType: schema.MetaChar, MaxLength: 100},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "shortname", Type: schema.TypeChar, Length: 255}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueLength {
			assert.Equal(t, diff.Safe, e.Safety)
		}
	}
}

func TestRunChangedColumnTighteningNotNullIsRisky(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "summary", MetaType: schema.MetaText, NotNull: false},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "summary", Type: schema.TypeText, NotNull: true}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	var found bool
	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueNull {
			found = true
			assert.Equal(t, diff.Risky, e.Safety)
		}
	}
	assert.True(t, found)
}

func TestRunChangedColumnRelaxingNotNullIsSafe(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "summary", MetaType: schema.MetaText, NotNull: true},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "summary", Type: schema.TypeText, NotNull: false}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueNull {
			assert.Equal(t, diff.Safe, e.Safety)
		}
	}
}

func TestRunNoDiscrepanciesIsEmpty(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "id", MetaType: schema.MetaInteger, NotNull: true, MaxLength: 10},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "id", Type: schema.TypeInteger, NotNull: true, Length: 10}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, result.IsEmpty())
}

func TestDefaultMismatchDistinguishesNilFromLiteralNullString(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "flag", MetaType: schema.MetaChar, MaxLength: 10, HasDefault: true, DefaultValue: strPtr("NULL")},
	}, nil)

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "flag", Type: schema.TypeChar, Length: 10, Default: nil}},
	}}}

	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)

	var found bool
	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueDefault {
			found = true
		}
	}
	assert.True(t, found, "a live literal 'NULL' string default must still differ from no declared default")
}
