package risk_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/diff"
	"github.com/bwalkerl/moodle-schemasync/internal/testdb"
	"github.com/bwalkerl/moodle-schemasync/risk"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

// newRiskyResult builds a Result carrying a single risky changedcolumns
// record, by running the diff engine against a scenario crafted to produce
// one, since diff.Result has no exported constructor outside the package.
func newRiskyResult(t *testing.T, db *testdb.Fake, declared *schema.Structure) *diff.Result {
	t.Helper()
	result, err := diff.Run(context.Background(), db, &testdb.FakeGenerator{}, declared, diff.DefaultOptions())
	require.NoError(t, err)
	return result
}

func TestEvaluateNullProbeEscalatesToUnsafe(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "shortname", MetaType: schema.MetaChar, MaxLength: 100, NotNull: false},
	}, nil)
	db.Rows["course"] = []map[string]any{{"shortname": nil}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "shortname", Type: schema.TypeChar, Length: 100, NotNull: true}},
	}}}

	result := newRiskyResult(t, db, declared)
	require.NoError(t, risk.Evaluate(context.Background(), db, declared, result))

	var found bool
	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueNull {
			found = true
			assert.Equal(t, diff.Unsafe, e.Safety)
			assert.True(t, e.HasFix(diff.FixNullDefault))
		}
	}
	assert.True(t, found)
}

func TestEvaluateNullProbeStaysSafeWhenNoLiveNulls(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "shortname", MetaType: schema.MetaChar, MaxLength: 100, NotNull: false},
	}, nil)
	db.Rows["course"] = []map[string]any{{"shortname": "intro"}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "shortname", Type: schema.TypeChar, Length: 100, NotNull: true}},
	}}}

	result := newRiskyResult(t, db, declared)
	require.NoError(t, risk.Evaluate(context.Background(), db, declared, result))

	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueNull {
			assert.NotEqual(t, diff.Unsafe, e.Safety)
		}
	}
}

func TestEvaluateIntegerTypeProbeUnfixableOnNonNumericData(t *testing.T) {
	db := testdb.New()
	db.AddTable("grade_item", []schema.LiveColumn{
		{Name: "gradetype", MetaType: schema.MetaChar, MaxLength: 10},
	}, nil)
	db.Rows["grade_item"] = []map[string]any{{"gradetype": "value"}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "grade_item",
		TableFields: []schema.Field{{Name: "gradetype", Type: schema.TypeInteger, Length: 10}},
	}}}

	result := newRiskyResult(t, db, declared)
	require.NoError(t, risk.Evaluate(context.Background(), db, declared, result))

	var found bool
	for _, e := range result.Errors("grade_item") {
		if e.Issue == diff.IssueType {
			found = true
			assert.Equal(t, diff.Unfixable, e.Safety)
		}
	}
	assert.True(t, found)
}

func TestEvaluateCharTruncationRecordsFix(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{
		{Name: "shortname", MetaType: schema.MetaChar, MaxLength: 255},
	}, nil)
	db.Rows["course"] = []map[string]any{{"shortname": "this-value-is-long-enough-to-overflow-a-short-column"}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "course",
		TableFields: []schema.Field{{Name: "shortname", Type: schema.TypeChar, Length: 10}},
	}}}

	result := newRiskyResult(t, db, declared)
	require.NoError(t, risk.Evaluate(context.Background(), db, declared, result))

	var found bool
	for _, e := range result.Errors("course") {
		if e.Issue == diff.IssueLength {
			found = true
			assert.Equal(t, diff.Unsafe, e.Safety)
			assert.True(t, e.HasFix(diff.FixTruncate))
		}
	}
	assert.True(t, found)
}

func TestEvaluateNumericFractionOverflowIsUnsafe(t *testing.T) {
	db := testdb.New()
	db.AddTable("grade_grades", []schema.LiveColumn{
		{Name: "rawgrade", MetaType: schema.MetaNumber, MaxLength: 10, Scale: 1},
	}, nil)
	db.Rows["grade_grades"] = []map[string]any{{"rawgrade": "123.456"}}

	declared := &schema.Structure{StructTables: []schema.Table{{
		Name:        "grade_grades",
		TableFields: []schema.Field{{Name: "rawgrade", Type: schema.TypeNumber, Length: 5, Decimals: 2}},
	}}}

	result := newRiskyResult(t, db, declared)
	require.NoError(t, risk.Evaluate(context.Background(), db, declared, result))

	var found bool
	for _, e := range result.Errors("grade_grades") {
		if e.Issue == diff.IssueLength {
			found = true
			assert.Equal(t, diff.Unsafe, e.Safety, "a row with more fractional digits than declared must escalate to unsafe")
		}
	}
	assert.True(t, found)
}
