package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	sqliteadapter "github.com/bwalkerl/moodle-schemasync/adapter/sqlite"
)

func newTestDatabase(t *testing.T) *sqliteadapter.Database {
	t.Helper()
	d, err := sqliteadapter.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestGetTablesExcludesSqliteInternalTables(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`create table course ("id" integer primary key autoincrement, "shortname" varchar(100) not null)`,
	}, []string{"course"}))

	tables, err := d.GetTables(ctx)
	require.NoError(t, err)
	_, ok := tables["course"]
	assert.True(t, ok)
	for name := range tables {
		assert.NotContains(t, name, "sqlite_")
	}
}

func TestGetColumnsReadsPragmaTableInfo(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`create table course ("shortname" varchar(100) not null, "summary" text)`,
	}, []string{"course"}))

	cols, err := d.GetColumns(ctx, "course")
	require.NoError(t, err)

	shortname, ok := cols.Get("shortname")
	require.True(t, ok)
	assert.True(t, shortname.NotNull)

	summary, ok := cols.Get("summary")
	require.True(t, ok)
	assert.False(t, summary.NotNull)
}

func TestGetIndexesListsSecondaryIndexWithoutPrimary(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`create table course ("id" integer primary key, "category" integer not null)`,
		`create index course_category_ix on course ("category")`,
	}, []string{"course"}))

	idxs, err := d.GetIndexes(ctx, "course", false)
	require.NoError(t, err)
	_, ok := idxs.Get("course_category_ix")
	assert.True(t, ok)
}

func TestCountRowsAndExistsWhere(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`create table course ("id" integer primary key, "shortname" varchar(100))`,
	}, []string{"course"}))
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`insert into course ("id", "shortname") values (1, null)`,
	}, []string{"course"}))

	n, err := d.CountRows(ctx, "course")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	exists, err := d.ExistsWhere(ctx, "course", adapter.Condition{Column: "shortname", Kind: adapter.IsNull})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSetWhereAndUpdateRow(t *testing.T) {
	d := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`create table course ("id" integer primary key, "shortname" varchar(100))`,
	}, []string{"course"}))
	require.NoError(t, d.ExecuteDDL(ctx, []string{
		`insert into course ("id", "shortname") values (1, null)`,
	}, []string{"course"}))

	require.NoError(t, d.SetWhere(ctx, "course", "shortname", "default", adapter.Condition{Column: "shortname", Kind: adapter.IsNull}))

	it, err := d.Iterate(ctx, "course", []string{"id", "shortname"})
	require.NoError(t, err)
	defer it.Close()

	row, ok, err := it.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "default", row["shortname"])

	require.NoError(t, d.UpdateRow(ctx, "course", map[string]any{"id": int64(1), "shortname": "updated"}))

	it2, err := d.Iterate(ctx, "course", []string{"shortname"})
	require.NoError(t, err)
	defer it2.Close()
	row2, ok, err := it2.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "updated", row2["shortname"])
}

func TestConvertTableRowFormatIsUnsupported(t *testing.T) {
	d := newTestDatabase(t)
	err := d.ConvertTableRowFormat(context.Background(), "course")
	require.Error(t, err)
}
