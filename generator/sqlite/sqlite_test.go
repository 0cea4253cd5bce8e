package sqlite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlitegen "github.com/bwalkerl/moodle-schemasync/generator/sqlite"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

func TestCreateTableSQLUsesAutoincrementForSequenceField(t *testing.T) {
	gen := sqlitegen.New("")
	table := schema.Table{
		Name: "course",
		TableFields: []schema.Field{
			{Name: "id", Type: schema.TypeInteger, Length: 10, NotNull: true, Sequence: true},
			{Name: "shortname", Type: schema.TypeChar, Length: 100, NotNull: true},
		},
		TableKeys: []schema.Key{{Type: schema.KeyPrimary, Columns: []string{"id"}}},
	}

	stmts := gen.CreateTableSQL(table)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `"id" integer primary key autoincrement`)
	assert.NotContains(t, stmts[0], "primary key (\"id\")", "a declared primary key clause would clash with the autoincrement column")
}

func TestCreateTableSQLEmitsSeparatePrimaryKeyClauseWithoutSequence(t *testing.T) {
	gen := sqlitegen.New("")
	table := schema.Table{
		Name: "course_categories",
		TableFields: []schema.Field{
			{Name: "courseid", Type: schema.TypeInteger, Length: 10, NotNull: true},
			{Name: "categoryid", Type: schema.TypeInteger, Length: 10, NotNull: true},
		},
		TableKeys: []schema.Key{{Type: schema.KeyPrimary, Columns: []string{"courseid", "categoryid"}}},
	}

	stmts := gen.CreateTableSQL(table)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `primary key ("courseid", "categoryid")`)
}

func TestAlterFieldSQLRebuildsViaShadowTable(t *testing.T) {
	gen := sqlitegen.New("")
	stmts := gen.AlterFieldSQL("course", schema.Field{Name: "shortname", Type: schema.TypeChar, Length: 255, NotNull: true})
	require.Len(t, stmts, 2, "SQLite has no ALTER COLUMN, so this must be a rename-and-rebuild sequence")
	assert.Equal(t, `alter table "course" rename to "course__schemasync_new"`, stmts[0])
	assert.Contains(t, stmts[1], "course__schemasync_new")
	assert.Contains(t, stmts[1], "insert into")
}

func TestModifyDefaultSQLDelegatesToAlterFieldSQL(t *testing.T) {
	gen := sqlitegen.New("")
	f := schema.Field{Name: "shortname", Type: schema.TypeChar, Length: 255}
	assert.Equal(t, gen.AlterFieldSQL("course", f), gen.ModifyDefaultSQL("course", f))
}

func TestAddKeyUniqueBecomesCreateUniqueIndex(t *testing.T) {
	gen := sqlitegen.New("")
	stmts := gen.AddKeySQL("course", schema.Key{Name: "course_shortname_uk", Type: schema.KeyUnique, Columns: []string{"shortname"}})
	require.Len(t, stmts, 1)
	assert.Equal(t, `create unique index "course_shortname_uk" on "course" ("shortname")`, stmts[0])
}

func TestAddKeyForeignIsUnsupportedPostCreate(t *testing.T) {
	gen := sqlitegen.New("")
	stmts := gen.AddKeySQL("course", schema.Key{Name: "fk1", Type: schema.KeyForeign, Columns: []string{"categoryid"}})
	assert.Nil(t, stmts, "SQLite can only add foreign keys at table-creation time")
}

func TestRenameIndexSQLDropsAndRecreates(t *testing.T) {
	gen := sqlitegen.New("")
	idx := schema.Index{Name: "course_category_ix", Columns: []string{"category"}}
	stmts := gen.RenameIndexSQL("course", "old_ix", idx)
	require.Len(t, stmts, 2)
	assert.Equal(t, `drop index "old_ix"`, stmts[0])
	assert.Contains(t, stmts[1], `create`)
	assert.Contains(t, stmts[1], `"course_category_ix"`)
}

func TestResetSequenceSQLDeletesFromSqliteSequence(t *testing.T) {
	gen := sqlitegen.New("")
	stmts := gen.ResetSequenceSQL("course", "id")
	require.Len(t, stmts, 1)
	assert.Equal(t, `delete from sqlite_sequence where name = 'course'`, stmts[0])
}

func TestPrimaryKeyNameIsEmpty(t *testing.T) {
	gen := sqlitegen.New("")
	assert.Equal(t, "", gen.PrimaryKeyName())
}

func TestEndedStatementsAppendsSemicolons(t *testing.T) {
	gen := sqlitegen.New("")
	assert.Equal(t, []string{"a;", "b;"}, gen.EndedStatements([]string{"a", "b"}))
}
