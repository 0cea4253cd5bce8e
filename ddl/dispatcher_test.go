package ddl_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/ddl"
	"github.com/bwalkerl/moodle-schemasync/internal/testdb"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

func TestCreateTable(t *testing.T) {
	db := testdb.New()
	gen := &testdb.FakeGenerator{}
	d := ddl.New(gen, db)

	err := d.CreateTable(context.Background(), schema.Table{Name: "course"})
	require.NoError(t, err)
	require.Len(t, db.DDLLog, 1)
	assert.Equal(t, []string{"CREATE TABLE course"}, db.DDLLog[0])
}

func TestCreateTableAlreadyExists(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.CreateTable(context.Background(), schema.Table{Name: "course"})
	assert.ErrorIs(t, err, ddl.ErrTableAlreadyExists)
}

func TestDropTableMissing(t *testing.T) {
	db := testdb.New()
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.DropTable(context.Background(), "course")
	assert.ErrorIs(t, err, ddl.ErrTableMissing)
}

func TestRenameTableIdempotentNoOp(t *testing.T) {
	db := testdb.New()
	db.AddTable("mdl_course", nil, nil) // already renamed to target
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.RenameTable(context.Background(), "course", "mdl_course")
	require.NoError(t, err)
	assert.Empty(t, db.DDLLog, "no DDL should run when the rename already happened")
}

func TestRenameTableClash(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	db.AddTable("mdl_course", nil, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.RenameTable(context.Background(), "course", "mdl_course")
	assert.ErrorIs(t, err, ddl.ErrTableAlreadyExists)
}

func TestAddFieldRejectsNotNullWithoutDefaultOnNonEmptyTable(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.AddField(context.Background(), "course", schema.Field{Name: "newcol", NotNull: true}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ddl.ErrUnknown)
}

func TestAddFieldAllowsNotNullWithoutDefaultOnEmptyTable(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.AddField(context.Background(), "course", schema.Field{Name: "newcol", NotNull: true}, true)
	require.NoError(t, err)
}

func TestDropFieldRejectsColumnInIndex(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{{Name: "shortname"}}, map[string]adapter.IndexInfo{
		"course_shortname_ix": {Columns: []string{"shortname"}},
	})
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.DropField(context.Background(), "course", "shortname")
	assert.ErrorIs(t, err, ddl.ErrDependency)
}

func TestRenameFieldRejectsID(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{{Name: "id"}}, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.RenameField(context.Background(), "course", "id", schema.Field{Name: "newid"})
	require.Error(t, err)
}

func TestChangeFieldWrappersDelegateToChangeFieldType(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", []schema.LiveColumn{{Name: "fullname"}}, nil)
	d := ddl.New(&testdb.FakeGenerator{}, db)

	require.NoError(t, d.ChangeFieldPrecision(context.Background(), "course", schema.Field{Name: "fullname"}))
	require.NoError(t, d.ChangeFieldNotNull(context.Background(), "course", schema.Field{Name: "fullname"}))
	require.NoError(t, d.ChangeFieldUnsigned(context.Background(), "course", schema.Field{Name: "fullname"}))
	assert.Len(t, db.DDLLog, 3)
	for _, stmts := range db.DDLLog {
		assert.Equal(t, []string{"ALTER COLUMN course.fullname"}, stmts)
	}
}

func TestIndexExistsIsSequenceSensitive(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, map[string]adapter.IndexInfo{
		"ix1": {Columns: []string{"category", "sortorder"}},
	})
	d := ddl.New(&testdb.FakeGenerator{}, db)

	exists, err := d.IndexExists(context.Background(), "course", schema.Index{Columns: []string{"category", "sortorder"}})
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = d.IndexExists(context.Background(), "course", schema.Index{Columns: []string{"sortorder", "category"}})
	require.NoError(t, err)
	assert.False(t, exists, "reordered columns must not satisfy sequence-sensitive IndexExists")
}

func TestFindIndexNameIsSetSensitive(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, map[string]adapter.IndexInfo{
		"ix1": {Columns: []string{"category", "sortorder"}},
	})
	d := ddl.New(&testdb.FakeGenerator{}, db)

	names, err := d.FindIndexName(context.Background(), "course", schema.Index{Columns: []string{"sortorder", "category"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ix1"}, names, "reordered columns must satisfy set-sensitive FindIndexName")
}

func TestAddIndexRetriesAfterRowFormatConversion(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	db.RowFormatSupported = true
	db.FailNextDDL = errors.New("row too large")
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.AddIndex(context.Background(), "course", schema.Index{Name: "ix1", Columns: []string{"summary"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"course"}, db.RowFormatConverted)
	assert.Len(t, db.DDLLog, 1, "the retried ExecuteDDL call should have succeeded and been logged")
}

func TestAddIndexGivesUpWhenRowFormatUnsupported(t *testing.T) {
	db := testdb.New()
	db.AddTable("course", nil, nil)
	db.RowFormatSupported = false
	db.FailNextDDL = errors.New("row too large")
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.AddIndex(context.Background(), "course", schema.Index{Name: "ix1", Columns: []string{"summary"}})
	assert.ErrorIs(t, err, ddl.ErrChangeStructure)
}

func TestAddKeyRejectsPrimary(t *testing.T) {
	db := testdb.New()
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.AddKey(context.Background(), "course", schema.Key{Type: schema.KeyPrimary})
	require.Error(t, err)
}

func TestDropKeyRejectsPrimary(t *testing.T) {
	db := testdb.New()
	d := ddl.New(&testdb.FakeGenerator{}, db)

	err := d.DropKey(context.Background(), "course", schema.Key{Type: schema.KeyPrimary})
	require.Error(t, err)
}
