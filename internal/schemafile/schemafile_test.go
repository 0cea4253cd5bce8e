package schemafile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bwalkerl/moodle-schemasync/internal/schemafile"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

func TestParseConvertsTablesFieldsKeysAndIndexes(t *testing.T) {
	doc := []byte(`
version: "20240101"
dialect: mysql
tables:
  - name: course
    fields:
      - {name: id, type: int, length: 10, notnull: true, sequence: true}
      - {name: shortname, type: char, length: 100, notnull: true}
    keys:
      - {name: primary, type: primary, columns: [id]}
    indexes:
      - {name: course_shortname_ix, columns: [shortname]}
`)

	structure, err := schemafile.Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, "20240101", structure.Version)
	assert.Equal(t, schema.Dialect("mysql"), structure.Dialect)

	table, ok := structure.Table("course")
	require.True(t, ok)
	require.Len(t, table.Fields(), 2)
	assert.Equal(t, schema.FieldType("int"), table.Fields()[0].Type)

	_, ok = table.PrimaryKey()
	assert.True(t, ok)
	require.Len(t, table.Indexes(), 1)
	assert.Equal(t, "course_shortname_ix", table.Indexes()[0].Name)
}

func TestParseInvalidYAMLWrapsErrXMLFile(t *testing.T) {
	_, err := schemafile.Parse([]byte("tables: [this is not a mapping"))
	assert.ErrorIs(t, err, schemafile.ErrXMLFile)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := schemafile.Load("/nonexistent/schema.yml")
	assert.Error(t, err)
}
