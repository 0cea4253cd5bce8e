package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bwalkerl/moodle-schemasync/schema"
)

func TestTableFieldLookup(t *testing.T) {
	table := schema.Table{
		Name:        "course",
		TableFields: []schema.Field{{Name: "id"}, {Name: "shortname"}},
	}

	f, ok := table.Field("shortname")
	assert.True(t, ok)
	assert.Equal(t, "shortname", f.Name)

	_, ok = table.Field("missing")
	assert.False(t, ok)
}

func TestTablePrimaryKeyLookup(t *testing.T) {
	table := schema.Table{
		Name: "course",
		TableKeys: []schema.Key{
			{Type: schema.KeyUnique, Columns: []string{"shortname"}},
			{Type: schema.KeyPrimary, Columns: []string{"id"}},
		},
	}

	pk, ok := table.PrimaryKey()
	assert.True(t, ok)
	assert.Equal(t, []string{"id"}, pk.Columns)
}

func TestTableWithoutPrimaryKey(t *testing.T) {
	table := schema.Table{Name: "course"}
	_, ok := table.PrimaryKey()
	assert.False(t, ok)
}
