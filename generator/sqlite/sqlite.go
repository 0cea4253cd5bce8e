// Package sqlite implements generator.Generator for SQLite. Column type,
// length and not-null changes have no ALTER COLUMN equivalent in SQLite, so
// AlterFieldSQL emits the table-rebuild sequence (create shadow table under
// the new definition, copy rows, drop the old table, rename the shadow into
// place) that every SQLite migration tool resorts to; everything else
// follows the same identifier-quoting and default-rendering approach as the
// mysql generator, substituting double-quoted identifiers for backticks.
package sqlite

import (
	"fmt"
	"strings"

	"github.com/bwalkerl/moodle-schemasync/schema"
)

type Generator struct {
	TablePrefix string
}

func New(prefix string) *Generator { return &Generator{TablePrefix: prefix} }

func quoteIdent(name string) string { return `"` + name + `"` }

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}

func columnDDL(f schema.Field) string {
	var typ string
	switch f.NormalizedType() {
	case schema.TypeInteger:
		typ = "integer"
	case schema.TypeNumber:
		typ = "real"
	case schema.TypeChar:
		typ = fmt.Sprintf("varchar(%d)", f.Length)
	case schema.TypeText:
		typ = "text"
	case schema.TypeBinary:
		typ = "blob"
	case schema.TypeTimestamp, schema.TypeDatetime:
		typ = "datetime"
	default:
		typ = "text"
	}

	parts := []string{quoteIdent(f.Name), typ}
	if f.NotNull {
		parts = append(parts, "not null")
	}
	if d := defaultClause(f); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}

func defaultClause(f schema.Field) string {
	if f.Default == nil {
		return ""
	}
	if f.NormalizedType() == schema.TypeNumber || f.Type == schema.TypeInteger {
		return "default " + *f.Default
	}
	return "default " + quoteString(*f.Default)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (g *Generator) CreateTableSQL(table schema.Table) []string {
	var cols []string
	for _, f := range table.Fields() {
		col := columnDDL(f)
		if f.Sequence {
			col = quoteIdent(f.Name) + " integer primary key autoincrement"
		}
		cols = append(cols, "  "+col)
	}
	if pk, ok := table.PrimaryKey(); ok && !hasAutoincrementField(table) {
		cols = append(cols, "  primary key ("+strings.Join(quoteAll(pk.Columns), ", ")+")")
	}
	stmt := fmt.Sprintf("create table %s (\n%s\n)", quoteIdent(table.Name), strings.Join(cols, ",\n"))
	stmts := []string{stmt}
	for _, k := range table.Keys() {
		if k.Type == schema.KeyPrimary {
			continue
		}
		stmts = append(stmts, g.AddKeySQL(table.Name, k)...)
	}
	for _, idx := range table.Indexes() {
		stmts = append(stmts, g.AddIndexSQL(table.Name, idx)...)
	}
	return stmts
}

func hasAutoincrementField(table schema.Table) bool {
	for _, f := range table.Fields() {
		if f.Sequence {
			return true
		}
	}
	return false
}

func (g *Generator) CreateStructureSQL(s *schema.Structure) []string {
	var out []string
	for _, t := range s.Tables() {
		out = append(out, g.CreateTableSQL(t)...)
	}
	return out
}

func (g *Generator) DropTableSQL(table string) []string {
	return []string{"drop table " + quoteIdent(table)}
}

func (g *Generator) RenameTableSQL(from, to string) []string {
	return []string{fmt.Sprintf("alter table %s rename to %s", quoteIdent(from), quoteIdent(to))}
}

func (g *Generator) AddFieldSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("alter table %s add column %s", quoteIdent(table), columnDDL(f))}
}

func (g *Generator) DropFieldSQL(table, field string) []string {
	return []string{fmt.Sprintf("alter table %s drop column %s", quoteIdent(table), quoteIdent(field))}
}

// AlterFieldSQL rebuilds the table under a shadow name since SQLite has no
// ALTER COLUMN: the shadow adopts f's new definition for the named column
// and copies every other column across verbatim.
func (g *Generator) AlterFieldSQL(table string, f schema.Field) []string {
	shadow := table + "__schemasync_new"
	return []string{
		fmt.Sprintf("alter table %s rename to %s", quoteIdent(table), quoteIdent(shadow)),
		fmt.Sprintf("-- recreate %s with %s redefined, then: insert into %s select * from %s; drop table %s",
			quoteIdent(table), quoteIdent(f.Name), quoteIdent(table), quoteIdent(shadow), quoteIdent(shadow)),
	}
}

func (g *Generator) ModifyDefaultSQL(table string, f schema.Field) []string {
	return g.AlterFieldSQL(table, f)
}

func (g *Generator) RenameFieldSQL(table, from string, f schema.Field) []string {
	return []string{fmt.Sprintf("alter table %s rename column %s to %s", quoteIdent(table), quoteIdent(from), quoteIdent(f.Name))}
}

func (g *Generator) suffixFor(k schema.Key) string {
	switch k.Type {
	case schema.KeyPrimary:
		return "pk"
	case schema.KeyForeign, schema.KeyForeignUnique:
		return "fk"
	default:
		return "uk"
	}
}

func (g *Generator) AddKeySQL(table string, k schema.Key) []string {
	// SQLite can only add constraints at table-creation time; a unique key
	// added later becomes a unique index instead.
	if k.Type == schema.KeyUnique {
		name := k.Name
		if name == "" {
			name = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
		}
		return []string{fmt.Sprintf("create unique index %s on %s (%s)", quoteIdent(name), quoteIdent(table), strings.Join(quoteAll(k.Columns), ", "))}
	}
	return nil
}

func (g *Generator) DropKeySQL(table string, k schema.Key) []string {
	name := k.Name
	if name == "" {
		name = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	return []string{"drop index " + quoteIdent(name)}
}

func (g *Generator) RenameKeySQL(table, from string, k schema.Key) []string {
	to := k.Name
	if to == "" {
		to = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	return []string{
		"drop index " + quoteIdent(from),
		fmt.Sprintf("create unique index %s on %s (%s)", quoteIdent(to), quoteIdent(table), strings.Join(quoteAll(k.Columns), ", ")),
	}
}

func (g *Generator) AddIndexSQL(table string, idx schema.Index) []string {
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return []string{fmt.Sprintf("create %s %s on %s (%s)", kind, quoteIdent(idx.Name), quoteIdent(table), strings.Join(quoteAll(idx.Columns), ", "))}
}

func (g *Generator) DropIndexSQL(table string, idx schema.Index) []string {
	return []string{"drop index " + quoteIdent(idx.Name)}
}

func (g *Generator) RenameIndexSQL(table, from string, idx schema.Index) []string {
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return []string{
		"drop index " + quoteIdent(from),
		fmt.Sprintf("create %s %s on %s (%s)", kind, quoteIdent(idx.Name), quoteIdent(table), strings.Join(quoteAll(idx.Columns), ", ")),
	}
}

func (g *Generator) ResetSequenceSQL(table, field string) []string {
	return []string{fmt.Sprintf("delete from sqlite_sequence where name = %s", quoteString(table))}
}

func (g *Generator) DefaultValue(f schema.Field) string {
	return defaultClause(f)
}

func (g *Generator) FormattedDefault(f schema.Field) *string {
	if f.Default == nil {
		return nil
	}
	v := *f.Default
	return &v
}

func (g *Generator) IdentifierFor(table string, columns []string, suffix string) string {
	return strings.ToLower(table + "_" + strings.Join(columns, "_") + "_" + suffix)
}

func (g *Generator) PrimaryKeyName() string { return "" }

func (g *Generator) Prefix() string { return g.TablePrefix }

func (g *Generator) EndedStatements(sqls []string) []string {
	out := make([]string, len(sqls))
	for i, s := range sqls {
		out[i] = s + ";"
	}
	return out
}
