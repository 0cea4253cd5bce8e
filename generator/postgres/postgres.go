// Package postgres implements generator.Generator for PostgreSQL, mirroring
// generator/mysql's structure but with double-quoted identifiers and
// Postgres's multi-clause ALTER COLUMN syntax in place of MySQL's single
// MODIFY COLUMN.
package postgres

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

func pgType(f schema.Field) string {
	switch f.NormalizedType() {
	case schema.TypeInteger:
		if f.Sequence {
			return "bigserial"
		}
		return "bigint"
	case schema.TypeNumber:
		if f.Decimals > 0 {
			return fmt.Sprintf("numeric(%d,%d)", f.Length, f.Decimals)
		}
		return fmt.Sprintf("numeric(%d,0)", f.Length)
	case schema.TypeChar:
		return fmt.Sprintf("character varying(%d)", f.Length)
	case schema.TypeText:
		return "text"
	case schema.TypeBinary:
		return "bytea"
	case schema.TypeTimestamp:
		return "timestamp with time zone"
	case schema.TypeDatetime:
		return "timestamp without time zone"
	default:
		return "text"
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
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

func columnDDL(f schema.Field) string {
	parts := []string{quoteIdent(f.Name), pgType(f)}
	if f.NotNull {
		parts = append(parts, "not null")
	}
	if d := defaultClause(f); d != "" {
		parts = append(parts, d)
	}
	return strings.Join(parts, " ")
}

func (g *Generator) CreateTableSQL(table schema.Table) []string {
	var cols []string
	for _, f := range table.Fields() {
		cols = append(cols, "  "+columnDDL(f))
	}
	if pk, ok := table.PrimaryKey(); ok {
		cols = append(cols, "  primary key ("+strings.Join(quoteAll(pk.Columns), ", ")+")")
	}
	stmts := []string{fmt.Sprintf("create table %s (\n%s\n)", quoteIdent(table.Name), strings.Join(cols, ",\n"))}
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

// AlterFieldSQL emits the type and nullability clauses as one multi-clause
// ALTER TABLE statement -- unlike MySQL's single MODIFY COLUMN, but still
// one statement per the dispatcher's single-call contract. The default is
// not part of it; ModifyDefaultSQL emits that separately.
func (g *Generator) AlterFieldSQL(table string, f schema.Field) []string {
	clauses := []string{
		fmt.Sprintf("alter column %s type %s using %s::%s", quoteIdent(f.Name), pgType(f), quoteIdent(f.Name), pgType(f)),
	}
	if f.NotNull {
		clauses = append(clauses, fmt.Sprintf("alter column %s set not null", quoteIdent(f.Name)))
	} else {
		clauses = append(clauses, fmt.Sprintf("alter column %s drop not null", quoteIdent(f.Name)))
	}
	return []string{fmt.Sprintf("alter table %s %s", quoteIdent(table), strings.Join(clauses, ", "))}
}

func (g *Generator) ModifyDefaultSQL(table string, f schema.Field) []string {
	if f.Default == nil {
		return []string{fmt.Sprintf("alter table %s alter column %s drop default", quoteIdent(table), quoteIdent(f.Name))}
	}
	return []string{fmt.Sprintf("alter table %s alter column %s set %s", quoteIdent(table), quoteIdent(f.Name), defaultClause(f))}
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
	name := k.Name
	if name == "" {
		name = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	switch k.Type {
	case schema.KeyUnique:
		return []string{fmt.Sprintf("alter table %s add constraint %s unique (%s)", quoteIdent(table), quoteIdent(name), strings.Join(quoteAll(k.Columns), ", "))}
	case schema.KeyForeign, schema.KeyForeignUnique:
		return []string{fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s (%s)",
			quoteIdent(table), quoteIdent(name), strings.Join(quoteAll(k.Columns), ", "),
			quoteIdent(k.RefTable), strings.Join(quoteAll(k.RefColumns), ", "))}
	default:
		return nil
	}
}

func (g *Generator) DropKeySQL(table string, k schema.Key) []string {
	name := k.Name
	if name == "" {
		name = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	return []string{fmt.Sprintf("alter table %s drop constraint %s", quoteIdent(table), quoteIdent(name))}
}

func (g *Generator) RenameKeySQL(table, from string, k schema.Key) []string {
	to := k.Name
	if to == "" {
		to = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	return []string{fmt.Sprintf("alter table %s rename constraint %s to %s", quoteIdent(table), quoteIdent(from), quoteIdent(to))}
}

func (g *Generator) AddIndexSQL(table string, idx schema.Index) []string {
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return []string{fmt.Sprintf("create %s %s on %s (%s)", kind, quoteIdent(idx.Name), quoteIdent(table), strings.Join(quoteAll(idx.Columns), ", "))}
}

func (g *Generator) DropIndexSQL(table string, idx schema.Index) []string {
	return []string{fmt.Sprintf("drop index %s", quoteIdent(idx.Name))}
}

func (g *Generator) RenameIndexSQL(table, from string, idx schema.Index) []string {
	return []string{fmt.Sprintf("alter index %s rename to %s", quoteIdent(from), quoteIdent(idx.Name))}
}

func (g *Generator) ResetSequenceSQL(table, field string) []string {
	return []string{fmt.Sprintf("select setval(pg_get_serial_sequence(%s, %s), 1, false)", quoteString(table), quoteString(field))}
}

func (g *Generator) DefaultValue(f schema.Field) string { return defaultClause(f) }

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
