// Package mysql implements generator.Generator for MySQL/MariaDB,
// following the identifier-quoting and ALTER-emission conventions of the
// example pack's schema/generator.go (backtick-quoted identifiers, a
// single MODIFY COLUMN statement covering type/length/null/default).
package mysql

import (
	"fmt"
	"strings"

	"github.com/bwalkerl/moodle-schemasync/schema"
)

type Generator struct {
	TablePrefix string
}

func New(prefix string) *Generator { return &Generator{TablePrefix: prefix} }

func quoteIdent(name string) string { return "`" + name + "`" }

func columnDDL(f schema.Field) string {
	var typ string
	switch f.NormalizedType() {
	case schema.TypeInteger:
		typ = "bigint"
	case schema.TypeNumber:
		if f.Decimals > 0 {
			typ = fmt.Sprintf("decimal(%d,%d)", f.Length, f.Decimals)
		} else {
			typ = fmt.Sprintf("decimal(%d,0)", f.Length)
		}
	case schema.TypeChar:
		typ = fmt.Sprintf("varchar(%d)", f.Length)
	case schema.TypeText:
		typ = "longtext"
	case schema.TypeBinary:
		typ = "longblob"
	case schema.TypeTimestamp:
		typ = "timestamp"
	case schema.TypeDatetime:
		typ = "datetime"
	default:
		typ = "text"
	}

	parts := []string{quoteIdent(f.Name), typ}
	if f.NotNull {
		parts = append(parts, "not null")
	} else {
		parts = append(parts, "null")
	}
	if d := defaultClause(f); d != "" {
		parts = append(parts, d)
	}
	if f.Sequence {
		parts = append(parts, "auto_increment")
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
		cols = append(cols, "  "+columnDDL(f))
	}
	if pk, ok := table.PrimaryKey(); ok {
		cols = append(cols, "  primary key ("+strings.Join(quoteAll(pk.Columns), ", ")+")")
	}
	stmt := fmt.Sprintf("create table %s (\n%s\n) engine=innodb", quoteIdent(table.Name), strings.Join(cols, ",\n"))
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

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
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
	return []string{fmt.Sprintf("rename table %s to %s", quoteIdent(from), quoteIdent(to))}
}

func (g *Generator) AddFieldSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("alter table %s add column %s", quoteIdent(table), columnDDL(f))}
}

func (g *Generator) DropFieldSQL(table, field string) []string {
	return []string{fmt.Sprintf("alter table %s drop column %s", quoteIdent(table), quoteIdent(field))}
}

func (g *Generator) AlterFieldSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("alter table %s modify column %s", quoteIdent(table), columnDDL(f))}
}

func (g *Generator) ModifyDefaultSQL(table string, f schema.Field) []string {
	if f.Default == nil {
		return []string{fmt.Sprintf("alter table %s alter column %s drop default", quoteIdent(table), quoteIdent(f.Name))}
	}
	return []string{fmt.Sprintf("alter table %s alter column %s set %s", quoteIdent(table), quoteIdent(f.Name), defaultClause(f))}
}

func (g *Generator) RenameFieldSQL(table, from string, f schema.Field) []string {
	return []string{fmt.Sprintf("alter table %s change column %s %s", quoteIdent(table), quoteIdent(from), columnDDL(f))}
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
		stmt := fmt.Sprintf("alter table %s add constraint %s foreign key (%s) references %s (%s)",
			quoteIdent(table), quoteIdent(name), strings.Join(quoteAll(k.Columns), ", "),
			quoteIdent(k.RefTable), strings.Join(quoteAll(k.RefColumns), ", "))
		return []string{stmt}
	default:
		return nil
	}
}

func (g *Generator) DropKeySQL(table string, k schema.Key) []string {
	name := k.Name
	if name == "" {
		name = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	switch k.Type {
	case schema.KeyForeign, schema.KeyForeignUnique:
		return []string{fmt.Sprintf("alter table %s drop foreign key %s", quoteIdent(table), quoteIdent(name))}
	default:
		return []string{fmt.Sprintf("alter table %s drop index %s", quoteIdent(table), quoteIdent(name))}
	}
}

func (g *Generator) RenameKeySQL(table, from string, k schema.Key) []string {
	to := k.Name
	if to == "" {
		to = g.IdentifierFor(table, k.Columns, g.suffixFor(k))
	}
	return []string{fmt.Sprintf("alter table %s rename index %s to %s", quoteIdent(table), quoteIdent(from), quoteIdent(to))}
}

func (g *Generator) AddIndexSQL(table string, idx schema.Index) []string {
	kind := "index"
	if idx.Unique {
		kind = "unique index"
	}
	return []string{fmt.Sprintf("create %s %s on %s (%s)", kind, quoteIdent(idx.Name), quoteIdent(table), strings.Join(quoteAll(idx.Columns), ", "))}
}

func (g *Generator) DropIndexSQL(table string, idx schema.Index) []string {
	return []string{fmt.Sprintf("drop index %s on %s", quoteIdent(idx.Name), quoteIdent(table))}
}

func (g *Generator) RenameIndexSQL(table, from string, idx schema.Index) []string {
	return []string{fmt.Sprintf("alter table %s rename index %s to %s", quoteIdent(table), quoteIdent(from), quoteIdent(idx.Name))}
}

func (g *Generator) ResetSequenceSQL(table, field string) []string {
	return []string{fmt.Sprintf("alter table %s auto_increment = 1", quoteIdent(table))}
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

// PrimaryKeyName returns "" because MySQL always names the primary-key
// constraint "PRIMARY" implicitly; there is no per-table synthesized name
// to report.
func (g *Generator) PrimaryKeyName() string { return "" }

func (g *Generator) Prefix() string { return g.TablePrefix }

func (g *Generator) EndedStatements(sqls []string) []string {
	out := make([]string, len(sqls))
	for i, s := range sqls {
		out[i] = s + ";"
	}
	return out
}
