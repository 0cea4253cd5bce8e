// Package testdb is an in-memory stand-in for adapter.Database used by the
// ddl, diff, risk and fixer package tests, playing the same role the
// example pack's sqlmock-backed fixtures play for its own adapter tests:
// a cheap double that lets the surrounding logic be exercised without a
// live connection.
package testdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

// Fake implements adapter.Database entirely in memory.
type Fake struct {
	Tables  map[string]bool
	Columns map[string]adapter.Columns
	Indexes map[string]adapter.Indexes
	Rows    map[string][]map[string]any

	// DDLLog records every statement batch ExecuteDDL applied, in order, for
	// assertions. A batch rejected through FailNextDDL is not recorded.
	DDLLog [][]string

	// FailNextDDL, when non-nil, is returned (and cleared) by the next
	// ExecuteDDL call.
	FailNextDDL error

	RowFormatSupported  bool
	RowFormatConverted  []string
	ResetCachesCalled   int
}

func New() *Fake {
	return &Fake{
		Tables:  map[string]bool{},
		Columns: map[string]adapter.Columns{},
		Indexes: map[string]adapter.Indexes{},
		Rows:    map[string][]map[string]any{},
	}
}

// AddTable registers a live table with the given columns and indexes.
func (f *Fake) AddTable(name string, cols []schema.LiveColumn, indexes map[string]adapter.IndexInfo) {
	f.Tables[name] = true

	colMap := orderedmap.New[string, schema.LiveColumn]()
	for _, c := range cols {
		colMap.Set(c.Name, c)
	}
	f.Columns[name] = colMap

	idxMap := orderedmap.New[string, adapter.IndexInfo]()
	for n, info := range indexes {
		idxMap.Set(n, info)
	}
	f.Indexes[name] = idxMap
}

func (f *Fake) GetTables(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(f.Tables))
	for name := range f.Tables {
		out[name] = struct{}{}
	}
	return out, nil
}

func (f *Fake) GetColumns(ctx context.Context, table string) (adapter.Columns, error) {
	cols, ok := f.Columns[table]
	if !ok {
		return orderedmap.New[string, schema.LiveColumn](), nil
	}
	return cols, nil
}

func (f *Fake) GetIndexes(ctx context.Context, table string, includePrimary bool) (adapter.Indexes, error) {
	idxs, ok := f.Indexes[table]
	if !ok {
		return orderedmap.New[string, adapter.IndexInfo](), nil
	}
	return idxs, nil
}

func (f *Fake) ExecuteDDL(ctx context.Context, statements []string, affectedTables []string) error {
	if f.FailNextDDL != nil {
		err := f.FailNextDDL
		f.FailNextDDL = nil
		return err
	}
	f.DDLLog = append(f.DDLLog, statements)
	for _, stmt := range statements {
		f.applyStatement(stmt)
	}
	return nil
}

func (f *Fake) ensureColumns(table string) adapter.Columns {
	cols, ok := f.Columns[table]
	if !ok {
		cols = orderedmap.New[string, schema.LiveColumn]()
		f.Columns[table] = cols
	}
	return cols
}

func (f *Fake) ensureIndexes(table string) adapter.Indexes {
	idxs, ok := f.Indexes[table]
	if !ok {
		idxs = orderedmap.New[string, adapter.IndexInfo]()
		f.Indexes[table] = idxs
	}
	return idxs
}

func splitTableField(s string) (table, field string) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return s, ""
	}
	return parts[0], parts[1]
}

// applyStatement interprets the fixed-format SQL-stand-in text the
// FakeGenerator emits and mutates this Fake's in-memory catalog to match,
// so that a pass of Fix followed by a fresh diff.Run sees a converged
// database rather than the same discrepancies it just repaired.
func (f *Fake) applyStatement(stmt string) {
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE "):
		table := strings.TrimPrefix(stmt, "CREATE TABLE ")
		f.Tables[table] = true
		f.ensureColumns(table)
		f.ensureIndexes(table)
	case strings.HasPrefix(stmt, "DROP TABLE "):
		table := strings.TrimPrefix(stmt, "DROP TABLE ")
		delete(f.Tables, table)
		delete(f.Columns, table)
		delete(f.Indexes, table)
		delete(f.Rows, table)
	case strings.HasPrefix(stmt, "RENAME TABLE "):
		from, to, ok := splitOnTO(strings.TrimPrefix(stmt, "RENAME TABLE "))
		if !ok {
			return
		}
		delete(f.Tables, from)
		f.Tables[to] = true
		if cols, ok := f.Columns[from]; ok {
			f.Columns[to] = cols
			delete(f.Columns, from)
		}
		if idxs, ok := f.Indexes[from]; ok {
			f.Indexes[to] = idxs
			delete(f.Indexes, from)
		}
		if rows, ok := f.Rows[from]; ok {
			f.Rows[to] = rows
			delete(f.Rows, from)
		}
	case strings.HasPrefix(stmt, "ADD COLUMN "):
		table, field := splitTableField(strings.TrimPrefix(stmt, "ADD COLUMN "))
		f.ensureColumns(table).Set(field, schema.LiveColumn{Name: field})
	case strings.HasPrefix(stmt, "DROP COLUMN "):
		table, field := splitTableField(strings.TrimPrefix(stmt, "DROP COLUMN "))
		if cols, ok := f.Columns[table]; ok {
			cols.Delete(field)
		}
	case strings.HasPrefix(stmt, "RENAME COLUMN "):
		lhs, to, ok := splitOnTO(strings.TrimPrefix(stmt, "RENAME COLUMN "))
		if !ok {
			return
		}
		table, from := splitTableField(lhs)
		cols, ok := f.Columns[table]
		if !ok {
			return
		}
		if v, ok := cols.Get(from); ok {
			cols.Delete(from)
			v.Name = to
			cols.Set(to, v)
		}
	case strings.HasPrefix(stmt, "ADD KEY "):
		table, name := splitTableField(strings.TrimPrefix(stmt, "ADD KEY "))
		f.ensureIndexes(table).Set(name, adapter.IndexInfo{})
	case strings.HasPrefix(stmt, "ADD INDEX "):
		table, name := splitTableField(strings.TrimPrefix(stmt, "ADD INDEX "))
		f.ensureIndexes(table).Set(name, adapter.IndexInfo{})
	case strings.HasPrefix(stmt, "DROP KEY "):
		table, name := splitTableField(strings.TrimPrefix(stmt, "DROP KEY "))
		if idxs, ok := f.Indexes[table]; ok {
			idxs.Delete(name)
		}
	case strings.HasPrefix(stmt, "DROP INDEX "):
		table, name := splitTableField(strings.TrimPrefix(stmt, "DROP INDEX "))
		if idxs, ok := f.Indexes[table]; ok {
			idxs.Delete(name)
		}
	case strings.HasPrefix(stmt, "RENAME KEY "), strings.HasPrefix(stmt, "RENAME INDEX "):
		prefix := "RENAME KEY "
		if strings.HasPrefix(stmt, "RENAME INDEX ") {
			prefix = "RENAME INDEX "
		}
		lhs, to, ok := splitOnTO(strings.TrimPrefix(stmt, prefix))
		if !ok {
			return
		}
		table, from := splitTableField(lhs)
		idxs, ok := f.Indexes[table]
		if !ok {
			return
		}
		if v, ok := idxs.Get(from); ok {
			idxs.Delete(from)
			idxs.Set(to, v)
		}
	}
}

func splitOnTO(s string) (lhs, rhs string, ok bool) {
	parts := strings.SplitN(s, " TO ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (f *Fake) CountRows(ctx context.Context, table string) (int64, error) {
	return int64(len(f.Rows[table])), nil
}

// ExistsWhere interprets the narrow set of Conditions risk.Evaluate and
// fixer actually issue against the in-memory rows.
func (f *Fake) ExistsWhere(ctx context.Context, table string, cond adapter.Condition) (bool, error) {
	rows := f.Rows[table]

	switch cond.Kind {
	case adapter.LengthGreaterThan:
		limit, _ := toInt(cond.Arg)
		for _, row := range rows {
			v, ok := row[cond.Column]
			if !ok || v == nil {
				continue
			}
			if len(fmt.Sprint(v)) > limit {
				return true, nil
			}
		}
		return false, nil
	default: // adapter.IsNull
		for _, row := range rows {
			if v, ok := row[cond.Column]; !ok || v == nil {
				return true, nil
			}
		}
		return false, nil
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	default:
		return 0, false
	}
}

type fakeIterator struct {
	rows []map[string]any
	pos  int
}

func (it *fakeIterator) Next(ctx context.Context) (map[string]any, bool, error) {
	if it.pos >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *fakeIterator) Close() error { return nil }

func (f *Fake) Iterate(ctx context.Context, table string, columns []string) (adapter.RowIterator, error) {
	return &fakeIterator{rows: f.Rows[table]}, nil
}

func (f *Fake) SetWhere(ctx context.Context, table, column string, value any, cond adapter.Condition) error {
	for _, row := range f.Rows[table] {
		if cond.Kind == adapter.IsNull {
			if v, ok := row[cond.Column]; ok && v != nil {
				continue
			}
		}
		row[column] = value
	}
	return nil
}

func (f *Fake) UpdateRow(ctx context.Context, table string, row map[string]any) error {
	return nil
}

func (f *Fake) ResetCaches() { f.ResetCachesCalled++ }

func (f *Fake) ConvertTableRowFormat(ctx context.Context, table string) error {
	if !f.RowFormatSupported {
		return adapter.ErrRowFormatUnsupported
	}
	f.RowFormatConverted = append(f.RowFormatConverted, table)
	return nil
}

func (f *Fake) Close() error { return nil }

var _ adapter.Database = (*Fake)(nil)

// FakeGenerator is a minimal generator.Generator double whose fixed-format
// statement strings name the SQL-emission method that produced them;
// Fake.applyStatement interprets those strings to mutate its catalog.
type FakeGenerator struct {
	Prefix_ string
}

func (g *FakeGenerator) CreateTableSQL(table schema.Table) []string {
	return []string{fmt.Sprintf("CREATE TABLE %s", table.Name)}
}
func (g *FakeGenerator) CreateStructureSQL(s *schema.Structure) []string { return nil }
func (g *FakeGenerator) DropTableSQL(table string) []string {
	return []string{"DROP TABLE " + table}
}
func (g *FakeGenerator) RenameTableSQL(from, to string) []string {
	return []string{fmt.Sprintf("RENAME TABLE %s TO %s", from, to)}
}
func (g *FakeGenerator) AddFieldSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("ADD COLUMN %s.%s", table, f.Name)}
}
func (g *FakeGenerator) DropFieldSQL(table, field string) []string {
	return []string{fmt.Sprintf("DROP COLUMN %s.%s", table, field)}
}
func (g *FakeGenerator) AlterFieldSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("ALTER COLUMN %s.%s", table, f.Name)}
}
func (g *FakeGenerator) ModifyDefaultSQL(table string, f schema.Field) []string {
	return []string{fmt.Sprintf("ALTER COLUMN %s.%s SET DEFAULT", table, f.Name)}
}
func (g *FakeGenerator) RenameFieldSQL(table, from string, f schema.Field) []string {
	return []string{fmt.Sprintf("RENAME COLUMN %s.%s TO %s", table, from, f.Name)}
}
func (g *FakeGenerator) AddKeySQL(table string, k schema.Key) []string {
	return []string{fmt.Sprintf("ADD KEY %s.%s", table, k.Name)}
}
func (g *FakeGenerator) DropKeySQL(table string, k schema.Key) []string {
	return []string{fmt.Sprintf("DROP KEY %s.%s", table, k.Name)}
}
func (g *FakeGenerator) RenameKeySQL(table, from string, k schema.Key) []string {
	return []string{fmt.Sprintf("RENAME KEY %s.%s TO %s", table, from, k.Name)}
}
func (g *FakeGenerator) AddIndexSQL(table string, idx schema.Index) []string {
	return []string{fmt.Sprintf("ADD INDEX %s.%s", table, idx.Name)}
}
func (g *FakeGenerator) DropIndexSQL(table string, idx schema.Index) []string {
	return []string{fmt.Sprintf("DROP INDEX %s.%s", table, idx.Name)}
}
func (g *FakeGenerator) RenameIndexSQL(table, from string, idx schema.Index) []string {
	return []string{fmt.Sprintf("RENAME INDEX %s.%s TO %s", table, from, idx.Name)}
}
func (g *FakeGenerator) ResetSequenceSQL(table, field string) []string {
	return []string{fmt.Sprintf("RESET SEQUENCE %s.%s", table, field)}
}
func (g *FakeGenerator) DefaultValue(f schema.Field) string {
	if f.Default == nil {
		return ""
	}
	return "DEFAULT " + *f.Default
}
func (g *FakeGenerator) FormattedDefault(f schema.Field) *string { return f.Default }
func (g *FakeGenerator) IdentifierFor(table string, columns []string, suffix string) string {
	name := table
	for _, c := range columns {
		name += "_" + c
	}
	return name + "_" + suffix
}
func (g *FakeGenerator) PrimaryKeyName() string { return "" }
func (g *FakeGenerator) Prefix() string         { return g.Prefix_ }
func (g *FakeGenerator) EndedStatements(sqls []string) []string {
	out := make([]string, len(sqls))
	for i, s := range sqls {
		out[i] = s + ";"
	}
	return out
}
