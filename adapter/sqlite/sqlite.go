// Package sqlite implements adapter.Database against an embedded SQLite
// database using the pure-Go modernc.org/sqlite driver. It is used as the
// fixture database for the engine's own tests, the way ry256-slb and
// syssam-velox use modernc.org/sqlite for embedded storage in their test
// suites.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

type Database struct {
	path string
	db   *sql.DB

	columnCache map[string]adapter.Columns
	indexCache  map[string]adapter.Indexes
}

// NewDatabase opens (and creates, if absent) the SQLite file at path. Pass
// ":memory:" for an ephemeral fixture database.
func NewDatabase(path string) (*Database, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &Database{path: path, db: db}, nil
}

func (d *Database) DB() *sql.DB  { return d.db }
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) ResetCaches() {
	d.columnCache = nil
	d.indexCache = nil
}

func (d *Database) GetTables(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx, `select name from sqlite_master where type = 'table' and name not like 'sqlite_%'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = struct{}{}
	}
	return tables, rows.Err()
}

func sqliteMetaType(declType string) schema.MetaType {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return schema.MetaInteger
	case strings.Contains(t, "DECIMAL") || strings.Contains(t, "NUMERIC"):
		return schema.MetaNumber
	case strings.Contains(t, "FLOA") || strings.Contains(t, "DOUB") || strings.Contains(t, "REAL"):
		return schema.MetaFloat
	case strings.Contains(t, "VARCHAR") || strings.Contains(t, "CHAR"):
		return schema.MetaChar
	case strings.Contains(t, "TEXT") || strings.Contains(t, "CLOB"):
		return schema.MetaText
	case strings.Contains(t, "BLOB"):
		return schema.MetaBinary
	case strings.Contains(t, "TIMESTAMP"):
		return schema.MetaTimestamp
	case strings.Contains(t, "DATE"):
		return schema.MetaDatetime
	default:
		return schema.MetaText
	}
}

func (d *Database) GetColumns(ctx context.Context, table string) (adapter.Columns, error) {
	if d.columnCache == nil {
		d.columnCache = map[string]adapter.Columns{}
	}
	if cached, ok := d.columnCache[table]; ok {
		return cached, nil
	}

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("pragma table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := orderedmap.New[string, schema.LiveColumn]()
	for rows.Next() {
		var (
			cid        int
			name, ctyp string
			notNull    int
			dflt       sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &ctyp, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		var def *string
		if dflt.Valid {
			v := dflt.String
			def = &v
		}
		cols.Set(name, schema.LiveColumn{
			Name:         name,
			MetaType:     sqliteMetaType(ctyp),
			NotNull:      notNull != 0,
			HasDefault:   dflt.Valid,
			DefaultValue: def,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d.columnCache[table] = cols
	return cols, nil
}

func (d *Database) GetIndexes(ctx context.Context, table string, includePrimary bool) (adapter.Indexes, error) {
	key := fmt.Sprintf("%s\x00%v", table, includePrimary)
	if d.indexCache == nil {
		d.indexCache = map[string]adapter.Indexes{}
	}
	if cached, ok := d.indexCache[key]; ok {
		return cached, nil
	}

	out := orderedmap.New[string, adapter.IndexInfo]()

	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("pragma index_list(%q)", table))
	if err != nil {
		return nil, err
	}
	var names []string
	var uniques []bool
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if origin == "pk" && !includePrimary {
			continue
		}
		names = append(names, name)
		uniques = append(uniques, unique != 0)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, name := range names {
		colRows, err := d.db.QueryContext(ctx, fmt.Sprintf("pragma index_info(%q)", name))
		if err != nil {
			return nil, err
		}
		var cols []string
		for colRows.Next() {
			var seqno, cid int
			var colName string
			if err := colRows.Scan(&seqno, &cid, &colName); err != nil {
				colRows.Close()
				return nil, err
			}
			cols = append(cols, colName)
		}
		colRows.Close()
		out.Set(name, adapter.IndexInfo{Columns: cols, Unique: uniques[i]})
	}

	d.indexCache[key] = out
	return out, nil
}

func (d *Database) ExecuteDDL(ctx context.Context, statements []string, affectedTables []string) error {
	for _, t := range affectedTables {
		delete(d.columnCache, t)
		delete(d.indexCache, fmt.Sprintf("%s\x00%v", t, true))
		delete(d.indexCache, fmt.Sprintf("%s\x00%v", t, false))
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("ddl_change_structure: %w", err)
		}
	}
	return tx.Commit()
}

func (d *Database) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	err := d.db.QueryRowContext(ctx, fmt.Sprintf("select count(*) from %q", table)).Scan(&n)
	return n, err
}

// renderCondition quotes cond's column the same way Iterate/UpdateRow do
// for this dialect and renders it using `?` placeholders.
func renderCondition(cond adapter.Condition) (clause string, args []any) {
	col := fmt.Sprintf("%q", cond.Column)
	switch cond.Kind {
	case adapter.LengthGreaterThan:
		return fmt.Sprintf("length(%s) > ?", col), []any{cond.Arg}
	default:
		return col + " is null", nil
	}
}

func (d *Database) ExistsWhere(ctx context.Context, table string, cond adapter.Condition) (bool, error) {
	clause, args := renderCondition(cond)
	q := fmt.Sprintf("select exists(select 1 from %q where %s)", table, clause)
	var exists bool
	err := d.db.QueryRowContext(ctx, q, args...).Scan(&exists)
	return exists, err
}

type rowIterator struct {
	rows *sql.Rows
	cols []string
}

func (it *rowIterator) Next(ctx context.Context) (map[string]any, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Err()
	}
	values := make([]any, len(it.cols))
	ptrs := make([]any, len(it.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}
	row := make(map[string]any, len(it.cols))
	for i, c := range it.cols {
		row[c] = values[i]
	}
	return row, true, nil
}

func (it *rowIterator) Close() error { return it.rows.Close() }

func (d *Database) Iterate(ctx context.Context, table string, columns []string) (adapter.RowIterator, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	q := fmt.Sprintf("select %s from %q", strings.Join(quoted, ", "), table)
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return &rowIterator{rows: rows, cols: columns}, nil
}

func (d *Database) SetWhere(ctx context.Context, table, column string, value any, cond adapter.Condition) error {
	clause, args := renderCondition(cond)
	q := fmt.Sprintf("update %q set %q = ? where %s", table, column, clause)
	allArgs := append([]any{value}, args...)
	_, err := d.db.ExecContext(ctx, q, allArgs...)
	return err
}

func (d *Database) UpdateRow(ctx context.Context, table string, row map[string]any) error {
	id, ok := row["id"]
	if !ok {
		return fmt.Errorf("sqlite: UpdateRow requires an \"id\" key")
	}
	var setClauses []string
	var args []any
	for col, val := range row {
		if col == "id" {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%q = ?", col))
		args = append(args, val)
	}
	args = append(args, id)
	q := fmt.Sprintf("update %q set %s where \"id\" = ?", table, strings.Join(setClauses, ", "))
	_, err := d.db.ExecContext(ctx, q, args...)
	return err
}

// ConvertTableRowFormat has no SQLite analogue.
func (d *Database) ConvertTableRowFormat(ctx context.Context, table string) error {
	return adapter.ErrRowFormatUnsupported
}
