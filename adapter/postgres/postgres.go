// Package postgres implements adapter.Database against PostgreSQL using
// github.com/lib/pq, following the same information-schema introspection
// shape as adapter/mysql but with Postgres identifier and placeholder
// conventions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

type Database struct {
	config adapter.Config
	db     *sql.DB

	columnCache map[string]adapter.Columns
	indexCache  map[string]adapter.Indexes
}

func NewDatabase(config adapter.Config) (*Database, error) {
	db, err := sql.Open("postgres", buildDSN(config))
	if err != nil {
		return nil, err
	}
	return &Database{config: config, db: db}, nil
}

func buildDSN(config adapter.Config) string {
	parts := []string{
		"dbname=" + config.DBName,
		"user=" + config.User,
		"sslmode=disable",
	}
	if config.Password != "" {
		parts = append(parts, "password="+config.Password)
	}
	if config.Socket != "" {
		parts = append(parts, "host="+config.Socket)
	} else {
		parts = append(parts, "host="+config.Host, "port="+strconv.Itoa(config.Port))
	}
	return strings.Join(parts, " ")
}

func (d *Database) DB() *sql.DB  { return d.db }
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) ResetCaches() {
	d.columnCache = nil
	d.indexCache = nil
}

func (d *Database) GetTables(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx, `
		select table_name from information_schema.tables
		where table_schema = 'public' and table_type = 'BASE TABLE'`)
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

func postgresMetaType(dataType string) schema.MetaType {
	switch dataType {
	case "smallint", "integer", "bigint", "smallserial", "serial", "bigserial":
		return schema.MetaInteger
	case "numeric", "decimal":
		return schema.MetaNumber
	case "real", "double precision":
		return schema.MetaFloat
	case "character", "character varying":
		return schema.MetaChar
	case "text":
		return schema.MetaText
	case "bytea":
		return schema.MetaBinary
	case "timestamp without time zone", "timestamp with time zone":
		return schema.MetaTimestamp
	case "date", "time without time zone", "time with time zone":
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

	rows, err := d.db.QueryContext(ctx, `
		select column_name, data_type, character_maximum_length, numeric_precision, numeric_scale,
		       is_nullable, column_default
		from information_schema.columns
		where table_schema = 'public' and table_name = $1
		order by ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := orderedmap.New[string, schema.LiveColumn]()
	for rows.Next() {
		var (
			name, dataType, isNullable      string
			charLen, numPrecision, numScale sql.NullInt64
			colDefault                      sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &charLen, &numPrecision, &numScale, &isNullable, &colDefault); err != nil {
			return nil, err
		}
		maxLen := 0
		if charLen.Valid {
			maxLen = int(charLen.Int64)
		} else if numPrecision.Valid {
			maxLen = int(numPrecision.Int64)
		}
		var def *string
		if colDefault.Valid {
			v := colDefault.String
			def = &v
		}
		cols.Set(name, schema.LiveColumn{
			Name:         name,
			MetaType:     postgresMetaType(dataType),
			MaxLength:    maxLen,
			Scale:        int(numScale.Int64),
			NotNull:      isNullable == "NO",
			HasDefault:   colDefault.Valid,
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

	rows, err := d.db.QueryContext(ctx, `
		select ix.relname as index_name, a.attname as column_name, i.indisunique, i.indisprimary
		from pg_index i
		join pg_class t on t.oid = i.indrelid
		join pg_class ix on ix.oid = i.indexrelid
		join unnest(i.indkey) with ordinality as k(attnum, ord) on true
		join pg_attribute a on a.attrelid = t.oid and a.attnum = k.attnum
		where t.relname = $1
		order by ix.relname, k.ord`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	order := []string{}
	uniq := map[string]bool{}
	cols := map[string][]string{}
	for rows.Next() {
		var name, column string
		var isUnique, isPrimary bool
		if err := rows.Scan(&name, &column, &isUnique, &isPrimary); err != nil {
			return nil, err
		}
		if isPrimary && !includePrimary {
			continue
		}
		if _, ok := uniq[name]; !ok {
			order = append(order, name)
		}
		uniq[name] = isUnique
		cols[name] = append(cols[name], column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := orderedmap.New[string, adapter.IndexInfo]()
	for _, name := range order {
		out.Set(name, adapter.IndexInfo{Columns: cols[name], Unique: uniq[name]})
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
	err := d.db.QueryRowContext(ctx, `select count(*) from "`+table+`"`).Scan(&n)
	return n, err
}

// renderCondition quotes cond's column with Postgres double-quote syntax
// and renders it using a `$N` placeholder starting at paramStart, the same
// convention SetWhere's value assignment uses for this dialect.
func renderCondition(cond adapter.Condition, paramStart int) (clause string, args []any) {
	col := `"` + cond.Column + `"`
	switch cond.Kind {
	case adapter.LengthGreaterThan:
		return fmt.Sprintf("length(%s) > $%d", col, paramStart), []any{cond.Arg}
	default:
		return col + " is null", nil
	}
}

func (d *Database) ExistsWhere(ctx context.Context, table string, cond adapter.Condition) (bool, error) {
	clause, args := renderCondition(cond, 1)
	q := fmt.Sprintf(`select exists(select 1 from "%s" where %s)`, table, clause)
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
		quoted[i] = `"` + c + `"`
	}
	q := fmt.Sprintf(`select %s from "%s"`, strings.Join(quoted, ", "), table)
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return &rowIterator{rows: rows, cols: columns}, nil
}

func (d *Database) SetWhere(ctx context.Context, table, column string, value any, cond adapter.Condition) error {
	clause, args := renderCondition(cond, 2)
	q := fmt.Sprintf(`update "%s" set "%s" = $1 where %s`, table, column, clause)
	allArgs := append([]any{value}, args...)
	_, err := d.db.ExecContext(ctx, q, allArgs...)
	return err
}

func (d *Database) UpdateRow(ctx context.Context, table string, row map[string]any) error {
	id, ok := row["id"]
	if !ok {
		return fmt.Errorf("postgres: UpdateRow requires an \"id\" key")
	}
	var setClauses []string
	var args []any
	n := 1
	for col, val := range row {
		if col == "id" {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf(`"%s" = $%d`, col, n))
		args = append(args, val)
		n++
	}
	args = append(args, id)
	q := fmt.Sprintf(`update "%s" set %s where "id" = $%d`, table, strings.Join(setClauses, ", "), n)
	_, err := d.db.ExecContext(ctx, q, args...)
	return err
}

// ConvertTableRowFormat has no Postgres analogue; there is no per-table row
// storage format knob comparable to MySQL's InnoDB row formats.
func (d *Database) ConvertTableRowFormat(ctx context.Context, table string) error {
	return adapter.ErrRowFormatUnsupported
}
