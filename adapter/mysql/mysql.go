// Package mysql implements adapter.Database against a MySQL/MariaDB server
// using the pure-Go github.com/go-sql-driver/mysql driver, grounded on the
// DSN-building and information-schema query style of the example pack's
// mysqldef adapter.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	driver "github.com/go-sql-driver/mysql"
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
	db, err := sql.Open("mysql", buildDSN(config))
	if err != nil {
		return nil, err
	}
	return &Database{config: config, db: db}, nil
}

func buildDSN(config adapter.Config) string {
	c := driver.NewConfig()
	c.User = config.User
	c.Passwd = config.Password
	c.DBName = config.DBName
	c.TLSConfig = "preferred"
	c.ParseTime = true
	if config.Socket == "" {
		c.Net = "tcp"
		c.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	} else {
		c.Net = "unix"
		c.Addr = config.Socket
	}
	return c.FormatDSN()
}

func (d *Database) DB() *sql.DB { return d.db }
func (d *Database) Close() error { return d.db.Close() }

func (d *Database) ResetCaches() {
	d.columnCache = nil
	d.indexCache = nil
}

func (d *Database) GetTables(ctx context.Context) (map[string]struct{}, error) {
	rows, err := d.db.QueryContext(ctx, "show full tables where Table_Type != 'VIEW'")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := map[string]struct{}{}
	for rows.Next() {
		var table, tableType string
		if err := rows.Scan(&table, &tableType); err != nil {
			return nil, err
		}
		tables[table] = struct{}{}
	}
	return tables, rows.Err()
}

// mysqlMetaType collapses the wide information_schema.DATA_TYPE vocabulary
// down to schema.MetaType.
func mysqlMetaType(dataType string) schema.MetaType {
	switch strings.ToLower(dataType) {
	case "tinyint", "smallint", "mediumint", "int", "bigint", "year":
		return schema.MetaInteger
	case "decimal", "numeric":
		return schema.MetaNumber
	case "float", "double":
		return schema.MetaFloat
	case "char", "varchar", "enum", "set":
		return schema.MetaChar
	case "text", "tinytext", "mediumtext", "longtext", "json":
		return schema.MetaText
	case "binary", "varbinary", "blob", "tinyblob", "mediumblob", "longblob":
		return schema.MetaBinary
	case "timestamp":
		return schema.MetaTimestamp
	case "datetime", "date", "time":
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
		where table_schema = ? and table_name = ?
		order by ordinal_position`, d.config.DBName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := orderedmap.New[string, schema.LiveColumn]()
	for rows.Next() {
		var (
			name, dataType, isNullable string
			charLen, numPrecision, numScale sql.NullInt64
			colDefault sql.NullString
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
			MetaType:     mysqlMetaType(dataType),
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

	rows, err := d.db.QueryContext(ctx, "show index from `"+table+"`")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	order := []string{}
	uniq := map[string]bool{}
	colsByIndex := map[string][]string{}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		values := make([]sql.RawBytes, len(cols))
		scanArgs := make([]any, len(cols))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, err
		}
		var keyName, columnName string
		var nonUnique string
		for i, c := range cols {
			switch strings.ToLower(c) {
			case "key_name":
				keyName = string(values[i])
			case "column_name":
				columnName = string(values[i])
			case "non_unique":
				nonUnique = string(values[i])
			}
		}
		if !includePrimary && keyName == "PRIMARY" {
			continue
		}
		if _, ok := uniq[keyName]; !ok {
			order = append(order, keyName)
		}
		uniq[keyName] = nonUnique == "0"
		colsByIndex[keyName] = append(colsByIndex[keyName], columnName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := orderedmap.New[string, adapter.IndexInfo]()
	for _, name := range order {
		out.Set(name, adapter.IndexInfo{Columns: colsByIndex[name], Unique: uniq[name]})
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
	err := d.db.QueryRowContext(ctx, "select count(*) from `"+table+"`").Scan(&n)
	return n, err
}

// renderCondition quotes cond's column with MySQL backtick syntax and
// renders it using `?` placeholders, the same convention Iterate/UpdateRow
// use for this dialect.
func renderCondition(cond adapter.Condition) (clause string, args []any) {
	col := "`" + cond.Column + "`"
	switch cond.Kind {
	case adapter.LengthGreaterThan:
		return fmt.Sprintf("length(%s) > ?", col), []any{cond.Arg}
	default:
		return col + " is null", nil
	}
}

func (d *Database) ExistsWhere(ctx context.Context, table string, cond adapter.Condition) (bool, error) {
	clause, args := renderCondition(cond)
	q := fmt.Sprintf("select exists(select 1 from `%s` where %s)", table, clause)
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
		quoted[i] = "`" + c + "`"
	}
	q := fmt.Sprintf("select %s from `%s`", strings.Join(quoted, ", "), table)
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	return &rowIterator{rows: rows, cols: columns}, nil
}

func (d *Database) SetWhere(ctx context.Context, table, column string, value any, cond adapter.Condition) error {
	clause, args := renderCondition(cond)
	q := fmt.Sprintf("update `%s` set `%s` = ? where %s", table, column, clause)
	allArgs := append([]any{value}, args...)
	_, err := d.db.ExecContext(ctx, q, allArgs...)
	return err
}

func (d *Database) UpdateRow(ctx context.Context, table string, row map[string]any) error {
	id, ok := row["id"]
	if !ok {
		return fmt.Errorf("mysql: UpdateRow requires an \"id\" key")
	}
	var setClauses []string
	var args []any
	for col, val := range row {
		if col == "id" {
			continue
		}
		setClauses = append(setClauses, "`"+col+"` = ?")
		args = append(args, val)
	}
	args = append(args, id)
	q := fmt.Sprintf("update `%s` set %s where `id` = ?", table, strings.Join(setClauses, ", "))
	_, err := d.db.ExecContext(ctx, q, args...)
	return err
}

// ConvertTableRowFormat issues ALTER TABLE ... ROW_FORMAT=DYNAMIC, the
// MySQL-specific workaround that allows longer index key prefixes on
// InnoDB tables using the antelope row format.
func (d *Database) ConvertTableRowFormat(ctx context.Context, table string) error {
	_, err := d.db.ExecContext(ctx, "alter table `"+table+"` row_format=dynamic")
	return err
}
