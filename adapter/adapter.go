// Package adapter abstracts live-database introspection and DDL/DML
// execution. It never constructs SQL itself beyond the handful of
// information-schema queries each dialect needs for introspection -- DDL
// text comes from the injected generator (package generator).
package adapter

import (
	"context"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bwalkerl/moodle-schemasync/schema"
)

// Config carries the connection parameters common to every dialect. Not
// every field is meaningful for every dialect (e.g. Socket is MySQL-only).
type Config struct {
	DBName   string
	User     string
	Password string
	Host     string
	Port     int
	Socket   string
}

// Columns is an ordered map from column name to its live descriptor,
// preserving the database's own column order.
type Columns = *orderedmap.OrderedMap[string, schema.LiveColumn]

// IndexInfo describes one live index as returned by GetIndexes.
type IndexInfo struct {
	Columns []string
	Unique  bool
}

// Indexes is an ordered map from index name to its live description.
type Indexes = *orderedmap.OrderedMap[string, IndexInfo]

// RowIterator streams rows of a fixed column projection, one row at a time.
// Implementations must be safe to abandon (Close without exhausting).
type RowIterator interface {
	Next(ctx context.Context) (row map[string]any, ok bool, err error)
	Close() error
}

// ConditionKind names the narrow set of single-column predicates the risk
// evaluator and fixer issue against live data. A Condition carries an
// unquoted column name so that each dialect's adapter -- not the
// dialect-agnostic caller -- picks the identifier quoting and placeholder
// syntax that renders it (spec §4.F/§4.G data probes).
type ConditionKind int

const (
	// IsNull matches rows where Column is null.
	IsNull ConditionKind = iota
	// LengthGreaterThan matches rows where Column's string length exceeds
	// Arg (an int).
	LengthGreaterThan
)

// Condition is a dialect-neutral single-column WHERE predicate.
type Condition struct {
	Column string
	Kind   ConditionKind
	Arg    any
}

// Database is the abstraction the rest of the engine consumes for all live
// introspection and execution. Every method is a potential blocking I/O
// point (spec §5); context cancellation is honoured at each call, not
// mid-call.
type Database interface {
	GetTables(ctx context.Context) (map[string]struct{}, error)
	GetColumns(ctx context.Context, table string) (Columns, error)
	GetIndexes(ctx context.Context, table string, includePrimary bool) (Indexes, error)

	// ExecuteDDL runs statements as one batch, transactionally where the
	// dialect supports transactional DDL. affectedTables is informational
	// (used for cache invalidation) and does not change which statements
	// run.
	ExecuteDDL(ctx context.Context, statements []string, affectedTables []string) error

	CountRows(ctx context.Context, table string) (int64, error)
	ExistsWhere(ctx context.Context, table string, cond Condition) (bool, error)
	Iterate(ctx context.Context, table string, columns []string) (RowIterator, error)
	SetWhere(ctx context.Context, table, column string, value any, cond Condition) error
	UpdateRow(ctx context.Context, table string, row map[string]any) error

	// ResetCaches invalidates any memoized column/index maps. The fixer
	// calls this once before a repair run; no other component mutates the
	// cache afterwards (spec §5).
	ResetCaches()

	// ConvertTableRowFormat is an optional dialect hook used by the DDL
	// dispatcher's add_index retry (spec §4.D). Implementations that have
	// no such concept return ErrRowFormatUnsupported.
	ConvertTableRowFormat(ctx context.Context, table string) error

	Close() error
}
