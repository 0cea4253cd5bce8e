// Package generator defines the per-dialect SQL emission surface the DDL
// dispatcher (package ddl) consumes. Generators never touch the database;
// they only produce text.
package generator

import "github.com/bwalkerl/moodle-schemasync/schema"

// Generator emits dialect-correct SQL for every structural operation the
// dispatcher performs, plus a handful of pure helpers (default formatting,
// identifier synthesis) the diff engine and fixer also need.
type Generator interface {
	CreateTableSQL(table schema.Table) []string
	CreateStructureSQL(s *schema.Structure) []string
	DropTableSQL(table string) []string
	RenameTableSQL(from, to string) []string

	AddFieldSQL(table string, f schema.Field) []string
	DropFieldSQL(table, field string) []string
	AlterFieldSQL(table string, f schema.Field) []string
	ModifyDefaultSQL(table string, f schema.Field) []string
	RenameFieldSQL(table, from string, f schema.Field) []string

	AddKeySQL(table string, k schema.Key) []string
	DropKeySQL(table string, k schema.Key) []string
	RenameKeySQL(table, from string, k schema.Key) []string

	AddIndexSQL(table string, idx schema.Index) []string
	DropIndexSQL(table string, idx schema.Index) []string
	RenameIndexSQL(table, from string, idx schema.Index) []string

	ResetSequenceSQL(table, field string) []string

	// DefaultValue returns the field's declared default rendered in the
	// dialect's literal syntax ("DEFAULT ..."), or "" if none.
	DefaultValue(f schema.Field) string
	// FormattedDefault returns the bare default value (no "DEFAULT"
	// keyword) in the canonical form used for default-mismatch comparison;
	// nil represents an absent default.
	FormattedDefault(f schema.Field) *string

	// IdentifierFor synthesizes a canonical constraint/index name from a
	// table, its participating columns and a suffix ("pk"|"uk"|"fk").
	IdentifierFor(table string, columns []string, suffix string) string
	// PrimaryKeyName returns the dialect's fixed primary-key constraint
	// name, or "" if the dialect names primary keys per-table via
	// IdentifierFor instead.
	PrimaryKeyName() string
	// Prefix returns the table-name prefix this generator was configured
	// with, or "" if none. Used by the diff engine's leftover-table sweep
	// (spec §4.E step 3).
	Prefix() string

	// EndedStatements terminates each statement with the dialect's
	// statement terminator, for embedding into human-readable error text.
	EndedStatements(sqls []string) []string
}
