// Package fixer orchestrates the ordered repair passes that bring a live
// database into alignment with a declared schema, including the data
// transformations a repair may require and the transient index
// drop/restore sequence around column alignment.
package fixer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/ddl"
	"github.com/bwalkerl/moodle-schemasync/diff"
	"github.com/bwalkerl/moodle-schemasync/risk"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

// Fixer applies repairs in the strict pass order of spec §4.G.
type Fixer struct {
	Dispatcher *ddl.Dispatcher
	DB         adapter.Database
	Declared   *schema.Structure
	Log        *slog.Logger
}

func New(dispatcher *ddl.Dispatcher, db adapter.Database, declared *schema.Structure, log *slog.Logger) *Fixer {
	if log == nil {
		log = slog.Default()
	}
	return &Fixer{Dispatcher: dispatcher, DB: db, Declared: declared, Log: log}
}

// Fix runs the seven ordered passes against result, applying only errors
// whose (type, safety) is requested via levels. It returns the number of
// applied changes.
func (fx *Fixer) Fix(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	fx.DB.ResetCaches()

	count := 0

	n, err := fx.addMissingTables(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	n, err = fx.addMissingFields(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	if levels[diff.Risky] {
		if err := risk.Evaluate(ctx, fx.DB, fx.Declared, result); err != nil {
			return count, err
		}
	}
	n, err = fx.alignColumnDefinitions(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	n, err = fx.addMissingIndexes(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	n, err = fx.dropExtraIndexes(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	n, err = fx.dropExtraFields(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	n, err = fx.dropExtraTables(ctx, result, levels)
	count += n
	if err != nil {
		return count, err
	}

	return count, nil
}

func matches(e diff.ErrorRecord, t diff.ErrorType, levels map[diff.Safety]bool) bool {
	return e.Type == t && levels[e.Safety]
}

// 1. add_missing_tables
func (fx *Fixer) addMissingTables(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.MissingTables, levels) {
				continue
			}
			table, ok := fx.Declared.Table(tableName)
			if !ok {
				continue
			}
			tables, err := fx.DB.GetTables(ctx)
			if err != nil {
				return count, err
			}
			if _, exists := tables[tableName]; exists {
				continue
			}
			if err := fx.Dispatcher.CreateTable(ctx, table); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// 2. add_missing_fields
func (fx *Fixer) addMissingFields(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.MissingColumns, levels) {
				continue
			}
			table, ok := fx.Declared.Table(tableName)
			if !ok {
				continue
			}
			field, ok := table.Field(e.Field)
			if !ok {
				continue
			}
			cols, err := fx.DB.GetColumns(ctx, tableName)
			if err != nil {
				return count, err
			}
			if _, exists := cols.Get(field.Name); exists {
				continue
			}
			n, err := fx.DB.CountRows(ctx, tableName)
			if err != nil {
				return count, err
			}
			if err := fx.Dispatcher.AddField(ctx, tableName, field, n == 0); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// 3. align_column_definitions
func (fx *Fixer) alignColumnDefinitions(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	type key struct{ table, field string }
	seen := map[key]bool{}

	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if e.Type != diff.ChangedColumns || !levels[e.Safety] {
				continue
			}
			k := key{tableName, e.Field}
			if seen[k] {
				continue
			}
			seen[k] = true

			issueCount := countIssues(result.Errors(tableName), e.Field)

			table, ok := fx.Declared.Table(tableName)
			if !ok {
				continue
			}
			field, ok := table.Field(e.Field)
			if !ok {
				continue
			}

			if err := fx.applyDataFixes(ctx, tableName, field, result.Errors(tableName)); err != nil {
				return count, err
			}

			droppedIndexes, err := fx.dropReferencingIndexes(ctx, tableName, field.Name)
			if err != nil {
				return count, err
			}

			alterErr := fx.Dispatcher.ChangeFieldType(ctx, tableName, field)
			if alterErr == nil {
				if err := fx.Dispatcher.ChangeFieldDefault(ctx, tableName, field); err != nil {
					fx.Log.Warn("change field default failed", "table", tableName, "field", field.Name, "error", err)
				}
				count += issueCount
			} else {
				fx.Log.Warn("column alignment failed, will restore indexes and move on", "table", tableName, "field", field.Name, "error", alterErr)
			}

			if err := fx.restoreIndexes(ctx, tableName, droppedIndexes); err != nil {
				fx.Log.Warn("index restore failed", "table", tableName, "field", field.Name, "error", err)
			}
		}
	}
	return count, nil
}

func countIssues(errs []diff.ErrorRecord, field string) int {
	seen := map[diff.Issue]struct{}{}
	for _, e := range errs {
		if e.Type == diff.ChangedColumns && e.Field == field {
			seen[e.Issue] = struct{}{}
		}
	}
	return len(seen)
}

func (fx *Fixer) applyDataFixes(ctx context.Context, table string, field schema.Field, errs []diff.ErrorRecord) error {
	var fixes map[diff.DataFix]struct{}
	for _, e := range errs {
		if e.Type == diff.ChangedColumns && e.Field == field.Name {
			for f := range e.Fixes {
				if fixes == nil {
					fixes = map[diff.DataFix]struct{}{}
				}
				fixes[f] = struct{}{}
			}
		}
	}

	if _, ok := fixes[diff.FixNullDefault]; ok {
		value := ""
		if field.Default != nil {
			value = *field.Default
		}
		if err := fx.DB.SetWhere(ctx, table, field.Name, value, adapter.Condition{Column: field.Name, Kind: adapter.IsNull}); err != nil {
			return fmt.Errorf("nulldefault fix on %s.%s: %w", table, field.Name, err)
		}
	}

	if _, ok := fixes[diff.FixTruncate]; ok {
		if err := fx.truncateColumn(ctx, table, field); err != nil {
			return fmt.Errorf("truncate fix on %s.%s: %w", table, field.Name, err)
		}
	}

	return nil
}

func (fx *Fixer) truncateColumn(ctx context.Context, table string, field schema.Field) error {
	it, err := fx.DB.Iterate(ctx, table, []string{"id", field.Name})
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s, isStr := row[field.Name].(string)
		if !isStr || len(s) <= field.Length {
			continue
		}
		truncated := mbSubstring(s, 0, field.Length)
		if err := fx.DB.UpdateRow(ctx, table, map[string]any{"id": row["id"], field.Name: truncated}); err != nil {
			return err
		}
	}
	return nil
}

// mbSubstring truncates on rune boundaries, never splitting a multi-byte
// character -- the Go analogue of the source's mb_substring.
func mbSubstring(s string, start, length int) string {
	r := []rune(s)
	if start >= len(r) {
		return ""
	}
	end := start + length
	if end > len(r) {
		end = len(r)
	}
	return string(r[start:end])
}

func (fx *Fixer) dropReferencingIndexes(ctx context.Context, table, field string) ([]schema.Index, error) {
	indexes, err := fx.DB.GetIndexes(ctx, table, false)
	if err != nil {
		return nil, err
	}
	var dropped []schema.Index
	for pair := indexes.Oldest(); pair != nil; pair = pair.Next() {
		for _, c := range pair.Value.Columns {
			if c == field {
				dropped = append(dropped, schema.Index{Name: pair.Key, Columns: pair.Value.Columns, Unique: pair.Value.Unique})
				break
			}
		}
	}
	for _, idx := range dropped {
		if err := fx.Dispatcher.DropIndex(ctx, table, idx.Name); err != nil {
			return dropped, err
		}
	}
	return dropped, nil
}

func (fx *Fixer) restoreIndexes(ctx context.Context, table string, indexes []schema.Index) error {
	var firstErr error
	for _, idx := range indexes {
		if err := fx.Dispatcher.AddIndex(ctx, table, idx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// 4. add_missing_indexes
func (fx *Fixer) addMissingIndexes(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.MissingIndexes, levels) {
				continue
			}
			table, ok := fx.Declared.Table(tableName)
			if !ok {
				continue
			}
			idx, ok := findIndexOrKeyIndex(table, e.Index)
			if !ok {
				continue
			}
			if dependencyMissing, err := fx.anyColumnMissing(ctx, tableName, idx.Columns); err != nil {
				return count, err
			} else if dependencyMissing {
				continue
			}
			if err := fx.Dispatcher.AddIndex(ctx, tableName, idx); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func findIndexOrKeyIndex(table schema.Table, name string) (schema.Index, bool) {
	for _, idx := range table.Indexes() {
		if idx.Name == name {
			return idx, true
		}
	}
	for _, k := range table.Keys() {
		if k.Name == name && k.Type != schema.KeyPrimary {
			return schema.Index{Name: k.Name, Columns: k.Columns, Unique: k.IsUnique()}, true
		}
	}
	return schema.Index{}, false
}

func (fx *Fixer) anyColumnMissing(ctx context.Context, table string, columns []string) (bool, error) {
	cols, err := fx.DB.GetColumns(ctx, table)
	if err != nil {
		return false, err
	}
	for _, c := range columns {
		if _, ok := cols.Get(c); !ok {
			return true, nil
		}
	}
	return false, nil
}

// 5. drop_extra_indexes
func (fx *Fixer) dropExtraIndexes(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.ExtraIndexes, levels) {
				continue
			}
			if err := fx.Dispatcher.DropIndex(ctx, tableName, e.Index); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// 6. drop_extra_fields
func (fx *Fixer) dropExtraFields(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.ExtraColumns, levels) {
				continue
			}
			if _, err := fx.dropReferencingIndexes(ctx, tableName, e.DBField); err != nil {
				return count, err
			}
			if err := fx.Dispatcher.DropField(ctx, tableName, e.DBField); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

// 7. drop_extra_tables
func (fx *Fixer) dropExtraTables(ctx context.Context, result *diff.Result, levels map[diff.Safety]bool) (int, error) {
	count := 0
	for _, tableName := range result.Tables() {
		for _, e := range result.Errors(tableName) {
			if !matches(e, diff.ExtraTables, levels) {
				continue
			}
			tables, err := fx.DB.GetTables(ctx)
			if err != nil {
				return count, err
			}
			if _, exists := tables[tableName]; !exists {
				continue
			}
			if err := fx.Dispatcher.DropTable(ctx, tableName); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
