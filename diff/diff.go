package diff

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/generator"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

// Options selects which discrepancy categories to look for, all defaulting
// to true, plus an optional name filter applied before comparison (spec
// §4.E).
type Options struct {
	MissingTables  bool
	ExtraTables    bool
	MissingColumns bool
	ExtraColumns   bool
	ChangedColumns bool
	MissingIndexes bool
	ExtraIndexes   bool

	Limit   []string
	Exclude []string
}

// DefaultOptions returns Options with every category enabled.
func DefaultOptions() Options {
	return Options{
		MissingTables: true, ExtraTables: true, MissingColumns: true,
		ExtraColumns: true, ChangedColumns: true, MissingIndexes: true, ExtraIndexes: true,
	}
}

// exemptExtraIndexTable is the one name exempted from extra-index
// reporting (spec §4.E step e).
const exemptExtraIndexTable = "search_simpledb_index"

// Run executes the diff algorithm of spec §4.E against the declared
// structure, which the caller has already passed through
// Structure.FilteredView if desired; Options.Limit/Exclude here additionally
// govern the leftover-table sweep in step 3, which iterates tables the
// declared structure never named.
func Run(ctx context.Context, db adapter.Database, gen generator.Generator, declared *schema.Structure, opts Options) (*Result, error) {
	result := newResult()

	dbTables, err := db.GetTables(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range declared.Tables() {
		if _, ok := dbTables[t.Name]; !ok {
			if opts.MissingTables {
				result.add(t.Name, ErrorRecord{
					Table: t.Name, Type: MissingTables,
					Desc: fmt.Sprintf("table %q is missing", t.Name),
					Status: StatusError, Safety: Safe,
				})
			}
			continue
		}
		delete(dbTables, t.Name)

		if err := diffTable(ctx, db, gen, t, opts, result); err != nil {
			return nil, err
		}
	}

	if prefix := gen.Prefix(); prefix != "" {
		var limitSet, excludeSet map[string]bool
		if len(opts.Limit) > 0 {
			limitSet = toSet(opts.Limit)
		}
		if len(opts.Exclude) > 0 {
			excludeSet = toSet(opts.Exclude)
		}
		for name := range dbTables {
			if strings.HasPrefix(name, "pma_") {
				continue
			}
			if limitSet != nil && !limitSet[name] {
				continue
			}
			if excludeSet != nil && excludeSet[name] {
				continue
			}
			if !opts.ExtraTables {
				continue
			}
			safety := Unsafe
			if strings.HasPrefix(name, "test") {
				safety = Safe
			}
			result.add(name, ErrorRecord{
				Table: name, Type: ExtraTables,
				Desc: fmt.Sprintf("table %q is not declared", name),
				Status: StatusError, Safety: safety,
			})
		}
	}

	return result, nil
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func diffTable(ctx context.Context, db adapter.Database, gen generator.Generator, t schema.Table, opts Options, result *Result) error {
	dbFields, err := db.GetColumns(ctx, t.Name)
	if err != nil {
		return err
	}
	dbIndexes, err := db.GetIndexes(ctx, t.Name, false)
	if err != nil {
		return err
	}

	for _, f := range t.Fields() {
		dbf, ok := dbFields.Get(f.Name)
		if !ok {
			if opts.MissingColumns {
				safety := Safe
				if !(!f.NotNull || f.HasEffectiveDefault()) {
					empty, err := isTableEmpty(ctx, db, t.Name)
					if err != nil {
						return err
					}
					if !empty {
						safety = Unfixable
					}
				}
				result.add(t.Name, ErrorRecord{
					Table: t.Name, Type: MissingColumns, Field: f.Name,
					Desc:   fmt.Sprintf("column %s.%s is missing", t.Name, f.Name),
					Status: StatusError, Safety: safety,
				})
			}
			continue
		}

		if opts.ChangedColumns {
			diffColumn(gen, t.Name, f, dbf, result)
		}
		dbFields.Delete(f.Name)
	}

	if opts.MissingIndexes {
		for _, k := range t.Keys() {
			if k.Type == schema.KeyPrimary {
				continue
			}
			idx := schema.Index{Name: k.Name, Columns: k.Columns, Unique: k.IsUnique()}
			diffIndexCandidate(gen, t.Name, idx, dbIndexes, result)
		}
		for _, idx := range t.Indexes() {
			diffIndexCandidate(gen, t.Name, idx, dbIndexes, result)
		}
	}

	if opts.ExtraIndexes && t.Name != exemptExtraIndexTable {
		for pair := dbIndexes.Oldest(); pair != nil; pair = pair.Next() {
			result.add(t.Name, ErrorRecord{
				Table: t.Name, Type: ExtraIndexes, Index: pair.Key,
				Desc:   fmt.Sprintf("index %s.%s is not declared", t.Name, pair.Key),
				Status: StatusInfo, Safety: DBIndex,
			})
		}
	}

	if opts.ExtraColumns {
		for pair := dbFields.Oldest(); pair != nil; pair = pair.Next() {
			result.add(t.Name, ErrorRecord{
				Table: t.Name, Type: ExtraColumns, DBField: pair.Key,
				Desc:   fmt.Sprintf("column %s.%s is not declared", t.Name, pair.Key),
				Status: StatusInfo, Safety: Unsafe,
			})
		}
	}

	return nil
}

func isTableEmpty(ctx context.Context, db adapter.Database, table string) (bool, error) {
	n, err := db.CountRows(ctx, table)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// diffIndexCandidate implements spec §4.E step d for one candidate index,
// built either from a declared Key or a declared Index.
func diffIndexCandidate(gen generator.Generator, table string, idx schema.Index, dbIndexes adapter.Indexes, result *Result) {
	for pair := dbIndexes.Oldest(); pair != nil; pair = pair.Next() {
		if (schema.Index{Columns: pair.Value.Columns}).SameColumnSequence(idx) {
			dbIndexes.Delete(pair.Key)
			return
		}
	}
	addSQL := strings.Join(gen.EndedStatements(gen.AddIndexSQL(table, idx)), "\n")
	result.add(table, ErrorRecord{
		Table: table, Type: MissingIndexes, Index: idx.Name,
		Desc:   fmt.Sprintf("index %s.%s is missing:\n%s", table, idx.Name, addSQL),
		Status: StatusError, Safety: Safe,
	})
}

func diffColumn(gen generator.Generator, table string, f schema.Field, dbf schema.LiveColumn, result *Result) {
	declaredType := f.NormalizedType()
	liveType, recognized := schema.NormalizeMetaType(dbf.MetaType)

	if !recognized || declaredType != liveType {
		safety := Risky
		if declaredType == schema.TypeText {
			safety = Safe
		}
		desc := fmt.Sprintf("column %s.%s type mismatch: declared %s, live %s", table, f.Name, declaredType, dbf.MetaType)
		if c, ok := schema.ExpectedTypeChar(declaredType); ok {
			desc += fmt.Sprintf(" (expected type code %q)", string(c))
		}
		result.add(table, ErrorRecord{
			Table: table, Type: ChangedColumns, Issue: IssueType, Field: f.Name, DBField: f.Name,
			Desc: desc, Status: StatusWarning, Safety: safety,
		})
	}

	if f.NotNull != dbf.NotNull {
		safety := Safe
		if f.NotNull && !dbf.NotNull {
			safety = Risky
		}
		result.add(table, ErrorRecord{
			Table: table, Type: ChangedColumns, Issue: IssueNull, Field: f.Name, DBField: f.Name,
			Desc:   fmt.Sprintf("column %s.%s nullability mismatch: declared not null=%v, live not null=%v", table, f.Name, f.NotNull, dbf.NotNull),
			Status: StatusWarning, Safety: safety,
		})
	}

	if recognized && declaredType == liveType {
		diffLength(table, f, dbf, result)
	}

	if f.Type == schema.TypeTimestamp || f.Type == schema.TypeDatetime {
		result.add(table, ErrorRecord{
			Table: table, Type: ChangedColumns, Issue: IssueType, Field: f.Name,
			Desc:   fmt.Sprintf("column %s.%s: type %s not supported", table, f.Name, f.Type),
			Status: StatusWarning, Safety: Risky,
		})
	}

	if mismatch, declaredStr, liveStr := defaultMismatch(gen, f, dbf); mismatch {
		result.add(table, ErrorRecord{
			Table: table, Type: ChangedColumns, Issue: IssueDefault, Field: f.Name, DBField: f.Name,
			Desc:   fmt.Sprintf("column %s.%s default mismatch: declared %s, live %s", table, f.Name, declaredStr, liveStr),
			Status: StatusWarning, Safety: Safe,
		})
	}
}

func diffLength(table string, f schema.Field, dbf schema.LiveColumn, result *Result) {
	switch f.NormalizedType() {
	case schema.TypeNumber:
		if f.Type == schema.TypeFloat {
			return
		}
		length, decimals := f.Length, f.Decimals
		if decimals < dbf.Scale {
			result.add(table, lengthError(table, f.Name, Unsafe, "precision loss: fewer declared decimals than live scale"))
		} else if length < dbf.MaxLength || decimals > dbf.Scale {
			result.add(table, lengthError(table, f.Name, Risky, "numeric length/scale mismatch"))
		} else if length > dbf.MaxLength {
			result.add(table, lengthError(table, f.Name, Safe, "numeric length/scale mismatch"))
		}
	case schema.TypeChar:
		if f.Length != dbf.MaxLength {
			safety := Risky
			if f.Length > dbf.MaxLength {
				safety = Safe
			}
			result.add(table, lengthError(table, f.Name, safety, "char length mismatch"))
		}
	case schema.TypeInteger:
		if f.NormalizedLength() > dbf.MaxLength {
			result.add(table, lengthError(table, f.Name, Safe, "integer length mismatch"))
		}
	}
}

func lengthError(table, field string, safety Safety, desc string) ErrorRecord {
	return ErrorRecord{
		Table: table, Type: ChangedColumns, Issue: IssueLength, Field: field, DBField: field,
		Desc: fmt.Sprintf("column %s.%s: %s", table, field, desc), Status: StatusWarning, Safety: safety,
	}
}

// nullSentinel is the canonical string representation of an absent default,
// distinct from the literal string "NULL" a declared default could itself
// be (spec §4.E / §9).
const nullSentinel = "NULL"

// defaultMismatch reproduces the source's dynamic float/string coercion
// for comparing defaults: NUMBER fields compare as float, everything else
// as string, with a canonical null sentinel distinguishing "no default"
// from the literal string "NULL".
func defaultMismatch(gen generator.Generator, f schema.Field, dbf schema.LiveColumn) (mismatch bool, declaredStr, liveStr string) {
	declared := gen.FormattedDefault(f)
	var live *string
	if dbf.HasDefault {
		live = dbf.DefaultValue
	}

	declaredStr = renderDefault(declared)
	liveStr = renderDefault(live)

	if f.NormalizedType() == schema.TypeNumber {
		df, dOK := parseFloatPtr(declared)
		lf, lOK := parseFloatPtr(live)
		if dOK != lOK {
			return true, declaredStr, liveStr
		}
		if dOK && lOK && df != lf {
			return true, declaredStr, liveStr
		}
		return false, declaredStr, liveStr
	}

	if (declared == nil) != (live == nil) {
		return true, declaredStr, liveStr
	}
	if declared != nil && live != nil && *declared != *live {
		return true, declaredStr, liveStr
	}
	return false, declaredStr, liveStr
}

func renderDefault(v *string) string {
	if v == nil {
		return nullSentinel
	}
	return *v
}

func parseFloatPtr(v *string) (float64, bool) {
	if v == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
