// Package risk implements the risk evaluator: it probes live data to turn
// "risky" changedcolumns errors into a concrete safe/unsafe/unfixable
// classification, recording any data-fix tags the fixer must run first.
package risk

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/diff"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

type columnKey struct {
	table, field string
}

// group is the per-(table,column) collapsed view of every changedcolumns
// record sharing that column (spec §4.F).
type group struct {
	table, field string
	issues       map[diff.Issue]struct{}
	safety       diff.Safety
}

// Evaluate mutates result's changedcolumns records in place, escalating
// every "risky" group to safe/unsafe/unfixable. declared supplies the
// target Field definitions the probes need (length, decimals, notnull).
func Evaluate(ctx context.Context, db adapter.Database, declared *schema.Structure, result *diff.Result) error {
	groups := map[columnKey]*group{}
	var order []columnKey

	for _, table := range result.Tables() {
		errs := result.Errors(table)
		for _, e := range errs {
			if e.Type != diff.ChangedColumns {
				continue
			}
			k := columnKey{table, e.Field}
			g, ok := groups[k]
			if !ok {
				g = &group{table: table, field: e.Field, issues: map[diff.Issue]struct{}{}}
				groups[k] = g
				order = append(order, k)
			}
			g.issues[e.Issue] = struct{}{}
			g.safety = diff.Max(g.safety, e.Safety)
		}
	}

	fixes := map[columnKey]map[diff.DataFix]struct{}{}
	safeties := map[columnKey]diff.Safety{}

	for _, k := range order {
		g := groups[k]
		safeties[k] = g.safety
		if g.safety != diff.Risky {
			continue
		}

		table, ok := declared.Table(g.table)
		if !ok {
			continue
		}
		field, ok := table.Field(g.field)
		if !ok {
			continue
		}

		safety := diff.Safe
		recordedFixes := map[diff.DataFix]struct{}{}

		if _, has := g.issues[diff.IssueNull]; has && field.NotNull {
			exists, err := db.ExistsWhere(ctx, g.table, adapter.Condition{Column: g.field, Kind: adapter.IsNull})
			if err != nil {
				return fmt.Errorf("risk: probing nulls in %s.%s: %w", g.table, g.field, err)
			}
			if exists {
				safety = diff.Max(safety, diff.Unsafe)
				recordedFixes[diff.FixNullDefault] = struct{}{}
			}
		}

		stop := false
		if _, has := g.issues[diff.IssueType]; has {
			switch field.NormalizedType() {
			case schema.TypeText, schema.TypeChar:
				// no type-validity probe needed for textual targets
			case schema.TypeInteger:
				ok, err := allValuesSatisfy(ctx, db, g.table, g.field, isStrictInteger)
				if err != nil {
					return err
				}
				if !ok {
					safety = diff.Unfixable
					stop = true
				}
			case schema.TypeNumber:
				ok, err := allValuesSatisfy(ctx, db, g.table, g.field, isNumeric)
				if err != nil {
					return err
				}
				if !ok {
					safety = diff.Unfixable
					stop = true
				}
			default:
				safety = diff.Unfixable
				stop = true
			}
		}

		if !stop {
			switch field.NormalizedType() {
			case schema.TypeText, schema.TypeInteger:
				// no length check
			case schema.TypeChar:
				exists, err := db.ExistsWhere(ctx, g.table, adapter.Condition{Column: g.field, Kind: adapter.LengthGreaterThan, Arg: field.Length})
				if err != nil {
					return fmt.Errorf("risk: probing length in %s.%s: %w", g.table, g.field, err)
				}
				if exists {
					safety = diff.Max(safety, diff.Unsafe)
					recordedFixes[diff.FixTruncate] = struct{}{}
				}
			case schema.TypeNumber:
				liveCol, lcErr := liveColumn(ctx, db, g.table, g.field)
				if lcErr != nil {
					return lcErr
				}
				if liveCol != nil && field.Decimals < liveCol.Scale {
					safety = diff.Max(safety, diff.Unsafe)
				}
				ok2, unfixable, err := checkNumericDigits(ctx, db, g.table, g.field, field.Length, field.Decimals)
				if err != nil {
					return err
				}
				if unfixable {
					safety = diff.Unfixable
				} else if !ok2 && safety != diff.Unfixable {
					safety = diff.Max(safety, diff.Unsafe)
				}
			default:
				safety = diff.Unfixable
			}
		}

		safeties[k] = safety
		fixes[k] = recordedFixes
	}

	for _, table := range result.Tables() {
		errs := result.Errors(table)
		changed := false
		for i := range errs {
			if errs[i].Type != diff.ChangedColumns {
				continue
			}
			k := columnKey{table, errs[i].Field}
			if s, ok := safeties[k]; ok {
				errs[i].Safety = s
				changed = true
			}
			if fs, ok := fixes[k]; ok {
				for f := range fs {
					errs[i].AddFix(f)
				}
				changed = true
			}
		}
		if changed {
			result.SetErrors(table, errs)
		}
	}

	return nil
}

// liveColumn fetches the live descriptor for one column, or nil if the
// column does not exist live (already reported as missingcolumns
// elsewhere; the risk evaluator has nothing further to say about it).
func liveColumn(ctx context.Context, db adapter.Database, table, field string) (*schema.LiveColumn, error) {
	cols, err := db.GetColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	c, ok := cols.Get(field)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func allValuesSatisfy(ctx context.Context, db adapter.Database, table, column string, pred func(string) bool) (bool, error) {
	it, err := db.Iterate(ctx, table, []string{column})
	if err != nil {
		return false, err
	}
	defer it.Close()

	for {
		row, ok, err := it.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		v := row[column]
		if v == nil {
			continue
		}
		if !pred(fmt.Sprint(v)) {
			return false, nil
		}
	}
	return true, nil
}

func isStrictInteger(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// checkNumericDigits streams every value of column, splitting on the
// decimal point after stripping a leading "-", and reports whether every
// row fits within length/decimals. unfixable is true the moment any row's
// integer-digit count exceeds length-decimals (spec §4.F step 4).
func checkNumericDigits(ctx context.Context, db adapter.Database, table, column string, length, decimals int) (ok bool, unfixable bool, err error) {
	it, iterErr := db.Iterate(ctx, table, []string{column})
	if iterErr != nil {
		return false, false, iterErr
	}
	defer it.Close()

	ok = true
	for {
		row, has, nextErr := it.Next(ctx)
		if nextErr != nil {
			return false, false, nextErr
		}
		if !has {
			break
		}
		v := row[column]
		if v == nil {
			continue
		}
		s := strings.TrimPrefix(strings.TrimSpace(fmt.Sprint(v)), "-")
		intPart, fracPart, _ := strings.Cut(s, ".")
		if len(intPart) > length-decimals {
			return false, true, nil
		}
		if len(fracPart) > decimals {
			ok = false
		}
	}
	return ok, false, nil
}
