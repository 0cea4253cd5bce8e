// Package diff compares a declared schema.Structure against a live
// database (via adapter.Database) and produces a typed, ordered set of
// discrepancy records classified by safety level. It never mutates either
// side; it only observes and reports.
package diff

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Safety is the ordered classification of a discrepancy (spec Glossary).
// The zero value is the most severe member's opposite end deliberately
// avoided -- callers must always set Safety explicitly.
type Safety int

const (
	Safe Safety = iota
	DBIndex
	Risky
	Unsafe
	Unfixable
)

func (s Safety) String() string {
	switch s {
	case Safe:
		return "safe"
	case DBIndex:
		return "dbindex"
	case Risky:
		return "risky"
	case Unsafe:
		return "unsafe"
	case Unfixable:
		return "unfixable"
	default:
		return "unknown"
	}
}

// Max returns the more severe of two safety levels under the ordering
// safe < dbindex < risky < unsafe < unfixable.
func Max(a, b Safety) Safety {
	if b > a {
		return b
	}
	return a
}

// ErrorType enumerates the category of discrepancy.
type ErrorType string

const (
	MissingTables  ErrorType = "missingtables"
	ExtraTables    ErrorType = "extratables"
	MissingColumns ErrorType = "missingcolumns"
	ExtraColumns   ErrorType = "extracolumns"
	ChangedColumns ErrorType = "changedcolumns"
	MissingIndexes ErrorType = "missingindexes"
	ExtraIndexes   ErrorType = "extraindexes"
)

// Issue narrows a ChangedColumns record to the specific mismatch kind.
type Issue string

const (
	IssueType    Issue = "type"
	IssueNull    Issue = "null"
	IssueLength  Issue = "length"
	IssueDefault Issue = "default"
)

// Status is the human-facing severity the driver prints.
type Status string

const (
	StatusOK      Status = "OK"
	StatusInfo    Status = "INFO"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// DataFix names a data transformation a repair may require before the
// corresponding schema change can be applied.
type DataFix string

const (
	FixNullDefault DataFix = "nulldefault"
	FixTruncate    DataFix = "truncate"
)

// ErrorRecord is the closed, tagged-variant discrepancy record of spec §3.
// Dynamic ad-hoc fields from the source are deliberately NOT reproduced;
// every field below is always present (zero-valued when not applicable).
type ErrorRecord struct {
	Table   string
	Type    ErrorType
	Issue   Issue // only meaningful for ChangedColumns
	Field   string
	DBField string
	Index   string
	Desc    string
	Status  Status
	Safety  Safety
	Fixes   map[DataFix]struct{}
}

// HasFix reports whether f has been recorded as required for this error.
func (e ErrorRecord) HasFix(f DataFix) bool {
	_, ok := e.Fixes[f]
	return ok
}

// AddFix records f as a data transformation this error requires.
func (e *ErrorRecord) AddFix(f DataFix) {
	if e.Fixes == nil {
		e.Fixes = map[DataFix]struct{}{}
	}
	e.Fixes[f] = struct{}{}
}

// Result is the diff engine's output: an ordered table name -> error list
// map, preserving discovery order (spec §5's ordering guarantee).
type Result struct {
	byTable *orderedmap.OrderedMap[string, []ErrorRecord]
}

func newResult() *Result {
	return &Result{byTable: orderedmap.New[string, []ErrorRecord]()}
}

func (r *Result) add(table string, e ErrorRecord) {
	existing, _ := r.byTable.Get(table)
	r.byTable.Set(table, append(existing, e))
}

// Tables returns table names in discovery order.
func (r *Result) Tables() []string {
	var out []string
	for pair := r.byTable.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Errors returns the ordered error list for table.
func (r *Result) Errors(table string) []ErrorRecord {
	v, _ := r.byTable.Get(table)
	return v
}

// SetErrors replaces the error list for table. Used by the risk evaluator
// to write back escalated records in place.
func (r *Result) SetErrors(table string, errs []ErrorRecord) {
	r.byTable.Set(table, errs)
}

// IsEmpty reports whether the result has no error records at all.
func (r *Result) IsEmpty() bool {
	for pair := r.byTable.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) > 0 {
			return false
		}
	}
	return true
}

// All returns every error record across every table, preserving order.
func (r *Result) All() []ErrorRecord {
	var out []ErrorRecord
	for pair := r.byTable.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value...)
	}
	return out
}

// Summarize reduces the result to table -> description strings, the
// "summary mode" projection of spec §4.E.
func (r *Result) Summarize() map[string][]string {
	out := make(map[string][]string)
	for pair := r.byTable.Oldest(); pair != nil; pair = pair.Next() {
		var descs []string
		for _, e := range pair.Value {
			descs = append(descs, e.Desc)
		}
		out[pair.Key] = descs
	}
	return out
}
