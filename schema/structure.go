package schema

import "regexp"

// Dialect names the target database engine a Structure is destined for.
// The core schema model carries this only so downstream generator/adapter
// selection has somewhere to read it from; it plays no part in diffing.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Structure is an ordered collection of Table definitions plus a version
// tag. Order is a property of the Tables slice; no sibling/previous-next
// pointers are materialized on Table (see DESIGN.md).
type Structure struct {
	Version      string
	Dialect      Dialect
	StructTables []Table
}

func (s *Structure) Tables() []Table { return s.StructTables }

// Table returns the declared table by name, or false.
func (s *Structure) Table(name string) (Table, bool) {
	for _, t := range s.StructTables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// FilteredView returns a new Structure containing only tables whose names
// pass both filters: inclusion (name is in limit, when limit is non-empty)
// and exclusion (name is not in exclude). Glob patterns are not resolved
// here -- callers resolve patterns to concrete names first (see
// internal/cliutil.ResolvePatterns) so this stays a pure name filter.
func (s *Structure) FilteredView(limit, exclude []string) *Structure {
	var limitSet, excludeSet map[string]bool
	if len(limit) > 0 {
		limitSet = toSet(limit)
	}
	if len(exclude) > 0 {
		excludeSet = toSet(exclude)
	}

	out := &Structure{Version: s.Version, Dialect: s.Dialect}
	for _, t := range s.StructTables {
		if limitSet != nil && !limitSet[t.Name] {
			continue
		}
		if excludeSet != nil && excludeSet[t.Name] {
			continue
		}
		out.StructTables = append(out.StructTables, t)
	}
	return out
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// reverseTypeMap maps a normalized FieldType back to the single-character
// code used by the live column descriptor, where a unique reverse mapping
// exists. It is used only to render a diagnostic character in diff
// messages, never for comparison.
var reverseTypeMap = map[FieldType]byte{
	TypeInteger:   'I',
	TypeNumber:    'N',
	TypeChar:      'C',
	TypeText:      'X',
	TypeBinary:    'B',
	TypeTimestamp: 'T',
	TypeDatetime:  'D',
}

// ExpectedTypeChar returns the live-descriptor character for t, and false
// if none exists (t has no reverse mapping).
func ExpectedTypeChar(t FieldType) (byte, bool) {
	c, ok := reverseTypeMap[t]
	return c, ok
}

// namePattern matches a bare identifier with no glob metacharacters.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// IsLiteralName reports whether s is a non-empty bare identifier made only
// of letters, digits and underscores (and so holds no glob metacharacter).
func IsLiteralName(s string) bool {
	return namePattern.MatchString(s)
}
