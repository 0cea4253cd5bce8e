// Package ddl wraps a generator.Generator and an adapter.Database into a
// dispatcher exposing high-level, existence/dependency-checked structural
// operations. It never builds SQL itself; it decides *whether* an
// operation is safe to attempt and delegates the *how* to the generator.
package ddl

import "errors"

// Sentinel errors corresponding to the sum-typed error kinds of spec §7.
// Dispatcher methods wrap these with fmt.Errorf("...: %w", Err*) so callers
// can errors.Is/errors.As into the specific kind.
var (
	ErrUnknown            = errors.New("ddl: unknown error")
	ErrTableMissing       = errors.New("ddl: table does not exist")
	ErrFieldMissing       = errors.New("ddl: field does not exist")
	ErrTableAlreadyExists = errors.New("ddl: table already exists")
	ErrFieldAlreadyExists = errors.New("ddl: field already exists")
	ErrDependency         = errors.New("ddl: column participates in an index")
	ErrChangeStructure    = errors.New("ddl: database rejected the structural change")
)
