package adapter

import "errors"

// ErrRowFormatUnsupported is returned by ConvertTableRowFormat when the
// dialect has no such hook. The DDL dispatcher treats this as "no retry
// available" rather than as a failure of the add-index operation itself.
var ErrRowFormatUnsupported = errors.New("adapter: row format conversion is not supported by this dialect")

// ErrDatabaseNotInitialised is returned when the target database connects
// successfully but has no tables at all -- a fresh Moodle database that has
// never been installed, as distinct from a credentials/connection failure.
// The CLI driver maps this to a dedicated exit code.
var ErrDatabaseNotInitialised = errors.New("adapter: database has not been initialised (no tables found)")
