package ddl

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwalkerl/moodle-schemasync/adapter"
	"github.com/bwalkerl/moodle-schemasync/generator"
	"github.com/bwalkerl/moodle-schemasync/schema"
)

// Dispatcher is the safe wrapper around a Generator+Database pair described
// in spec §4.D: every operation runs its existence/dependency checks before
// asking the generator for SQL and the adapter to execute it.
type Dispatcher struct {
	Gen generator.Generator
	DB  adapter.Database
}

func New(gen generator.Generator, db adapter.Database) *Dispatcher {
	return &Dispatcher{Gen: gen, DB: db}
}

func (d *Dispatcher) tableExists(ctx context.Context, table string) (bool, error) {
	tables, err := d.DB.GetTables(ctx)
	if err != nil {
		return false, err
	}
	_, ok := tables[table]
	return ok, nil
}

func (d *Dispatcher) fieldExists(ctx context.Context, table, field string) (bool, error) {
	cols, err := d.DB.GetColumns(ctx, table)
	if err != nil {
		return false, err
	}
	_, ok := cols.Get(field)
	return ok, nil
}

// CreateTable creates a declared table that does not yet exist live.
func (d *Dispatcher) CreateTable(ctx context.Context, table schema.Table) error {
	exists, err := d.tableExists(ctx, table.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create table %q: %w", table.Name, ErrTableAlreadyExists)
	}
	stmts := d.Gen.CreateTableSQL(table)
	if len(stmts) == 0 {
		return fmt.Errorf("create table %q: generator produced no SQL: %w", table.Name, ErrUnknown)
	}
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table.Name}); err != nil {
		return fmt.Errorf("create table %q: %w", table.Name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// DropTable drops a live table that is no longer declared.
func (d *Dispatcher) DropTable(ctx context.Context, table string) error {
	exists, err := d.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("drop table %q: %w", table, ErrTableMissing)
	}
	stmts := d.Gen.DropTableSQL(table)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("drop table %q: %w", table, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// RenameTable disambiguates "already renamed" (source absent, target
// present) from a genuine name clash.
func (d *Dispatcher) RenameTable(ctx context.Context, from, to string) error {
	if from == "" || to == "" {
		return fmt.Errorf("rename table: empty name: %w", ErrUnknown)
	}
	fromExists, err := d.tableExists(ctx, from)
	if err != nil {
		return err
	}
	toExists, err := d.tableExists(ctx, to)
	if err != nil {
		return err
	}
	if !fromExists && toExists {
		// Already renamed by a prior run; idempotent no-op.
		return nil
	}
	if !fromExists {
		return fmt.Errorf("rename table %q to %q: %w", from, to, ErrTableMissing)
	}
	if toExists {
		return fmt.Errorf("rename table %q to %q: target already in use: %w", from, to, ErrTableAlreadyExists)
	}
	stmts := d.Gen.RenameTableSQL(from, to)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{from, to}); err != nil {
		return fmt.Errorf("rename table %q to %q: %w", from, to, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// AddField adds a declared column not yet present live.
func (d *Dispatcher) AddField(ctx context.Context, table string, f schema.Field, tableEmpty bool) error {
	exists, err := d.fieldExists(ctx, table, f.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("add field %s.%s: %w", table, f.Name, ErrFieldAlreadyExists)
	}
	if f.NotNull && !f.HasEffectiveDefault() && !tableEmpty {
		return fmt.Errorf("add field %s.%s: not null with no default on non-empty table: %w", table, f.Name, ErrUnknown)
	}
	stmts := d.Gen.AddFieldSQL(table, f)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("add field %s.%s: %w", table, f.Name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

func (d *Dispatcher) columnInAnyIndex(ctx context.Context, table, field string) (bool, error) {
	idxs, err := d.DB.GetIndexes(ctx, table, true)
	if err != nil {
		return false, err
	}
	for pair := idxs.Oldest(); pair != nil; pair = pair.Next() {
		for _, c := range pair.Value.Columns {
			if c == field {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *Dispatcher) checkFieldOp(ctx context.Context, table, field string) error {
	exists, err := d.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s: %w", table, ErrTableMissing)
	}
	fieldExists, err := d.fieldExists(ctx, table, field)
	if err != nil {
		return err
	}
	if !fieldExists {
		return fmt.Errorf("%s.%s: %w", table, field, ErrFieldMissing)
	}
	inIndex, err := d.columnInAnyIndex(ctx, table, field)
	if err != nil {
		return err
	}
	if inIndex {
		return fmt.Errorf("%s.%s: %w", table, field, ErrDependency)
	}
	return nil
}

// DropField drops a live column no longer declared. The caller MUST drop
// any referencing indexes first; this dispatcher never does so implicitly.
func (d *Dispatcher) DropField(ctx context.Context, table, field string) error {
	if err := d.checkFieldOp(ctx, table, field); err != nil {
		return fmt.Errorf("drop field: %w", err)
	}
	stmts := d.Gen.DropFieldSQL(table, field)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("drop field %s.%s: %w", table, field, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// ChangeFieldType is the single code path every column-definition change
// (type, length/precision, nullability) and all of the deprecated wrappers
// below route through (spec §9). A default change goes through
// ChangeFieldDefault instead.
func (d *Dispatcher) ChangeFieldType(ctx context.Context, table string, f schema.Field) error {
	if err := d.checkFieldOp(ctx, table, f.Name); err != nil {
		return fmt.Errorf("change field type: %w", err)
	}
	stmts := d.Gen.AlterFieldSQL(table, f)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("change field type %s.%s: %w", table, f.Name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// ChangeFieldDefault applies only the default-value clause; some engines
// (notably MySQL across certain type changes) do not carry a column's
// default through a type-altering statement, so the fixer calls this
// unconditionally after ChangeFieldType.
func (d *Dispatcher) ChangeFieldDefault(ctx context.Context, table string, f schema.Field) error {
	if err := d.checkFieldOp(ctx, table, f.Name); err != nil {
		return fmt.Errorf("change field default: %w", err)
	}
	stmts := d.Gen.ModifyDefaultSQL(table, f)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("change field default %s.%s: %w", table, f.Name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// ChangeFieldPrecision, ChangeFieldNotNull and ChangeFieldUnsigned are kept
// as named entry points for call-site clarity; all three delegate to
// ChangeFieldType (spec §9 design note).
func (d *Dispatcher) ChangeFieldPrecision(ctx context.Context, table string, f schema.Field) error {
	return d.ChangeFieldType(ctx, table, f)
}

func (d *Dispatcher) ChangeFieldNotNull(ctx context.Context, table string, f schema.Field) error {
	return d.ChangeFieldType(ctx, table, f)
}

func (d *Dispatcher) ChangeFieldUnsigned(ctx context.Context, table string, f schema.Field) error {
	return d.ChangeFieldType(ctx, table, f)
}

// RenameField rejects renaming "id" and requires the full new field spec.
func (d *Dispatcher) RenameField(ctx context.Context, table, from string, to schema.Field) error {
	if from == "id" {
		return fmt.Errorf("rename field %s.id: renaming id is not permitted: %w", table, ErrUnknown)
	}
	if err := d.checkFieldOp(ctx, table, from); err != nil {
		return fmt.Errorf("rename field: %w", err)
	}
	stmts := d.Gen.RenameFieldSQL(table, from, to)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("rename field %s.%s: %w", table, from, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// IndexExists is true iff a live index has an exact, order-sensitive
// column-sequence match with idx.
func (d *Dispatcher) IndexExists(ctx context.Context, table string, idx schema.Index) (bool, error) {
	live, err := d.DB.GetIndexes(ctx, table, true)
	if err != nil {
		return false, err
	}
	for pair := live.Oldest(); pair != nil; pair = pair.Next() {
		if (schema.Index{Columns: pair.Value.Columns}).SameColumnSequence(idx) {
			return true, nil
		}
	}
	return false, nil
}

// FindIndexName returns every live index name whose column SET equals
// idx's columns. This is intentionally set equality, unlike IndexExists's
// sequence equality -- see schema.Index and DESIGN.md.
func (d *Dispatcher) FindIndexName(ctx context.Context, table string, idx schema.Index) ([]string, error) {
	live, err := d.DB.GetIndexes(ctx, table, true)
	if err != nil {
		return nil, err
	}
	var names []string
	for pair := live.Oldest(); pair != nil; pair = pair.Next() {
		if (schema.Index{Columns: pair.Value.Columns}).SameColumnSet(idx) {
			names = append(names, pair.Key)
		}
	}
	return names, nil
}

// FindKeyName is purely nominal: it never consults the database, only the
// generator's naming convention.
func (d *Dispatcher) FindKeyName(table string, k schema.Key) string {
	if k.Type == schema.KeyPrimary {
		if name := d.Gen.PrimaryKeyName(); name != "" {
			return name
		}
		return d.Gen.IdentifierFor(table, k.Columns, "pk")
	}
	suffix := "uk"
	if k.Type == schema.KeyForeign || k.Type == schema.KeyForeignUnique {
		suffix = "fk"
	}
	return d.Gen.IdentifierFor(table, k.Columns, suffix)
}

func (d *Dispatcher) indexExistsByName(ctx context.Context, table, name string) (bool, error) {
	live, err := d.DB.GetIndexes(ctx, table, true)
	if err != nil {
		return false, err
	}
	_, ok := live.Get(name)
	return ok, nil
}

// AddIndex creates a declared secondary index. If ExecuteDDL fails and the
// adapter's row-format-conversion hook succeeds, the dispatcher retries the
// statements exactly once.
func (d *Dispatcher) AddIndex(ctx context.Context, table string, idx schema.Index) error {
	exists, err := d.indexExistsByName(ctx, table, idx.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("add index %s.%s: %w", table, idx.Name, ErrTableAlreadyExists)
	}
	stmts := d.Gen.AddIndexSQL(table, idx)
	err = d.DB.ExecuteDDL(ctx, stmts, []string{table})
	if err == nil {
		return nil
	}
	if convErr := d.DB.ConvertTableRowFormat(ctx, table); convErr == nil {
		if retryErr := d.DB.ExecuteDDL(ctx, stmts, []string{table}); retryErr == nil {
			return nil
		} else {
			return fmt.Errorf("add index %s.%s (after row format retry): %w", table, idx.Name, errors.Join(ErrChangeStructure, retryErr))
		}
	}
	return fmt.Errorf("add index %s.%s: %w", table, idx.Name, errors.Join(ErrChangeStructure, err))
}

// DropIndex drops a live index that is no longer declared.
func (d *Dispatcher) DropIndex(ctx context.Context, table, name string) error {
	exists, err := d.indexExistsByName(ctx, table, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("drop index %s.%s: %w", table, name, ErrFieldMissing)
	}
	stmts := d.Gen.DropIndexSQL(table, schema.Index{Name: name})
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("drop index %s.%s: %w", table, name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

func (d *Dispatcher) RenameIndex(ctx context.Context, table, from string, to schema.Index) error {
	exists, err := d.indexExistsByName(ctx, table, from)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("rename index %s.%s: %w", table, from, ErrFieldMissing)
	}
	toExists, err := d.indexExistsByName(ctx, table, to.Name)
	if err != nil {
		return err
	}
	if toExists {
		return fmt.Errorf("rename index %s.%s to %s: %w", table, from, to.Name, ErrTableAlreadyExists)
	}
	stmts := d.Gen.RenameIndexSQL(table, from, to)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("rename index %s.%s: %w", table, from, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

// AddKey rejects adding/dropping PRIMARY: a primary key is synthesized only
// at table-create time (spec §3, §4.D).
func (d *Dispatcher) AddKey(ctx context.Context, table string, k schema.Key) error {
	if k.Type == schema.KeyPrimary {
		return fmt.Errorf("add key %s: primary keys may only be created at table-create time: %w", table, ErrUnknown)
	}
	name := d.FindKeyName(table, k)
	if k.Name == "" {
		k.Name = name
	}
	stmts := d.Gen.AddKeySQL(table, k)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("add key %s.%s: %w", table, k.Name, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

func (d *Dispatcher) DropKey(ctx context.Context, table string, k schema.Key) error {
	if k.Type == schema.KeyPrimary {
		return fmt.Errorf("drop key %s: primary keys cannot be dropped post-create: %w", table, ErrUnknown)
	}
	stmts := d.Gen.DropKeySQL(table, k)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("drop key %s: %w", table, errors.Join(ErrChangeStructure, err))
	}
	return nil
}

func (d *Dispatcher) RenameKey(ctx context.Context, table, from string, k schema.Key) error {
	if k.Type == schema.KeyPrimary {
		return fmt.Errorf("rename key %s: primary keys cannot be renamed: %w", table, ErrUnknown)
	}
	stmts := d.Gen.RenameKeySQL(table, from, k)
	if err := d.DB.ExecuteDDL(ctx, stmts, []string{table}); err != nil {
		return fmt.Errorf("rename key %s: %w", table, errors.Join(ErrChangeStructure, err))
	}
	return nil
}
