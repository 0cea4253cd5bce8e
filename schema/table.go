package schema

// Table is identified by its unprefixed name and holds an ordered list of
// fields plus its keys and indexes. Field order is significant (it is the
// declaration order); Table never stores a back-pointer to its Structure.
type Table struct {
	Name        string
	TableFields []Field
	TableKeys   []Key
	TableIndexes []Index
}

func (t Table) Fields() []Field  { return t.TableFields }
func (t Table) Keys() []Key      { return t.TableKeys }
func (t Table) Indexes() []Index { return t.TableIndexes }

// Field returns the declared field by name, or false.
func (t Table) Field(name string) (Field, bool) {
	for _, f := range t.TableFields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// PrimaryKey returns the table's PRIMARY key, if declared.
func (t Table) PrimaryKey() (Key, bool) {
	for _, k := range t.TableKeys {
		if k.Type == KeyPrimary {
			return k, true
		}
	}
	return Key{}, false
}
