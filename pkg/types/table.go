package types

// Table is a named schema object with an ordered column list and a
// partition scheme.
type Table struct {
	// ID is the catalog-assigned internal identifier
	ID int64 `json:"id" msgpack:"id"`

	// Name is unique within the catalog
	Name string `json:"name" msgpack:"name"`

	// Columns is the ordered column list
	Columns []Column `json:"columns" msgpack:"columns"`

	// Strategy is the partition strategy; transitions once, from none
	Strategy PartitionStrategy `json:"strategy" msgpack:"strategy"`

	// PartitionColumn is the column the strategy applies to, empty while
	// the table is unpartitioned
	PartitionColumn string `json:"partition_column,omitempty" msgpack:"partition_column"`

	// System marks catalog-internal tables
	System bool `json:"system,omitempty" msgpack:"system"`

	// CreatedAt is the creation time as Unix seconds
	CreatedAt int64 `json:"created_at" msgpack:"created_at"`
}

// Column returns the named column and whether it exists.
func (t *Table) Column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Partitioned reports whether a concrete strategy has been set.
func (t *Table) Partitioned() bool {
	return t.Strategy != StrategyNone && t.Strategy != ""
}

// Clone returns a deep copy. Catalog mutations operate on copies so handles
// returned by earlier lookups stay stable.
func (t *Table) Clone() *Table {
	cp := *t
	cp.Columns = append([]Column(nil), t.Columns...)
	return &cp
}
