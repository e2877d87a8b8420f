package types

import "fmt"

// ColumnType is the semantic type tag of a column.
type ColumnType string

const (
	ColumnTypeInteger   ColumnType = "INTEGER"
	ColumnTypeText      ColumnType = "TEXT"
	ColumnTypeReal      ColumnType = "REAL"
	ColumnTypeBlob      ColumnType = "BLOB"
	ColumnTypeBoolean   ColumnType = "BOOLEAN"
	ColumnTypeTimestamp ColumnType = "TIMESTAMP"
)

// Valid reports whether t is one of the supported column types.
func (t ColumnType) Valid() bool {
	switch t {
	case ColumnTypeInteger, ColumnTypeText, ColumnTypeReal,
		ColumnTypeBlob, ColumnTypeBoolean, ColumnTypeTimestamp:
		return true
	default:
		return false
	}
}

// Orderable reports whether values of this type have a total order,
// as required by range partitioning.
func (t ColumnType) Orderable() bool {
	switch t {
	case ColumnTypeInteger, ColumnTypeText, ColumnTypeReal, ColumnTypeTimestamp:
		return true
	default:
		return false
	}
}

// Discrete reports whether values of this type form a discrete domain
// suitable for list partitioning.
func (t ColumnType) Discrete() bool {
	switch t {
	case ColumnTypeInteger, ColumnTypeText, ColumnTypeBoolean:
		return true
	default:
		return false
	}
}

// Column defines a single column of a table.
type Column struct {
	// Name is the column name, unique within its table
	Name string `json:"name" msgpack:"name"`

	// Type is the semantic type tag
	Type ColumnType `json:"type" msgpack:"type"`

	// NotNull indicates whether the column rejects NULL values
	NotNull bool `json:"not_null,omitempty" msgpack:"not_null"`

	// Unique indicates whether the column enforces uniqueness
	Unique bool `json:"unique,omitempty" msgpack:"unique"`

	// PrimaryKey indicates whether this column is part of the primary key
	PrimaryKey bool `json:"primary_key,omitempty" msgpack:"primary_key"`

	// Default is the textual default value, empty when none
	Default string `json:"default,omitempty" msgpack:"default"`
}

// ValidateColumns validates a column list: it must be non-empty, names must
// be unique, and every type must be supported.
func ValidateColumns(columns []Column) error {
	if len(columns) == 0 {
		return fmt.Errorf("table must have at least one column")
	}

	seen := make(map[string]bool, len(columns))
	for _, col := range columns {
		if col.Name == "" {
			return fmt.Errorf("column name cannot be empty")
		}
		if seen[col.Name] {
			return fmt.Errorf("duplicate column name: %s", col.Name)
		}
		seen[col.Name] = true

		if !col.Type.Valid() {
			return fmt.Errorf("invalid column type %q for column %q", col.Type, col.Name)
		}
	}

	return nil
}
