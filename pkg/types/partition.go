package types

import "fmt"

// PartitionStrategy defines how a table's partitions subdivide its rows.
// It is a closed variant local to the catalog; any external query
// representation is translated into it at the DDL boundary.
type PartitionStrategy string

const (
	// StrategyNone marks a table as unpartitioned
	StrategyNone PartitionStrategy = "none"

	// StrategyList partitions by explicit value lists
	StrategyList PartitionStrategy = "list"

	// StrategyRange partitions by value ranges (tag only, no mutation path yet)
	StrategyRange PartitionStrategy = "range"

	// StrategyHash partitions by hashing (tag only, no mutation path yet)
	StrategyHash PartitionStrategy = "hash"
)

// Valid reports whether s is a known strategy tag.
func (s PartitionStrategy) Valid() bool {
	switch s {
	case StrategyNone, StrategyList, StrategyRange, StrategyHash:
		return true
	default:
		return false
	}
}

// CompatibleWith reports whether a column of type t can carry this strategy.
func (s PartitionStrategy) CompatibleWith(t ColumnType) bool {
	switch s {
	case StrategyList:
		return t.Discrete()
	case StrategyRange:
		return t.Orderable()
	case StrategyHash:
		// Hashing is defined for every type except raw blobs.
		return t.Valid() && t != ColumnTypeBlob
	default:
		return false
	}
}

// ParseStrategy translates an external strategy word into the local variant.
func ParseStrategy(s string) (PartitionStrategy, error) {
	strategy := PartitionStrategy(s)
	if !strategy.Valid() {
		return "", fmt.Errorf("unknown partition strategy: %q", s)
	}
	return strategy, nil
}

// Constraint is a (column, value) restriction attached to a partition.
type Constraint struct {
	Column string `json:"column" msgpack:"column"`
	Value  string `json:"value" msgpack:"value"`
}

// Partition is a named subdivision of a table's rows. The owning table is
// referenced by name, not owned.
type Partition struct {
	// Name is unique across the whole catalog
	Name string `json:"name" msgpack:"name"`

	// Table is the name of the owning table
	Table string `json:"table" msgpack:"table"`

	// Values is the ordered set of discrete values (list strategy)
	Values []string `json:"values,omitempty" msgpack:"values"`

	// Constraints are additional (column, value) restrictions
	Constraints []Constraint `json:"constraints,omitempty" msgpack:"constraints"`

	// CreatedAt is the creation time as Unix seconds
	CreatedAt int64 `json:"created_at" msgpack:"created_at"`
}

// HasValue reports whether v belongs to the partition's value set.
func (p *Partition) HasValue(v string) bool {
	for _, pv := range p.Values {
		if pv == v {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Catalog mutations operate on copies so handles
// returned by earlier lookups stay stable.
func (p *Partition) Clone() *Partition {
	cp := *p
	cp.Values = append([]string(nil), p.Values...)
	cp.Constraints = append([]Constraint(nil), p.Constraints...)
	return &cp
}
