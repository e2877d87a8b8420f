package catalog

// Storage engine key namespace. Table and partition records live under their
// own prefixes so Init can rebuild each map with a single ordered scan.
const (
	tableKeyPrefix     = "tables/"
	partitionKeyPrefix = "partitions/"
	catalogIDKey       = "meta/catalog_id"
)

// Names of the two system tables the catalog encodes its own metadata
// through. They are created durably on first Init (bootstrap self-reference)
// and cannot be dropped.
const (
	SystemTablesName     = "system_tables"
	SystemPartitionsName = "system_partitions"
)

func tableKey(name string) string {
	return tableKeyPrefix + name
}

func partitionKey(name string) string {
	return partitionKeyPrefix + name
}
