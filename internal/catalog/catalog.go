// Package catalog implements the authoritative registry of tables, columns
// and partitioning metadata. It keeps an in-memory index and a durable
// encoding in the storage engine consistent under concurrent mutation: every
// mutating operation validates first, writes durably, and only then makes
// the change visible in memory.
package catalog

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meridiandb/meridian/internal/engine"
	merrors "github.com/meridiandb/meridian/internal/errors"
	"github.com/meridiandb/meridian/internal/idgen"
	"github.com/meridiandb/meridian/pkg/types"
)

// Catalog is the process-wide registry. Construct it once with New, call
// Init exactly once, and share the handle; it lives until process shutdown.
//
// All mutating operations serialize under one lock covering both maps,
// because each reads and writes related table and partition entries and then
// issues dependent durable writes. Read-only lookups run concurrently with
// each other but never observe a half-applied mutation.
type Catalog struct {
	engine engine.Engine
	ids    *idgen.Generator

	mu          sync.RWMutex
	tables      map[string]*types.Table
	partitions  map[string]*types.Partition
	catalogID   string
	initialized bool
}

// New creates a catalog over the given storage engine. The catalog is not
// usable until Init has completed.
func New(eng engine.Engine, ids *idgen.Generator) *Catalog {
	return &Catalog{
		engine:     eng,
		ids:        ids,
		tables:     make(map[string]*types.Table),
		partitions: make(map[string]*types.Partition),
	}
}

// Init performs the one-time setup: it scans the durable namespace for table
// and partition records, rebuilds the in-memory maps, seeds the identifier
// generator past the highest recovered ID, and bootstraps the system tables
// on first boot. Calling any other operation before Init completes fails
// with NOT_INITIALIZED; calling Init twice is an error.
func (c *Catalog) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return merrors.New(merrors.ErrCategoryCatalog, merrors.CodeAlreadyExists,
			"catalog is already initialized")
	}

	if err := c.loadCatalogID(ctx); err != nil {
		return err
	}

	var maxID int64

	tableEntries, err := c.engine.Scan(ctx, tableKeyPrefix)
	if err != nil {
		return merrors.NewStorageError("failed to scan table namespace", err)
	}
	for _, entry := range tableEntries {
		table, err := decodeTable(entry.Value)
		if err != nil {
			return merrors.NewCorruptRecord("bad table record at "+entry.Key, err)
		}
		c.tables[table.Name] = table
		if table.ID > maxID {
			maxID = table.ID
		}
	}

	partitionEntries, err := c.engine.Scan(ctx, partitionKeyPrefix)
	if err != nil {
		return merrors.NewStorageError("failed to scan partition namespace", err)
	}
	for _, entry := range partitionEntries {
		partition, err := decodePartition(entry.Value)
		if err != nil {
			return merrors.NewCorruptRecord("bad partition record at "+entry.Key, err)
		}
		if _, ok := c.tables[partition.Table]; !ok {
			log.Printf("[WARN] catalog: partition %s references missing table %s; run a reconcile",
				partition.Name, partition.Table)
		}
		c.partitions[partition.Name] = partition
	}

	c.ids.Seed(maxID)

	if err := c.bootstrapSystemTables(ctx); err != nil {
		return err
	}

	c.initialized = true
	log.Printf("catalog: initialized with %d tables, %d partitions", len(c.tables), len(c.partitions))
	return nil
}

// loadCatalogID loads the persistent catalog identity, minting one on first
// boot.
func (c *Catalog) loadCatalogID(ctx context.Context) error {
	value, err := c.engine.Get(ctx, catalogIDKey)
	if err == nil {
		c.catalogID = string(value)
		return nil
	}
	if !errors.Is(err, engine.ErrKeyNotFound) {
		return merrors.NewStorageError("failed to load catalog identity", err)
	}

	c.catalogID = uuid.NewString()
	if err := c.engine.Put(ctx, catalogIDKey, []byte(c.catalogID)); err != nil {
		return merrors.NewStorageError("failed to persist catalog identity", err)
	}
	return nil
}

// bootstrapSystemTables creates the two system tables on first boot. The
// catalog persists its own schema through the same records it offers to
// user tables.
func (c *Catalog) bootstrapSystemTables(ctx context.Context) error {
	systemColumns := []types.Column{
		{Name: "name", Type: types.ColumnTypeText, NotNull: true, PrimaryKey: true},
		{Name: "record", Type: types.ColumnTypeBlob, NotNull: true},
	}

	for _, name := range []string{SystemTablesName, SystemPartitionsName} {
		if _, ok := c.tables[name]; ok {
			continue
		}
		table := &types.Table{
			ID:        c.ids.Next(),
			Name:      name,
			Columns:   append([]types.Column(nil), systemColumns...),
			Strategy:  types.StrategyNone,
			System:    true,
			CreatedAt: time.Now().Unix(),
		}
		if err := c.writeTable(ctx, table); err != nil {
			return err
		}
		c.tables[name] = table
	}
	return nil
}

// CatalogID returns the persistent identity minted at first boot.
func (c *Catalog) CatalogID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.catalogID
}

func (c *Catalog) checkInitialized() error {
	if !c.initialized {
		return merrors.NewNotInitialized("catalog is not initialized; call Init first")
	}
	return nil
}

// CreateTable registers a new user table with the given columns. The durable
// write happens before the table becomes visible to other callers, so a
// crash can never "unwrite" an observed entry.
func (c *Catalog) CreateTable(ctx context.Context, name string, columns []types.Column) (*types.Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, merrors.NewInvalidArgument("table name cannot be empty")
	}
	if _, ok := c.tables[name]; ok {
		return nil, merrors.NewAlreadyExists("table " + name + " already exists")
	}
	if err := types.ValidateColumns(columns); err != nil {
		return nil, merrors.NewInvalidArgument(err.Error())
	}

	table := &types.Table{
		ID:        c.ids.Next(),
		Name:      name,
		Columns:   append([]types.Column(nil), columns...),
		Strategy:  types.StrategyNone,
		CreatedAt: time.Now().Unix(),
	}

	if err := c.writeTable(ctx, table); err != nil {
		return nil, err
	}
	c.tables[name] = table

	c.logTableCountThreshold()
	return table, nil
}

// DropTable removes a table and every partition belonging to it. Partitions
// go first, one durable delete at a time, so an interruption never leaves a
// partition pointing at a missing table. The cascade is not atomic across
// keys: a CASCADE_INTERRUPTED failure means some partitions may already be
// gone, and the caller should run Reconcile before anything else.
func (c *Catalog) DropTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return err
	}
	table, ok := c.tables[name]
	if !ok {
		return merrors.NewNotFound("table " + name + " not found")
	}
	if table.System {
		return merrors.NewInvalidArgument("cannot drop system table " + name)
	}

	for _, partition := range c.partitionsOf(name) {
		if err := c.engine.Delete(ctx, partitionKey(partition.Name)); err != nil {
			return merrors.NewCascadeInterrupted(
				"drop of table "+name+" interrupted at partition "+partition.Name, err)
		}
		delete(c.partitions, partition.Name)
	}

	if err := c.engine.Delete(ctx, tableKey(name)); err != nil {
		return merrors.NewStorageError("failed to delete table record "+name, err)
	}
	delete(c.tables, name)
	return nil
}

// GetTable returns the current handle for the named table. It never touches
// the storage engine; the in-memory map is kept current by Init plus every
// mutating operation. The returned handle stays internally consistent even
// if the table is mutated or dropped afterwards.
func (c *Catalog) GetTable(name string) (*types.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	table, ok := c.tables[name]
	if !ok {
		return nil, merrors.NewNotFound("table " + name + " not found")
	}
	return table, nil
}

// GetPartition returns the current handle for the named partition.
func (c *Catalog) GetPartition(name string) (*types.Partition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	partition, ok := c.partitions[name]
	if !ok {
		return nil, merrors.NewNotFound("partition " + name + " not found")
	}
	return partition, nil
}

// SetPartition transitions a table's partition strategy from none to the
// given concrete strategy on the given column. The transition is one-way;
// there is no operation to revert it.
func (c *Catalog) SetPartition(ctx context.Context, tableName, partitionColumn string, strategy types.PartitionStrategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return err
	}
	table, ok := c.tables[tableName]
	if !ok {
		return merrors.NewNotFound("table " + tableName + " not found")
	}
	if !strategy.Valid() || strategy == types.StrategyNone {
		return merrors.NewInvalidArgument("invalid partition strategy " + string(strategy))
	}
	column, ok := table.Column(partitionColumn)
	if !ok {
		return merrors.NewInvalidArgument(
			"column " + partitionColumn + " is not a column of table " + tableName)
	}
	if table.Partitioned() {
		return merrors.NewInvalidArgument(
			"table " + tableName + " already has strategy " + string(table.Strategy))
	}
	if !strategy.CompatibleWith(column.Type) {
		return merrors.NewInvalidArgument(
			"column type " + string(column.Type) + " is incompatible with strategy " + string(strategy))
	}

	updated := table.Clone()
	updated.Strategy = strategy
	updated.PartitionColumn = partitionColumn

	if err := c.writeTable(ctx, updated); err != nil {
		return err
	}
	c.tables[tableName] = updated
	return nil
}

// AddListPartition creates a named partition holding the given discrete
// values. The table's strategy must already be list, and the values must be
// disjoint from every sibling partition of the same table.
func (c *Catalog) AddListPartition(ctx context.Context, tableName, partitionName string, values []string) (*types.Partition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	table, ok := c.tables[tableName]
	if !ok {
		return nil, merrors.NewNotFound("table " + tableName + " not found")
	}
	if table.Strategy != types.StrategyList {
		return nil, merrors.NewInvalidArgument(
			"table " + tableName + " has strategy " + string(table.Strategy) + ", want list")
	}
	if partitionName == "" {
		return nil, merrors.NewInvalidArgument("partition name cannot be empty")
	}
	if _, ok := c.partitions[partitionName]; ok {
		return nil, merrors.NewInvalidArgument("partition " + partitionName + " already exists")
	}
	if len(values) == 0 {
		return nil, merrors.NewInvalidArgument("partition value list cannot be empty")
	}

	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return nil, merrors.NewInvalidArgument("duplicate value " + v + " in partition value list")
		}
		seen[v] = true
	}

	// Disjointness against every sibling of the same table.
	for _, sibling := range c.partitionsOf(tableName) {
		for _, v := range values {
			if sibling.HasValue(v) {
				return nil, merrors.NewInvalidArgument(
					"value " + v + " already belongs to partition " + sibling.Name)
			}
		}
	}

	partition := &types.Partition{
		Name:      partitionName,
		Table:     tableName,
		Values:    append([]string(nil), values...),
		CreatedAt: time.Now().Unix(),
	}

	if err := c.writePartition(ctx, partition); err != nil {
		return nil, err
	}
	c.partitions[partitionName] = partition
	return partition, nil
}

// AddPartitionConstraint appends a (column, value) constraint to an existing
// partition and persists the updated record.
func (c *Catalog) AddPartitionConstraint(ctx context.Context, partitionName string, constraint types.Constraint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return err
	}
	partition, ok := c.partitions[partitionName]
	if !ok {
		return merrors.NewNotFound("partition " + partitionName + " not found")
	}
	if constraint.Column == "" {
		return merrors.NewInvalidArgument("constraint column cannot be empty")
	}
	if table, ok := c.tables[partition.Table]; ok && !table.HasColumn(constraint.Column) {
		return merrors.NewInvalidArgument(
			"column " + constraint.Column + " is not a column of table " + partition.Table)
	}

	updated := partition.Clone()
	updated.Constraints = append(updated.Constraints, constraint)

	if err := c.writePartition(ctx, updated); err != nil {
		return err
	}
	c.partitions[partitionName] = updated
	return nil
}

// ListTables returns all tables sorted by name. System tables are included
// only when includeSystem is set.
func (c *Catalog) ListTables(includeSystem bool) ([]*types.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	tables := make([]*types.Table, 0, len(c.tables))
	for _, table := range c.tables {
		if table.System && !includeSystem {
			continue
		}
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}

// ListPartitions returns the named table's partitions sorted by name.
func (c *Catalog) ListPartitions(tableName string) ([]*types.Partition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}
	if _, ok := c.tables[tableName]; !ok {
		return nil, merrors.NewNotFound("table " + tableName + " not found")
	}
	return c.partitionsOf(tableName), nil
}

// TableCount returns the number of tables, system tables included.
func (c *Catalog) TableCount() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return 0, err
	}
	return len(c.tables), nil
}

// Close releases the underlying storage engine.
func (c *Catalog) Close() error {
	return c.engine.Close()
}

// partitionsOf returns the partitions owned by tableName sorted by name.
// Callers must hold at least the read lock.
func (c *Catalog) partitionsOf(tableName string) []*types.Partition {
	var owned []*types.Partition
	for _, partition := range c.partitions {
		if partition.Table == tableName {
			owned = append(owned, partition)
		}
	}
	sort.Slice(owned, func(i, j int) bool { return owned[i].Name < owned[j].Name })
	return owned
}

// writeTable serializes the table and issues the durable write. Every
// mutating operation calls this (or writePartition) before releasing its
// exclusive section, so no externally observable state change precedes its
// durable counterpart.
func (c *Catalog) writeTable(ctx context.Context, table *types.Table) error {
	data, err := encodeTable(table)
	if err != nil {
		return merrors.NewInternalError("failed to encode table "+table.Name, err)
	}
	if err := c.engine.Put(ctx, tableKey(table.Name), data); err != nil {
		return merrors.NewStorageError("failed to write table record "+table.Name, err)
	}
	return nil
}

// writePartition serializes the partition and issues the durable write.
func (c *Catalog) writePartition(ctx context.Context, partition *types.Partition) error {
	data, err := encodePartition(partition)
	if err != nil {
		return merrors.NewInternalError("failed to encode partition "+partition.Name, err)
	}
	if err := c.engine.Put(ctx, partitionKey(partition.Name), data); err != nil {
		return merrors.NewStorageError("failed to write partition record "+partition.Name, err)
	}
	return nil
}

// tableCountThresholds defines the table count levels at which warnings are
// emitted.
var tableCountThresholds = []int{100000, 50000, 10000}

// logTableCountThreshold warns operators when the catalog grows past 10K,
// 50K or 100K tables. Called after each CreateTable with the lock held.
func (c *Catalog) logTableCountThreshold() {
	count := len(c.tables)
	for _, threshold := range tableCountThresholds {
		if count >= threshold {
			log.Printf("[WARN] catalog: table count (%d) has crossed %dK threshold — lookups stay fast but Init scans grow linearly", count, threshold/1000)
			return
		}
	}
}
