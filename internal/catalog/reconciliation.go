package catalog

import (
	"context"
	"log"
	"strings"
	"time"

	merrors "github.com/meridiandb/meridian/internal/errors"
	"github.com/meridiandb/meridian/pkg/types"
)

// ReconciliationReport contains the results of a memory-storage reconciliation.
type ReconciliationReport struct {
	// MissingDurable are tables visible in memory with no durable record.
	MissingDurable []string
	// Unloaded are durable table records absent from the in-memory map.
	Unloaded []string
	// OrphanedPartitions are partitions whose owning table no longer exists.
	// A cascade interrupted between partition deletes can never produce
	// these, but an interrupted final table delete followed by a crash can.
	OrphanedPartitions []string
	// CorruptRecords are keys whose durable record failed to decode.
	CorruptRecords []string
	// TotalTables is the number of durable table records scanned.
	TotalTables int
	// TotalPartitions is the number of durable partition records scanned.
	TotalPartitions int
	// RunAt is when the reconciliation was performed.
	RunAt time.Time
}

// HasIssues returns true if the report contains any inconsistency.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.MissingDurable) > 0 || len(r.Unloaded) > 0 ||
		len(r.OrphanedPartitions) > 0 || len(r.CorruptRecords) > 0
}

// Reconcile checks consistency between the in-memory maps and the durable
// namespace. It detects tables visible in memory without a durable record,
// durable records not loaded in memory, partitions whose owning table is
// gone, and records that no longer decode. The report is advisory; use
// RepairOrphans to act on it.
func (c *Catalog) Reconcile(ctx context.Context) (*ReconciliationReport, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	report := &ReconciliationReport{RunAt: time.Now()}

	tableEntries, err := c.engine.Scan(ctx, tableKeyPrefix)
	if err != nil {
		return nil, merrors.NewStorageError("failed to scan table namespace", err)
	}
	report.TotalTables = len(tableEntries)

	durableTables := make(map[string]bool, len(tableEntries))
	for _, entry := range tableEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, err := decodeTable(entry.Value)
		if err != nil {
			report.CorruptRecords = append(report.CorruptRecords, entry.Key)
			continue
		}
		durableTables[table.Name] = true
		if _, ok := c.tables[table.Name]; !ok {
			report.Unloaded = append(report.Unloaded, table.Name)
		}
	}
	for name := range c.tables {
		if !durableTables[name] {
			report.MissingDurable = append(report.MissingDurable, name)
		}
	}

	partitionEntries, err := c.engine.Scan(ctx, partitionKeyPrefix)
	if err != nil {
		return nil, merrors.NewStorageError("failed to scan partition namespace", err)
	}
	report.TotalPartitions = len(partitionEntries)

	for _, entry := range partitionEntries {
		partition, err := decodePartition(entry.Value)
		if err != nil {
			report.CorruptRecords = append(report.CorruptRecords, entry.Key)
			continue
		}
		if !durableTables[partition.Table] {
			report.OrphanedPartitions = append(report.OrphanedPartitions, partition.Name)
		}
	}

	return report, nil
}

// RepairOrphans deletes the orphaned partition records named in the report,
// durably first, then from memory, and loads any durable table record the
// in-memory map is missing. It returns the number of partitions removed.
func (c *Catalog) RepairOrphans(ctx context.Context, report *ReconciliationReport) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkInitialized(); err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range report.OrphanedPartitions {
		if err := c.engine.Delete(ctx, partitionKey(name)); err != nil {
			return removed, merrors.NewStorageError("failed to delete orphaned partition "+name, err)
		}
		delete(c.partitions, name)
		removed++
	}

	for _, name := range report.Unloaded {
		value, err := c.engine.Get(ctx, tableKey(name))
		if err != nil {
			return removed, merrors.NewStorageError("failed to load table record "+name, err)
		}
		table, err := decodeTable(value)
		if err != nil {
			return removed, merrors.NewCorruptRecord("bad table record at "+tableKey(name), err)
		}
		c.tables[table.Name] = table
		if table.ID > c.ids.Current() {
			c.ids.Seed(table.ID)
		}
	}

	if removed > 0 || len(report.Unloaded) > 0 {
		log.Printf("catalog: repair removed %d orphaned partitions (%s), reloaded %d tables",
			removed, strings.Join(report.OrphanedPartitions, ", "), len(report.Unloaded))
	}
	return removed, nil
}

// Orphans returns the partitions currently in memory whose owning table is
// absent from the in-memory map. Cheaper than a full Reconcile when the
// caller only cares about cascade leftovers.
func (c *Catalog) Orphans() ([]*types.Partition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if err := c.checkInitialized(); err != nil {
		return nil, err
	}

	var orphans []*types.Partition
	for _, partition := range c.partitions {
		if _, ok := c.tables[partition.Table]; !ok {
			orphans = append(orphans, partition)
		}
	}
	return orphans, nil
}
