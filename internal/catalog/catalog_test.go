package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridiandb/meridian/internal/engine"
	merrors "github.com/meridiandb/meridian/internal/errors"
	"github.com/meridiandb/meridian/internal/idgen"
	"github.com/meridiandb/meridian/pkg/types"
)

func newTestCatalog(t *testing.T) (*Catalog, *engine.MemoryEngine) {
	t.Helper()

	eng := engine.NewMemoryEngine()
	c := New(eng, idgen.New())
	require.NoError(t, c.Init(context.Background()))
	return c, eng
}

func ordersColumns() []types.Column {
	return []types.Column{
		{Name: "id", Type: types.ColumnTypeInteger, NotNull: true, PrimaryKey: true},
		{Name: "region", Type: types.ColumnTypeText, NotNull: true},
		{Name: "total", Type: types.ColumnTypeReal},
	}
}

func TestCatalog_OperationsBeforeInit(t *testing.T) {
	c := New(engine.NewMemoryEngine(), idgen.New())
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	assert.True(t, merrors.IsNotInitialized(err))

	_, err = c.GetTable("orders")
	assert.True(t, merrors.IsNotInitialized(err))

	err = c.DropTable(ctx, "orders")
	assert.True(t, merrors.IsNotInitialized(err))

	err = c.SetPartition(ctx, "orders", "region", types.StrategyList)
	assert.True(t, merrors.IsNotInitialized(err))
}

func TestCatalog_InitTwiceFails(t *testing.T) {
	c, _ := newTestCatalog(t)

	err := c.Init(context.Background())
	require.Error(t, err)
	assert.True(t, merrors.IsAlreadyExists(err))
}

func TestCatalog_InitBootstrapsSystemTables(t *testing.T) {
	c, _ := newTestCatalog(t)

	for _, name := range []string{SystemTablesName, SystemPartitionsName} {
		table, err := c.GetTable(name)
		require.NoError(t, err)
		assert.True(t, table.System)
		assert.Greater(t, table.ID, int64(0))
	}

	count, err := c.TableCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	user, err := c.ListTables(false)
	require.NoError(t, err)
	assert.Empty(t, user)
}

func TestCatalog_CreateGetRoundTrip(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	created, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	assert.Greater(t, created.ID, int64(0))
	assert.Equal(t, types.StrategyNone, created.Strategy)

	got, err := c.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	// Column order is declaration order.
	require.Len(t, got.Columns, 3)
	assert.Equal(t, "id", got.Columns[0].Name)
	assert.Equal(t, "region", got.Columns[1].Name)
	assert.Equal(t, "total", got.Columns[2].Name)
	assert.True(t, got.Columns[0].PrimaryKey)
}

func TestCatalog_CreateTableValidation(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "", ordersColumns())
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.CreateTable(ctx, "bad", nil)
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.CreateTable(ctx, "bad", []types.Column{
		{Name: "a", Type: types.ColumnTypeText},
		{Name: "a", Type: types.ColumnTypeInteger},
	})
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.CreateTable(ctx, "bad", []types.Column{
		{Name: "a", Type: types.ColumnType("VARCHAR")},
	})
	assert.True(t, merrors.IsInvalidArgument(err))
}

func TestCatalog_CreateTableAlreadyExists(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	first, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)

	// The duplicate attempt carries different columns; nothing about the
	// existing table may change.
	_, err = c.CreateTable(ctx, "orders", []types.Column{
		{Name: "other", Type: types.ColumnTypeBlob},
	})
	require.Error(t, err)
	assert.True(t, merrors.IsAlreadyExists(err))

	got, err := c.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Len(t, got.Columns, 3)
}

func TestCatalog_CreateTableFailedWriteNotVisible(t *testing.T) {
	c, eng := newTestCatalog(t)
	ctx := context.Background()

	boom := errors.New("disk full")
	eng.FailPuts(1, boom)

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.Error(t, err)
	assert.True(t, merrors.IsStorageFailure(err))
	assert.ErrorIs(t, err, boom)

	_, err = c.GetTable("orders")
	assert.True(t, merrors.IsNotFound(err))

	// The engine recovered, so a retry succeeds.
	_, err = c.CreateTable(ctx, "orders", ordersColumns())
	assert.NoError(t, err)
}

func TestCatalog_SetPartition(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)

	err = c.SetPartition(ctx, "missing", "region", types.StrategyList)
	assert.True(t, merrors.IsNotFound(err))

	err = c.SetPartition(ctx, "orders", "nope", types.StrategyList)
	assert.True(t, merrors.IsInvalidArgument(err))

	err = c.SetPartition(ctx, "orders", "region", types.StrategyNone)
	assert.True(t, merrors.IsInvalidArgument(err))

	err = c.SetPartition(ctx, "orders", "region", types.PartitionStrategy("round_robin"))
	assert.True(t, merrors.IsInvalidArgument(err))

	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))

	got, err := c.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StrategyList, got.Strategy)
	assert.Equal(t, "region", got.PartitionColumn)

	// The transition is one-way.
	err = c.SetPartition(ctx, "orders", "id", types.StrategyRange)
	assert.True(t, merrors.IsInvalidArgument(err))
}

func TestCatalog_SetPartitionTypeCompatibility(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "blobs", []types.Column{
		{Name: "payload", Type: types.ColumnTypeBlob},
		{Name: "ok", Type: types.ColumnTypeBoolean},
	})
	require.NoError(t, err)

	// BLOB supports no strategy at all.
	for _, strategy := range []types.PartitionStrategy{types.StrategyList, types.StrategyRange, types.StrategyHash} {
		err := c.SetPartition(ctx, "blobs", "payload", strategy)
		assert.Truef(t, merrors.IsInvalidArgument(err), "strategy %s on BLOB", strategy)
	}

	// BOOLEAN is discrete but not orderable.
	err = c.SetPartition(ctx, "blobs", "ok", types.StrategyRange)
	assert.True(t, merrors.IsInvalidArgument(err))
	require.NoError(t, c.SetPartition(ctx, "blobs", "ok", types.StrategyList))
}

func TestCatalog_GetTableHandleStability(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)

	before, err := c.GetTable("orders")
	require.NoError(t, err)

	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))

	// The old handle still shows the pre-mutation state; a fresh lookup
	// shows the new one.
	assert.Equal(t, types.StrategyNone, before.Strategy)
	after, err := c.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StrategyList, after.Strategy)

	require.NoError(t, c.DropTable(ctx, "orders"))
	assert.Equal(t, "orders", after.Name)
}

// Scenario: orders partitioned by region into list partitions; a second
// partition claiming an already-owned value is rejected.
func TestCatalog_ListPartitionsDisjoint(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))

	east, err := c.AddListPartition(ctx, "orders", "orders_east", []string{"NY", "MA"})
	require.NoError(t, err)
	assert.True(t, east.HasValue("NY"))

	_, err = c.AddListPartition(ctx, "orders", "orders_west", []string{"CA", "WA"})
	require.NoError(t, err)

	// "NY" already belongs to orders_east.
	_, err = c.AddListPartition(ctx, "orders", "orders_north", []string{"NY", "VT"})
	require.Error(t, err)
	assert.True(t, merrors.IsInvalidArgument(err))
	assert.Contains(t, err.Error(), "NY")
	assert.Contains(t, err.Error(), "orders_east")

	// Nothing from the failed attempt is visible.
	_, err = c.GetPartition("orders_north")
	assert.True(t, merrors.IsNotFound(err))

	partitions, err := c.ListPartitions("orders")
	require.NoError(t, err)
	require.Len(t, partitions, 2)
	assert.Equal(t, "orders_east", partitions[0].Name)
	assert.Equal(t, "orders_west", partitions[1].Name)
}

func TestCatalog_AddListPartitionValidation(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)

	_, err = c.AddListPartition(ctx, "missing", "p", []string{"a"})
	assert.True(t, merrors.IsNotFound(err))

	// Strategy is still none.
	_, err = c.AddListPartition(ctx, "orders", "p", []string{"a"})
	assert.True(t, merrors.IsInvalidArgument(err))

	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))

	_, err = c.AddListPartition(ctx, "orders", "", []string{"a"})
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.AddListPartition(ctx, "orders", "p", nil)
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.AddListPartition(ctx, "orders", "p", []string{"a", "a"})
	assert.True(t, merrors.IsInvalidArgument(err))

	_, err = c.AddListPartition(ctx, "orders", "p", []string{"a"})
	require.NoError(t, err)

	_, err = c.AddListPartition(ctx, "orders", "p", []string{"b"})
	assert.True(t, merrors.IsInvalidArgument(err))
}

func TestCatalog_SameValueDifferentTables(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	for _, name := range []string{"orders", "returns"} {
		_, err := c.CreateTable(ctx, name, ordersColumns())
		require.NoError(t, err)
		require.NoError(t, c.SetPartition(ctx, name, "region", types.StrategyList))
	}

	// Disjointness is scoped per table.
	_, err := c.AddListPartition(ctx, "orders", "orders_east", []string{"NY"})
	require.NoError(t, err)
	_, err = c.AddListPartition(ctx, "returns", "returns_east", []string{"NY"})
	require.NoError(t, err)
}

func TestCatalog_AddPartitionConstraint(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))
	_, err = c.AddListPartition(ctx, "orders", "orders_east", []string{"NY"})
	require.NoError(t, err)

	err = c.AddPartitionConstraint(ctx, "missing", types.Constraint{Column: "region", Value: "NY"})
	assert.True(t, merrors.IsNotFound(err))

	err = c.AddPartitionConstraint(ctx, "orders_east", types.Constraint{Column: "nope", Value: "x"})
	assert.True(t, merrors.IsInvalidArgument(err))

	require.NoError(t, c.AddPartitionConstraint(ctx, "orders_east",
		types.Constraint{Column: "region", Value: "NY"}))

	got, err := c.GetPartition("orders_east")
	require.NoError(t, err)
	require.Len(t, got.Constraints, 1)
	assert.Equal(t, "region", got.Constraints[0].Column)
}

// Scenario: dropping a table removes it and its partitions; subsequent
// operations against either fail with NOT_FOUND.
func TestCatalog_DropTableCascade(t *testing.T) {
	c, eng := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))
	_, err = c.AddListPartition(ctx, "orders", "orders_east", []string{"NY"})
	require.NoError(t, err)
	_, err = c.AddListPartition(ctx, "orders", "orders_west", []string{"CA"})
	require.NoError(t, err)

	require.NoError(t, c.DropTable(ctx, "orders"))

	_, err = c.GetTable("orders")
	assert.True(t, merrors.IsNotFound(err))
	_, err = c.GetPartition("orders_east")
	assert.True(t, merrors.IsNotFound(err))
	err = c.SetPartition(ctx, "orders", "region", types.StrategyList)
	assert.True(t, merrors.IsNotFound(err))
	err = c.AddPartitionConstraint(ctx, "orders_west", types.Constraint{Column: "region", Value: "CA"})
	assert.True(t, merrors.IsNotFound(err))

	// Nothing remains durably either.
	entries, err := eng.Scan(ctx, partitionKeyPrefix)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = eng.Get(ctx, tableKey("orders"))
	assert.ErrorIs(t, err, engine.ErrKeyNotFound)

	// Dropping again is NOT_FOUND; the name is reusable.
	err = c.DropTable(ctx, "orders")
	assert.True(t, merrors.IsNotFound(err))
	_, err = c.CreateTable(ctx, "orders", ordersColumns())
	assert.NoError(t, err)
}

func TestCatalog_DropSystemTableRejected(t *testing.T) {
	c, _ := newTestCatalog(t)

	err := c.DropTable(context.Background(), SystemTablesName)
	require.Error(t, err)
	assert.True(t, merrors.IsInvalidArgument(err))
}

func TestCatalog_DropTableCascadeInterrupted(t *testing.T) {
	c, eng := newTestCatalog(t)
	ctx := context.Background()

	_, err := c.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	require.NoError(t, c.SetPartition(ctx, "orders", "region", types.StrategyList))
	for i, values := range [][]string{{"NY"}, {"CA"}, {"TX"}} {
		_, err := c.AddListPartition(ctx, "orders", fmt.Sprintf("orders_p%d", i), values)
		require.NoError(t, err)
	}

	// First partition delete succeeds, second fails.
	boom := errors.New("io error")
	eng.FailDeletes(1, 1, boom)

	err = c.DropTable(ctx, "orders")
	require.Error(t, err)
	assert.True(t, merrors.IsCascadeInterrupted(err))
	assert.ErrorIs(t, err, boom)

	// The table survives with the partitions the cascade did not reach.
	table, err := c.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, types.StrategyList, table.Strategy)

	remaining, err := c.ListPartitions("orders")
	require.NoError(t, err)
	assert.Len(t, remaining, 2)

	// The retry completes the cascade.
	require.NoError(t, c.DropTable(ctx, "orders"))
	_, err = c.GetTable("orders")
	assert.True(t, merrors.IsNotFound(err))
}

func TestCatalog_RestartRoundTrip(t *testing.T) {
	eng := engine.NewMemoryEngine()
	ctx := context.Background()

	first := New(eng, idgen.New())
	require.NoError(t, first.Init(ctx))

	created, err := first.CreateTable(ctx, "orders", ordersColumns())
	require.NoError(t, err)
	require.NoError(t, first.SetPartition(ctx, "orders", "region", types.StrategyList))
	_, err = first.AddListPartition(ctx, "orders", "orders_east", []string{"NY", "MA"})
	require.NoError(t, err)
	require.NoError(t, first.AddPartitionConstraint(ctx, "orders_east",
		types.Constraint{Column: "region", Value: "NY"}))
	firstID := first.CatalogID()

	// A fresh catalog over the same engine recovers everything.
	second := New(eng, idgen.New())
	require.NoError(t, second.Init(ctx))
	assert.Equal(t, firstID, second.CatalogID())

	table, err := second.GetTable("orders")
	require.NoError(t, err)
	assert.Equal(t, created.ID, table.ID)
	assert.Equal(t, types.StrategyList, table.Strategy)
	assert.Equal(t, "region", table.PartitionColumn)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "id", table.Columns[0].Name)

	partition, err := second.GetPartition("orders_east")
	require.NoError(t, err)
	assert.Equal(t, []string{"NY", "MA"}, partition.Values)
	require.Len(t, partition.Constraints, 1)

	// The recovered generator never reissues a recovered ID.
	next, err := second.CreateTable(ctx, "fresh", ordersColumns())
	require.NoError(t, err)
	assert.Greater(t, next.ID, created.ID)
}

// Scenario: many goroutines race to create the same table; exactly one wins
// and every loser observes ALREADY_EXISTS.
func TestCatalog_ConcurrentCreateTable(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	const goroutines = 32
	var wg sync.WaitGroup
	results := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.CreateTable(ctx, "orders", ordersColumns())
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t, merrors.IsAlreadyExists(err))
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCatalog_ConcurrentDistinctTables(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	const goroutines = 16
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.CreateTable(ctx, fmt.Sprintf("t%02d", i), ordersColumns())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tables, err := c.ListTables(false)
	require.NoError(t, err)
	require.Len(t, tables, goroutines)

	// IDs are distinct.
	seen := make(map[int64]bool)
	for _, table := range tables {
		assert.False(t, seen[table.ID], "duplicate id %d", table.ID)
		seen[table.ID] = true
	}
}
