package catalog

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/disk"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

func newCatalogEnv() (*Catalog, *access.TransactionManager) {
	dm := disk.NewVirtualDiskManagerImpl()
	bpm := buffer.NewBufferPoolManager(common.BufferPoolDefaultFrameNum, dm)
	txnMgr := access.NewTransactionManager()
	return NewCatalog(bpm, txnMgr, 100), txnMgr
}

func testSchema() *schema.Schema {
	return schema.NewSchema([]*column.Column{
		column.NewColumn("id", types.Integer),
		column.NewColumn("grp", types.Integer),
	})
}

func fillRows(t *testing.T, md *TableMetadata, txnMgr *access.TransactionManager, n int, fn func(i int) []types.Value) {
	t.Helper()
	txn := txnMgr.Begin()
	for i := 0; i < n; i++ {
		_, err := md.Table().InsertTuple(tuple.NewFromSchema(fn(i), md.Schema()), txn)
		require.NoError(t, err)
	}
	txnMgr.Commit(txn)
}

func TestNeverAnalyzedRelationGetsDefaultAssumptions(t *testing.T) {
	c, _ := newCatalogEnv()
	md := c.CreateTable("fresh", testSchema())

	stats := c.Statistics().Lookup(md)
	require.True(t, stats.Defaulted)
	require.EqualValues(t, DefaultRowCount, stats.RowCount)

	cs, err := stats.GetColumnStats(0)
	require.NoError(t, err)
	require.EqualValues(t, DefaultNDistinct, cs.DistinctCount(float64(stats.RowCount)))
}

func TestRefreshPublishesAndStaysStaleUntilNextRefresh(t *testing.T) {
	c, txnMgr := newCatalogEnv()
	md := c.CreateTable("events", testSchema())
	fillRows(t, md, txnMgr, 100, func(i int) []types.Value {
		return []types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 5))}
	})

	txn := txnMgr.Begin()
	require.NoError(t, c.RefreshStatistics(md.OID(), txn))
	txnMgr.Commit(txn)

	stats := c.Statistics().Lookup(md)
	require.False(t, stats.Defaulted)
	require.EqualValues(t, 100, stats.RowCount)
	firstVersion := stats.Version

	// grow the table tenfold; the published snapshot must not move
	fillRows(t, md, txnMgr, 900, func(i int) []types.Value {
		return []types.Value{types.NewInteger(int32(100 + i)), types.NewInteger(int32(i % 5))}
	})
	require.EqualValues(t, 100, c.Statistics().Lookup(md).RowCount)

	txn2 := txnMgr.Begin()
	require.NoError(t, c.RefreshStatistics(md.OID(), txn2))
	txnMgr.Commit(txn2)

	refreshed := c.Statistics().Lookup(md)
	require.EqualValues(t, 1000, refreshed.RowCount)
	require.Greater(t, refreshed.Version, firstVersion)

	// the old snapshot object is immutable; planners holding it keep a
	// consistent view
	require.EqualValues(t, 100, stats.RowCount)
}

func TestColumnProfileShape(t *testing.T) {
	c, txnMgr := newCatalogEnv()
	md := c.CreateTable("events", testSchema())
	// id: unique ascending; grp: five heavily repeated values
	fillRows(t, md, txnMgr, 1000, func(i int) []types.Value {
		return []types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 5))}
	})

	txn := txnMgr.Begin()
	require.NoError(t, c.RefreshStatistics(md.OID(), txn))
	txnMgr.Commit(txn)
	stats := c.Statistics().Lookup(md)

	id, err := stats.GetColumnStats(0)
	require.NoError(t, err)
	require.Empty(t, id.MostCommonVals)
	require.NotEmpty(t, id.HistogramBounds)
	// inserted in ascending order: physical and logical order agree
	require.InDelta(t, 1.0, id.Correlation, 0.01)
	require.InDelta(t, 1000, id.DistinctCount(float64(stats.RowCount)), 1)

	grp, err := stats.GetColumnStats(1)
	require.NoError(t, err)
	require.Len(t, grp.MostCommonVals, 5)
	freq, ok := grp.MostCommonFreq(types.NewInteger(0))
	require.True(t, ok)
	require.InDelta(t, 0.2, freq, 0.01)
}

func TestCreateIndexValidatesColumn(t *testing.T) {
	c, txnMgr := newCatalogEnv()
	md := c.CreateTable("events", testSchema())

	txn := txnMgr.Begin()
	_, err := c.CreateIndex(md.OID(), "bad_idx", "no_such_column", txn)
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestCreateIndexBackfillsExistingRows(t *testing.T) {
	c, txnMgr := newCatalogEnv()
	md := c.CreateTable("events", testSchema())
	fillRows(t, md, txnMgr, 50, func(i int) []types.Value {
		return []types.Value{types.NewInteger(int32(i)), types.NewInteger(0)}
	})

	txn := txnMgr.Begin()
	im, err := c.CreateIndex(md.OID(), "events_id_idx", "id", txn)
	require.NoError(t, err)
	txnMgr.Commit(txn)

	require.Equal(t, 50, im.GetIndex().EntryCount())
	require.Len(t, im.GetIndex().PointScan(types.NewInteger(42)), 1)
}

func TestLookupByUnknownOIDFails(t *testing.T) {
	c, _ := newCatalogEnv()

	_, err := c.GetTableByOID(999)
	require.True(t, errors.Is(err, common.ErrNotFound))

	_, err = c.GetIndexByOID(999)
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestDropIndexRemovesItFromTheTable(t *testing.T) {
	c, txnMgr := newCatalogEnv()
	md := c.CreateTable("events", testSchema())

	txn := txnMgr.Begin()
	im, err := c.CreateIndex(md.OID(), "events_id_idx", "id", txn)
	require.NoError(t, err)
	txnMgr.Commit(txn)

	require.NoError(t, c.DropIndex(im.GetOID()))
	require.Empty(t, md.Indexes())
	_, err = c.GetIndexByOID(im.GetOID())
	require.True(t, errors.Is(err, common.ErrNotFound))
}
