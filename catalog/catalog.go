package catalog

import (
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/index"
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// Catalog maps object ids to relation and index descriptors. Queries arrive
// with objects already resolved to OIDs by the analyzer; the catalog is the
// authority those OIDs are checked against.
type Catalog struct {
	bpm        *buffer.BufferPoolManager
	txnMgr     *access.TransactionManager
	tableIds   map[uint32]*TableMetadata
	tableNames map[string]*TableMetadata
	indexIds   map[uint32]*IndexMetadata
	nextOID    uint32
	stats      *StatisticsRepository
	mutex      deadlock.RWMutex
}

func NewCatalog(bpm *buffer.BufferPoolManager, txnMgr *access.TransactionManager, statisticsTarget int) *Catalog {
	return &Catalog{
		bpm:        bpm,
		txnMgr:     txnMgr,
		tableIds:   make(map[uint32]*TableMetadata),
		tableNames: make(map[string]*TableMetadata),
		indexIds:   make(map[uint32]*IndexMetadata),
		nextOID:    1,
		stats:      NewStatisticsRepository(statisticsTarget),
	}
}

func (c *Catalog) Statistics() *StatisticsRepository {
	return c.stats
}

func (c *Catalog) CreateTable(name string, schema_ *schema.Schema) *TableMetadata {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	oid := c.nextOID
	c.nextOID++

	md := &TableMetadata{
		oid:     oid,
		name:    name,
		schema_: schema_,
		table:   access.NewTableHeap(c.bpm, c.txnMgr),
	}
	c.tableIds[oid] = md
	c.tableNames[name] = md
	common.Logger().Info("table created", zap.String("table", name), zap.Uint32("oid", oid))
	return md
}

// CreateIndex builds a b-tree index over one column of an existing relation,
// backfilling entries from every stored tuple version. The column must be
// part of the owning relation's schema.
func (c *Catalog) CreateIndex(tableOID uint32, indexName string, columnName string, txn *access.Transaction) (*IndexMetadata, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	md, ok := c.tableIds[tableOID]
	if !ok {
		return nil, common.NewNotFoundError("relation %d does not exist", tableOID)
	}
	colIdx := md.schema_.GetColIndex(columnName)
	if colIdx < 0 {
		return nil, common.NewNotFoundError("column %s does not exist in relation %s", columnName, md.name)
	}

	oid := c.nextOID
	c.nextOID++

	im := &IndexMetadata{
		oid:          oid,
		name:         indexName,
		tableOID:     tableOID,
		colIdx:       uint32(colIdx),
		capabilities: BTreeCapabilities(),
		index:        index.NewBTreeIndex(md.schema_.GetColumn(uint32(colIdx)).GetType()),
	}

	it := md.table.Iterator(txn)
	for tuple_ := it.Next(); tuple_ != nil; tuple_ = it.Next() {
		im.index.InsertEntry(tuple_.GetValue(md.schema_, uint32(colIdx)), *tuple_.GetRID())
	}

	md.indexes = append(md.indexes, im)
	c.indexIds[oid] = im
	common.Logger().Info("index created",
		zap.String("index", indexName), zap.String("table", md.name), zap.String("column", columnName))
	return im, nil
}

func (c *Catalog) DropIndex(indexOID uint32) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	im, ok := c.indexIds[indexOID]
	if !ok {
		return common.NewNotFoundError("index %d does not exist", indexOID)
	}
	delete(c.indexIds, indexOID)

	md := c.tableIds[im.tableOID]
	kept := md.indexes[:0]
	for _, other := range md.indexes {
		if other.oid != indexOID {
			kept = append(kept, other)
		}
	}
	md.indexes = kept
	return nil
}

func (c *Catalog) GetTableByOID(oid uint32) (*TableMetadata, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	md, ok := c.tableIds[oid]
	if !ok {
		return nil, common.NewNotFoundError("relation %d does not exist", oid)
	}
	return md, nil
}

func (c *Catalog) GetTableByName(name string) (*TableMetadata, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	md, ok := c.tableNames[name]
	if !ok {
		return nil, common.NewNotFoundError("relation %s does not exist", name)
	}
	return md, nil
}

func (c *Catalog) GetIndexByOID(oid uint32) (*IndexMetadata, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	im, ok := c.indexIds[oid]
	if !ok {
		return nil, common.NewNotFoundError("index %d does not exist", oid)
	}
	return im, nil
}

// GetTableStats returns the latest published statistics snapshot for the
// relation, or default assumptions flagged as such when it was never
// analyzed.
func (c *Catalog) GetTableStats(oid uint32) (*TableStatistics, error) {
	md, err := c.GetTableByOID(oid)
	if err != nil {
		return nil, err
	}
	return c.stats.Lookup(md), nil
}

// RefreshStatistics recomputes statistics from the relation's current rows
// and publishes a new immutable snapshot. Until called, readers keep seeing
// the previous (possibly stale) snapshot.
func (c *Catalog) RefreshStatistics(oid uint32, txn *access.Transaction) error {
	md, err := c.GetTableByOID(oid)
	if err != nil {
		return err
	}
	md.table.RefreshVisibility()
	return c.stats.Refresh(md, txn)
}
