// Package kiri is the embeddable front door: it wires storage, catalog,
// planner and executors together and exposes the operations an application
// (or a test) drives the engine with.
package kiri

import (
	"go.uber.org/zap"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/execution/executors"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/explain"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/planner/optimizer"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/disk"
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

type KiriDB struct {
	cfg         *common.Config
	diskManager disk.DiskManager
	bpm         *buffer.BufferPoolManager
	txnMgr      *access.TransactionManager
	catalog_    *catalog.Catalog
	optimizer_  *optimizer.SelingerOptimizer
	builder     *planner.PlanBuilder
	engine      *executors.ExecutionEngine
}

// NewKiriDB starts an instance on an in-memory virtual disk.
func NewKiriDB(cfg *common.Config) *KiriDB {
	return newKiriDB(cfg, disk.NewVirtualDiskManagerImpl())
}

// NewKiriDBWithFile starts an instance persisted to dbFile.
func NewKiriDBWithFile(cfg *common.Config, dbFile string) (*KiriDB, error) {
	dm, err := disk.NewDiskManagerImpl(dbFile)
	if err != nil {
		return nil, err
	}
	return newKiriDB(cfg, dm), nil
}

func newKiriDB(cfg *common.Config, dm disk.DiskManager) *KiriDB {
	bpm := buffer.NewBufferPoolManager(common.BufferPoolDefaultFrameNum, dm)
	txnMgr := access.NewTransactionManager()
	c := catalog.NewCatalog(bpm, txnMgr, cfg.DefaultStatisticsTarget)
	return &KiriDB{
		cfg:         cfg,
		diskManager: dm,
		bpm:         bpm,
		txnMgr:      txnMgr,
		catalog_:    c,
		optimizer_:  optimizer.NewSelingerOptimizer(cfg, c),
		builder:     planner.NewPlanBuilder(cfg, c),
		engine:      executors.NewExecutionEngine(),
	}
}

func (db *KiriDB) ShutDown() {
	db.bpm.FlushAllPages()
	db.diskManager.ShutDown()
}

func (db *KiriDB) Catalog() *catalog.Catalog                     { return db.catalog_ }
func (db *KiriDB) TransactionManager() *access.TransactionManager { return db.txnMgr }

func (db *KiriDB) Begin() *access.Transaction     { return db.txnMgr.Begin() }
func (db *KiriDB) Commit(txn *access.Transaction) { db.txnMgr.Commit(txn) }
func (db *KiriDB) Abort(txn *access.Transaction)  { db.txnMgr.Abort(txn) }

func (db *KiriDB) CreateTable(name string, schema_ *schema.Schema) *catalog.TableMetadata {
	return db.catalog_.CreateTable(name, schema_)
}

// CreateIndex builds and backfills an index inside its own transaction.
func (db *KiriDB) CreateIndex(tableName string, indexName string, columnName string) (*catalog.IndexMetadata, error) {
	md, err := db.catalog_.GetTableByName(tableName)
	if err != nil {
		return nil, err
	}
	txn := db.txnMgr.Begin()
	im, err := db.catalog_.CreateIndex(md.OID(), indexName, columnName, txn)
	if err != nil {
		db.txnMgr.Abort(txn)
		return nil, err
	}
	db.txnMgr.Commit(txn)
	return im, nil
}

// InsertRow stores one row under txn and maintains every index of the
// relation.
func (db *KiriDB) InsertRow(tableName string, values []types.Value, txn *access.Transaction) (*page.RID, error) {
	md, err := db.catalog_.GetTableByName(tableName)
	if err != nil {
		return nil, err
	}
	tuple_ := tuple.NewFromSchema(values, md.Schema())
	rid, err := md.Table().InsertTuple(tuple_, txn)
	if err != nil {
		return nil, err
	}
	for _, im := range md.Indexes() {
		im.GetIndex().InsertEntry(values[im.GetColIdx()], *rid)
	}
	return rid, nil
}

// DeleteRows marks every visible row matching the clause as superseded by
// txn. Index entries stay; visibility filters them out for later snapshots.
func (db *KiriDB) DeleteRows(tableName string, columnName string, op planner.ComparisonOp, value types.Value, txn *access.Transaction) (uint64, error) {
	md, err := db.catalog_.GetTableByName(tableName)
	if err != nil {
		return 0, err
	}
	colIdx := md.Schema().GetColIndex(columnName)
	if colIdx < 0 {
		return 0, common.NewNotFoundError("column %s does not exist in relation %s", columnName, tableName)
	}

	var deleted uint64
	it := md.Table().Iterator(txn)
	for tuple_ := it.Next(); tuple_ != nil; tuple_ = it.Next() {
		if !clauseHolds(tuple_.GetValue(md.Schema(), uint32(colIdx)), op, value) {
			continue
		}
		if md.Table().MarkDeleted(tuple_.GetRID(), txn) {
			deleted++
		}
	}
	return deleted, nil
}

func clauseHolds(left types.Value, op planner.ComparisonOp, right types.Value) bool {
	switch op {
	case planner.OpEqual:
		return left.CompareEquals(right)
	case planner.OpNotEqual:
		return left.CompareNotEquals(right)
	case planner.OpLessThan:
		return left.CompareLessThan(right)
	case planner.OpLessThanOrEqual:
		return left.CompareLessThanOrEqual(right)
	case planner.OpGreaterThan:
		return left.CompareGreaterThan(right)
	default:
		return left.CompareGreaterThanOrEqual(right)
	}
}

// RefreshStatistics republishes the relation's statistics snapshot from its
// current contents.
func (db *KiriDB) RefreshStatistics(tableName string) error {
	md, err := db.catalog_.GetTableByName(tableName)
	if err != nil {
		return err
	}
	txn := db.txnMgr.Begin()
	defer db.txnMgr.Commit(txn)
	return db.catalog_.RefreshStatistics(md.OID(), txn)
}

// Plan runs the optimizer and plan builder for a resolved query.
func (db *KiriDB) Plan(query *planner.Query) (plans.Plan, error) {
	path, err := db.optimizer_.Optimize(query)
	if err != nil {
		return nil, err
	}
	plan, err := db.builder.Build(query, path)
	if err != nil {
		return nil, err
	}
	common.Logger().Debug("query planned",
		zap.String("top", plan.GetType().String()),
		zap.Float64("total_cost", plan.GetEstimate().TotalCost))
	return plan, nil
}

// ResultSet streams query output rows.
type ResultSet struct {
	plan    plans.Plan
	exec    executors.Executor
	ctx     *executors.ExecutorContext
	schema_ *schema.Schema
}

func (rs *ResultSet) Schema() *schema.Schema { return rs.schema_ }
func (rs *ResultSet) Plan() plans.Plan       { return rs.plan }

// Next yields the next row's values, or done.
func (rs *ResultSet) Next() ([]types.Value, bool, error) {
	tuple_, done, err := rs.exec.Next()
	if err != nil || done {
		return nil, done, err
	}
	return tuple_.GetValues(rs.schema_), false, nil
}

func (rs *ResultSet) Close() {
	rs.exec.Close()
}

// ExecuteQuery plans and opens a result set; rows are produced lazily as the
// caller pulls them.
func (db *KiriDB) ExecuteQuery(query *planner.Query, txn *access.Transaction) (*ResultSet, error) {
	plan, err := db.Plan(query)
	if err != nil {
		return nil, err
	}
	ctx := executors.NewExecutorContext(db.cfg, db.catalog_, db.bpm, txn)
	exec, err := db.engine.CreateExecutor(plan, ctx)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(); err != nil {
		exec.Close()
		return nil, err
	}
	return &ResultSet{plan: plan, exec: exec, ctx: ctx, schema_: plan.OutputSchema()}, nil
}

// ExplainQuery renders the chosen plan. With analyze the query is executed
// under instrumentation and per-node actuals are included.
func (db *KiriDB) ExplainQuery(query *planner.Query, analyze bool, txn *access.Transaction) (string, error) {
	plan, err := db.Plan(query)
	if err != nil {
		return "", err
	}
	if !analyze {
		return explain.Render(explain.Format(plan)), nil
	}

	ctx := executors.NewExecutorContext(db.cfg, db.catalog_, db.bpm, txn)
	ctx.EnableInstrumentation()
	if _, err := db.engine.Execute(plan, ctx); err != nil {
		return "", err
	}
	return explain.Render(explain.FormatWithActuals(plan, ctx)), nil
}
