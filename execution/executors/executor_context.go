package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/buffer"
)

// NodeStats is the per-node instrumentation a query run accumulates: row
// counts and wall time when instrumentation is on, plus the spill flag which
// is always recorded.
type NodeStats struct {
	ActualRows   uint64
	ActualTimeMs float64
	Spilled      bool
}

func (s *NodeStats) addTime(start time.Time) {
	s.ActualTimeMs += float64(time.Since(start).Nanoseconds()) / 1e6
}

// ExecutorContext carries everything an executor needs at runtime. One
// context per query execution; executors share it.
type ExecutorContext struct {
	cfg      *common.Config
	catalog_ *catalog.Catalog
	bpm      *buffer.BufferPoolManager
	txn      *access.Transaction
	// instrumentation is a toggle on the context, not a separate executor
	// code path
	instrumented bool
	stats        map[plans.Plan]*NodeStats
}

func NewExecutorContext(cfg *common.Config, c *catalog.Catalog, bpm *buffer.BufferPoolManager, txn *access.Transaction) *ExecutorContext {
	return &ExecutorContext{
		cfg:      cfg,
		catalog_: c,
		bpm:      bpm,
		txn:      txn,
		stats:    make(map[plans.Plan]*NodeStats),
	}
}

func (ctx *ExecutorContext) GetCatalog() *catalog.Catalog             { return ctx.catalog_ }
func (ctx *ExecutorContext) GetBufferPoolManager() *buffer.BufferPoolManager { return ctx.bpm }
func (ctx *ExecutorContext) GetTransaction() *access.Transaction      { return ctx.txn }
func (ctx *ExecutorContext) GetConfig() *common.Config                { return ctx.cfg }

func (ctx *ExecutorContext) EnableInstrumentation() { ctx.instrumented = true }
func (ctx *ExecutorContext) Instrumented() bool     { return ctx.instrumented }

// StatsFor returns the instrumentation slot for a plan node, creating it on
// first use.
func (ctx *ExecutorContext) StatsFor(plan plans.Plan) *NodeStats {
	if s, ok := ctx.stats[plan]; ok {
		return s
	}
	s := &NodeStats{}
	ctx.stats[plan] = s
	return s
}

// LookupStats returns recorded stats for a node, nil when the node never ran.
func (ctx *ExecutorContext) LookupStats(plan plans.Plan) *NodeStats {
	return ctx.stats[plan]
}

// cancelChecker amortizes the cancellation flag read: one check per
// CancelCheckInterval rows processed.
type cancelChecker struct {
	txn  *access.Transaction
	rows int
}

func (c *cancelChecker) cancelled() bool {
	c.rows++
	if c.rows%common.CancelCheckInterval == 0 {
		return c.txn.IsCancelRequested()
	}
	return false
}
