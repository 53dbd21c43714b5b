package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// SeqScanExecutor walks the table heap in page order, skipping versions
// invisible to the transaction's snapshot and applying the filter to the
// rest.
type SeqScanExecutor struct {
	ctx    *ExecutorContext
	plan   *plans.SeqScanPlanNode
	it     *access.TableHeapIterator
	stats  *NodeStats
	cancel cancelChecker
}

func NewSeqScanExecutor(ctx *ExecutorContext, plan *plans.SeqScanPlanNode) *SeqScanExecutor {
	return &SeqScanExecutor{ctx: ctx, plan: plan, stats: ctx.StatsFor(plan)}
}

func (e *SeqScanExecutor) Init() error {
	md, err := e.ctx.GetCatalog().GetTableByOID(e.plan.GetTableOID())
	if err != nil {
		return err
	}
	e.it = md.Table().Iterator(e.ctx.GetTransaction())
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}
	return nil
}

func (e *SeqScanExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	pred := e.plan.GetPredicate()
	schema_ := e.plan.OutputSchema()
	for {
		if e.cancel.cancelled() {
			return nil, true, nil
		}
		tuple_ := e.it.Next()
		if tuple_ == nil {
			return nil, true, nil
		}
		if pred != nil {
			keep, err := pred.Evaluate(tuple_, schema_)
			if err != nil {
				return nil, false, err
			}
			if !keep.ToBoolean() {
				continue
			}
		}
		if e.ctx.Instrumented() {
			e.stats.ActualRows++
		}
		return tuple_, false, nil
	}
}

func (e *SeqScanExecutor) Close() {
	e.it = nil
}
