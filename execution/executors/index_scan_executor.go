package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/index"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// IndexScanExecutor walks one index in key order within the bounds its scan
// predicates imply. When the plan is index-only it answers from the index
// entry alone on all-visible pages and falls back to the heap elsewhere. A
// parameterized scan takes its probe key from the enclosing nested loop
// through SetProbeKey before each Init.
type IndexScanExecutor struct {
	ctx      *ExecutorContext
	plan     *plans.IndexScanPlanNode
	heap     *access.TableHeap
	it       *index.IndexRangeScanIterator
	probeKey *types.Value
	stats    *NodeStats
	cancel   cancelChecker
}

func NewIndexScanExecutor(ctx *ExecutorContext, plan *plans.IndexScanPlanNode) *IndexScanExecutor {
	return &IndexScanExecutor{ctx: ctx, plan: plan, stats: ctx.StatsFor(plan)}
}

// SetProbeKey parameterizes the next Init with an equality key from the
// outer row.
func (e *IndexScanExecutor) SetProbeKey(key types.Value) {
	e.probeKey = &key
}

func (e *IndexScanExecutor) Init() error {
	md, err := e.ctx.GetCatalog().GetTableByOID(e.plan.GetTableOID())
	if err != nil {
		return err
	}
	im, err := e.ctx.GetCatalog().GetIndexByOID(e.plan.GetIndexOID())
	if err != nil {
		return err
	}
	e.heap = md.Table()
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}

	var lower, upper *types.Value
	lowerInclusive, upperInclusive := true, true
	if e.plan.IsParameterized() {
		lower, upper = e.probeKey, e.probeKey
	} else {
		for _, sp := range e.plan.GetScanPredicates() {
			value := sp.Value
			switch sp.Op {
			case expression.Equal:
				lower, upper = &value, &value
			case expression.GreaterThan:
				lower, lowerInclusive = &value, false
			case expression.GreaterThanOrEqual:
				lower, lowerInclusive = &value, true
			case expression.LessThan:
				upper, upperInclusive = &value, false
			case expression.LessThanOrEqual:
				upper, upperInclusive = &value, true
			}
		}
	}
	e.it = im.GetIndex().RangeScanIterator(lower, upper, lowerInclusive, upperInclusive)
	return nil
}

func (e *IndexScanExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	residual := e.plan.GetResidual()
	schema_ := e.plan.OutputSchema()
	for {
		if e.cancel.cancelled() {
			return nil, true, nil
		}
		key, rid, ok := e.it.Next()
		if !ok {
			return nil, true, nil
		}

		var tuple_ *tuple.Tuple
		if e.plan.IsIndexOnly() && e.heap.GetVisibilityMap().IsAllVisible(rid.PageId) {
			// every version on the page is visible to everyone, so the index
			// entry alone answers
			tuple_ = tuple.NewFromSchema([]types.Value{key}, schema_)
			tuple_.SetRID(&rid)
		} else {
			tuple_ = e.heap.GetVisibleTuple(&rid, e.ctx.GetTransaction())
			if tuple_ == nil {
				continue
			}
		}

		if residual != nil {
			keep, err := residual.Evaluate(tuple_, schema_)
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

func (e *IndexScanExecutor) Close() {
	e.it = nil
	e.probeKey = nil
}
