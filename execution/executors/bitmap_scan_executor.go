package executors

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/index"
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// BitmapScanExecutor collects the matching RIDs of every participating
// index into a set, intersects them (the clauses are conjunctive) and
// fetches the survivors in heap page order, which turns scattered index
// matches into near-sequential I/O.
type BitmapScanExecutor struct {
	ctx    *ExecutorContext
	plan   *plans.BitmapScanPlanNode
	heap   *access.TableHeap
	rids   []page.RID
	pos    int
	stats  *NodeStats
	cancel cancelChecker
}

func NewBitmapScanExecutor(ctx *ExecutorContext, plan *plans.BitmapScanPlanNode) *BitmapScanExecutor {
	return &BitmapScanExecutor{ctx: ctx, plan: plan, stats: ctx.StatsFor(plan)}
}

func (e *BitmapScanExecutor) Init() error {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	md, err := e.ctx.GetCatalog().GetTableByOID(e.plan.GetTableOID())
	if err != nil {
		return err
	}
	e.heap = md.Table()
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}
	e.pos = 0

	var combined mapset.Set[page.RID]
	for i, indexOID := range e.plan.GetIndexOIDs() {
		im, err := e.ctx.GetCatalog().GetIndexByOID(indexOID)
		if err != nil {
			return err
		}
		matches := collectMatchingRIDs(im.GetIndex(), e.plan.GetScanPredicates()[i])
		if combined == nil {
			combined = matches
		} else {
			combined = combined.Intersect(matches)
		}
	}
	if combined == nil {
		e.rids = nil
		return nil
	}

	e.rids = combined.ToSlice()
	sort.Slice(e.rids, func(a, b int) bool {
		if e.rids[a].PageId != e.rids[b].PageId {
			return e.rids[a].PageId < e.rids[b].PageId
		}
		return e.rids[a].SlotNum < e.rids[b].SlotNum
	})
	return nil
}

func collectMatchingRIDs(idx *index.BTreeIndex, preds []plans.ScanPredicate) mapset.Set[page.RID] {
	var lower, upper *types.Value
	lowerInclusive, upperInclusive := true, true
	for _, sp := range preds {
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

	matches := mapset.NewThreadUnsafeSet[page.RID]()
	it := idx.RangeScanIterator(lower, upper, lowerInclusive, upperInclusive)
	for {
		_, rid, ok := it.Next()
		if !ok {
			return matches
		}
		matches.Add(rid)
	}
}

func (e *BitmapScanExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	residual := e.plan.GetResidual()
	schema_ := e.plan.OutputSchema()
	for e.pos < len(e.rids) {
		if e.cancel.cancelled() {
			return nil, true, nil
		}
		rid := e.rids[e.pos]
		e.pos++

		tuple_ := e.heap.GetVisibleTuple(&rid, e.ctx.GetTransaction())
		if tuple_ == nil {
			continue
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
	return nil, true, nil
}

func (e *BitmapScanExecutor) Close() {
	e.rids = nil
}
