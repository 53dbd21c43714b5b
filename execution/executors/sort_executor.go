package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// SortExecutor materializes its input on Init and streams it in key order.
type SortExecutor struct {
	ctx    *ExecutorContext
	plan   *plans.SortPlanNode
	child  Executor
	tuples []*tuple.Tuple
	pos    int
	stats  *NodeStats
	cancel cancelChecker
}

func NewSortExecutor(ctx *ExecutorContext, plan *plans.SortPlanNode, child Executor) *SortExecutor {
	return &SortExecutor{ctx: ctx, plan: plan, child: child, stats: ctx.StatsFor(plan)}
}

func (e *SortExecutor) Init() error {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	e.tuples = nil
	e.pos = 0
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}

	if err := e.child.Init(); err != nil {
		return err
	}
	for {
		if e.cancel.cancelled() {
			break
		}
		tuple_, done, err := e.child.Next()
		if err != nil {
			return err
		}
		if done {
			break
		}
		e.tuples = append(e.tuples, tuple_)
	}
	sortTuplesByKeys(e.tuples, e.plan.OutputSchema(), e.plan.GetSortKeyCols())
	return nil
}

func (e *SortExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	if e.pos >= len(e.tuples) {
		return nil, true, nil
	}
	tuple_ := e.tuples[e.pos]
	e.pos++
	if e.ctx.Instrumented() {
		e.stats.ActualRows++
	}
	return tuple_, false, nil
}

func (e *SortExecutor) Close() {
	e.child.Close()
	e.tuples = nil
}
