package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// NestedLoopJoinExecutor re-runs the inner child for every outer row. When
// the inner child is a parameterized index scan it feeds the outer row's
// join key into the probe before each rescan, which is the index nested
// loop shape.
type NestedLoopJoinExecutor struct {
	ctx        *ExecutorContext
	plan       *plans.NestedLoopJoinPlanNode
	outer      Executor
	inner      Executor
	outerTuple *tuple.Tuple
	stats      *NodeStats
	cancel     cancelChecker
}

func NewNestedLoopJoinExecutor(ctx *ExecutorContext, plan *plans.NestedLoopJoinPlanNode, outer Executor, inner Executor) *NestedLoopJoinExecutor {
	return &NestedLoopJoinExecutor{ctx: ctx, plan: plan, outer: outer, inner: inner, stats: ctx.StatsFor(plan)}
}

func (e *NestedLoopJoinExecutor) Init() error {
	e.outerTuple = nil
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}
	return e.outer.Init()
}

func (e *NestedLoopJoinExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	pred := e.plan.GetPredicate()
	outerSchema := e.plan.GetChildAt(0).OutputSchema()
	innerSchema := e.plan.GetChildAt(1).OutputSchema()

	for {
		if e.cancel.cancelled() {
			return nil, true, nil
		}
		if e.outerTuple == nil {
			outerTuple, done, err := e.outer.Next()
			if err != nil || done {
				return nil, done, err
			}
			e.outerTuple = outerTuple
			if err := e.rescanInner(); err != nil {
				return nil, false, err
			}
		}

		innerTuple, done, err := e.inner.Next()
		if err != nil {
			return nil, false, err
		}
		if done {
			e.outerTuple = nil
			continue
		}

		if pred != nil {
			keep, err := pred.EvaluateJoin(e.outerTuple, outerSchema, innerTuple, innerSchema)
			if err != nil {
				return nil, false, err
			}
			if !keep.ToBoolean() {
				continue
			}
		}

		values := append(e.outerTuple.GetValues(outerSchema), innerTuple.GetValues(innerSchema)...)
		if e.ctx.Instrumented() {
			e.stats.ActualRows++
		}
		return tuple.NewFromSchema(values, e.plan.OutputSchema()), false, nil
	}
}

// rescanInner restarts the inner child for a fresh outer row, feeding the
// probe key first when the inner side is a parameterized index scan.
func (e *NestedLoopJoinExecutor) rescanInner() error {
	if probe, ok := e.inner.(*IndexScanExecutor); ok && probe.plan.IsParameterized() {
		outerSchema := e.plan.GetChildAt(0).OutputSchema()
		probe.SetProbeKey(e.outerTuple.GetValue(outerSchema, probe.plan.GetParamColIdx()))
	}
	return e.inner.Init()
}

func (e *NestedLoopJoinExecutor) Close() {
	e.outer.Close()
	e.inner.Close()
}
