package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// GroupAggregateExecutor streams over input the planner guarantees arrives
// sorted on the group-by columns, emitting each group as its boundary
// passes. Unlike the hash variant it never materializes more than one group.
type GroupAggregateExecutor struct {
	ctx   *ExecutorContext
	plan  *plans.GroupAggregatePlanNode
	child Executor

	currentVals []types.Value
	states      []*aggState
	drained     bool

	stats  *NodeStats
	cancel cancelChecker
}

func NewGroupAggregateExecutor(ctx *ExecutorContext, plan *plans.GroupAggregatePlanNode, child Executor) *GroupAggregateExecutor {
	return &GroupAggregateExecutor{ctx: ctx, plan: plan, child: child, stats: ctx.StatsFor(plan)}
}

func (e *GroupAggregateExecutor) Init() error {
	e.currentVals = nil
	e.states = nil
	e.drained = false
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}
	return e.child.Init()
}

func (e *GroupAggregateExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	if e.drained {
		return nil, true, nil
	}

	childSchema := e.plan.GetChildAt(0).OutputSchema()
	groupCols := e.plan.GetGroupByCols()
	specs := e.plan.GetAggregates()

	for {
		if e.cancel.cancelled() {
			e.drained = true
			return nil, true, nil
		}
		tuple_, done, err := e.child.Next()
		if err != nil {
			return nil, false, err
		}
		if done {
			e.drained = true
			if e.states == nil {
				if len(groupCols) > 0 {
					return nil, true, nil
				}
				// no grouping means exactly one group, even over empty input
				e.states = newAggStates(specs)
			}
			return e.emitGroup(), false, nil
		}

		rowVals := make([]types.Value, 0, len(groupCols))
		for _, c := range groupCols {
			rowVals = append(rowVals, tuple_.GetValue(childSchema, c))
		}

		if e.states == nil {
			e.currentVals = rowVals
			e.states = newAggStates(specs)
		} else if !sameGroup(e.currentVals, rowVals) {
			finished := e.emitGroup()
			e.currentVals = rowVals
			e.states = newAggStates(specs)
			for i, spec := range specs {
				e.states[i].add(tuple_.GetValue(childSchema, spec.ColIdx))
			}
			return finished, false, nil
		}

		for i, spec := range specs {
			e.states[i].add(tuple_.GetValue(childSchema, spec.ColIdx))
		}
	}
}

func (e *GroupAggregateExecutor) emitGroup() *tuple.Tuple {
	specs := e.plan.GetAggregates()
	values := make([]types.Value, 0, len(e.currentVals)+len(specs))
	values = append(values, e.currentVals...)
	for i, spec := range specs {
		values = append(values, e.states[i].result(spec.Kind))
	}
	if e.ctx.Instrumented() {
		e.stats.ActualRows++
	}
	return tuple.NewFromSchema(values, e.plan.OutputSchema())
}

func sameGroup(a []types.Value, b []types.Value) bool {
	for i := range a {
		if !a[i].CompareEquals(b[i]) {
			return false
		}
	}
	return true
}

func (e *GroupAggregateExecutor) Close() {
	e.child.Close()
}
