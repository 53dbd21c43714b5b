package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// ProjectionExecutor evaluates one expression per output column for every
// input row.
type ProjectionExecutor struct {
	ctx   *ExecutorContext
	plan  *plans.ProjectionPlanNode
	child Executor
	stats *NodeStats
}

func NewProjectionExecutor(ctx *ExecutorContext, plan *plans.ProjectionPlanNode, child Executor) *ProjectionExecutor {
	return &ProjectionExecutor{ctx: ctx, plan: plan, child: child, stats: ctx.StatsFor(plan)}
}

func (e *ProjectionExecutor) Init() error {
	return e.child.Init()
}

func (e *ProjectionExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	tuple_, done, err := e.child.Next()
	if err != nil || done {
		return nil, done, err
	}

	childSchema := e.plan.GetChildAt(0).OutputSchema()
	values := make([]types.Value, 0, len(e.plan.GetExpressions()))
	for _, expr := range e.plan.GetExpressions() {
		value, err := expr.Evaluate(tuple_, childSchema)
		if err != nil {
			return nil, false, err
		}
		values = append(values, value)
	}
	if e.ctx.Instrumented() {
		e.stats.ActualRows++
	}
	return tuple.NewFromSchema(values, e.plan.OutputSchema()), false, nil
}

func (e *ProjectionExecutor) Close() {
	e.child.Close()
}
