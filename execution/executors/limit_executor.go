package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// LimitExecutor stops pulling from its child once the limit is reached, so
// an upstream pipeline never produces more than it has to.
type LimitExecutor struct {
	ctx     *ExecutorContext
	plan    *plans.LimitPlanNode
	child   Executor
	emitted int64
	stats   *NodeStats
}

func NewLimitExecutor(ctx *ExecutorContext, plan *plans.LimitPlanNode, child Executor) *LimitExecutor {
	return &LimitExecutor{ctx: ctx, plan: plan, child: child, stats: ctx.StatsFor(plan)}
}

func (e *LimitExecutor) Init() error {
	e.emitted = 0
	return e.child.Init()
}

func (e *LimitExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	if e.emitted >= e.plan.GetLimit() {
		return nil, true, nil
	}
	tuple_, done, err := e.child.Next()
	if err != nil || done {
		return nil, done, err
	}
	e.emitted++
	if e.ctx.Instrumented() {
		e.stats.ActualRows++
	}
	return tuple_, false, nil
}

func (e *LimitExecutor) Close() {
	e.child.Close()
}
