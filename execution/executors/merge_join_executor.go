package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// MergeJoinExecutor advances two inputs the planner guarantees arrive in
// join key order. The right side is materialized so duplicate key groups can
// be replayed for every matching left row; key-matched pairs still pass
// through the plan's residual filter when one is set.
type MergeJoinExecutor struct {
	ctx   *ExecutorContext
	plan  *plans.MergeJoinPlanNode
	left  Executor
	right Executor

	rightTuples []*tuple.Tuple
	leftTuple   *tuple.Tuple
	// current right side key group and the replay position inside it
	groupStart int
	groupEnd   int
	groupPos   int

	stats  *NodeStats
	cancel cancelChecker
}

func NewMergeJoinExecutor(ctx *ExecutorContext, plan *plans.MergeJoinPlanNode, left Executor, right Executor) *MergeJoinExecutor {
	return &MergeJoinExecutor{ctx: ctx, plan: plan, left: left, right: right, stats: ctx.StatsFor(plan)}
}

func (e *MergeJoinExecutor) Init() error {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	e.rightTuples = nil
	e.leftTuple = nil
	e.groupStart, e.groupEnd, e.groupPos = 0, 0, 0
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}

	if err := e.left.Init(); err != nil {
		return err
	}
	if err := e.right.Init(); err != nil {
		return err
	}
	for {
		tuple_, done, err := e.right.Next()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		e.rightTuples = append(e.rightTuples, tuple_)
	}
}

func (e *MergeJoinExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	leftSchema := e.plan.GetChildAt(0).OutputSchema()
	rightSchema := e.plan.GetChildAt(1).OutputSchema()
	leftKey := e.plan.GetLeftKeyCol()
	rightKey := e.plan.GetRightKeyCol()
	outSchema := e.plan.OutputSchema()

	for {
		if e.cancel.cancelled() {
			return nil, true, nil
		}

		if e.leftTuple != nil && e.groupPos < e.groupEnd {
			rightTuple := e.rightTuples[e.groupPos]
			e.groupPos++
			if residual := e.plan.GetResidual(); residual != nil {
				keep, err := residual.EvaluateJoin(e.leftTuple, leftSchema, rightTuple, rightSchema)
				if err != nil {
					return nil, false, err
				}
				if !keep.ToBoolean() {
					continue
				}
			}
			values := append(e.leftTuple.GetValues(leftSchema), rightTuple.GetValues(rightSchema)...)
			if e.ctx.Instrumented() {
				e.stats.ActualRows++
			}
			return tuple.NewFromSchema(values, outSchema), false, nil
		}

		leftTuple, done, err := e.left.Next()
		if err != nil || done {
			return nil, done, err
		}
		e.leftTuple = leftTuple
		key := leftTuple.GetValue(leftSchema, leftKey)

		// advance the group start past smaller right keys; equal consecutive
		// left keys reuse the same group
		for e.groupStart < len(e.rightTuples) &&
			e.rightTuples[e.groupStart].GetValue(rightSchema, rightKey).CompareLessThan(key) {
			e.groupStart++
		}
		e.groupEnd = e.groupStart
		for e.groupEnd < len(e.rightTuples) &&
			e.rightTuples[e.groupEnd].GetValue(rightSchema, rightKey).CompareEquals(key) {
			e.groupEnd++
		}
		e.groupPos = e.groupStart
	}
}

func (e *MergeJoinExecutor) Close() {
	e.left.Close()
	e.right.Close()
	e.rightTuples = nil
}
