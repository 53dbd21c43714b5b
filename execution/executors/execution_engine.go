package executors

import (
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// Executor is one Volcano-style operator: Init prepares (and for blocking
// operators does all the work), Next yields one row or reports the end of
// the stream, Close releases whatever Init acquired. A cancelled query
// surfaces as a normal end of stream.
type Executor interface {
	Init() error
	Next() (*tuple.Tuple, bool, error)
	Close()
}

// ExecutionEngine builds executor trees from plan trees and drives them.
type ExecutionEngine struct{}

func NewExecutionEngine() *ExecutionEngine {
	return &ExecutionEngine{}
}

// CreateExecutor dispatches over the closed plan type set. An unknown type
// is a construction bug in the plan builder, not a user error.
func (e *ExecutionEngine) CreateExecutor(plan plans.Plan, ctx *ExecutorContext) (Executor, error) {
	switch p := plan.(type) {
	case *plans.SeqScanPlanNode:
		return NewSeqScanExecutor(ctx, p), nil
	case *plans.IndexScanPlanNode:
		return NewIndexScanExecutor(ctx, p), nil
	case *plans.BitmapScanPlanNode:
		return NewBitmapScanExecutor(ctx, p), nil
	case *plans.NestedLoopJoinPlanNode:
		outer, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		inner, err := e.CreateExecutor(p.GetChildAt(1), ctx)
		if err != nil {
			return nil, err
		}
		return NewNestedLoopJoinExecutor(ctx, p, outer, inner), nil
	case *plans.HashJoinPlanNode:
		build, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		probe, err := e.CreateExecutor(p.GetChildAt(1), ctx)
		if err != nil {
			return nil, err
		}
		return NewHashJoinExecutor(ctx, p, build, probe), nil
	case *plans.MergeJoinPlanNode:
		left, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		right, err := e.CreateExecutor(p.GetChildAt(1), ctx)
		if err != nil {
			return nil, err
		}
		return NewMergeJoinExecutor(ctx, p, left, right), nil
	case *plans.SortPlanNode:
		child, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		return NewSortExecutor(ctx, p, child), nil
	case *plans.LimitPlanNode:
		child, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		return NewLimitExecutor(ctx, p, child), nil
	case *plans.HashAggregatePlanNode:
		child, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		return NewHashAggregateExecutor(ctx, p, child), nil
	case *plans.GroupAggregatePlanNode:
		child, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		return NewGroupAggregateExecutor(ctx, p, child), nil
	case *plans.ProjectionPlanNode:
		child, err := e.CreateExecutor(p.GetChildAt(0), ctx)
		if err != nil {
			return nil, err
		}
		return NewProjectionExecutor(ctx, p, child), nil
	default:
		return nil, common.NewExecutionError("no executor for plan type %v", plan.GetType())
	}
}

// Execute pulls the whole result set.
func (e *ExecutionEngine) Execute(plan plans.Plan, ctx *ExecutorContext) ([]*tuple.Tuple, error) {
	exec, err := e.CreateExecutor(plan, ctx)
	if err != nil {
		return nil, err
	}
	if err := exec.Init(); err != nil {
		exec.Close()
		return nil, err
	}
	defer exec.Close()

	var result []*tuple.Tuple
	for {
		tuple_, done, err := exec.Next()
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}
		result = append(result, tuple_)
	}
}
