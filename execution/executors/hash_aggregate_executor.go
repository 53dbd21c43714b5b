package executors

import (
	"time"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// HashAggregateExecutor drains its input into a hash table keyed on the
// group-by columns, then emits one row per group. Group output order is
// unspecified.
type HashAggregateExecutor struct {
	ctx   *ExecutorContext
	plan  *plans.HashAggregatePlanNode
	child Executor

	groups []*aggGroup
	pos    int

	stats  *NodeStats
	cancel cancelChecker
}

type aggGroup struct {
	groupVals []types.Value
	states    []*aggState
}

func NewHashAggregateExecutor(ctx *ExecutorContext, plan *plans.HashAggregatePlanNode, child Executor) *HashAggregateExecutor {
	return &HashAggregateExecutor{ctx: ctx, plan: plan, child: child, stats: ctx.StatsFor(plan)}
}

func (e *HashAggregateExecutor) Init() error {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	e.groups = nil
	e.pos = 0
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}

	if err := e.child.Init(); err != nil {
		return err
	}

	childSchema := e.plan.GetChildAt(0).OutputSchema()
	groupCols := e.plan.GetGroupByCols()
	specs := e.plan.GetAggregates()

	table := make(map[string]*aggGroup)
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

		key := groupKey(tuple_, childSchema, groupCols)
		group, ok := table[key]
		if !ok {
			groupVals := make([]types.Value, 0, len(groupCols))
			for _, c := range groupCols {
				groupVals = append(groupVals, tuple_.GetValue(childSchema, c))
			}
			group = &aggGroup{groupVals: groupVals, states: newAggStates(specs)}
			table[key] = group
			e.groups = append(e.groups, group)
		}
		for i, spec := range specs {
			group.states[i].add(tuple_.GetValue(childSchema, spec.ColIdx))
		}
	}
	// no grouping means exactly one group, even over empty input
	if len(e.groups) == 0 && len(groupCols) == 0 {
		e.groups = append(e.groups, &aggGroup{states: newAggStates(specs)})
	}
	return nil
}

// groupKey builds an exact map key from the serialized group column values.
// Lengths are delimited so variable width values can't collide.
func groupKey(tuple_ *tuple.Tuple, schema_ *schema.Schema, cols []uint32) string {
	var key []byte
	for _, c := range cols {
		raw := tuple_.GetValue(schema_, c).Serialize()
		key = append(key, byte(len(raw)))
		key = append(key, raw...)
	}
	return string(key)
}

func (e *HashAggregateExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	if e.pos >= len(e.groups) {
		return nil, true, nil
	}
	group := e.groups[e.pos]
	e.pos++

	specs := e.plan.GetAggregates()
	values := make([]types.Value, 0, len(group.groupVals)+len(specs))
	values = append(values, group.groupVals...)
	for i, spec := range specs {
		values = append(values, group.states[i].result(spec.Kind))
	}
	if e.ctx.Instrumented() {
		e.stats.ActualRows++
	}
	return tuple.NewFromSchema(values, e.plan.OutputSchema()), false, nil
}

func (e *HashAggregateExecutor) Close() {
	e.child.Close()
	e.groups = nil
}
