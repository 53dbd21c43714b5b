package plans

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

type AggregationType int

const (
	CountAggregate AggregationType = iota
	SumAggregate
	MinAggregate
	MaxAggregate
	AvgAggregate
)

func (t AggregationType) String() string {
	switch t {
	case CountAggregate:
		return "count"
	case SumAggregate:
		return "sum"
	case MinAggregate:
		return "min"
	case MaxAggregate:
		return "max"
	default:
		return "avg"
	}
}

// AggregateSpec is one aggregate over one input column.
type AggregateSpec struct {
	Kind   AggregationType
	ColIdx uint32
}

// HashAggregatePlanNode groups by hashing, one hash table entry per group.
type HashAggregatePlanNode struct {
	*AbstractPlanNode
	groupByCols []uint32
	aggregates  []AggregateSpec
}

func NewHashAggregatePlanNode(schema_ *schema.Schema, estimate Estimate, child Plan, groupByCols []uint32, aggregates []AggregateSpec) *HashAggregatePlanNode {
	return &HashAggregatePlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{child}, schema_: schema_, estimate: estimate},
		groupByCols:      groupByCols,
		aggregates:       aggregates,
	}
}

func (p *HashAggregatePlanNode) GetType() PlanType            { return HashAggregate }
func (p *HashAggregatePlanNode) GetGroupByCols() []uint32     { return p.groupByCols }
func (p *HashAggregatePlanNode) GetAggregates() []AggregateSpec { return p.aggregates }

// GroupAggregatePlanNode assumes its input arrives sorted on the group
// columns and emits each group as its last row passes.
type GroupAggregatePlanNode struct {
	*AbstractPlanNode
	groupByCols []uint32
	aggregates  []AggregateSpec
}

func NewGroupAggregatePlanNode(schema_ *schema.Schema, estimate Estimate, child Plan, groupByCols []uint32, aggregates []AggregateSpec) *GroupAggregatePlanNode {
	return &GroupAggregatePlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{child}, schema_: schema_, estimate: estimate},
		groupByCols:      groupByCols,
		aggregates:       aggregates,
	}
}

func (p *GroupAggregatePlanNode) GetType() PlanType             { return GroupAggregate }
func (p *GroupAggregatePlanNode) GetGroupByCols() []uint32      { return p.groupByCols }
func (p *GroupAggregatePlanNode) GetAggregates() []AggregateSpec { return p.aggregates }
