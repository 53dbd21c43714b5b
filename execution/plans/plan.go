package plans

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// PlanType is the closed set of physical operators. The executor factory
// switches over it; anything outside the set is a construction bug.
type PlanType int

const (
	SeqScan PlanType = iota
	IndexScan
	BitmapScan
	NestedLoopJoin
	HashJoin
	MergeJoin
	Sort
	Limit
	HashAggregate
	GroupAggregate
	Projection
)

func (t PlanType) String() string {
	switch t {
	case SeqScan:
		return "Seq Scan"
	case IndexScan:
		return "Index Scan"
	case BitmapScan:
		return "Bitmap Heap Scan"
	case NestedLoopJoin:
		return "Nested Loop"
	case HashJoin:
		return "Hash Join"
	case MergeJoin:
		return "Merge Join"
	case Sort:
		return "Sort"
	case Limit:
		return "Limit"
	case HashAggregate:
		return "HashAggregate"
	case GroupAggregate:
		return "GroupAggregate"
	default:
		return "Projection"
	}
}

// Estimate is the planner's cost prediction attached to a node, preserved
// verbatim so EXPLAIN can print what the planner believed.
type Estimate struct {
	StartupCost float64
	TotalCost   float64
	Rows        float64
	// true when the numbers rest on default assumptions instead of collected
	// statistics
	Defaulted bool
}

// Plan is one node of the physical plan tree handed to the execution engine.
type Plan interface {
	GetType() PlanType
	GetChildAt(childIndex uint32) Plan
	GetChildren() []Plan
	OutputSchema() *schema.Schema
	GetEstimate() Estimate
}

type AbstractPlanNode struct {
	children []Plan
	schema_  *schema.Schema
	estimate Estimate
}

func (p *AbstractPlanNode) GetChildAt(childIndex uint32) Plan {
	return p.children[childIndex]
}

func (p *AbstractPlanNode) GetChildren() []Plan {
	return p.children
}

func (p *AbstractPlanNode) OutputSchema() *schema.Schema {
	return p.schema_
}

func (p *AbstractPlanNode) GetEstimate() Estimate {
	return p.estimate
}
