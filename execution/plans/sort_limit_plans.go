package plans

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// SortPlanNode materializes its input and emits it ordered by the key
// columns.
type SortPlanNode struct {
	*AbstractPlanNode
	sortKeyCols []uint32
}

func NewSortPlanNode(schema_ *schema.Schema, estimate Estimate, child Plan, sortKeyCols []uint32) *SortPlanNode {
	return &SortPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{child}, schema_: schema_, estimate: estimate},
		sortKeyCols:      sortKeyCols,
	}
}

func (p *SortPlanNode) GetType() PlanType      { return Sort }
func (p *SortPlanNode) GetSortKeyCols() []uint32 { return p.sortKeyCols }

// LimitPlanNode stops pulling from its child after the limit is reached.
type LimitPlanNode struct {
	*AbstractPlanNode
	limit int64
}

func NewLimitPlanNode(schema_ *schema.Schema, estimate Estimate, child Plan, limit int64) *LimitPlanNode {
	return &LimitPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{child}, schema_: schema_, estimate: estimate},
		limit:            limit,
	}
}

func (p *LimitPlanNode) GetType() PlanType { return Limit }
func (p *LimitPlanNode) GetLimit() int64   { return p.limit }
