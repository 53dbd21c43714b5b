package plans

import (
	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// ProjectionPlanNode evaluates one expression per output column.
type ProjectionPlanNode struct {
	*AbstractPlanNode
	expressions []expression.Expression
}

func NewProjectionPlanNode(schema_ *schema.Schema, estimate Estimate, child Plan, expressions []expression.Expression) *ProjectionPlanNode {
	return &ProjectionPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{child}, schema_: schema_, estimate: estimate},
		expressions:      expressions,
	}
}

func (p *ProjectionPlanNode) GetType() PlanType                      { return Projection }
func (p *ProjectionPlanNode) GetExpressions() []expression.Expression { return p.expressions }
