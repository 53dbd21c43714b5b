package plans

import (
	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// NestedLoopJoinPlanNode rescans the inner child for every outer row. With a
// parameterized index scan inner it becomes an index nested loop.
type NestedLoopJoinPlanNode struct {
	*AbstractPlanNode
	predicate expression.Expression
}

func NewNestedLoopJoinPlanNode(schema_ *schema.Schema, estimate Estimate, outer Plan, inner Plan, predicate expression.Expression) *NestedLoopJoinPlanNode {
	return &NestedLoopJoinPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{outer, inner}, schema_: schema_, estimate: estimate},
		predicate:        predicate,
	}
}

func (p *NestedLoopJoinPlanNode) GetType() PlanType                   { return NestedLoopJoin }
func (p *NestedLoopJoinPlanNode) GetPredicate() expression.Expression { return p.predicate }

// HashJoinPlanNode builds a hash table on the left child's keys and probes it
// with the right child's rows.
type HashJoinPlanNode struct {
	*AbstractPlanNode
	buildKeyCols []uint32
	probeKeyCols []uint32
}

func NewHashJoinPlanNode(schema_ *schema.Schema, estimate Estimate, build Plan, probe Plan, buildKeyCols []uint32, probeKeyCols []uint32) *HashJoinPlanNode {
	return &HashJoinPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{build, probe}, schema_: schema_, estimate: estimate},
		buildKeyCols:     buildKeyCols,
		probeKeyCols:     probeKeyCols,
	}
}

func (p *HashJoinPlanNode) GetType() PlanType       { return HashJoin }
func (p *HashJoinPlanNode) GetBuildKeyCols() []uint32 { return p.buildKeyCols }
func (p *HashJoinPlanNode) GetProbeKeyCols() []uint32 { return p.probeKeyCols }

// MergeJoinPlanNode advances two inputs already sorted on the join key.
// Equality conditions beyond the merge key are enforced by the residual
// filter on each key-matched pair.
type MergeJoinPlanNode struct {
	*AbstractPlanNode
	leftKeyCol  uint32
	rightKeyCol uint32
	residual    expression.Expression
}

func NewMergeJoinPlanNode(schema_ *schema.Schema, estimate Estimate, left Plan, right Plan, leftKeyCol uint32, rightKeyCol uint32, residual expression.Expression) *MergeJoinPlanNode {
	return &MergeJoinPlanNode{
		AbstractPlanNode: &AbstractPlanNode{children: []Plan{left, right}, schema_: schema_, estimate: estimate},
		leftKeyCol:       leftKeyCol,
		rightKeyCol:      rightKeyCol,
		residual:         residual,
	}
}

func (p *MergeJoinPlanNode) GetType() PlanType                  { return MergeJoin }
func (p *MergeJoinPlanNode) GetLeftKeyCol() uint32              { return p.leftKeyCol }
func (p *MergeJoinPlanNode) GetRightKeyCol() uint32             { return p.rightKeyCol }
func (p *MergeJoinPlanNode) GetResidual() expression.Expression { return p.residual }
