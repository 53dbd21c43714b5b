package planner

import (
	"fmt"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/planner/costmodel"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/types"
)

// PlanBuilder turns the optimizer's winning path into an executable plan
// tree: clauses become compiled expressions, join keys become column
// positions in the concatenated output schemas, and aggregation / limit
// nodes are layered on top.
type PlanBuilder struct {
	cfg      *common.Config
	catalog_ *catalog.Catalog
}

func NewPlanBuilder(cfg *common.Config, c *catalog.Catalog) *PlanBuilder {
	return &PlanBuilder{cfg: cfg, catalog_: c}
}

// relSlot maps one base relation to its column offset inside a plan node's
// output schema. Join outputs are outer columns followed by inner columns.
type relSlot struct {
	oid     uint32
	offset  uint32
	schema_ *schema.Schema
}

func (pb *PlanBuilder) Build(query *Query, path *Path) (plans.Plan, error) {
	plan, slots, err := pb.buildPath(query, path)
	if err != nil {
		return nil, err
	}

	if query.HasAggregates() {
		plan, err = pb.buildAggregate(query, path, plan, slots)
		if err != nil {
			return nil, err
		}
	}

	if query.HasLimit() {
		est := plan.GetEstimate()
		if float64(query.Limit) < est.Rows {
			est.Rows = float64(query.Limit)
		}
		plan = plans.NewLimitPlanNode(plan.OutputSchema(), est, plan, query.Limit)
	}
	return plan, nil
}

func (pb *PlanBuilder) buildPath(query *Query, path *Path) (plans.Plan, []relSlot, error) {
	switch path.Kind {
	case SeqScanPath, IndexScanPath, BitmapScanPath:
		return pb.buildScan(path)
	case NestedLoopJoinPath, HashJoinPath, MergeJoinPath:
		return pb.buildJoin(query, path)
	case SortPath:
		child, slots, err := pb.buildPath(query, path.Child)
		if err != nil {
			return nil, nil, err
		}
		keyCols, err := columnPositions(slots, path.Ordering)
		if err != nil {
			return nil, nil, err
		}
		return plans.NewSortPlanNode(child.OutputSchema(), pathEstimate(path), child, keyCols), slots, nil
	default:
		return nil, nil, common.NewPlanningError("unknown path kind %d", path.Kind)
	}
}

func (pb *PlanBuilder) buildScan(path *Path) (plans.Plan, []relSlot, error) {
	md, err := pb.catalog_.GetTableByOID(path.RelOID)
	if err != nil {
		return nil, nil, err
	}
	schema_ := md.Schema()
	slots := []relSlot{{oid: path.RelOID, offset: 0, schema_: schema_}}

	switch path.Kind {
	case SeqScanPath:
		plan := plans.NewSeqScanPlanNode(schema_, pathEstimate(path), path.RelOID, compileFilter(path.ResidualPredicates))
		return plan, slots, nil
	case IndexScanPath:
		plan := plans.NewIndexScanPlanNode(schema_, pathEstimate(path), path.RelOID, path.IndexOID,
			convertScanPredicates(path.IndexPredicates), path.IndexOnly, compileFilter(path.ResidualPredicates))
		return plan, slots, nil
	default:
		groups, err := pb.groupBitmapPredicates(path)
		if err != nil {
			return nil, nil, err
		}
		plan := plans.NewBitmapScanPlanNode(schema_, pathEstimate(path), path.RelOID,
			path.BitmapIndexOIDs, groups, compileFilter(path.ResidualPredicates))
		return plan, slots, nil
	}
}

// groupBitmapPredicates assigns each bitmap clause to the participating
// index whose key column it restricts.
func (pb *PlanBuilder) groupBitmapPredicates(path *Path) ([][]plans.ScanPredicate, error) {
	groups := make([][]plans.ScanPredicate, len(path.BitmapIndexOIDs))
	for _, pred := range path.BitmapPredicates {
		placed := false
		for i, indexOID := range path.BitmapIndexOIDs {
			im, err := pb.catalog_.GetIndexByOID(indexOID)
			if err != nil {
				return nil, err
			}
			if im.GetColIdx() == pred.Column.ColIdx {
				groups[i] = append(groups[i], convertScanPredicate(pred))
				placed = true
				break
			}
		}
		if !placed {
			return nil, common.NewPlanningError("bitmap clause on column %d matches no participating index", pred.Column.ColIdx)
		}
	}
	return groups, nil
}

func (pb *PlanBuilder) buildJoin(query *Query, path *Path) (plans.Plan, []relSlot, error) {
	outer, outerSlots, err := pb.buildPath(query, path.Outer)
	if err != nil {
		return nil, nil, err
	}

	// parameterized inner: the index probe is driven by the outer row
	if path.Kind == NestedLoopJoinPath && path.Inner.Parameterized {
		return pb.buildIndexNestLoop(path, outer, outerSlots)
	}

	inner, innerSlots, err := pb.buildPath(query, path.Inner)
	if err != nil {
		return nil, nil, err
	}
	joined := concatSchema(outer.OutputSchema(), inner.OutputSchema())
	slots := concatSlots(outerSlots, innerSlots, outer.OutputSchema().GetColumnCount())

	switch path.Kind {
	case NestedLoopJoinPath:
		pred, err := compileJoinPredicate(path.JoinConditions, outerSlots, innerSlots)
		if err != nil {
			return nil, nil, err
		}
		return plans.NewNestedLoopJoinPlanNode(joined, pathEstimate(path), outer, inner, pred), slots, nil
	case HashJoinPath:
		buildKeys := make([]uint32, 0, len(path.JoinConditions))
		probeKeys := make([]uint32, 0, len(path.JoinConditions))
		for _, jc := range path.JoinConditions {
			b, err := columnPosition(outerSlots, jc.Left)
			if err != nil {
				return nil, nil, err
			}
			p, err := columnPosition(innerSlots, jc.Right)
			if err != nil {
				return nil, nil, err
			}
			buildKeys = append(buildKeys, b)
			probeKeys = append(probeKeys, p)
		}
		return plans.NewHashJoinPlanNode(joined, pathEstimate(path), outer, inner, buildKeys, probeKeys), slots, nil
	default:
		leftKey, err := columnPosition(outerSlots, path.JoinConditions[0].Left)
		if err != nil {
			return nil, nil, err
		}
		rightKey, err := columnPosition(innerSlots, path.JoinConditions[0].Right)
		if err != nil {
			return nil, nil, err
		}
		// the merge enforces only the first equality; the rest post-filter
		residual, err := compileJoinPredicate(path.JoinConditions[1:], outerSlots, innerSlots)
		if err != nil {
			return nil, nil, err
		}
		return plans.NewMergeJoinPlanNode(joined, pathEstimate(path), outer, inner, leftKey, rightKey, residual), slots, nil
	}
}

func (pb *PlanBuilder) buildIndexNestLoop(path *Path, outer plans.Plan, outerSlots []relSlot) (plans.Plan, []relSlot, error) {
	probe := path.Inner
	md, err := pb.catalog_.GetTableByOID(probe.RelOID)
	if err != nil {
		return nil, nil, err
	}
	im, err := pb.catalog_.GetIndexByOID(probe.IndexOID)
	if err != nil {
		return nil, nil, err
	}

	// the condition the probe enforces is the one on the index key column;
	// any remaining equality conditions become a post-filter
	var probeCond *JoinCondition
	var residualConds []*JoinCondition
	for _, jc := range path.JoinConditions {
		if probeCond == nil && jc.Right.RelOID == probe.RelOID && jc.Right.ColIdx == im.GetColIdx() {
			probeCond = jc
			continue
		}
		residualConds = append(residualConds, jc)
	}
	if probeCond == nil {
		return nil, nil, common.NewPlanningError("parameterized index probe has no condition on its key column")
	}
	paramCol, err := columnPosition(outerSlots, probeCond.Left)
	if err != nil {
		return nil, nil, err
	}

	innerSchema := md.Schema()
	inner := plans.NewParameterizedIndexScanPlanNode(innerSchema, pathEstimate(probe), probe.RelOID, probe.IndexOID, paramCol)
	innerSlots := []relSlot{{oid: probe.RelOID, offset: 0, schema_: innerSchema}}

	joined := concatSchema(outer.OutputSchema(), innerSchema)
	slots := concatSlots(outerSlots, innerSlots, outer.OutputSchema().GetColumnCount())

	pred, err := compileJoinPredicate(residualConds, outerSlots, innerSlots)
	if err != nil {
		return nil, nil, err
	}
	return plans.NewNestedLoopJoinPlanNode(joined, pathEstimate(path), outer, inner, pred), slots, nil
}

// buildAggregate layers grouping on top of the row-producing plan. Input
// already in group-key order streams through a group aggregate; otherwise
// the cheaper of hashing and sort-then-group wins.
func (pb *PlanBuilder) buildAggregate(query *Query, path *Path, plan plans.Plan, slots []relSlot) (plans.Plan, error) {
	groupCols, err := columnPositions(slots, Ordering(query.GroupBy))
	if err != nil {
		return nil, err
	}
	aggs := make([]plans.AggregateSpec, 0, len(query.Aggregates))
	for _, agg := range query.Aggregates {
		pos, err := columnPosition(slots, agg.Column)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, plans.AggregateSpec{Kind: aggregationType(agg.Kind), ColIdx: pos})
	}

	outSchema := pb.aggregateSchema(query, slots)
	est := plan.GetEstimate()
	inputCost := costmodel.Cost{Startup: est.StartupCost, Total: est.TotalCost}
	groups := pb.estimateGroups(query, est.Rows)

	if path.Ordering.Satisfies(query.GroupOrdering()) {
		cost := costmodel.GroupAggregateCost(pb.cfg, inputCost, est.Rows, groups)
		return plans.NewGroupAggregatePlanNode(outSchema,
			plans.Estimate{StartupCost: cost.Startup, TotalCost: cost.Total, Rows: groups, Defaulted: est.Defaulted},
			plan, groupCols, aggs), nil
	}

	hashCost := costmodel.HashAggregateCost(pb.cfg, inputCost, est.Rows, groups)
	sortCost := costmodel.SortCost(pb.cfg, inputCost, est.Rows)
	groupCost := costmodel.GroupAggregateCost(pb.cfg, sortCost, est.Rows, groups)

	if hashCost.Total <= groupCost.Total {
		return plans.NewHashAggregatePlanNode(outSchema,
			plans.Estimate{StartupCost: hashCost.Startup, TotalCost: hashCost.Total, Rows: groups, Defaulted: est.Defaulted},
			plan, groupCols, aggs), nil
	}

	sortNode := plans.NewSortPlanNode(plan.OutputSchema(),
		plans.Estimate{StartupCost: sortCost.Startup, TotalCost: sortCost.Total, Rows: est.Rows, Defaulted: est.Defaulted},
		plan, groupCols)
	return plans.NewGroupAggregatePlanNode(outSchema,
		plans.Estimate{StartupCost: groupCost.Startup, TotalCost: groupCost.Total, Rows: groups, Defaulted: est.Defaulted},
		sortNode, groupCols, aggs), nil
}

// aggregateSchema: group columns in declaration order, then one column per
// aggregate.
func (pb *PlanBuilder) aggregateSchema(query *Query, slots []relSlot) *schema.Schema {
	cols := make([]*column.Column, 0, len(query.GroupBy)+len(query.Aggregates))
	for _, ref := range query.GroupBy {
		src := lookupColumn(slots, ref)
		cols = append(cols, column.NewColumn(src.GetColumnName(), src.GetType()))
	}
	for _, agg := range query.Aggregates {
		src := lookupColumn(slots, agg.Column)
		name := fmt.Sprintf("%s(%s)", aggregationType(agg.Kind), src.GetColumnName())
		colType := src.GetType()
		switch agg.Kind {
		case AggCount:
			colType = types.Integer
		case AggAvg:
			colType = types.Float
		}
		cols = append(cols, column.NewColumn(name, colType))
	}
	return schema.NewSchema(cols)
}

func (pb *PlanBuilder) estimateGroups(query *Query, inputRows float64) float64 {
	groups := 1.0
	for _, ref := range query.GroupBy {
		distinct := float64(catalog.DefaultNDistinct)
		if md, err := pb.catalog_.GetTableByOID(ref.RelOID); err == nil {
			stats := pb.catalog_.Statistics().Lookup(md)
			if colStats, err := stats.GetColumnStats(ref.ColIdx); err == nil {
				distinct = colStats.DistinctCount(float64(stats.RowCount))
			}
		}
		groups *= distinct
	}
	if groups > inputRows {
		groups = inputRows
	}
	if groups < 1 {
		groups = 1
	}
	return groups
}

func pathEstimate(path *Path) plans.Estimate {
	return plans.Estimate{
		StartupCost: path.StartupCost,
		TotalCost:   path.TotalCost,
		Rows:        path.Rows,
		Defaulted:   path.Defaulted,
	}
}

// compileFilter AND-chains restriction clauses into one expression, nil when
// there are none.
func compileFilter(preds []*Predicate) expression.Expression {
	var expr expression.Expression
	for _, pred := range preds {
		cmp := expression.NewComparison(
			expression.NewColumnValue(0, pred.Column.ColIdx),
			expression.NewConstantValue(pred.Value),
			comparisonType(pred.Op))
		if expr == nil {
			expr = cmp
		} else {
			expr = expression.NewLogicalOp(expr, cmp, expression.AND)
		}
	}
	return expr
}

func compileJoinPredicate(conds []*JoinCondition, outerSlots []relSlot, innerSlots []relSlot) (expression.Expression, error) {
	var expr expression.Expression
	for _, jc := range conds {
		left, err := columnPosition(outerSlots, jc.Left)
		if err != nil {
			return nil, err
		}
		right, err := columnPosition(innerSlots, jc.Right)
		if err != nil {
			return nil, err
		}
		cmp := expression.NewComparison(
			expression.NewColumnValue(0, left),
			expression.NewColumnValue(1, right),
			expression.Equal)
		if expr == nil {
			expr = cmp
		} else {
			expr = expression.NewLogicalOp(expr, cmp, expression.AND)
		}
	}
	return expr, nil
}

func convertScanPredicates(preds []*Predicate) []plans.ScanPredicate {
	out := make([]plans.ScanPredicate, 0, len(preds))
	for _, pred := range preds {
		out = append(out, convertScanPredicate(pred))
	}
	return out
}

func convertScanPredicate(pred *Predicate) plans.ScanPredicate {
	return plans.ScanPredicate{ColIdx: pred.Column.ColIdx, Op: comparisonType(pred.Op), Value: pred.Value}
}

func comparisonType(op ComparisonOp) expression.ComparisonType {
	switch op {
	case OpEqual:
		return expression.Equal
	case OpNotEqual:
		return expression.NotEqual
	case OpLessThan:
		return expression.LessThan
	case OpLessThanOrEqual:
		return expression.LessThanOrEqual
	case OpGreaterThan:
		return expression.GreaterThan
	default:
		return expression.GreaterThanOrEqual
	}
}

func aggregationType(kind AggregateKind) plans.AggregationType {
	switch kind {
	case AggCount:
		return plans.CountAggregate
	case AggSum:
		return plans.SumAggregate
	case AggMin:
		return plans.MinAggregate
	case AggMax:
		return plans.MaxAggregate
	default:
		return plans.AvgAggregate
	}
}

func concatSchema(outer *schema.Schema, inner *schema.Schema) *schema.Schema {
	cols := make([]*column.Column, 0, outer.GetColumnCount()+inner.GetColumnCount())
	for _, src := range outer.GetColumns() {
		cols = append(cols, column.NewColumn(src.GetColumnName(), src.GetType()))
	}
	for _, src := range inner.GetColumns() {
		cols = append(cols, column.NewColumn(src.GetColumnName(), src.GetType()))
	}
	return schema.NewSchema(cols)
}

func concatSlots(outerSlots []relSlot, innerSlots []relSlot, outerWidth uint32) []relSlot {
	slots := make([]relSlot, 0, len(outerSlots)+len(innerSlots))
	slots = append(slots, outerSlots...)
	for _, s := range innerSlots {
		slots = append(slots, relSlot{oid: s.oid, offset: s.offset + outerWidth, schema_: s.schema_})
	}
	return slots
}

func columnPosition(slots []relSlot, ref ColumnRef) (uint32, error) {
	for _, s := range slots {
		if s.oid == ref.RelOID {
			return s.offset + ref.ColIdx, nil
		}
	}
	return 0, common.NewPlanningError("column of relation %d is not produced by this subtree", ref.RelOID)
}

func columnPositions(slots []relSlot, refs Ordering) ([]uint32, error) {
	out := make([]uint32, 0, len(refs))
	for _, ref := range refs {
		pos, err := columnPosition(slots, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, nil
}

func lookupColumn(slots []relSlot, ref ColumnRef) *column.Column {
	for _, s := range slots {
		if s.oid == ref.RelOID {
			return s.schema_.GetColumn(ref.ColIdx)
		}
	}
	return nil
}
