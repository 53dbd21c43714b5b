package optimizer

import (
	pair "github.com/notEpsilon/go-pair"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/planner/costmodel"
)

// joinPaths generates every enabled join strategy for each pair of candidate
// paths from the two sides. Hash join is generated in both build/probe
// orientations; merge join sorts whichever side does not already arrive in
// key order; nested loop additionally tries a parameterized index probe on
// the inner side.
func (so *SelingerOptimizer) joinPaths(query *planner.Query, rels []*relationInfo, leftPaths []*planner.Path, rightPaths []*planner.Path) []*planner.Path {
	if len(leftPaths) == 0 || len(rightPaths) == 0 {
		return nil
	}
	leftSet := leftPaths[0].RelSet
	rightSet := rightPaths[0].RelSet
	if leftSet&rightSet != 0 {
		return nil
	}

	conds, equiCols := conditionsBetween(query, rels, leftSet, rightSet)

	var out []*planner.Path
	for _, lp := range leftPaths {
		for _, rp := range rightPaths {
			outRows := so.joinRowEstimate(rels, lp, rp, conds)

			if so.cfg.EnableNestLoop {
				out = append(out, so.nestedLoopPath(lp, rp, conds, outRows))
				if idxPath := so.indexNestLoopPath(rels, lp, rp, equiCols, outRows); idxPath != nil {
					out = append(out, idxPath)
				}
			}
			if so.cfg.EnableHashJoin && len(conds) > 0 {
				out = append(out, so.hashJoinPath(lp, rp, conds, outRows))
			}
			if so.cfg.EnableMergeJoin && len(conds) > 0 {
				out = append(out, so.mergeJoinPath(lp, rp, conds, outRows))
			}
		}
	}
	for _, p := range out {
		so.recordCandidate(p)
	}
	return out
}

func (so *SelingerOptimizer) nestedLoopPath(outer *planner.Path, inner *planner.Path, conds []*planner.JoinCondition, outRows float64) *planner.Path {
	cost := costmodel.NestedLoopCost(so.cfg,
		costmodel.Cost{Startup: outer.StartupCost, Total: outer.TotalCost},
		costmodel.Cost{Startup: inner.StartupCost, Total: inner.TotalCost},
		outer.Rows, outRows)
	return &planner.Path{
		Kind:        planner.NestedLoopJoinPath,
		StartupCost: cost.Startup,
		TotalCost:   cost.Total,
		Rows:        outRows,
		Width:       outer.Width + inner.Width,
		// outer-row order survives a nested loop
		Ordering:       outer.Ordering,
		Defaulted:      outer.Defaulted || inner.Defaulted,
		RelSet:         outer.RelSet | inner.RelSet,
		Outer:          outer,
		Inner:          inner,
		JoinConditions: conds,
	}
}

// indexNestLoopPath builds a nested loop whose inner side is an index probe
// parameterized by the outer row's join key. Viable when the inner side is
// one base relation carrying an equality-capable index on its join column;
// this is the shape that wins when a tiny outer relation joins a huge
// indexed one.
func (so *SelingerOptimizer) indexNestLoopPath(rels []*relationInfo, outer *planner.Path, inner *planner.Path, equiCols []pair.Pair[planner.ColumnRef, planner.ColumnRef], outRows float64) *planner.Path {
	if popcount(inner.RelSet) != 1 || len(equiCols) == 0 {
		return nil
	}
	innerRel := relForSet(rels, inner.RelSet)

	var im *catalog.IndexMetadata
	var innerCol planner.ColumnRef
	for _, cols := range equiCols {
		if cols.Second.RelOID != innerRel.oid {
			continue
		}
		for _, candidate := range innerRel.md.Indexes() {
			if candidate.GetColIdx() == cols.Second.ColIdx && candidate.GetCapabilities().SupportsEquality {
				im = candidate
				innerCol = cols.Second
				break
			}
		}
		if im != nil {
			break
		}
	}
	if im == nil {
		return nil
	}

	innerRows := float64(innerRel.stats.RowCount)
	rowsPerProbe := 1.0
	if colStats, err := innerRel.stats.GetColumnStats(innerCol.ColIdx); err == nil {
		if distinct := colStats.DistinctCount(innerRows); distinct > 0 {
			rowsPerProbe = innerRows / distinct
		}
	}
	correlation := 0.0
	if colStats, err := innerRel.stats.GetColumnStats(innerCol.ColIdx); err == nil {
		correlation = colStats.Correlation
	}

	probeCost := costmodel.IndexScanCost(so.cfg, rowsPerProbe, im.GetIndex().Height(), correlation, false, 0)
	probePath := &planner.Path{
		Kind:          planner.IndexScanPath,
		StartupCost:   probeCost.Startup,
		TotalCost:     probeCost.Total,
		Rows:          rowsPerProbe,
		Width:         inner.Width,
		Defaulted:     innerRel.stats.Defaulted,
		RelSet:        inner.RelSet,
		RelOID:        innerRel.oid,
		IndexOID:      im.GetOID(),
		Parameterized: true,
	}
	so.recordCandidate(probePath)

	cost := costmodel.NestedLoopCost(so.cfg,
		costmodel.Cost{Startup: outer.StartupCost, Total: outer.TotalCost},
		probeCost, outer.Rows, outRows)
	return &planner.Path{
		Kind:           planner.NestedLoopJoinPath,
		StartupCost:    cost.Startup,
		TotalCost:      cost.Total,
		Rows:           outRows,
		Width:          outer.Width + inner.Width,
		Ordering:       outer.Ordering,
		Defaulted:      outer.Defaulted || innerRel.stats.Defaulted,
		RelSet:         outer.RelSet | inner.RelSet,
		Outer:          outer,
		Inner:          probePath,
		JoinConditions: condsForEquiCols(equiCols),
	}
}

func (so *SelingerOptimizer) hashJoinPath(build *planner.Path, probe *planner.Path, conds []*planner.JoinCondition, outRows float64) *planner.Path {
	cost := costmodel.HashJoinCost(so.cfg,
		costmodel.Cost{Startup: build.StartupCost, Total: build.TotalCost},
		costmodel.Cost{Startup: probe.StartupCost, Total: probe.TotalCost},
		build.Rows, probe.Rows, outRows)
	return &planner.Path{
		Kind:        planner.HashJoinPath,
		StartupCost: cost.Startup,
		TotalCost:   cost.Total,
		Rows:        outRows,
		Width:       build.Width + probe.Width,
		// hash join output carries no useful ordering
		Defaulted:      build.Defaulted || probe.Defaulted,
		RelSet:         build.RelSet | probe.RelSet,
		Outer:          build,
		Inner:          probe,
		JoinConditions: conds,
	}
}

// mergeJoinPath merges on the first equality condition. A side whose input
// does not already arrive in key order gets an explicit sort path layered
// underneath, so the plan built from this path really feeds the merge sorted
// rows.
func (so *SelingerOptimizer) mergeJoinPath(left *planner.Path, right *planner.Path, conds []*planner.JoinCondition, outRows float64) *planner.Path {
	leftKey := planner.Ordering{conds[0].Left}
	rightKey := planner.Ordering{conds[0].Right}
	if !left.Ordering.Satisfies(leftKey) {
		left = so.sortedPath(left, leftKey)
	}
	if !right.Ordering.Satisfies(rightKey) {
		right = so.sortedPath(right, rightKey)
	}

	cost := costmodel.MergeJoinCost(so.cfg,
		costmodel.Cost{Startup: left.StartupCost, Total: left.TotalCost},
		costmodel.Cost{Startup: right.StartupCost, Total: right.TotalCost},
		left.Rows, right.Rows, true, true, outRows)
	return &planner.Path{
		Kind:        planner.MergeJoinPath,
		StartupCost: cost.Startup,
		TotalCost:   cost.Total,
		Rows:        outRows,
		Width:       left.Width + right.Width,
		// merge join emits rows in join-key order
		Ordering:       leftKey,
		Defaulted:      left.Defaulted || right.Defaulted,
		RelSet:         left.RelSet | right.RelSet,
		Outer:          left,
		Inner:          right,
		JoinConditions: conds,
	}
}

// sortedPath layers a sort over child so its output carries the key order.
func (so *SelingerOptimizer) sortedPath(child *planner.Path, key planner.Ordering) *planner.Path {
	cost := costmodel.SortCost(so.cfg,
		costmodel.Cost{Startup: child.StartupCost, Total: child.TotalCost}, child.Rows)
	sorted := &planner.Path{
		Kind:        planner.SortPath,
		StartupCost: cost.Startup,
		TotalCost:   cost.Total,
		Rows:        child.Rows,
		Width:       child.Width,
		Ordering:    key,
		Defaulted:   child.Defaulted,
		RelSet:      child.RelSet,
		Child:       child,
	}
	so.recordCandidate(sorted)
	return sorted
}

// joinRowEstimate: cross product damped by 1/max(distinct) per equality
// condition, the textbook equi-join cardinality formula.
func (so *SelingerOptimizer) joinRowEstimate(rels []*relationInfo, left *planner.Path, right *planner.Path, conds []*planner.JoinCondition) float64 {
	rows := left.Rows * right.Rows
	for _, cond := range conds {
		dl := so.distinctOf(rels, cond.Left)
		dr := so.distinctOf(rels, cond.Right)
		d := dl
		if dr > d {
			d = dr
		}
		if d > 1 {
			rows /= d
		}
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (so *SelingerOptimizer) distinctOf(rels []*relationInfo, col planner.ColumnRef) float64 {
	for _, rel := range rels {
		if rel.oid == col.RelOID {
			if colStats, err := rel.stats.GetColumnStats(col.ColIdx); err == nil {
				return colStats.DistinctCount(float64(rel.stats.RowCount))
			}
		}
	}
	return catalog.DefaultNDistinct
}

// conditionsBetween collects the equality clauses connecting the two sets,
// oriented so the left column belongs to the left set. The oriented column
// pairs are what hash and merge join key extraction works from.
func conditionsBetween(query *planner.Query, rels []*relationInfo, leftSet uint64, rightSet uint64) ([]*planner.JoinCondition, []pair.Pair[planner.ColumnRef, planner.ColumnRef]) {
	inSet := func(set uint64, oid uint32) bool {
		for _, rel := range rels {
			if rel.oid == oid {
				return set&(1<<uint(rel.position)) != 0
			}
		}
		return false
	}

	var conds []*planner.JoinCondition
	var equiCols []pair.Pair[planner.ColumnRef, planner.ColumnRef]
	for _, jc := range query.JoinConditions {
		switch {
		case inSet(leftSet, jc.Left.RelOID) && inSet(rightSet, jc.Right.RelOID):
			conds = append(conds, jc)
			equiCols = append(equiCols, pair.Pair[planner.ColumnRef, planner.ColumnRef]{First: jc.Left, Second: jc.Right})
		case inSet(rightSet, jc.Left.RelOID) && inSet(leftSet, jc.Right.RelOID):
			flipped := &planner.JoinCondition{Left: jc.Right, Right: jc.Left}
			conds = append(conds, flipped)
			equiCols = append(equiCols, pair.Pair[planner.ColumnRef, planner.ColumnRef]{First: jc.Right, Second: jc.Left})
		}
	}
	return conds, equiCols
}

func condsForEquiCols(equiCols []pair.Pair[planner.ColumnRef, planner.ColumnRef]) []*planner.JoinCondition {
	conds := make([]*planner.JoinCondition, 0, len(equiCols))
	for _, cols := range equiCols {
		conds = append(conds, &planner.JoinCondition{Left: cols.First, Right: cols.Second})
	}
	return conds
}

func relForSet(rels []*relationInfo, set uint64) *relationInfo {
	for _, rel := range rels {
		if set&(1<<uint(rel.position)) != 0 {
			return rel
		}
	}
	return nil
}
