package optimizer

import (
	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/planner/costmodel"
)

// scanPaths generates the candidate access paths for one base relation:
// sequential scan (always viable), one index scan per usable index and a
// bitmap scan combining whatever indexes match. Disabled strategies are not
// generated at all.
func (so *SelingerOptimizer) scanPaths(query *planner.Query, rel *relationInfo) []*planner.Path {
	relPreds := predicatesFor(query, rel.oid)
	rows := float64(rel.stats.RowCount)
	pages := float64(rel.stats.PageCount)
	outRows := rows * planner.CombineSelectivities(relPreds, rel.stats)
	width := rel.md.Schema().AvgTupleWidth()
	relBit := uint64(1) << uint(rel.position)

	var frontier []*planner.Path

	if so.cfg.EnableSeqScan {
		cost := costmodel.SeqScanCost(so.cfg, rows, pages)
		p := &planner.Path{
			Kind:               planner.SeqScanPath,
			StartupCost:        cost.Startup,
			TotalCost:          cost.Total,
			Rows:               outRows,
			Width:              width,
			Defaulted:          rel.stats.Defaulted,
			RelSet:             relBit,
			RelOID:             rel.oid,
			ResidualPredicates: relPreds,
		}
		so.recordCandidate(p)
		frontier = addPrunedPath(frontier, p)
	}

	for _, im := range rel.md.Indexes() {
		matched := matchPredicatesToIndex(relPreds, im)
		ordering := planner.Ordering{{RelOID: rel.oid, ColIdx: im.GetColIdx()}}
		orderingUseful := ordering.Satisfies(query.RequiredOrdering())

		if so.cfg.EnableIndexScan && (len(matched) > 0 || orderingUseful) {
			p := so.indexScanPath(rel, im, relPreds, matched, rows, outRows, width)
			so.recordCandidate(p)
			frontier = addPrunedPath(frontier, p)
		}

		if so.cfg.EnableBitmapScan && len(matched) > 0 {
			p := so.bitmapScanPath(rel, im, relPreds, matched, rows, pages, outRows, width)
			so.recordCandidate(p)
			frontier = addPrunedPath(frontier, p)
		}
	}

	return frontier
}

func (so *SelingerOptimizer) indexScanPath(rel *relationInfo, im *catalog.IndexMetadata, relPreds []*planner.Predicate, matched []*planner.Predicate, rows float64, outRows float64, width uint32) *planner.Path {
	matchingRows := rows
	if len(matched) > 0 {
		matchingRows = rows * planner.CombineSelectivities(matched, rel.stats)
	}

	correlation := 0.0
	if colStats, err := rel.stats.GetColumnStats(im.GetColIdx()); err == nil {
		correlation = colStats.Correlation
	}

	caps := im.GetCapabilities()
	indexOnly := caps.SupportsIndexOnly && rel.md.Schema().GetColumnCount() == 1
	visibleFraction := 0.0
	if indexOnly {
		visibleFraction = allVisibleFraction(rel)
	}

	cost := costmodel.IndexScanCost(so.cfg, matchingRows, im.GetIndex().Height(), correlation, indexOnly, visibleFraction)
	return &planner.Path{
		Kind:               planner.IndexScanPath,
		StartupCost:        cost.Startup,
		TotalCost:          cost.Total,
		Rows:               outRows,
		Width:              width,
		Ordering:           planner.Ordering{{RelOID: rel.oid, ColIdx: im.GetColIdx()}},
		Defaulted:          rel.stats.Defaulted,
		RelSet:             uint64(1) << uint(rel.position),
		RelOID:             rel.oid,
		IndexOID:           im.GetOID(),
		IndexPredicates:    matched,
		IndexOnly:          indexOnly,
		ResidualPredicates: subtractClauses(relPreds, matched),
	}
}

func (so *SelingerOptimizer) bitmapScanPath(rel *relationInfo, im *catalog.IndexMetadata, relPreds []*planner.Predicate, matched []*planner.Predicate, rows float64, pages float64, outRows float64, width uint32) *planner.Path {
	matchingRows := rows * planner.CombineSelectivities(matched, rel.stats)
	cost := costmodel.BitmapScanCost(so.cfg, matchingRows, pages, im.GetIndex().Height())
	// bitmap output is heap order, never key order
	return &planner.Path{
		Kind:               planner.BitmapScanPath,
		StartupCost:        cost.Startup,
		TotalCost:          cost.Total,
		Rows:               outRows,
		Width:              width,
		Defaulted:          rel.stats.Defaulted,
		RelSet:             uint64(1) << uint(rel.position),
		RelOID:             rel.oid,
		BitmapIndexOIDs:    []uint32{im.GetOID()},
		BitmapPredicates:   matched,
		ResidualPredicates: subtractClauses(relPreds, matched),
	}
}

// matchPredicatesToIndex returns the clauses an index can evaluate: clauses
// on its key column whose operator the access method supports.
func matchPredicatesToIndex(preds []*planner.Predicate, im *catalog.IndexMetadata) []*planner.Predicate {
	caps := im.GetCapabilities()
	var matched []*planner.Predicate
	for _, pred := range preds {
		if pred.Column.ColIdx != im.GetColIdx() {
			continue
		}
		switch pred.Op {
		case planner.OpEqual:
			if caps.SupportsEquality {
				matched = append(matched, pred)
			}
		case planner.OpLessThan, planner.OpLessThanOrEqual, planner.OpGreaterThan, planner.OpGreaterThanOrEqual:
			if caps.SupportsRange {
				matched = append(matched, pred)
			}
		}
	}
	return matched
}

func predicatesFor(query *planner.Query, oid uint32) []*planner.Predicate {
	var preds []*planner.Predicate
	for _, pred := range query.Predicates {
		if pred.Column.RelOID == oid {
			preds = append(preds, pred)
		}
	}
	return preds
}

func subtractClauses(all []*planner.Predicate, absorbed []*planner.Predicate) []*planner.Predicate {
	var rest []*planner.Predicate
	for _, pred := range all {
		taken := false
		for _, a := range absorbed {
			if pred == a {
				taken = true
				break
			}
		}
		if !taken {
			rest = append(rest, pred)
		}
	}
	return rest
}

func allVisibleFraction(rel *relationInfo) float64 {
	pages := rel.stats.PageCount
	if pages == 0 {
		return 0
	}
	visible := rel.md.Table().GetVisibilityMap().CountAllVisible()
	frac := float64(visible) / float64(pages)
	if frac > 1 {
		frac = 1
	}
	return frac
}
