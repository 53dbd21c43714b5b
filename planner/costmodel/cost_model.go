// Package costmodel holds the pure cost functions of the planner. Every
// function maps cardinality and physical-layout estimates to a
// (startup, total) cost pair under the knobs in common.Config; nothing here
// touches storage or catalog state.
package costmodel

import (
	"math"

	"github.com/ryogrid/KiriDB/common"
)

// Cost is an estimated (startup, total) pair in abstract page-fetch units.
// Invariant: 0 <= Startup <= Total.
type Cost struct {
	Startup float64
	Total   float64
}

// SeqScanCost: read every page sequentially, process every row.
func SeqScanCost(cfg *common.Config, rows float64, pages float64) Cost {
	total := pages*cfg.SeqPageCost + rows*cfg.CpuTupleCost
	return Cost{Startup: 0, Total: total}
}

// IndexScanCost: descend the tree once, then per matching row pay one index
// entry, one heap page fetch and one tuple. The heap fetch price slides
// between RandomPageCost and SeqPageCost with the square of the column
// correlation: scattered matches pay random I/O, clustered matches approach
// a sequential read. visibleFraction discounts heap fetches an index-only
// scan skips on all-visible pages.
func IndexScanCost(cfg *common.Config, matchingRows float64, indexHeight float64, correlation float64, indexOnly bool, visibleFraction float64) Cost {
	startup := indexHeight * cfg.CpuIndexTupleCost

	csquared := correlation * correlation
	pageCostPerRow := cfg.RandomPageCost - (cfg.RandomPageCost-cfg.SeqPageCost)*csquared

	heapFetches := matchingRows
	if indexOnly {
		heapFetches = matchingRows * (1 - visibleFraction)
	}

	total := startup +
		matchingRows*cfg.CpuIndexTupleCost +
		heapFetches*pageCostPerRow +
		matchingRows*cfg.CpuTupleCost
	return Cost{Startup: startup, Total: total}
}

// BitmapScanCost: walk the indexes to build the bitmap (paid before the
// first row), then fetch the distinct heap pages in physical order. The
// expected page count follows the Mackert-Lohman approximation, bounded by
// EffectiveCacheSizePages: a table that fits the cache saturates at its page
// count, while a larger one pays again for pages evicted between probes.
func BitmapScanCost(cfg *common.Config, matchingRows float64, pages float64, indexHeight float64) Cost {
	startup := indexHeight*cfg.CpuIndexTupleCost + matchingRows*cfg.CpuIndexTupleCost

	pagesFetched := indexPagesFetched(matchingRows, pages, float64(cfg.EffectiveCacheSizePages))

	// fetching a larger fraction of the table looks more sequential
	fraction := 0.0
	if pages > 0 {
		fraction = pagesFetched / pages
		if fraction > 1 {
			fraction = 1
		}
	}
	pageCost := cfg.RandomPageCost - (cfg.RandomPageCost-cfg.SeqPageCost)*fraction

	total := startup + pagesFetched*pageCost + matchingRows*cfg.CpuTupleCost
	return Cost{Startup: startup, Total: total}
}

// indexPagesFetched is the Mackert-Lohman estimate of heap pages fetched by
// rows random probes against a table of pages, under a cache holding
// cachePages.
func indexPagesFetched(rows float64, pages float64, cachePages float64) float64 {
	if pages <= 0 || rows <= 0 {
		return 0
	}
	if cachePages < 1 {
		cachePages = 1
	}
	if pages <= cachePages {
		fetched := (2 * pages * rows) / (2*pages + rows)
		if fetched > pages {
			fetched = pages
		}
		return fetched
	}
	// past this probe count the cache stops absorbing refetches
	limit := (2 * pages * cachePages) / (2*pages - cachePages)
	if rows <= limit {
		return (2 * pages * rows) / (2*pages + rows)
	}
	return cachePages + (rows-limit)*(pages-cachePages)/pages
}

// SortCost: comparison sort over the input, materialized before the first
// output row.
func SortCost(cfg *common.Config, inputCost Cost, rows float64) Cost {
	comparisons := rows
	if rows > 1 {
		comparisons = rows * math.Log2(rows)
	}
	total := inputCost.Total + 2*comparisons*cfg.CpuOperatorCost + rows*cfg.CpuTupleCost
	return Cost{Startup: total, Total: total}
}

// NestedLoopCost: the inner side is re-run once per outer row.
func NestedLoopCost(cfg *common.Config, outer Cost, inner Cost, outerRows float64, outputRows float64) Cost {
	rescanRuns := outerRows - 1
	if rescanRuns < 0 {
		rescanRuns = 0
	}
	// a rescan skips the inner startup work already done once
	innerRescan := inner.Total - inner.Startup
	total := outer.Total + inner.Total + rescanRuns*innerRescan + outputRows*cfg.CpuTupleCost
	return Cost{Startup: outer.Startup + inner.Startup, Total: total}
}

// HashJoinCost: drain the build side into a hash table, then stream the
// probe side through it.
func HashJoinCost(cfg *common.Config, build Cost, probe Cost, buildRows float64, probeRows float64, outputRows float64) Cost {
	startup := build.Total + buildRows*cfg.CpuOperatorCost
	total := startup + probe.Total + probeRows*cfg.CpuOperatorCost + outputRows*cfg.CpuTupleCost
	return Cost{Startup: startup, Total: total}
}

// MergeJoinCost: both sides advance once in key order. Sides not already
// sorted pay a sort first, which also moves their cost into startup.
func MergeJoinCost(cfg *common.Config, left Cost, right Cost, leftRows float64, rightRows float64, leftSorted bool, rightSorted bool, outputRows float64) Cost {
	if !leftSorted {
		left = SortCost(cfg, left, leftRows)
	}
	if !rightSorted {
		right = SortCost(cfg, right, rightRows)
	}
	startup := left.Startup + right.Startup
	total := left.Total + right.Total + (leftRows+rightRows)*cfg.CpuOperatorCost + outputRows*cfg.CpuTupleCost
	return Cost{Startup: startup, Total: total}
}

// HashAggregateCost: one table insert per input row, output after the input
// is drained.
func HashAggregateCost(cfg *common.Config, input Cost, inputRows float64, groups float64) Cost {
	startup := input.Total + inputRows*cfg.CpuOperatorCost
	return Cost{Startup: startup, Total: startup + groups*cfg.CpuTupleCost}
}

// GroupAggregateCost: running accumulation over pre-sorted input; streams.
func GroupAggregateCost(cfg *common.Config, input Cost, inputRows float64, groups float64) Cost {
	total := input.Total + inputRows*cfg.CpuOperatorCost + groups*cfg.CpuTupleCost
	return Cost{Startup: input.Startup, Total: total}
}
