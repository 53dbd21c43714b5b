package planner

import (
	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/types"
)

const (
	// selectivity assumed for range clauses when no histogram helps
	defaultRangeSelectivity = 1.0 / 3.0
	// selectivity assumed for equality clauses with no statistics at all
	defaultEqualitySelectivity = 0.005
)

// EstimateSelectivity returns the fraction of rows expected to satisfy the
// predicate under the given statistics snapshot, in [0, 1]. The result is
// cached on the clause so every candidate path referencing it shares one
// computation.
func EstimateSelectivity(pred *Predicate, stats *catalog.TableStatistics) float64 {
	if sel, ok := pred.CachedSelectivity(); ok {
		return sel
	}

	var sel float64
	colStats, err := stats.GetColumnStats(pred.Column.ColIdx)
	if err != nil {
		sel = defaultSelectivityForOp(pred.Op)
	} else {
		sel = estimateFromColumnStats(pred, colStats, float64(stats.RowCount))
	}

	sel = clampSelectivity(sel)
	pred.CacheSelectivity(sel)
	return sel
}

// CombineSelectivities multiplies clause selectivities under the column
// independence assumption, after dropping duplicate identical clauses so a
// redundant `k = 5 AND k = 5` is not squared. Cross-column overrides in the
// statistics snapshot replace the product of the pair they cover; without an
// override, correlated columns will be systematically misestimated, which is
// the documented weakness of the default model.
func CombineSelectivities(preds []*Predicate, stats *catalog.TableStatistics) float64 {
	deduped := dedupeClauses(preds)

	consumed := make([]bool, len(deduped))
	sel := 1.0

	if stats.CrossColumnSelectivity != nil {
		for i := 0; i < len(deduped); i++ {
			if consumed[i] {
				continue
			}
			for j := i + 1; j < len(deduped); j++ {
				if consumed[j] {
					continue
				}
				key := columnPairKey(deduped[i].Column.ColIdx, deduped[j].Column.ColIdx)
				if override, ok := stats.CrossColumnSelectivity[key]; ok {
					sel *= clampSelectivity(override)
					consumed[i], consumed[j] = true, true
					break
				}
			}
		}
	}

	for i, pred := range deduped {
		if !consumed[i] {
			sel *= EstimateSelectivity(pred, stats)
		}
	}
	return clampSelectivity(sel)
}

func dedupeClauses(preds []*Predicate) []*Predicate {
	deduped := make([]*Predicate, 0, len(preds))
	for _, pred := range preds {
		duplicate := false
		for _, kept := range deduped {
			if pred.SameClause(kept) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			deduped = append(deduped, pred)
		}
	}
	return deduped
}

func estimateFromColumnStats(pred *Predicate, colStats *catalog.ColumnStatistics, rowCount float64) float64 {
	switch pred.Op {
	case OpEqual:
		if freq, ok := colStats.MostCommonFreq(pred.Value); ok {
			return freq
		}
		distinct := colStats.DistinctCount(rowCount)
		if distinct <= 0 {
			return defaultEqualitySelectivity
		}
		// uniform share of the non-MCV population
		remaining := 1.0 - totalMCVFrequency(colStats)
		nonMCVDistinct := distinct - float64(len(colStats.MostCommonVals))
		if nonMCVDistinct <= 0 {
			return remaining
		}
		return remaining / nonMCVDistinct
	case OpNotEqual:
		eq := &Predicate{Column: pred.Column, Op: OpEqual, Value: pred.Value}
		return 1 - estimateFromColumnStats(eq, colStats, rowCount)
	default:
		return rangeSelectivity(pred, colStats)
	}
}

// rangeSelectivity sums the MCV mass satisfying the clause with the
// histogram fraction of the non-MCV population.
func rangeSelectivity(pred *Predicate, colStats *catalog.ColumnStatistics) float64 {
	if len(colStats.HistogramBounds) < 2 && len(colStats.MostCommonVals) == 0 {
		return defaultRangeSelectivity
	}

	var mcvMass float64
	for i, mcv := range colStats.MostCommonVals {
		if comparisonHolds(mcv, pred.Op, pred.Value) {
			mcvMass += colStats.MostCommonFreqs[i]
		}
	}

	histFraction := defaultRangeSelectivity
	if len(colStats.HistogramBounds) >= 2 {
		histFraction = histogramFractionBelow(colStats.HistogramBounds, pred.Value)
		switch pred.Op {
		case OpGreaterThan, OpGreaterThanOrEqual:
			histFraction = 1 - histFraction
		}
	}

	return mcvMass + histFraction*(1-totalMCVFrequency(colStats))
}

// histogramFractionBelow interpolates the position of value inside the
// equi-depth histogram bounds.
func histogramFractionBelow(bounds []types.Value, value types.Value) float64 {
	numBuckets := float64(len(bounds) - 1)
	if value.CompareLessThan(bounds[0]) {
		return 0
	}
	if value.CompareGreaterThanOrEqual(bounds[len(bounds)-1]) {
		return 1
	}
	for i := 0; i < len(bounds)-1; i++ {
		lo, hi := bounds[i], bounds[i+1]
		if value.CompareGreaterThanOrEqual(lo) && value.CompareLessThan(hi) {
			within := 0.5
			span := hi.ToFloat64() - lo.ToFloat64()
			if span > 0 {
				within = (value.ToFloat64() - lo.ToFloat64()) / span
			}
			return (float64(i) + within) / numBuckets
		}
	}
	return 1
}

func totalMCVFrequency(colStats *catalog.ColumnStatistics) float64 {
	var total float64
	for _, f := range colStats.MostCommonFreqs {
		total += f
	}
	if total > 1 {
		total = 1
	}
	return total
}

func comparisonHolds(left types.Value, op ComparisonOp, right types.Value) bool {
	switch op {
	case OpEqual:
		return left.CompareEquals(right)
	case OpNotEqual:
		return left.CompareNotEquals(right)
	case OpLessThan:
		return left.CompareLessThan(right)
	case OpLessThanOrEqual:
		return left.CompareLessThanOrEqual(right)
	case OpGreaterThan:
		return left.CompareGreaterThan(right)
	default:
		return left.CompareGreaterThanOrEqual(right)
	}
}

func defaultSelectivityForOp(op ComparisonOp) float64 {
	if op == OpEqual {
		return defaultEqualitySelectivity
	}
	return defaultRangeSelectivity
}

func clampSelectivity(sel float64) float64 {
	if sel < 0 {
		return 0
	}
	if sel > 1 {
		return 1
	}
	return sel
}

func columnPairKey(a uint32, b uint32) [2]uint32 {
	if a > b {
		a, b = b, a
	}
	return [2]uint32{a, b}
}
