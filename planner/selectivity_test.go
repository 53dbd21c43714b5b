package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/types"
)

func statsWithColumn(cs *catalog.ColumnStatistics) *catalog.TableStatistics {
	return &catalog.TableStatistics{
		RowCount:  1000,
		PageCount: 10,
		Columns:   []*catalog.ColumnStatistics{cs},
	}
}

func TestEqualityUsesMCVFrequency(t *testing.T) {
	stats := statsWithColumn(&catalog.ColumnStatistics{
		NDistinct:       100,
		MostCommonVals:  []types.Value{types.NewInteger(7)},
		MostCommonFreqs: []float64{0.25},
	})

	pred := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(7)}
	require.InDelta(t, 0.25, EstimateSelectivity(pred, stats), 1e-9)
}

func TestEqualityNonMCVGetsUniformShare(t *testing.T) {
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100})

	pred := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(42)}
	require.InDelta(t, 1.0/100, EstimateSelectivity(pred, stats), 1e-9)
}

func TestNotEqualComplementsEquality(t *testing.T) {
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100})

	eq := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(42)}
	ne := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpNotEqual, Value: types.NewInteger(42)}
	require.InDelta(t, 1.0, EstimateSelectivity(eq, stats)+EstimateSelectivity(ne, stats), 1e-9)
}

func TestRangeInterpolatesHistogram(t *testing.T) {
	bounds := make([]types.Value, 0, 11)
	for v := int32(0); v <= 100; v += 10 {
		bounds = append(bounds, types.NewInteger(v))
	}
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100, HistogramBounds: bounds})

	below := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpLessThan, Value: types.NewInteger(50)}
	require.InDelta(t, 0.5, EstimateSelectivity(below, stats), 0.05)

	above := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpGreaterThan, Value: types.NewInteger(90)}
	require.InDelta(t, 0.1, EstimateSelectivity(above, stats), 0.05)
}

func TestRangeOutsideHistogramClamps(t *testing.T) {
	bounds := []types.Value{types.NewInteger(0), types.NewInteger(100)}
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100, HistogramBounds: bounds})

	none := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpLessThan, Value: types.NewInteger(-5)}
	sel := EstimateSelectivity(none, stats)
	require.GreaterOrEqual(t, sel, 0.0)
	require.LessOrEqual(t, sel, 1.0)
	require.InDelta(t, 0.0, sel, 1e-9)

	all := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpGreaterThanOrEqual, Value: types.NewInteger(-5)}
	require.InDelta(t, 1.0, EstimateSelectivity(all, stats), 1e-9)
}

func TestDuplicateClausesAreNotSquared(t *testing.T) {
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100})

	first := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(5)}
	second := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(5)}

	single := CombineSelectivities([]*Predicate{first}, stats)
	duplicated := CombineSelectivities([]*Predicate{first, second}, stats)
	require.InDelta(t, single, duplicated, 1e-9)
}

func TestDistinctClausesCombineMultiplicatively(t *testing.T) {
	stats := &catalog.TableStatistics{
		RowCount:  1000,
		PageCount: 10,
		Columns: []*catalog.ColumnStatistics{
			{NDistinct: 10},
			{NDistinct: 20},
		},
	}

	a := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(1)}
	b := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 1}, Op: OpEqual, Value: types.NewInteger(2)}

	require.InDelta(t, (1.0/10)*(1.0/20), CombineSelectivities([]*Predicate{a, b}, stats), 1e-9)
}

func TestCrossColumnOverrideReplacesProduct(t *testing.T) {
	stats := &catalog.TableStatistics{
		RowCount:  1000,
		PageCount: 10,
		Columns: []*catalog.ColumnStatistics{
			{NDistinct: 10},
			{NDistinct: 20},
		},
		CrossColumnSelectivity: map[[2]uint32]float64{{0, 1}: 0.1},
	}

	a := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(1)}
	b := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 1}, Op: OpEqual, Value: types.NewInteger(2)}

	require.InDelta(t, 0.1, CombineSelectivities([]*Predicate{a, b}, stats), 1e-9)
}

func TestSelectivityIsCachedOnTheClause(t *testing.T) {
	stats := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 100})
	pred := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 0}, Op: OpEqual, Value: types.NewInteger(5)}

	_, cached := pred.CachedSelectivity()
	require.False(t, cached)

	first := EstimateSelectivity(pred, stats)
	sel, cached := pred.CachedSelectivity()
	require.True(t, cached)
	require.Equal(t, first, sel)

	// a different snapshot does not re-trigger estimation for this clause
	other := statsWithColumn(&catalog.ColumnStatistics{NDistinct: 2})
	require.Equal(t, first, EstimateSelectivity(pred, other))
}

func TestMissingStatisticsFallBackToDefaults(t *testing.T) {
	stats := &catalog.TableStatistics{RowCount: 1000, PageCount: 10}

	eq := &Predicate{Column: ColumnRef{RelOID: 1, ColIdx: 3}, Op: OpEqual, Value: types.NewInteger(5)}
	sel := EstimateSelectivity(eq, stats)
	require.Greater(t, sel, 0.0)
	require.Less(t, sel, 1.0)
}
