package catalog

import (
	"math"
	"sort"

	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/types"
)

const (
	// assumed row count for relations that were never analyzed
	DefaultRowCount = 1000
	// assumed distinct count for columns without statistics
	DefaultNDistinct = 200
	// rows sampled per unit of statistics target
	sampleRowsPerTarget = 300
	// MCV list ceiling
	maxMostCommonValues = 25
)

// ColumnStatistics is the per-column profile collected by a statistics
// refresh.
type ColumnStatistics struct {
	// distinct value count; a negative value is the fraction-of-rows marker
	// used for columns whose distinct count scales with the table
	NDistinct float64
	// most common values with their observed frequencies, most frequent first
	MostCommonVals  []types.Value
	MostCommonFreqs []float64
	// equi-depth histogram boundaries over the non-MCV population
	HistogramBounds []types.Value
	// physical vs. logical ordering agreement in [-1, 1]
	Correlation float64
}

// DistinctCount resolves the negative fraction marker against a concrete
// row count.
func (cs *ColumnStatistics) DistinctCount(rowCount float64) float64 {
	if cs.NDistinct < 0 {
		return -cs.NDistinct * rowCount
	}
	return cs.NDistinct
}

// MostCommonFreq returns the recorded frequency of value if it is in the MCV
// list.
func (cs *ColumnStatistics) MostCommonFreq(value types.Value) (float64, bool) {
	for i, mcv := range cs.MostCommonVals {
		if mcv.CompareEquals(value) {
			return cs.MostCommonFreqs[i], true
		}
	}
	return 0, false
}

// TableStatistics is one immutable snapshot of a relation's statistics.
// Refresh publishes a new snapshot instead of mutating in place, so any
// planner that grabbed a snapshot keeps a consistent view for its whole run.
type TableStatistics struct {
	Version   uint64
	RowCount  uint64
	PageCount uint64
	// true when this snapshot is built from default assumptions because the
	// relation was never analyzed; surfaced by EXPLAIN as "estimate: default"
	Defaulted bool
	Columns   []*ColumnStatistics
	// optional cross-column selectivity overrides keyed by column index
	// pairs; absent entries fall back to the independence assumption
	CrossColumnSelectivity map[[2]uint32]float64
}

func (ts *TableStatistics) GetColumnStats(colIdx uint32) (*ColumnStatistics, error) {
	if int(colIdx) >= len(ts.Columns) {
		return nil, common.NewNotFoundError("column %d has no statistics entry", colIdx)
	}
	return ts.Columns[colIdx], nil
}

// DefaultTableStatistics builds the default-assumption snapshot used for
// never-analyzed relations: a uniform table of DefaultRowCount rows.
func DefaultTableStatistics(md *TableMetadata) *TableStatistics {
	columns := make([]*ColumnStatistics, md.Schema().GetColumnCount())
	for i := range columns {
		columns[i] = &ColumnStatistics{NDistinct: DefaultNDistinct, Correlation: 0}
	}
	rowsPerPage := uint64(common.PageSize) / uint64(md.Schema().AvgTupleWidth()+16)
	if rowsPerPage == 0 {
		rowsPerPage = 1
	}
	return &TableStatistics{
		RowCount:  DefaultRowCount,
		PageCount: (DefaultRowCount + rowsPerPage - 1) / rowsPerPage,
		Defaulted: true,
		Columns:   columns,
	}
}

// StatisticsRepository stores the latest snapshot per relation. Refresh is
// exclusive per relation but never blocks readers, which keep getting the
// previous snapshot until the new one is published.
type StatisticsRepository struct {
	statisticsTarget int
	snapshots        map[uint32]*TableStatistics
	refreshing       map[uint32]struct{}
	nextVersion      uint64
	mutex            deadlock.Mutex
}

func NewStatisticsRepository(statisticsTarget int) *StatisticsRepository {
	return &StatisticsRepository{
		statisticsTarget: statisticsTarget,
		snapshots:        make(map[uint32]*TableStatistics),
		refreshing:       make(map[uint32]struct{}),
		nextVersion:      1,
	}
}

// Lookup returns the latest published snapshot, falling back to default
// assumptions for never-analyzed relations.
func (r *StatisticsRepository) Lookup(md *TableMetadata) *TableStatistics {
	r.mutex.Lock()
	snapshot, ok := r.snapshots[md.OID()]
	r.mutex.Unlock()
	if !ok {
		return DefaultTableStatistics(md)
	}
	return snapshot
}

// Refresh samples the relation's currently visible rows and publishes a new
// snapshot. Concurrent refresh of the same relation is rejected.
func (r *StatisticsRepository) Refresh(md *TableMetadata, txn *access.Transaction) error {
	r.mutex.Lock()
	if _, busy := r.refreshing[md.OID()]; busy {
		r.mutex.Unlock()
		return common.NewPlanningError("statistics refresh of relation %s already in progress", md.GetTableName())
	}
	r.refreshing[md.OID()] = struct{}{}
	r.mutex.Unlock()

	defer func() {
		r.mutex.Lock()
		delete(r.refreshing, md.OID())
		r.mutex.Unlock()
	}()

	sampleLimit := r.statisticsTarget * sampleRowsPerTarget
	schema_ := md.Schema()
	numCols := schema_.GetColumnCount()

	// one pass over the heap: exact row count plus a prefix sample per column
	samples := make([][]types.Value, numCols)
	var rowCount uint64
	it := md.Table().Iterator(txn)
	for tuple_ := it.Next(); tuple_ != nil; tuple_ = it.Next() {
		rowCount++
		if int(rowCount) <= sampleLimit {
			for col := uint32(0); col < numCols; col++ {
				samples[col] = append(samples[col], tuple_.GetValue(schema_, col))
			}
		}
	}

	columns := make([]*ColumnStatistics, numCols)
	for col := uint32(0); col < numCols; col++ {
		columns[col] = buildColumnStatistics(samples[col], rowCount)
	}

	r.mutex.Lock()
	snapshot := &TableStatistics{
		Version:   r.nextVersion,
		RowCount:  rowCount,
		PageCount: md.Table().PageCount(),
		Defaulted: false,
		Columns:   columns,
	}
	r.nextVersion++
	r.snapshots[md.OID()] = snapshot
	r.mutex.Unlock()

	common.Logger().Info("statistics refreshed",
		zap.String("table", md.GetTableName()),
		zap.Uint64("rows", rowCount),
		zap.Uint64("version", snapshot.Version))
	return nil
}

func buildColumnStatistics(sample []types.Value, rowCount uint64) *ColumnStatistics {
	cs := &ColumnStatistics{Correlation: 1}
	if len(sample) == 0 {
		cs.NDistinct = DefaultNDistinct
		cs.Correlation = 0
		return cs
	}

	// frequency count over the sample
	freq := make(map[string]int)
	reprs := make(map[string]types.Value)
	for _, v := range sample {
		key := string(v.Serialize())
		freq[key]++
		if _, seen := reprs[key]; !seen {
			reprs[key] = v
		}
	}

	distinct := len(freq)
	sampleSize := len(sample)
	if float64(distinct) > 0.1*float64(sampleSize) && uint64(sampleSize) < rowCount {
		// high-cardinality column: record distinct count as a fraction of
		// rows so it scales as the table grows without a refresh
		cs.NDistinct = -float64(distinct) / float64(sampleSize)
	} else {
		cs.NDistinct = float64(distinct)
	}

	// MCV list: most frequent values that occur more than once
	type valueFreq struct {
		value types.Value
		count int
	}
	ordered := make([]valueFreq, 0, distinct)
	for key, count := range freq {
		ordered = append(ordered, valueFreq{reprs[key], count})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].count > ordered[j].count })

	numMCV := maxMostCommonValues
	if numMCV > distinct {
		numMCV = distinct
	}
	mcvKeys := make(map[string]struct{})
	for i := 0; i < numMCV; i++ {
		if ordered[i].count < 2 {
			break
		}
		cs.MostCommonVals = append(cs.MostCommonVals, ordered[i].value)
		cs.MostCommonFreqs = append(cs.MostCommonFreqs, float64(ordered[i].count)/float64(sampleSize))
		mcvKeys[string(ordered[i].value.Serialize())] = struct{}{}
	}

	// histogram over the non-MCV population, equi-depth bounds
	rest := make([]types.Value, 0, sampleSize)
	for _, v := range sample {
		if _, isMCV := mcvKeys[string(v.Serialize())]; !isMCV {
			rest = append(rest, v)
		}
	}
	if len(rest) > 1 {
		sorted := make([]types.Value, len(rest))
		copy(sorted, rest)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].CompareLessThan(sorted[j]) })

		numBounds := 101
		if numBounds > len(sorted) {
			numBounds = len(sorted)
		}
		for i := 0; i < numBounds; i++ {
			pos := i * (len(sorted) - 1) / (numBounds - 1)
			cs.HistogramBounds = append(cs.HistogramBounds, sorted[pos])
		}
	}

	cs.Correlation = computeCorrelation(sample)
	return cs
}

// computeCorrelation measures how well physical order matches logical order:
// the Pearson coefficient between sample position and value rank.
func computeCorrelation(sample []types.Value) float64 {
	n := len(sample)
	if n < 2 {
		return 1
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return sample[idx[a]].CompareLessThan(sample[idx[b]]) })
	rank := make([]float64, n)
	for r, pos := range idx {
		rank[pos] = float64(r)
	}

	var sumX, sumY, sumXY, sumXX, sumYY float64
	for i := 0; i < n; i++ {
		x, y := float64(i), rank[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		sumYY += y * y
	}
	nf := float64(n)
	cov := sumXY - sumX*sumY/nf
	varX := sumXX - sumX*sumX/nf
	varY := sumYY - sumY*sumY/nf
	if varX <= 0 || varY <= 0 {
		return 0
	}
	return cov / (math.Sqrt(varX) * math.Sqrt(varY))
}
