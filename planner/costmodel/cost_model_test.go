package costmodel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/common"
)

func testConfig() *common.Config {
	return common.NewConfig()
}

func requireValidCost(t *testing.T, c Cost) {
	t.Helper()
	require.GreaterOrEqual(t, c.Startup, 0.0)
	require.GreaterOrEqual(t, c.Total, c.Startup)
}

func TestSeqScanCostGrowsWithTableSize(t *testing.T) {
	cfg := testConfig()

	small := SeqScanCost(cfg, 100, 10)
	large := SeqScanCost(cfg, 10000, 1000)

	requireValidCost(t, small)
	requireValidCost(t, large)
	require.Greater(t, large.Total, small.Total)
	require.Equal(t, 0.0, small.Startup)
}

func TestIndexScanCorrelationDiscount(t *testing.T) {
	cfg := testConfig()

	scattered := IndexScanCost(cfg, 500, 3, 0.0, false, 0)
	clustered := IndexScanCost(cfg, 500, 3, 1.0, false, 0)

	requireValidCost(t, scattered)
	requireValidCost(t, clustered)
	// perfectly correlated matches pay sequential page cost, not random
	require.Greater(t, scattered.Total, clustered.Total)
}

func TestIndexOnlyScanSkipsHeapFetches(t *testing.T) {
	cfg := testConfig()

	regular := IndexScanCost(cfg, 500, 3, 0.0, false, 0)
	indexOnly := IndexScanCost(cfg, 500, 3, 0.0, true, 1.0)

	require.Greater(t, regular.Total, indexOnly.Total)
}

func TestBitmapScanDampsRepeatedPageFetches(t *testing.T) {
	cfg := testConfig()

	// many matches concentrated on few pages: the bitmap fetches each page
	// once while the plain index scan pays per row
	indexScan := IndexScanCost(cfg, 5000, 3, 0.0, false, 0)
	bitmap := BitmapScanCost(cfg, 5000, 50, 3)

	requireValidCost(t, bitmap)
	require.Greater(t, indexScan.Total, bitmap.Total)
}

func TestBitmapScanCostGrowsWithMatches(t *testing.T) {
	cfg := testConfig()

	few := BitmapScanCost(cfg, 10, 1000, 3)
	many := BitmapScanCost(cfg, 10000, 1000, 3)

	require.Greater(t, many.Total, few.Total)
}

func TestBitmapScanPaysForCacheEvictions(t *testing.T) {
	roomy := testConfig()
	tiny := testConfig()
	tiny.EffectiveCacheSizePages = 10

	// same table, same matches: a cache much smaller than the table makes
	// later probes refetch pages the early ones already pulled in
	cached := BitmapScanCost(roomy, 5000, 1000, 3)
	evicting := BitmapScanCost(tiny, 5000, 1000, 3)

	requireValidCost(t, cached)
	requireValidCost(t, evicting)
	require.Greater(t, evicting.Total, cached.Total)

	// a table that fits the cache is unaffected by the knob
	small := BitmapScanCost(tiny, 50, 5, 3)
	require.Equal(t, BitmapScanCost(roomy, 50, 5, 3).Total, small.Total)
}

func TestSortCostBlocksUntilDone(t *testing.T) {
	cfg := testConfig()

	input := SeqScanCost(cfg, 1000, 100)
	sorted := SortCost(cfg, input, 1000)

	requireValidCost(t, sorted)
	require.Equal(t, sorted.Startup, sorted.Total)
	require.Greater(t, sorted.Total, input.Total)
}

func TestNestedLoopChargesInnerRescans(t *testing.T) {
	cfg := testConfig()
	inner := SeqScanCost(cfg, 1000, 100)

	fewOuter := NestedLoopCost(cfg, SeqScanCost(cfg, 10, 1), inner, 10, 100)
	manyOuter := NestedLoopCost(cfg, SeqScanCost(cfg, 1000, 100), inner, 1000, 100)

	requireValidCost(t, fewOuter)
	require.Greater(t, manyOuter.Total, fewOuter.Total)
}

func TestHashJoinStartupCoversBuildSide(t *testing.T) {
	cfg := testConfig()

	build := SeqScanCost(cfg, 1000, 100)
	probe := SeqScanCost(cfg, 5000, 500)
	join := HashJoinCost(cfg, build, probe, 1000, 5000, 5000)

	requireValidCost(t, join)
	// no output before the build side is fully drained
	require.GreaterOrEqual(t, join.Startup, build.Total)
}

func TestMergeJoinChargesSortsForUnsortedInputs(t *testing.T) {
	cfg := testConfig()

	left := SeqScanCost(cfg, 1000, 100)
	right := SeqScanCost(cfg, 1000, 100)

	presorted := MergeJoinCost(cfg, left, right, 1000, 1000, true, true, 1000)
	unsorted := MergeJoinCost(cfg, left, right, 1000, 1000, false, false, 1000)

	requireValidCost(t, presorted)
	requireValidCost(t, unsorted)
	require.Greater(t, unsorted.Total, presorted.Total)
	// a sorted merge join can stream; sorting blocks
	require.Greater(t, unsorted.Startup, presorted.Startup)
}

func TestGroupAggregateStreamsWhereHashBlocks(t *testing.T) {
	cfg := testConfig()
	input := SeqScanCost(cfg, 10000, 1000)

	hash := HashAggregateCost(cfg, input, 10000, 100)
	group := GroupAggregateCost(cfg, input, 10000, 100)

	requireValidCost(t, hash)
	requireValidCost(t, group)
	require.GreaterOrEqual(t, hash.Startup, input.Total)
	require.Less(t, group.Startup, hash.Startup)
}
