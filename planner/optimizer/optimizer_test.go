package optimizer

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/disk"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

type testEnv struct {
	cfg      *common.Config
	txnMgr   *access.TransactionManager
	catalog_ *catalog.Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dm := disk.NewVirtualDiskManagerImpl()
	bpm := buffer.NewBufferPoolManager(common.BufferPoolDefaultFrameNum, dm)
	txnMgr := access.NewTransactionManager()
	cfg := common.NewConfig()
	return &testEnv{
		cfg:      cfg,
		txnMgr:   txnMgr,
		catalog_: catalog.NewCatalog(bpm, txnMgr, cfg.DefaultStatisticsTarget),
	}
}

func twoIntSchema() *schema.Schema {
	return schema.NewSchema([]*column.Column{
		column.NewColumn("id", types.Integer),
		column.NewColumn("val", types.Integer),
	})
}

// createTable fills a two int column relation with rows from fn, indexes
// "id" when indexed is set and publishes fresh statistics.
func (env *testEnv) createTable(t *testing.T, name string, rows int, indexed bool, fn func(i int) []types.Value) *catalog.TableMetadata {
	t.Helper()
	md := env.catalog_.CreateTable(name, twoIntSchema())

	txn := env.txnMgr.Begin()
	for i := 0; i < rows; i++ {
		_, err := md.Table().InsertTuple(tuple.NewFromSchema(fn(i), md.Schema()), txn)
		require.NoError(t, err)
	}
	env.txnMgr.Commit(txn)

	if indexed {
		idxTxn := env.txnMgr.Begin()
		_, err := env.catalog_.CreateIndex(md.OID(), name+"_id_idx", "id", idxTxn)
		require.NoError(t, err)
		env.txnMgr.Commit(idxTxn)
	}

	statsTxn := env.txnMgr.Begin()
	require.NoError(t, env.catalog_.RefreshStatistics(md.OID(), statsTxn))
	env.txnMgr.Commit(statsTxn)
	return md
}

func sequentialRows(i int) []types.Value {
	return []types.Value{types.NewInteger(int32(i)), types.NewInteger(int32(i % 97))}
}

func TestWideFilterPrefersSeqScan(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 10000, true, sequentialRows)

	// isolate the seq vs index crossover
	env.cfg.EnableBitmapScan = false
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	query := planner.NewQuery([]uint32{md.OID()})
	query.Predicates = []*planner.Predicate{
		{Column: planner.ColumnRef{RelOID: md.OID(), ColIdx: 0}, Op: planner.OpLessThan, Value: types.NewInteger(1000)},
	}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.SeqScanPath, path.Kind)
}

func TestNarrowFilterPrefersIndexScan(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 10000, true, sequentialRows)

	env.cfg.EnableBitmapScan = false
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	query := planner.NewQuery([]uint32{md.OID()})
	query.Predicates = []*planner.Predicate{
		{Column: planner.ColumnRef{RelOID: md.OID(), ColIdx: 0}, Op: planner.OpLessThan, Value: types.NewInteger(10)},
	}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.IndexScanPath, path.Kind)
	require.Equal(t, md.OID(), path.RelOID)
}

func TestSmallOuterLargeIndexedInnerPicksIndexNestedLoop(t *testing.T) {
	env := newTestEnv(t)
	small := env.createTable(t, "users", 10, false, func(i int) []types.Value {
		return []types.Value{types.NewInteger(int32(i * 1000)), types.NewInteger(int32(i))}
	})
	large := env.createTable(t, "events", 10000, true, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{small.OID(), large.OID()})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: small.OID(), ColIdx: 0},
		Right: planner.ColumnRef{RelOID: large.OID(), ColIdx: 0},
	}}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.NestedLoopJoinPath, path.Kind)
	require.NotNil(t, path.Inner)
	require.Equal(t, planner.IndexScanPath, path.Inner.Kind)
	require.True(t, path.Inner.Parameterized)
	require.Equal(t, large.OID(), path.Inner.RelOID)
}

func TestOrderByWithSmallLimitPrefersOrderedIndexScan(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 10000, true, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{md.OID()})
	query.OrderBy = []planner.OrderByItem{{Column: planner.ColumnRef{RelOID: md.OID(), ColIdx: 0}}}
	query.Limit = 10

	path, err := so.Optimize(query)
	require.NoError(t, err)
	// the index delivers the order with near-zero startup; a sort would have
	// to consume the whole table before the first of the 10 rows
	require.Equal(t, planner.IndexScanPath, path.Kind)
}

func TestOrderByWithoutLimitMayStillSort(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 10000, false, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{md.OID()})
	query.OrderBy = []planner.OrderByItem{{Column: planner.ColumnRef{RelOID: md.OID(), ColIdx: 0}}}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	// without an index the only way to the required order is sorting
	require.Equal(t, planner.SortPath, path.Kind)
	require.True(t, path.Ordering.Satisfies(query.RequiredOrdering()))
}

func TestMergeJoinSortsChildrenWithoutKeyOrder(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.EnableNestLoop = false
	env.cfg.EnableHashJoin = false

	a := env.createTable(t, "a", 200, false, sequentialRows)
	b := env.createTable(t, "b", 300, false, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{a.OID(), b.OID()})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: a.OID(), ColIdx: 0},
		Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0},
	}}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.MergeJoinPath, path.Kind)
	// seq scans deliver heap order, so the merge has to sort both sides
	require.Equal(t, planner.SortPath, path.Outer.Kind)
	require.Equal(t, planner.SortPath, path.Inner.Kind)
	require.NotEmpty(t, path.Outer.Ordering)
	require.NotEmpty(t, path.Inner.Ordering)
	require.True(t, path.Ordering.Satisfies(path.Outer.Ordering))
}

func TestDisabledStrategiesAreNeverGenerated(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 100, true, sequentialRows)

	env.cfg.EnableSeqScan = false
	env.cfg.EnableBitmapScan = false
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	query := planner.NewQuery([]uint32{md.OID()})
	query.Predicates = []*planner.Predicate{
		{Column: planner.ColumnRef{RelOID: md.OID(), ColIdx: 0}, Op: planner.OpEqual, Value: types.NewInteger(5)},
	}
	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.IndexScanPath, path.Kind)
	for _, candidate := range so.LastCandidates() {
		require.NotEqual(t, planner.SeqScanPath, candidate.Kind)
		require.NotEqual(t, planner.BitmapScanPath, candidate.Kind)
	}
}

func TestAllScansDisabledIsAPlanningError(t *testing.T) {
	env := newTestEnv(t)
	md := env.createTable(t, "events", 100, false, sequentialRows)

	env.cfg.EnableSeqScan = false
	env.cfg.EnableIndexScan = false
	env.cfg.EnableBitmapScan = false
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	_, err := so.Optimize(planner.NewQuery([]uint32{md.OID()}))
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrPlanning))
}

func TestAllJoinsDisabledIsAPlanningError(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTable(t, "a", 100, false, sequentialRows)
	b := env.createTable(t, "b", 100, false, sequentialRows)

	env.cfg.EnableNestLoop = false
	env.cfg.EnableHashJoin = false
	env.cfg.EnableMergeJoin = false
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	query := planner.NewQuery([]uint32{a.OID(), b.OID()})
	query.JoinConditions = []*planner.JoinCondition{{
		Left:  planner.ColumnRef{RelOID: a.OID(), ColIdx: 0},
		Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0},
	}}
	_, err := so.Optimize(query)
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrPlanning))
}

func TestUnknownRelationIsAPlanningError(t *testing.T) {
	env := newTestEnv(t)
	so := NewSelingerOptimizer(env.cfg, env.catalog_)

	_, err := so.Optimize(planner.NewQuery([]uint32{12345}))
	require.Error(t, err)
	require.True(t, errors.Is(err, common.ErrPlanning))
}

// The DP winner must never be beaten by any complete candidate generated
// along the way.
func TestExhaustiveEnumerationPicksTheCheapestCompletePath(t *testing.T) {
	env := newTestEnv(t)
	a := env.createTable(t, "a", 500, true, sequentialRows)
	b := env.createTable(t, "b", 2000, true, sequentialRows)
	c := env.createTable(t, "c", 100, false, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{a.OID(), b.OID(), c.OID()})
	query.JoinConditions = []*planner.JoinCondition{
		{Left: planner.ColumnRef{RelOID: a.OID(), ColIdx: 0}, Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0}},
		{Left: planner.ColumnRef{RelOID: b.OID(), ColIdx: 1}, Right: planner.ColumnRef{RelOID: c.OID(), ColIdx: 1}},
	}

	winner, err := so.Optimize(query)
	require.NoError(t, err)

	fullSet := uint64(1<<3) - 1
	require.Equal(t, fullSet, winner.RelSet)
	for _, candidate := range so.LastCandidates() {
		if candidate.RelSet != fullSet {
			continue
		}
		require.LessOrEqual(t, winner.TotalCost, candidate.TotalCost+1e-9)
	}
}

func TestGreedyFallbackBeyondDPLimit(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.JoinDPRelationLimit = 2

	a := env.createTable(t, "a", 200, false, sequentialRows)
	b := env.createTable(t, "b", 300, false, sequentialRows)
	c := env.createTable(t, "c", 400, false, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{a.OID(), b.OID(), c.OID()})
	query.JoinConditions = []*planner.JoinCondition{
		{Left: planner.ColumnRef{RelOID: a.OID(), ColIdx: 0}, Right: planner.ColumnRef{RelOID: b.OID(), ColIdx: 0}},
		{Left: planner.ColumnRef{RelOID: b.OID(), ColIdx: 1}, Right: planner.ColumnRef{RelOID: c.OID(), ColIdx: 1}},
	}

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, uint64(1<<3)-1, path.RelSet)
}

func TestGreedyFallbackConsidersBothJoinOrientations(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.JoinDPRelationLimit = 2
	env.cfg.EnableNestLoop = false
	env.cfg.EnableMergeJoin = false

	small := env.createTable(t, "small", 50, false, sequentialRows)
	big := env.createTable(t, "big", 5000, false, sequentialRows)
	tail := env.createTable(t, "tail", 60, false, sequentialRows)

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	query := planner.NewQuery([]uint32{small.OID(), big.OID(), tail.OID()})
	query.JoinConditions = []*planner.JoinCondition{
		{Left: planner.ColumnRef{RelOID: small.OID(), ColIdx: 0}, Right: planner.ColumnRef{RelOID: big.OID(), ColIdx: 0}},
		{Left: planner.ColumnRef{RelOID: big.OID(), ColIdx: 1}, Right: planner.ColumnRef{RelOID: tail.OID(), ColIdx: 1}},
	}
	// the limit makes startup decisive: building the hash table on the tiny
	// relation folded in last beats building it on the accumulated join
	query.Limit = 1

	path, err := so.Optimize(query)
	require.NoError(t, err)
	require.Equal(t, planner.HashJoinPath, path.Kind)
	// that shape only exists when the fallback tries the swapped orientation
	require.Equal(t, uint64(1)<<2, path.Outer.RelSet)
}

func TestDefaultedEstimatesPropagateToThePath(t *testing.T) {
	env := newTestEnv(t)
	md := env.catalog_.CreateTable("fresh", twoIntSchema())

	so := NewSelingerOptimizer(env.cfg, env.catalog_)
	path, err := so.Optimize(planner.NewQuery([]uint32{md.OID()}))
	require.NoError(t, err)
	require.True(t, path.Defaulted)
}
