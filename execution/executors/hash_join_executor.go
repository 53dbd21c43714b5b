package executors

import (
	"sort"
	"time"

	"github.com/spaolacci/murmur3"

	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
)

// HashJoinExecutor drains its build child into a murmur3-keyed hash table on
// Init and streams the probe child through it. When the build side would
// exceed the work memory budget the executor falls back to materializing
// both sides, sorting them on the join key and merge-joining, and records
// Spilled on its instrumentation.
type HashJoinExecutor struct {
	ctx   *ExecutorContext
	plan  *plans.HashJoinPlanNode
	build Executor
	probe Executor

	table map[uint64][]*tuple.Tuple

	// current probe row and its bucket matches
	probeTuple *tuple.Tuple
	pending    []*tuple.Tuple
	pendingPos int

	// spill fallback output
	spilled  bool
	spillOut []*tuple.Tuple
	spillPos int

	stats  *NodeStats
	cancel cancelChecker
}

func NewHashJoinExecutor(ctx *ExecutorContext, plan *plans.HashJoinPlanNode, build Executor, probe Executor) *HashJoinExecutor {
	return &HashJoinExecutor{ctx: ctx, plan: plan, build: build, probe: probe, stats: ctx.StatsFor(plan)}
}

func (e *HashJoinExecutor) Init() error {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	e.table = nil
	e.probeTuple, e.pending, e.pendingPos = nil, nil, 0
	e.spilled, e.spillOut, e.spillPos = false, nil, 0
	e.cancel = cancelChecker{txn: e.ctx.GetTransaction()}

	if err := e.build.Init(); err != nil {
		return err
	}
	if err := e.probe.Init(); err != nil {
		return err
	}

	buildSchema := e.plan.GetChildAt(0).OutputSchema()
	buildCols := e.plan.GetBuildKeyCols()
	budget := e.ctx.GetConfig().WorkMemBytes

	e.table = make(map[uint64][]*tuple.Tuple)
	var buildTuples []*tuple.Tuple
	var bytesUsed int64
	for {
		tuple_, done, err := e.build.Next()
		if err != nil {
			return err
		}
		if done {
			break
		}
		buildTuples = append(buildTuples, tuple_)
		bytesUsed += int64(tuple_.Size())
		if bytesUsed <= budget {
			key := hashTupleKeys(tuple_, buildSchema, buildCols)
			e.table[key] = append(e.table[key], tuple_)
		}
	}

	if bytesUsed > budget {
		e.table = nil
		return e.spillToSortMerge(buildTuples)
	}
	return nil
}

// spillToSortMerge handles an over-budget build side:
// both inputs are materialized, sorted on the join key and merge-joined.
func (e *HashJoinExecutor) spillToSortMerge(buildTuples []*tuple.Tuple) error {
	e.spilled = true
	e.stats.Spilled = true

	buildSchema := e.plan.GetChildAt(0).OutputSchema()
	probeSchema := e.plan.GetChildAt(1).OutputSchema()
	buildCols := e.plan.GetBuildKeyCols()
	probeCols := e.plan.GetProbeKeyCols()

	var probeTuples []*tuple.Tuple
	for {
		tuple_, done, err := e.probe.Next()
		if err != nil {
			return err
		}
		if done {
			break
		}
		probeTuples = append(probeTuples, tuple_)
	}

	sortTuplesByKeys(buildTuples, buildSchema, buildCols)
	sortTuplesByKeys(probeTuples, probeSchema, probeCols)

	outSchema := e.plan.OutputSchema()
	bi, pg := 0, 0
	for bi < len(buildTuples) && pg < len(probeTuples) {
		cmp := compareTupleKeys(buildTuples[bi], buildSchema, buildCols, probeTuples[pg], probeSchema, probeCols)
		if cmp < 0 {
			bi++
			continue
		}
		if cmp > 0 {
			pg++
			continue
		}
		// equal key group on both sides
		bEnd := bi
		for bEnd < len(buildTuples) && compareTupleKeys(buildTuples[bEnd], buildSchema, buildCols, buildTuples[bi], buildSchema, buildCols) == 0 {
			bEnd++
		}
		pEnd := pg
		for pEnd < len(probeTuples) && compareTupleKeys(probeTuples[pEnd], probeSchema, probeCols, probeTuples[pg], probeSchema, probeCols) == 0 {
			pEnd++
		}
		for i := bi; i < bEnd; i++ {
			for j := pg; j < pEnd; j++ {
				values := append(buildTuples[i].GetValues(buildSchema), probeTuples[j].GetValues(probeSchema)...)
				e.spillOut = append(e.spillOut, tuple.NewFromSchema(values, outSchema))
			}
		}
		bi, pg = bEnd, pEnd
	}
	return nil
}

func (e *HashJoinExecutor) Next() (*tuple.Tuple, bool, error) {
	if e.ctx.Instrumented() {
		defer e.stats.addTime(time.Now())
	}
	if e.spilled {
		if e.spillPos >= len(e.spillOut) {
			return nil, true, nil
		}
		tuple_ := e.spillOut[e.spillPos]
		e.spillPos++
		if e.ctx.Instrumented() {
			e.stats.ActualRows++
		}
		return tuple_, false, nil
	}

	buildSchema := e.plan.GetChildAt(0).OutputSchema()
	probeSchema := e.plan.GetChildAt(1).OutputSchema()
	buildCols := e.plan.GetBuildKeyCols()
	probeCols := e.plan.GetProbeKeyCols()
	outSchema := e.plan.OutputSchema()

	for {
		if e.pendingPos < len(e.pending) {
			buildTuple := e.pending[e.pendingPos]
			e.pendingPos++
			values := append(buildTuple.GetValues(buildSchema), e.probeTuple.GetValues(probeSchema)...)
			if e.ctx.Instrumented() {
				e.stats.ActualRows++
			}
			return tuple.NewFromSchema(values, outSchema), false, nil
		}

		if e.cancel.cancelled() {
			return nil, true, nil
		}
		probeTuple, done, err := e.probe.Next()
		if err != nil || done {
			return nil, done, err
		}
		e.probeTuple = probeTuple
		e.pending, e.pendingPos = nil, 0

		bucket := e.table[hashTupleKeys(probeTuple, probeSchema, probeCols)]
		for _, buildTuple := range bucket {
			if compareTupleKeys(buildTuple, buildSchema, buildCols, probeTuple, probeSchema, probeCols) == 0 {
				e.pending = append(e.pending, buildTuple)
			}
		}
	}
}

func (e *HashJoinExecutor) Close() {
	e.build.Close()
	e.probe.Close()
	e.table = nil
	e.spillOut = nil
}

func hashTupleKeys(tuple_ *tuple.Tuple, schema_ *schema.Schema, cols []uint32) uint64 {
	h := murmur3.New64()
	for _, c := range cols {
		value := tuple_.GetValue(schema_, c)
		h.Write(value.Serialize())
	}
	return h.Sum64()
}

func compareTupleKeys(a *tuple.Tuple, aSchema *schema.Schema, aCols []uint32, b *tuple.Tuple, bSchema *schema.Schema, bCols []uint32) int {
	for i := range aCols {
		cmp := a.GetValue(aSchema, aCols[i]).CompareTo(b.GetValue(bSchema, bCols[i]))
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func sortTuplesByKeys(tuples []*tuple.Tuple, schema_ *schema.Schema, cols []uint32) {
	sort.SliceStable(tuples, func(i, j int) bool {
		return compareTupleKeys(tuples[i], schema_, cols, tuples[j], schema_, cols) < 0
	})
}
