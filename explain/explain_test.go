package explain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ryogrid/KiriDB/execution/executors"
	"github.com/ryogrid/KiriDB/execution/plans"
	"github.com/ryogrid/KiriDB/storage/table/column"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/types"
)

func scanSchema() *schema.Schema {
	return schema.NewSchema([]*column.Column{column.NewColumn("id", types.Integer)})
}

func samplePlan() plans.Plan {
	scan := plans.NewSeqScanPlanNode(scanSchema(),
		plans.Estimate{StartupCost: 0, TotalCost: 120.5, Rows: 1000}, 1, nil)
	sort := plans.NewSortPlanNode(scanSchema(),
		plans.Estimate{StartupCost: 250.25, TotalCost: 250.25, Rows: 1000}, scan, []uint32{0})
	return plans.NewLimitPlanNode(scanSchema(),
		plans.Estimate{StartupCost: 250.25, TotalCost: 252.75, Rows: 10}, sort, 10)
}

func TestRenderShowsEstimatesPerNode(t *testing.T) {
	out := Render(Format(samplePlan()))

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, "Limit  (cost=250.25..252.75 rows=10)", lines[0])
	require.Equal(t, "  -> Sort  (cost=250.25..250.25 rows=1000)", lines[1])
	require.Equal(t, "    -> Seq Scan  (cost=0.00..120.50 rows=1000)", lines[2])
}

func TestRenderIsDeterministic(t *testing.T) {
	plan := samplePlan()

	first := Render(Format(plan))
	second := Render(Format(plan))
	require.Equal(t, first, second)
}

func TestDefaultedEstimatesAreMarked(t *testing.T) {
	scan := plans.NewSeqScanPlanNode(scanSchema(),
		plans.Estimate{TotalCost: 42, Rows: 1000, Defaulted: true}, 1, nil)

	out := Render(Format(scan))
	require.Contains(t, out, "(estimate: default)")
}

func TestActualsAppearOnlyForExecutedNodes(t *testing.T) {
	plan := samplePlan()
	ctx := executors.NewExecutorContext(nil, nil, nil, nil)

	// only the root ran; the children have no recorded stats
	stats := ctx.StatsFor(plan)
	stats.ActualRows = 10
	stats.ActualTimeMs = 1.5

	out := Render(FormatWithActuals(plan, ctx))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Contains(t, lines[0], "(actual rows=10 time=1.500ms)")
	require.NotContains(t, lines[1], "actual")
	require.NotContains(t, lines[2], "actual")
}

func TestSpillIsCalledOut(t *testing.T) {
	scan := plans.NewSeqScanPlanNode(scanSchema(), plans.Estimate{}, 1, nil)
	ctx := executors.NewExecutorContext(nil, nil, nil, nil)
	ctx.StatsFor(scan).Spilled = true

	out := Render(FormatWithActuals(scan, ctx))
	require.Contains(t, out, "(spilled)")
}
