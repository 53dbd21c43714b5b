package optimizer

import (
	"math"

	"go.uber.org/zap"

	"github.com/ryogrid/KiriDB/catalog"
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/planner"
	"github.com/ryogrid/KiriDB/planner/costmodel"
)

// Optimizer turns a resolved query tree into the cheapest access path tree.
type Optimizer interface {
	Optimize(query *planner.Query) (*planner.Path, error)
}

// relationInfo is the per-relation planning context grabbed once at query
// start: the catalog descriptor plus the statistics snapshot the whole
// planning run reads from.
type relationInfo struct {
	position int
	oid      uint32
	md       *catalog.TableMetadata
	stats    *catalog.TableStatistics
}

// SelingerOptimizer enumerates access paths per relation and join orders by
// dynamic programming over relation subsets, keeping a pruned frontier of
// candidate paths per subset.
type SelingerOptimizer struct {
	cfg     *common.Config
	catalog *catalog.Catalog
	// every path generated during the last Optimize call; tests use it to
	// check that no discarded candidate was cheaper than the winner
	lastCandidates []*planner.Path
}

func NewSelingerOptimizer(cfg *common.Config, c *catalog.Catalog) *SelingerOptimizer {
	return &SelingerOptimizer{cfg: cfg, catalog: c}
}

// LastCandidates returns every path generated by the most recent Optimize.
func (so *SelingerOptimizer) LastCandidates() []*planner.Path {
	return so.lastCandidates
}

func (so *SelingerOptimizer) Optimize(query *planner.Query) (*planner.Path, error) {
	so.lastCandidates = nil

	n := len(query.Relations)
	if n == 0 {
		return nil, common.NewPlanningError("query references no relations")
	}
	if n > 63 {
		return nil, common.NewPlanningError("too many relations in join graph: %d", n)
	}

	rels := make([]*relationInfo, n)
	for i, oid := range query.Relations {
		md, err := so.catalog.GetTableByOID(oid)
		if err != nil {
			return nil, common.NewPlanningError("relation %d can't be planned: %v", oid, err)
		}
		rels[i] = &relationInfo{
			position: i,
			oid:      oid,
			md:       md,
			stats:    so.catalog.Statistics().Lookup(md),
		}
	}

	// step 1: candidate scan paths per base relation
	frontiers := make(map[uint64][]*planner.Path, 1<<uint(n))
	for i, rel := range rels {
		paths := so.scanPaths(query, rel)
		if len(paths) == 0 {
			return nil, common.NewPlanningError("no viable path for relation %s: every scan strategy is disabled", rel.md.GetTableName())
		}
		frontiers[1<<uint(i)] = paths
	}

	// steps 3-4: join enumeration
	var joined []*planner.Path
	var err error
	if n <= so.cfg.JoinDPRelationLimit {
		joined, err = so.joinDP(query, rels, frontiers)
	} else {
		common.Logger().Debug("falling back to greedy join order",
			zap.Int("relations", n), zap.Int("dp_limit", so.cfg.JoinDPRelationLimit))
		joined, err = so.joinGreedy(query, rels, frontiers)
	}
	if err != nil {
		return nil, err
	}

	return so.chooseFinal(query, rels, joined)
}

// joinDP is exhaustive Selinger dynamic programming: best paths for every
// relation subset, built from every way to split the subset in two.
func (so *SelingerOptimizer) joinDP(query *planner.Query, rels []*relationInfo, frontiers map[uint64][]*planner.Path) ([]*planner.Path, error) {
	n := len(rels)
	full := uint64(1<<uint(n)) - 1

	for mask := uint64(1); mask <= full; mask++ {
		if popcount(mask) < 2 {
			continue
		}
		var frontier []*planner.Path
		for sub := (mask - 1) & mask; sub > 0; sub = (sub - 1) & mask {
			rest := mask &^ sub
			leftPaths, okL := frontiers[sub]
			rightPaths, okR := frontiers[rest]
			if !okL || !okR {
				continue
			}
			candidates := so.joinPaths(query, rels, leftPaths, rightPaths)
			for _, c := range candidates {
				frontier = addPrunedPath(frontier, c)
			}
		}
		if len(frontier) == 0 {
			return nil, common.NewPlanningError("no viable join path: every join strategy is disabled")
		}
		frontiers[mask] = frontier
	}
	return frontiers[full], nil
}

// joinGreedy is the bounded fallback beyond the DP relation limit: start
// from the cheapest base relation and repeatedly merge in whichever
// remaining relation joins most cheaply.
func (so *SelingerOptimizer) joinGreedy(query *planner.Query, rels []*relationInfo, frontiers map[uint64][]*planner.Path) ([]*planner.Path, error) {
	n := len(rels)

	remaining := make(map[int]struct{}, n)
	for i := 0; i < n; i++ {
		remaining[i] = struct{}{}
	}

	// seed with the relation whose cheapest scan is cheapest overall
	seed := -1
	var seedCost float64 = math.Inf(1)
	for i := 0; i < n; i++ {
		for _, p := range frontiers[1<<uint(i)] {
			if p.TotalCost < seedCost {
				seedCost = p.TotalCost
				seed = i
			}
		}
	}
	current := frontiers[1<<uint(seed)]
	delete(remaining, seed)

	for len(remaining) > 0 {
		bestRel := -1
		var bestFrontier []*planner.Path
		var bestCost float64 = math.Inf(1)

		for i := range remaining {
			// both orientations, as the DP's submask enumeration would see:
			// which side builds the hash table or drives the loop matters
			other := frontiers[1<<uint(i)]
			candidates := so.joinPaths(query, rels, current, other)
			candidates = append(candidates, so.joinPaths(query, rels, other, current)...)
			var frontier []*planner.Path
			for _, c := range candidates {
				frontier = addPrunedPath(frontier, c)
			}
			for _, p := range frontier {
				if p.TotalCost < bestCost {
					bestCost = p.TotalCost
					bestRel = i
					bestFrontier = frontier
				}
			}
		}
		if bestRel < 0 {
			return nil, common.NewPlanningError("no viable join path: every join strategy is disabled")
		}
		current = bestFrontier
		delete(remaining, bestRel)
	}
	return current, nil
}

// chooseFinal applies the required output ordering (inserting a Sort path
// when a candidate doesn't provide it) and picks the winner: cheapest by
// limit-aware cost, then lowest startup cost.
func (so *SelingerOptimizer) chooseFinal(query *planner.Query, rels []*relationInfo, candidates []*planner.Path) (*planner.Path, error) {
	required := query.RequiredOrdering()

	finalists := make([]*planner.Path, 0, len(candidates))
	for _, p := range candidates {
		if p.Ordering.Satisfies(required) {
			finalists = append(finalists, p)
			continue
		}
		sortCost := costmodel.SortCost(so.cfg, costmodel.Cost{Startup: p.StartupCost, Total: p.TotalCost}, p.Rows)
		sorted := &planner.Path{
			Kind:        planner.SortPath,
			StartupCost: sortCost.Startup,
			TotalCost:   sortCost.Total,
			Rows:        p.Rows,
			Width:       p.Width,
			Ordering:    required,
			Defaulted:   p.Defaulted,
			RelSet:      p.RelSet,
			Child:       p,
		}
		so.recordCandidate(sorted)
		finalists = append(finalists, sorted)
	}
	if len(finalists) == 0 {
		return nil, common.NewPlanningError("no complete path survived final selection")
	}

	fraction := 1.0
	if query.HasLimit() {
		// only Limit rows are ever pulled; compare by the interpolated cost
		// of producing that fraction of the output
		maxRows := finalists[0].Rows
		for _, p := range finalists {
			if p.Rows > maxRows {
				maxRows = p.Rows
			}
		}
		if maxRows > 0 {
			fraction = float64(query.Limit) / maxRows
			if fraction > 1 {
				fraction = 1
			}
		}
	}

	best := finalists[0]
	for _, p := range finalists[1:] {
		pc, bc := p.CostWithLimit(fraction), best.CostWithLimit(fraction)
		if pc < bc || (pc == bc && p.StartupCost < best.StartupCost) {
			best = p
		}
	}
	return best, nil
}

// addPrunedPath keeps the frontier free of dominated paths: a new path
// enters only if nothing cheaper covers its ordering, and evicts paths it
// dominates.
func addPrunedPath(frontier []*planner.Path, candidate *planner.Path) []*planner.Path {
	for _, kept := range frontier {
		if kept.Dominates(candidate) {
			return frontier
		}
	}
	out := frontier[:0]
	for _, kept := range frontier {
		if !candidate.Dominates(kept) {
			out = append(out, kept)
		}
	}
	return append(out, candidate)
}

func (so *SelingerOptimizer) recordCandidate(p *planner.Path) {
	so.lastCandidates = append(so.lastCandidates, p)
}

func popcount(v uint64) int {
	count := 0
	for v != 0 {
		v &= v - 1
		count++
	}
	return count
}
