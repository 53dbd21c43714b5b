package planner

// PathKind tags the operator a candidate path would execute with.
type PathKind int

const (
	SeqScanPath PathKind = iota
	IndexScanPath
	BitmapScanPath
	NestedLoopJoinPath
	HashJoinPath
	MergeJoinPath
	SortPath
)

func (k PathKind) String() string {
	switch k {
	case SeqScanPath:
		return "Seq Scan"
	case IndexScanPath:
		return "Index Scan"
	case BitmapScanPath:
		return "Bitmap Heap Scan"
	case NestedLoopJoinPath:
		return "Nested Loop"
	case HashJoinPath:
		return "Hash Join"
	case MergeJoinPath:
		return "Merge Join"
	default:
		return "Sort"
	}
}

// Ordering is the sort order a path's output is known to honor.
type Ordering []ColumnRef

// Satisfies reports whether this ordering delivers at least the required
// prefix.
func (o Ordering) Satisfies(required Ordering) bool {
	if len(required) == 0 {
		return true
	}
	if len(o) < len(required) {
		return false
	}
	for i, col := range required {
		if o[i] != col {
			return false
		}
	}
	return true
}

// Path is one candidate way to produce the rows of a relation or join
// result, with its cost estimate. Paths are ephemeral planning artifacts;
// the winner is converted into a plan node tree and the rest are discarded.
type Path struct {
	Kind PathKind

	StartupCost float64
	TotalCost   float64
	Rows        float64
	Width       uint32
	Ordering    Ordering
	// set when the estimate rests on default assumptions because statistics
	// were unavailable
	Defaulted bool

	// bitmask over Query.Relations positions covered by this path
	RelSet uint64

	// scan fields
	RelOID uint32
	// index scan: the matched index and the clauses it absorbs
	IndexOID        uint32
	IndexPredicates []*Predicate
	IndexOnly       bool
	// index probe driven by the outer row of a nested loop rather than a
	// constant
	Parameterized bool
	// bitmap scan: the participating indexes with their clauses
	BitmapIndexOIDs  []uint32
	BitmapPredicates []*Predicate
	// clauses applied as a post-filter after the row is produced
	ResidualPredicates []*Predicate

	// join fields
	Outer          *Path
	Inner          *Path
	JoinConditions []*JoinCondition
	// sort field
	Child *Path
}

// Dominates implements dominance pruning: p can evict other when it is no
// more expensive and other's ordering offers nothing p lacks. An ordering
// that might save a later sort keeps an expensive path alive.
func (p *Path) Dominates(other *Path) bool {
	if p.TotalCost > other.TotalCost {
		return false
	}
	if p.TotalCost == other.TotalCost && p.StartupCost > other.StartupCost {
		return false
	}
	return p.Ordering.Satisfies(other.Ordering)
}

// Better is the final choice rule between two complete paths of equal
// coverage: cheapest total cost, then lowest startup cost. The startup tie
// break favors plans paired with a row limit.
func (p *Path) Better(other *Path) bool {
	if p.TotalCost != other.TotalCost {
		return p.TotalCost < other.TotalCost
	}
	return p.StartupCost < other.StartupCost
}

// CostWithLimit is the effective cost of pulling only fraction of the
// output, linearly interpolated between startup and total cost.
func (p *Path) CostWithLimit(fraction float64) float64 {
	if fraction >= 1 {
		return p.TotalCost
	}
	return p.StartupCost + (p.TotalCost-p.StartupCost)*fraction
}
