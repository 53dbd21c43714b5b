package planner

import "github.com/ryogrid/KiriDB/types"

// The planner's input is a fully resolved query tree: relations are catalog
// OIDs and columns are (relation OID, column index) pairs. Name and type
// resolution belongs to the excluded analyzer; malformed references here are
// a caller contract violation.

type ComparisonOp int

const (
	OpEqual ComparisonOp = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
)

func (op ComparisonOp) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	default:
		return ">="
	}
}

// ColumnRef addresses one column of one relation in the query.
type ColumnRef struct {
	RelOID uint32
	ColIdx uint32
}

// Predicate is a restriction clause comparing one column against a constant.
// The selectivity estimate is cached after first computation so every path
// candidate referencing the clause shares it.
type Predicate struct {
	Column ColumnRef
	Op     ComparisonOp
	Value  types.Value

	cachedSelectivity float64
	selectivityCached bool
}

func (p *Predicate) CachedSelectivity() (float64, bool) {
	return p.cachedSelectivity, p.selectivityCached
}

func (p *Predicate) CacheSelectivity(sel float64) {
	p.cachedSelectivity = sel
	p.selectivityCached = true
}

// SameClause reports whether two predicates are textually identical clauses.
// Identical duplicates must not be combined multiplicatively.
func (p *Predicate) SameClause(other *Predicate) bool {
	return p.Column == other.Column && p.Op == other.Op && p.Value.CompareEquals(other.Value)
}

// JoinCondition is a resolved equality join clause between two relations.
type JoinCondition struct {
	Left  ColumnRef
	Right ColumnRef
}

// Touches reports whether the condition references relation oid on either side.
func (jc *JoinCondition) Touches(oid uint32) bool {
	return jc.Left.RelOID == oid || jc.Right.RelOID == oid
}

type OrderByItem struct {
	Column ColumnRef
}

type AggregateKind int

const (
	AggCount AggregateKind = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

// AggregateExpr is one aggregate over one column.
type AggregateExpr struct {
	Kind   AggregateKind
	Column ColumnRef
}

// Query is the resolved query tree handed in by the analyzer.
type Query struct {
	// relations in the join graph, by catalog OID
	Relations []uint32
	// single-relation restriction clauses
	Predicates []*Predicate
	// equality join clauses
	JoinConditions []*JoinCondition
	// grouping columns and aggregates, both empty for plain row queries
	GroupBy    []ColumnRef
	Aggregates []AggregateExpr
	// requested output ordering, empty when none
	OrderBy []OrderByItem
	// row limit; negative when absent
	Limit int64
}

func NewQuery(relations []uint32) *Query {
	return &Query{Relations: relations, Limit: -1}
}

func (q *Query) HasLimit() bool {
	return q.Limit >= 0
}

func (q *Query) HasAggregates() bool {
	return len(q.Aggregates) > 0
}

// GroupOrdering is the ordering a pre-sorted input must provide for group
// aggregation.
func (q *Query) GroupOrdering() Ordering {
	return Ordering(q.GroupBy)
}

// RequiredOrdering is the ordering the final plan must deliver.
func (q *Query) RequiredOrdering() Ordering {
	ordering := make(Ordering, 0, len(q.OrderBy))
	for _, item := range q.OrderBy {
		ordering = append(ordering, item.Column)
	}
	return ordering
}
