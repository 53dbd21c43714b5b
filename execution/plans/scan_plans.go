package plans

import (
	"github.com/ryogrid/KiriDB/execution/expression"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/types"
)

// ScanPredicate is a sargable clause an access method evaluates directly
// against its keys, before any tuple is fetched.
type ScanPredicate struct {
	ColIdx uint32
	Op     expression.ComparisonType
	Value  types.Value
}

// SeqScanPlanNode reads the whole heap, applying the filter to every visible
// tuple.
type SeqScanPlanNode struct {
	*AbstractPlanNode
	tableOID  uint32
	predicate expression.Expression
}

func NewSeqScanPlanNode(schema_ *schema.Schema, estimate Estimate, tableOID uint32, predicate expression.Expression) *SeqScanPlanNode {
	return &SeqScanPlanNode{
		AbstractPlanNode: &AbstractPlanNode{schema_: schema_, estimate: estimate},
		tableOID:         tableOID,
		predicate:        predicate,
	}
}

func (p *SeqScanPlanNode) GetType() PlanType                     { return SeqScan }
func (p *SeqScanPlanNode) GetTableOID() uint32                   { return p.tableOID }
func (p *SeqScanPlanNode) GetPredicate() expression.Expression   { return p.predicate }

// IndexScanPlanNode walks one index in key order within the bounds implied by
// its scan predicates. A parameterized node takes its equality key from the
// outer row of the enclosing nested loop instead of a constant.
type IndexScanPlanNode struct {
	*AbstractPlanNode
	tableOID       uint32
	indexOID       uint32
	scanPredicates []ScanPredicate
	indexOnly      bool
	parameterized  bool
	// outer-schema column feeding the probe key when parameterized
	paramColIdx uint32
	residual    expression.Expression
}

func NewIndexScanPlanNode(schema_ *schema.Schema, estimate Estimate, tableOID uint32, indexOID uint32, scanPredicates []ScanPredicate, indexOnly bool, residual expression.Expression) *IndexScanPlanNode {
	return &IndexScanPlanNode{
		AbstractPlanNode: &AbstractPlanNode{schema_: schema_, estimate: estimate},
		tableOID:         tableOID,
		indexOID:         indexOID,
		scanPredicates:   scanPredicates,
		indexOnly:        indexOnly,
		residual:         residual,
	}
}

func NewParameterizedIndexScanPlanNode(schema_ *schema.Schema, estimate Estimate, tableOID uint32, indexOID uint32, paramColIdx uint32) *IndexScanPlanNode {
	return &IndexScanPlanNode{
		AbstractPlanNode: &AbstractPlanNode{schema_: schema_, estimate: estimate},
		tableOID:         tableOID,
		indexOID:         indexOID,
		parameterized:    true,
		paramColIdx:      paramColIdx,
	}
}

func (p *IndexScanPlanNode) GetType() PlanType                   { return IndexScan }
func (p *IndexScanPlanNode) GetTableOID() uint32                 { return p.tableOID }
func (p *IndexScanPlanNode) GetIndexOID() uint32                 { return p.indexOID }
func (p *IndexScanPlanNode) GetScanPredicates() []ScanPredicate  { return p.scanPredicates }
func (p *IndexScanPlanNode) IsIndexOnly() bool                   { return p.indexOnly }
func (p *IndexScanPlanNode) IsParameterized() bool               { return p.parameterized }
func (p *IndexScanPlanNode) GetParamColIdx() uint32              { return p.paramColIdx }
func (p *IndexScanPlanNode) GetResidual() expression.Expression  { return p.residual }

// BitmapScanPlanNode collects matching RIDs from one or more indexes, ORs
// them into a set and fetches the heap pages in page order.
type BitmapScanPlanNode struct {
	*AbstractPlanNode
	tableOID       uint32
	indexOIDs      []uint32
	scanPredicates [][]ScanPredicate
	residual       expression.Expression
}

func NewBitmapScanPlanNode(schema_ *schema.Schema, estimate Estimate, tableOID uint32, indexOIDs []uint32, scanPredicates [][]ScanPredicate, residual expression.Expression) *BitmapScanPlanNode {
	return &BitmapScanPlanNode{
		AbstractPlanNode: &AbstractPlanNode{schema_: schema_, estimate: estimate},
		tableOID:         tableOID,
		indexOIDs:        indexOIDs,
		scanPredicates:   scanPredicates,
		residual:         residual,
	}
}

func (p *BitmapScanPlanNode) GetType() PlanType                    { return BitmapScan }
func (p *BitmapScanPlanNode) GetTableOID() uint32                  { return p.tableOID }
func (p *BitmapScanPlanNode) GetIndexOIDs() []uint32               { return p.indexOIDs }
func (p *BitmapScanPlanNode) GetScanPredicates() [][]ScanPredicate { return p.scanPredicates }
func (p *BitmapScanPlanNode) GetResidual() expression.Expression   { return p.residual }
