package expression

import (
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// ColumnValue reads one column out of the input row. tupleIndex selects the
// join side: 0 for the outer tuple, 1 for the inner.
type ColumnValue struct {
	tupleIndex int
	colIndex   uint32
}

func NewColumnValue(tupleIndex int, colIndex uint32) *ColumnValue {
	return &ColumnValue{tupleIndex: tupleIndex, colIndex: colIndex}
}

func (c *ColumnValue) ColIndex() uint32 { return c.colIndex }

func (c *ColumnValue) Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error) {
	if c.colIndex >= schema_.GetColumnCount() {
		return types.Value{}, common.NewExecutionError("column index %d out of range", c.colIndex)
	}
	return tuple_.GetValue(schema_, c.colIndex), nil
}

func (c *ColumnValue) EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error) {
	if c.tupleIndex == 0 {
		return c.Evaluate(leftTuple, leftSchema)
	}
	return c.Evaluate(rightTuple, rightSchema)
}
