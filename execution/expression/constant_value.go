package expression

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// ConstantValue wraps a literal.
type ConstantValue struct {
	value types.Value
}

func NewConstantValue(value types.Value) *ConstantValue {
	return &ConstantValue{value: value}
}

func (c *ConstantValue) Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error) {
	return c.value, nil
}

func (c *ConstantValue) EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error) {
	return c.value, nil
}
