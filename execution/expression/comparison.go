package expression

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
)

// Comparison evaluates both operands and compares them, yielding a boolean.
type Comparison struct {
	left           Expression
	right          Expression
	comparisonType ComparisonType
}

func NewComparison(left Expression, right Expression, comparisonType ComparisonType) *Comparison {
	return &Comparison{left: left, right: right, comparisonType: comparisonType}
}

func (c *Comparison) Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error) {
	lv, err := c.left.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := c.right.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	return types.NewBoolean(c.holds(lv, rv)), nil
}

func (c *Comparison) EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error) {
	lv, err := c.left.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := c.right.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	return types.NewBoolean(c.holds(lv, rv)), nil
}

func (c *Comparison) holds(lv types.Value, rv types.Value) bool {
	switch c.comparisonType {
	case Equal:
		return lv.CompareEquals(rv)
	case NotEqual:
		return lv.CompareNotEquals(rv)
	case LessThan:
		return lv.CompareLessThan(rv)
	case LessThanOrEqual:
		return lv.CompareLessThanOrEqual(rv)
	case GreaterThan:
		return lv.CompareGreaterThan(rv)
	default:
		return lv.CompareGreaterThanOrEqual(rv)
	}
}
