package expression

import (
	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

type ArithmeticType int

const (
	Add ArithmeticType = iota
	Subtract
	Multiply
	Divide
)

// Arithmetic applies an integer or float operation to two operands. Division
// by zero is a runtime execution error, not a panic.
type Arithmetic struct {
	left           Expression
	right          Expression
	arithmeticType ArithmeticType
}

func NewArithmetic(left Expression, right Expression, arithmeticType ArithmeticType) *Arithmetic {
	return &Arithmetic{left: left, right: right, arithmeticType: arithmeticType}
}

func (a *Arithmetic) Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error) {
	lv, err := a.left.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := a.right.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	return a.apply(lv, rv)
}

func (a *Arithmetic) EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error) {
	lv, err := a.left.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := a.right.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	return a.apply(lv, rv)
}

func (a *Arithmetic) apply(lv types.Value, rv types.Value) (types.Value, error) {
	if lv.ValueType() == types.Float || rv.ValueType() == types.Float {
		l, r := float32(lv.ToFloat64()), float32(rv.ToFloat64())
		switch a.arithmeticType {
		case Add:
			return types.NewFloat(l + r), nil
		case Subtract:
			return types.NewFloat(l - r), nil
		case Multiply:
			return types.NewFloat(l * r), nil
		default:
			if r == 0 {
				return types.Value{}, common.NewExecutionError("division by zero")
			}
			return types.NewFloat(l / r), nil
		}
	}

	l, r := lv.ToInteger(), rv.ToInteger()
	switch a.arithmeticType {
	case Add:
		return types.NewInteger(l + r), nil
	case Subtract:
		return types.NewInteger(l - r), nil
	case Multiply:
		return types.NewInteger(l * r), nil
	default:
		if r == 0 {
			return types.Value{}, common.NewExecutionError("division by zero")
		}
		return types.NewInteger(l / r), nil
	}
}
