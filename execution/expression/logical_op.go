package expression

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

type LogicalOpType int

const (
	AND LogicalOpType = iota
	OR
)

// LogicalOp combines boolean subexpressions.
type LogicalOp struct {
	left   Expression
	right  Expression
	opType LogicalOpType
}

func NewLogicalOp(left Expression, right Expression, opType LogicalOpType) *LogicalOp {
	return &LogicalOp{left: left, right: right, opType: opType}
}

func (l *LogicalOp) Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error) {
	lv, err := l.left.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := l.right.Evaluate(tuple_, schema_)
	if err != nil {
		return types.Value{}, err
	}
	return l.combine(lv, rv), nil
}

func (l *LogicalOp) EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error) {
	lv, err := l.left.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	rv, err := l.right.EvaluateJoin(leftTuple, leftSchema, rightTuple, rightSchema)
	if err != nil {
		return types.Value{}, err
	}
	return l.combine(lv, rv), nil
}

func (l *LogicalOp) combine(lv types.Value, rv types.Value) types.Value {
	if l.opType == AND {
		return types.NewBoolean(lv.ToBoolean() && rv.ToBoolean())
	}
	return types.NewBoolean(lv.ToBoolean() || rv.ToBoolean())
}
