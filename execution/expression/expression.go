package expression

import (
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// Expression is a compiled scalar expression evaluated per row. Evaluate
// works against a single tuple, EvaluateJoin against the concatenation of a
// join's outer and inner tuples.
type Expression interface {
	Evaluate(tuple_ *tuple.Tuple, schema_ *schema.Schema) (types.Value, error)
	EvaluateJoin(leftTuple *tuple.Tuple, leftSchema *schema.Schema, rightTuple *tuple.Tuple, rightSchema *schema.Schema) (types.Value, error)
}
