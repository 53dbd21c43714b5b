package tuple

import (
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/storage/table/schema"
	"github.com/ryogrid/KiriDB/types"
)

/**
 * Tuple format:
 * -----------------------------------------------------------------
 * | FIXED-SIZE VALUES or VARCHAR OFFSETS | VARCHAR PAYLOADS        |
 * -----------------------------------------------------------------
 */
type Tuple struct {
	rid  *page.RID
	size uint32
	data []byte
}

func New(rid *page.RID, size uint32, data []byte) *Tuple {
	return &Tuple{rid, size, data}
}

// NewFromSchema serializes values into the tuple layout defined by schema_.
func NewFromSchema(values []types.Value, schema_ *schema.Schema) *Tuple {
	tupleSize := schema_.Length()
	for _, colIndex := range schema_.GetUnlinedColumns() {
		tupleSize += values[colIndex].Size()
	}

	tuple_ := &Tuple{size: tupleSize, data: make([]byte, tupleSize)}

	tupleEndOffset := schema_.Length()
	for i := uint32(0); i < schema_.GetColumnCount(); i++ {
		col := schema_.GetColumn(i)
		if col.IsInlined() {
			tuple_.copyAt(col.GetOffset(), values[i].Serialize())
		} else {
			tuple_.copyAt(col.GetOffset(), types.NewInteger(int32(tupleEndOffset)).Serialize())
			tuple_.copyAt(tupleEndOffset, values[i].Serialize())
			tupleEndOffset += values[i].Size()
		}
	}
	return tuple_
}

func (t *Tuple) GetValue(schema_ *schema.Schema, colIndex uint32) types.Value {
	col := schema_.GetColumn(colIndex)
	offset := col.GetOffset()
	if !col.IsInlined() {
		offset = uint32(types.NewValueFromBytes(t.data[offset:offset+4], types.Integer).ToInteger())
	}
	return types.NewValueFromBytes(t.data[offset:], col.GetType())
}

// GetValues deserializes every column, in schema order.
func (t *Tuple) GetValues(schema_ *schema.Schema) []types.Value {
	values := make([]types.Value, 0, schema_.GetColumnCount())
	for i := uint32(0); i < schema_.GetColumnCount(); i++ {
		values = append(values, t.GetValue(schema_, i))
	}
	return values
}

func (t *Tuple) Size() uint32 {
	return t.size
}

func (t *Tuple) Data() []byte {
	return t.data
}

func (t *Tuple) GetRID() *page.RID {
	return t.rid
}

func (t *Tuple) SetRID(rid *page.RID) {
	t.rid = rid
}

func (t *Tuple) copyAt(offset uint32, data []byte) {
	copy(t.data[offset:], data)
}
