package schema

import (
	"github.com/ryogrid/KiriDB/storage/table/column"
)

type Schema struct {
	columns []*column.Column
	// fixed size part length of a tuple laid out with this schema
	length uint32
	// indexes of the columns whose payload is stored out of line
	unlinedColumns []uint32
}

func NewSchema(columns []*column.Column) *Schema {
	schema := &Schema{}
	var offset uint32
	for i, col := range columns {
		col.SetOffset(offset)
		offset += col.FixedLength()
		if !col.IsInlined() {
			schema.unlinedColumns = append(schema.unlinedColumns, uint32(i))
		}
		schema.columns = append(schema.columns, col)
	}
	schema.length = offset
	return schema
}

func (s *Schema) GetColumn(colIndex uint32) *column.Column {
	return s.columns[colIndex]
}

func (s *Schema) GetColumns() []*column.Column {
	return s.columns
}

func (s *Schema) GetColumnCount() uint32 {
	return uint32(len(s.columns))
}

// GetColIndex returns the position of the named column, or -1.
func (s *Schema) GetColIndex(name string) int32 {
	for i, col := range s.columns {
		if col.GetColumnName() == name {
			return int32(i)
		}
	}
	return -1
}

func (s *Schema) Length() uint32 {
	return s.length
}

func (s *Schema) GetUnlinedColumns() []uint32 {
	return s.unlinedColumns
}

// AvgTupleWidth is the estimated byte width of one row, used by width
// estimates on paths.
func (s *Schema) AvgTupleWidth() uint32 {
	var w uint32
	for _, col := range s.columns {
		w += col.AvgWidth()
	}
	return w
}
