package column

import "github.com/ryogrid/KiriDB/types"

// Column describes one attribute of a relation: name, type and its byte
// position inside the fixed size part of a tuple. Varchar columns keep only
// a 4 byte offset inline and store the payload at the tuple tail.
type Column struct {
	columnName  string
	columnType  types.TypeID
	fixedLength uint32
	columnOffset uint32
}

func NewColumn(name string, columnType types.TypeID) *Column {
	return &Column{
		columnName:  name,
		columnType:  columnType,
		fixedLength: columnType.Size(),
	}
}

func (c *Column) GetColumnName() string {
	return c.columnName
}

func (c *Column) GetType() types.TypeID {
	return c.columnType
}

func (c *Column) FixedLength() uint32 {
	return c.fixedLength
}

func (c *Column) IsInlined() bool {
	return c.columnType != types.Varchar
}

func (c *Column) GetOffset() uint32 {
	return c.columnOffset
}

func (c *Column) SetOffset(offset uint32) {
	c.columnOffset = offset
}

// AvgWidth is the byte width assumed for row width estimates before any
// statistics exist. Varchar gets a flat guess.
func (c *Column) AvgWidth() uint32 {
	if c.columnType == types.Varchar {
		return 32
	}
	return c.fixedLength
}
