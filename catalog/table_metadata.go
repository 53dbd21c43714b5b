package catalog

import (
	"github.com/ryogrid/KiriDB/storage/access"
	"github.com/ryogrid/KiriDB/storage/index"
	"github.com/ryogrid/KiriDB/storage/table/schema"
)

// IndexCapabilities are the access method capability flags consulted during
// path generation.
type IndexCapabilities struct {
	SupportsEquality  bool
	SupportsRange     bool
	SupportsOrdered   bool
	SupportsIndexOnly bool
}

// BTreeCapabilities: the b-tree access method supports everything this core
// can ask of an index.
func BTreeCapabilities() IndexCapabilities {
	return IndexCapabilities{
		SupportsEquality:  true,
		SupportsRange:     true,
		SupportsOrdered:   true,
		SupportsIndexOnly: true,
	}
}

// IndexMetadata is the catalog descriptor of one index.
type IndexMetadata struct {
	oid      uint32
	name     string
	tableOID uint32
	// position of the indexed column in the owning relation's schema
	colIdx       uint32
	capabilities IndexCapabilities
	index        *index.BTreeIndex
}

func (im *IndexMetadata) GetOID() uint32 {
	return im.oid
}

func (im *IndexMetadata) GetIndexName() string {
	return im.name
}

func (im *IndexMetadata) GetTableOID() uint32 {
	return im.tableOID
}

func (im *IndexMetadata) GetColIdx() uint32 {
	return im.colIdx
}

func (im *IndexMetadata) GetCapabilities() IndexCapabilities {
	return im.capabilities
}

func (im *IndexMetadata) GetIndex() *index.BTreeIndex {
	return im.index
}

// TableMetadata is the catalog descriptor of one relation.
type TableMetadata struct {
	oid     uint32
	name    string
	schema_ *schema.Schema
	table   *access.TableHeap
	indexes []*IndexMetadata
}

func (tm *TableMetadata) OID() uint32 {
	return tm.oid
}

func (tm *TableMetadata) GetTableName() string {
	return tm.name
}

func (tm *TableMetadata) Schema() *schema.Schema {
	return tm.schema_
}

func (tm *TableMetadata) Table() *access.TableHeap {
	return tm.table
}

func (tm *TableMetadata) Indexes() []*IndexMetadata {
	return tm.indexes
}
