package access

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

/**
 * Slotted heap page layout:
 *  ---------------------------------------------------------------
 *  | NextPageID (4) | NumSlots (4) | FreeSpacePointer (4) |
 *  | Slot[0] (8) | Slot[1] (8) | ... ->          <- ... tuples    |
 *  ---------------------------------------------------------------
 * Each slot is {offset uint32, length uint32}; length 0 marks a vacated
 * slot. Each stored tuple is prefixed by its version header:
 * {xmin uint32, xmax uint32, nextVerPage int32, nextVerSlot uint32}.
 */

const (
	offsetNextPageID = 0
	offsetNumSlots   = 4
	offsetFreeSpace  = 8
	sizePageHeader   = 12
	sizeSlot         = 8
	sizeTupleHeader  = 16
)

var ErrNotEnoughSpace = errors.New("there is not enough space on the page")

// TupleMeta is the MVCC version header of one stored tuple.
type TupleMeta struct {
	Xmin        types.TxnID
	Xmax        types.TxnID
	NextVersion page.RID
}

func (m *TupleMeta) HasNextVersion() bool {
	return m.NextVersion.PageId.IsValid()
}

// HeapPage interprets a buffer pool page as a slotted tuple page.
type HeapPage page.Page

func CastPageAsHeapPage(p *page.Page) *HeapPage {
	if p == nil {
		return nil
	}
	return (*HeapPage)(unsafe.Pointer(p))
}

func (hp *HeapPage) page() *page.Page {
	return (*page.Page)(unsafe.Pointer(hp))
}

func (hp *HeapPage) Init() {
	hp.SetNextPageId(types.InvalidPageID)
	hp.setNumSlots(0)
	hp.setFreeSpacePointer(common.PageSize)
}

func (hp *HeapPage) GetPageId() types.PageID {
	return hp.page().ID()
}

func (hp *HeapPage) GetNextPageId() types.PageID {
	return types.PageID(int32(hp.readUint32(offsetNextPageID)))
}

func (hp *HeapPage) SetNextPageId(pageId types.PageID) {
	hp.writeUint32(offsetNextPageID, uint32(int32(pageId)))
}

func (hp *HeapPage) NumSlots() uint32 {
	return hp.readUint32(offsetNumSlots)
}

// FreeSpaceRemaining is the gap between the slot array end and the lowest
// stored tuple.
func (hp *HeapPage) FreeSpaceRemaining() uint32 {
	slotArrayEnd := uint32(sizePageHeader) + hp.NumSlots()*sizeSlot
	fsp := hp.freeSpacePointer()
	if fsp < slotArrayEnd {
		return 0
	}
	return fsp - slotArrayEnd
}

// InsertTuple stores a new tuple version created by txnId and returns its
// slot number.
func (hp *HeapPage) InsertTuple(tuple_ *tuple.Tuple, txnId types.TxnID) (uint32, error) {
	need := tuple_.Size() + sizeTupleHeader + sizeSlot
	if hp.FreeSpaceRemaining() < need {
		return 0, ErrNotEnoughSpace
	}

	fsp := hp.freeSpacePointer() - tuple_.Size() - sizeTupleHeader
	slot := hp.NumSlots()

	meta := TupleMeta{Xmin: txnId, Xmax: types.InvalidTxnID, NextVersion: page.RID{PageId: types.InvalidPageID}}
	hp.writeTupleMeta(fsp, &meta)
	copy(hp.page().Data()[fsp+sizeTupleHeader:], tuple_.Data())

	hp.writeUint32(sizePageHeader+slot*sizeSlot, fsp)
	hp.writeUint32(sizePageHeader+slot*sizeSlot+4, tuple_.Size()+sizeTupleHeader)
	hp.setNumSlots(slot + 1)
	hp.setFreeSpacePointer(fsp)
	return slot, nil
}

// GetTuple reads the version stored at slotNum, together with its MVCC
// header. ok is false for out of range or vacated slots.
func (hp *HeapPage) GetTuple(slotNum uint32) (*TupleMeta, *tuple.Tuple, bool) {
	if slotNum >= hp.NumSlots() {
		return nil, nil, false
	}
	offset := hp.readUint32(sizePageHeader + slotNum*sizeSlot)
	length := hp.readUint32(sizePageHeader + slotNum*sizeSlot + 4)
	if length == 0 {
		return nil, nil, false
	}

	meta := hp.readTupleMeta(offset)
	data := make([]byte, length-sizeTupleHeader)
	copy(data, hp.page().Data()[offset+sizeTupleHeader:offset+length])
	rid := page.NewRID(hp.GetPageId(), slotNum)
	return meta, tuple.New(rid, length-sizeTupleHeader, data), true
}

// SetXmax stamps the deleting/superseding transaction on a stored version.
func (hp *HeapPage) SetXmax(slotNum uint32, txnId types.TxnID) bool {
	offset, ok := hp.slotOffset(slotNum)
	if !ok {
		return false
	}
	hp.writeUint32(offset+4, uint32(txnId))
	return true
}

// SetNextVersion links a superseding version, forming the in-page version
// chain followed by index lookups.
func (hp *HeapPage) SetNextVersion(slotNum uint32, next page.RID) bool {
	offset, ok := hp.slotOffset(slotNum)
	if !ok {
		return false
	}
	hp.writeUint32(offset+8, uint32(int32(next.PageId)))
	hp.writeUint32(offset+12, next.SlotNum)
	return true
}

func (hp *HeapPage) slotOffset(slotNum uint32) (uint32, bool) {
	if slotNum >= hp.NumSlots() {
		return 0, false
	}
	length := hp.readUint32(sizePageHeader + slotNum*sizeSlot + 4)
	if length == 0 {
		return 0, false
	}
	return hp.readUint32(sizePageHeader + slotNum*sizeSlot), true
}

func (hp *HeapPage) freeSpacePointer() uint32 {
	return hp.readUint32(offsetFreeSpace)
}

func (hp *HeapPage) setFreeSpacePointer(fsp uint32) {
	hp.writeUint32(offsetFreeSpace, fsp)
}

func (hp *HeapPage) setNumSlots(n uint32) {
	hp.writeUint32(offsetNumSlots, n)
}

func (hp *HeapPage) writeTupleMeta(offset uint32, meta *TupleMeta) {
	hp.writeUint32(offset, uint32(meta.Xmin))
	hp.writeUint32(offset+4, uint32(meta.Xmax))
	hp.writeUint32(offset+8, uint32(int32(meta.NextVersion.PageId)))
	hp.writeUint32(offset+12, meta.NextVersion.SlotNum)
}

func (hp *HeapPage) readTupleMeta(offset uint32) *TupleMeta {
	return &TupleMeta{
		Xmin: types.TxnID(hp.readUint32(offset)),
		Xmax: types.TxnID(hp.readUint32(offset + 4)),
		NextVersion: page.RID{
			PageId:  types.PageID(int32(hp.readUint32(offset + 8))),
			SlotNum: hp.readUint32(offset + 12),
		},
	}
}

func (hp *HeapPage) readUint32(offset uint32) uint32 {
	var v uint32
	buf := bytes.NewBuffer(hp.page().Data()[offset : offset+4])
	binary.Read(buf, binary.LittleEndian, &v)
	return v
}

func (hp *HeapPage) writeUint32(offset uint32, v uint32) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, v)
	copy(hp.page().Data()[offset:offset+4], buf.Bytes())
}
