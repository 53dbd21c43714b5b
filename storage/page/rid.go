package page

import (
	"fmt"

	"github.com/ryogrid/KiriDB/types"
)

// RID is the physical locator of one tuple version: page id plus slot number.
type RID struct {
	PageId  types.PageID
	SlotNum uint32
}

func NewRID(pageId types.PageID, slotNum uint32) *RID {
	return &RID{pageId, slotNum}
}

func (r *RID) Set(pageId types.PageID, slotNum uint32) {
	r.PageId = pageId
	r.SlotNum = slotNum
}

func (r *RID) GetPageId() types.PageID {
	return r.PageId
}

func (r *RID) GetSlotNum() uint32 {
	return r.SlotNum
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageId, r.SlotNum)
}
