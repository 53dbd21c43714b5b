package access

import (
	"github.com/cockroachdb/errors"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/buffer"
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// TableHeap represents a heap organized table: a singly linked chain of
// slotted pages holding MVCC tuple versions. It owns the table's free space
// map and visibility map.
type TableHeap struct {
	bpm         *buffer.BufferPoolManager
	txnMgr      *TransactionManager
	firstPageId types.PageID
	// seek start hint for inserts
	lastPageId types.PageID
	fsm        *FreeSpaceMap
	vm         *VisibilityMap
}

func NewTableHeap(bpm *buffer.BufferPoolManager, txnMgr *TransactionManager) *TableHeap {
	p := bpm.NewPage()
	firstPage := CastPageAsHeapPage(p)
	firstPage.page().WLatch()
	firstPage.Init()
	firstPage.page().WUnlatch()
	bpm.UnpinPage(p.ID(), true)

	heap := &TableHeap{
		bpm:         bpm,
		txnMgr:      txnMgr,
		firstPageId: p.ID(),
		lastPageId:  p.ID(),
		fsm:         NewFreeSpaceMap(),
		vm:          NewVisibilityMap(),
	}
	heap.fsm.Update(p.ID(), common.PageSize-sizePageHeader)
	return heap
}

func (t *TableHeap) GetFirstPageId() types.PageID {
	return t.firstPageId
}

func (t *TableHeap) GetVisibilityMap() *VisibilityMap {
	return t.vm
}

// InsertTuple stores a new tuple version stamped with txn's id. The free
// space map supplies a candidate page; the page chain grows when nothing
// fits.
func (t *TableHeap) InsertTuple(tuple_ *tuple.Tuple, txn *Transaction) (*page.RID, error) {
	need := tuple_.Size() + sizeTupleHeader + sizeSlot

	candidate := t.fsm.FindPageWithSpace(need)
	if !candidate.IsValid() {
		candidate = t.lastPageId
	}

	currentPage := CastPageAsHeapPage(t.bpm.FetchPage(candidate))
	currentPage.page().WLatch()
	for {
		slot, err := currentPage.InsertTuple(tuple_, txn.GetTransactionId())
		if err == nil {
			rid := page.NewRID(currentPage.GetPageId(), slot)
			t.fsm.Update(currentPage.GetPageId(), currentPage.FreeSpaceRemaining())
			t.vm.ClearAllVisible(currentPage.GetPageId())
			currentPage.page().WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), true)
			return rid, nil
		}
		if !errors.Is(err, ErrNotEnoughSpace) {
			currentPage.page().WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), false)
			return nil, err
		}

		nextPageId := currentPage.GetNextPageId()
		if nextPageId.IsValid() {
			nextPage := CastPageAsHeapPage(t.bpm.FetchPage(nextPageId))
			nextPage.page().WLatch()
			currentPage.page().WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), false)
			currentPage = nextPage
		} else {
			p := t.bpm.NewPage()
			newPage := CastPageAsHeapPage(p)
			newPage.page().WLatch()
			newPage.Init()
			currentPage.SetNextPageId(p.ID())
			currentPage.page().WUnlatch()
			t.bpm.UnpinPage(currentPage.GetPageId(), true)
			t.lastPageId = p.ID()
			currentPage = newPage
		}
	}
}

// MarkDeleted stamps txn as the superseder of the version at rid. The data
// stays in place; visibility decides who still sees it.
func (t *TableHeap) MarkDeleted(rid *page.RID, txn *Transaction) bool {
	hp := CastPageAsHeapPage(t.bpm.FetchPage(rid.GetPageId()))
	if hp == nil {
		return false
	}
	hp.page().WLatch()
	ok := hp.SetXmax(rid.GetSlotNum(), txn.GetTransactionId())
	hp.page().WUnlatch()
	t.vm.ClearAllVisible(rid.GetPageId())
	t.bpm.UnpinPage(rid.GetPageId(), ok)
	return ok
}

// UpdateTuple supersedes the version at rid with a freshly inserted one and
// links them through the version chain, so index entries pointing at the old
// RID still reach the new version.
func (t *TableHeap) UpdateTuple(rid *page.RID, newTuple *tuple.Tuple, txn *Transaction) (*page.RID, error) {
	newRID, err := t.InsertTuple(newTuple, txn)
	if err != nil {
		return nil, err
	}
	if !t.MarkDeleted(rid, txn) {
		return nil, errors.Newf("update of missing tuple at %v", *rid)
	}

	hp := CastPageAsHeapPage(t.bpm.FetchPage(rid.GetPageId()))
	hp.page().WLatch()
	hp.SetNextVersion(rid.GetSlotNum(), *newRID)
	hp.page().WUnlatch()
	t.bpm.UnpinPage(rid.GetPageId(), true)
	return newRID, nil
}

// GetTupleVersion reads the raw version at rid, visible or not.
func (t *TableHeap) GetTupleVersion(rid *page.RID) (*TupleMeta, *tuple.Tuple, bool) {
	hp := CastPageAsHeapPage(t.bpm.FetchPage(rid.GetPageId()))
	if hp == nil {
		return nil, nil, false
	}
	hp.page().RLatch()
	meta, tuple_, ok := hp.GetTuple(rid.GetSlotNum())
	hp.page().RUnlatch()
	t.bpm.UnpinPage(rid.GetPageId(), false)
	return meta, tuple_, ok
}

// GetVisibleTuple resolves rid to the version visible under txn's snapshot,
// following the version chain left by updates. Returns nil when no version
// is visible; that is not an error.
func (t *TableHeap) GetVisibleTuple(rid *page.RID, txn *Transaction) *tuple.Tuple {
	current := *rid
	for {
		meta, tuple_, ok := t.GetTupleVersion(&current)
		if !ok {
			return nil
		}
		if IsVisible(meta, txn, t.txnMgr) {
			return tuple_
		}
		if !meta.HasNextVersion() {
			return nil
		}
		current = meta.NextVersion
	}
}

// PageCount walks the chain and counts pages. The catalog caches this per
// statistics refresh rather than calling it per query.
func (t *TableHeap) PageCount() uint64 {
	var count uint64
	pageId := t.firstPageId
	for pageId.IsValid() {
		hp := CastPageAsHeapPage(t.bpm.FetchPage(pageId))
		count++
		next := hp.GetNextPageId()
		t.bpm.UnpinPage(pageId, false)
		pageId = next
	}
	return count
}

// RefreshVisibility recomputes the all-visible bit of every page. Called
// from the statistics refresh pass (the VACUUM-adjacent bookkeeping).
func (t *TableHeap) RefreshVisibility() {
	pageId := t.firstPageId
	for pageId.IsValid() {
		hp := CastPageAsHeapPage(t.bpm.FetchPage(pageId))
		hp.page().RLatch()
		allVisible := true
		for slot := uint32(0); slot < hp.NumSlots(); slot++ {
			meta, _, ok := hp.GetTuple(slot)
			if !ok {
				continue
			}
			if !IsVisibleToAll(meta, t.txnMgr) {
				allVisible = false
				break
			}
		}
		next := hp.GetNextPageId()
		hp.page().RUnlatch()
		t.bpm.UnpinPage(pageId, false)

		if allVisible {
			t.vm.SetAllVisible(pageId)
		} else {
			t.vm.ClearAllVisible(pageId)
		}
		pageId = next
	}
}

// Iterator returns a sequential scan iterator over versions visible to txn.
func (t *TableHeap) Iterator(txn *Transaction) *TableHeapIterator {
	return NewTableHeapIterator(t, txn)
}
