package access

import (
	"github.com/ryogrid/KiriDB/storage/tuple"
	"github.com/ryogrid/KiriDB/types"
)

// TableHeapIterator walks a table heap in physical order, silently skipping
// versions invisible to the transaction's snapshot. Restartable per query
// execution by constructing a fresh iterator.
type TableHeapIterator struct {
	heap       *TableHeap
	txn        *Transaction
	currPageId types.PageID
	currSlot   uint32
}

func NewTableHeapIterator(heap *TableHeap, txn *Transaction) *TableHeapIterator {
	return &TableHeapIterator{heap: heap, txn: txn, currPageId: heap.GetFirstPageId()}
}

// Next returns the next visible tuple, or nil at end of heap.
func (it *TableHeapIterator) Next() *tuple.Tuple {
	for it.currPageId.IsValid() {
		hp := CastPageAsHeapPage(it.heap.bpm.FetchPage(it.currPageId))
		hp.page().RLatch()
		numSlots := hp.NumSlots()

		for it.currSlot < numSlots {
			meta, tuple_, ok := hp.GetTuple(it.currSlot)
			it.currSlot++
			if !ok {
				continue
			}
			if !IsVisible(meta, it.txn, it.heap.txnMgr) {
				continue
			}
			hp.page().RUnlatch()
			it.heap.bpm.UnpinPage(hp.GetPageId(), false)
			return tuple_
		}

		next := hp.GetNextPageId()
		hp.page().RUnlatch()
		it.heap.bpm.UnpinPage(hp.GetPageId(), false)
		it.currPageId = next
		it.currSlot = 0
	}
	return nil
}
