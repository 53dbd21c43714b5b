package index

import (
	"math"

	"github.com/google/btree"
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/types"
)

const btreeDegree = 32

// indexItem is one (key, rid) pair inside the tree. RID participates in the
// ordering so duplicate keys stay distinct entries.
type indexItem struct {
	key types.Value
	rid page.RID
}

func (i *indexItem) Less(than btree.Item) bool {
	other := than.(*indexItem)
	cmp := i.key.CompareTo(other.key)
	if cmp != 0 {
		return cmp < 0
	}
	if i.rid.PageId != other.rid.PageId {
		return i.rid.PageId < other.rid.PageId
	}
	return i.rid.SlotNum < other.rid.SlotNum
}

// BTreeIndex is the ordered access method over one column. It supports
// equality and range predicates, retrieval in key order and, given a
// covering column set, index-only retrieval.
type BTreeIndex struct {
	tree    *btree.BTree
	keyType types.TypeID
	mutex   deadlock.RWMutex
}

func NewBTreeIndex(keyType types.TypeID) *BTreeIndex {
	return &BTreeIndex{tree: btree.New(btreeDegree), keyType: keyType}
}

func (idx *BTreeIndex) KeyType() types.TypeID {
	return idx.keyType
}

func (idx *BTreeIndex) InsertEntry(key types.Value, rid page.RID) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	idx.tree.ReplaceOrInsert(&indexItem{key: key, rid: rid})
}

func (idx *BTreeIndex) DeleteEntry(key types.Value, rid page.RID) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()
	idx.tree.Delete(&indexItem{key: key, rid: rid})
}

func (idx *BTreeIndex) EntryCount() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return idx.tree.Len()
}

// Height estimates the number of levels descended by one lookup. The cost
// model charges one index tuple access per level.
func (idx *BTreeIndex) Height() float64 {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	n := float64(idx.tree.Len())
	if n < 2 {
		return 1
	}
	return math.Max(1, math.Ceil(math.Log(n)/math.Log(float64(2*btreeDegree))))
}

// PointScan collects the rids of every entry equal to key.
func (idx *BTreeIndex) PointScan(key types.Value) []page.RID {
	var rids []page.RID
	it := idx.RangeScanIterator(&key, &key, true, true)
	for {
		_, rid, ok := it.Next()
		if !ok {
			break
		}
		rids = append(rids, rid)
	}
	return rids
}

// RangeScanIterator yields entries inside [lower, upper] in key order. A nil
// bound is open ended; the Inclusive flags control bound membership.
func (idx *BTreeIndex) RangeScanIterator(lower *types.Value, upper *types.Value, lowerInclusive bool, upperInclusive bool) *IndexRangeScanIterator {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()

	// snapshot matching entries so the iterator is immune to concurrent
	// index writes during execution
	entries := make([]indexItem, 0)
	collect := func(item btree.Item) bool {
		entry := item.(*indexItem)
		if lower != nil && !lowerInclusive && entry.key.CompareEquals(*lower) {
			return true
		}
		if upper != nil {
			cmp := entry.key.CompareTo(*upper)
			if cmp > 0 || (cmp == 0 && !upperInclusive) {
				return false
			}
		}
		entries = append(entries, *entry)
		return true
	}

	if lower != nil {
		idx.tree.AscendGreaterOrEqual(&indexItem{key: *lower, rid: page.RID{PageId: types.InvalidPageID}}, collect)
	} else {
		idx.tree.Ascend(collect)
	}
	return &IndexRangeScanIterator{entries: entries}
}

// IndexRangeScanIterator walks range scan results in key order.
type IndexRangeScanIterator struct {
	entries []indexItem
	pos     int
}

func (it *IndexRangeScanIterator) Next() (types.Value, page.RID, bool) {
	if it.pos >= len(it.entries) {
		return types.Value{}, page.RID{PageId: types.InvalidPageID}, false
	}
	entry := it.entries[it.pos]
	it.pos++
	return entry.key, entry.rid, true
}
