package access

import (
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/types"
)

// VisibilityMap keeps one all-visible bit per heap page. The bit means every
// tuple version on the page is visible to every snapshot, which lets an
// index-only scan skip the heap fetch. Any write to a page clears its bit;
// the maintenance pass run with statistics refresh sets it again.
type VisibilityMap struct {
	allVisible map[types.PageID]bool
	mutex      deadlock.RWMutex
}

func NewVisibilityMap() *VisibilityMap {
	return &VisibilityMap{allVisible: make(map[types.PageID]bool)}
}

func (vm *VisibilityMap) IsAllVisible(pageId types.PageID) bool {
	vm.mutex.RLock()
	defer vm.mutex.RUnlock()
	return vm.allVisible[pageId]
}

func (vm *VisibilityMap) SetAllVisible(pageId types.PageID) {
	vm.mutex.Lock()
	defer vm.mutex.Unlock()
	vm.allVisible[pageId] = true
}

func (vm *VisibilityMap) ClearAllVisible(pageId types.PageID) {
	vm.mutex.Lock()
	defer vm.mutex.Unlock()
	delete(vm.allVisible, pageId)
}

// CountAllVisible returns how many pages currently carry the all-visible
// bit. The planner divides this by the page count to estimate how many heap
// fetches an index-only scan avoids.
func (vm *VisibilityMap) CountAllVisible() uint64 {
	vm.mutex.RLock()
	defer vm.mutex.RUnlock()
	var count uint64
	for _, set := range vm.allVisible {
		if set {
			count++
		}
	}
	return count
}

// FreeSpaceMap remembers roughly how much room each heap page has left so
// inserts don't have to walk the whole page chain.
type FreeSpaceMap struct {
	freeBytes map[types.PageID]uint32
	mutex     deadlock.RWMutex
}

func NewFreeSpaceMap() *FreeSpaceMap {
	return &FreeSpaceMap{freeBytes: make(map[types.PageID]uint32)}
}

func (fsm *FreeSpaceMap) Update(pageId types.PageID, free uint32) {
	fsm.mutex.Lock()
	defer fsm.mutex.Unlock()
	fsm.freeBytes[pageId] = free
}

// FindPageWithSpace returns some page with at least need bytes free, or an
// invalid page id.
func (fsm *FreeSpaceMap) FindPageWithSpace(need uint32) types.PageID {
	fsm.mutex.RLock()
	defer fsm.mutex.RUnlock()
	for pageId, free := range fsm.freeBytes {
		if free >= need {
			return pageId
		}
	}
	return types.InvalidPageID
}
