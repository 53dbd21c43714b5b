package buffer

import (
	"github.com/cockroachdb/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/storage/disk"
	"github.com/ryogrid/KiriDB/storage/page"
	"github.com/ryogrid/KiriDB/types"
)

// BufferPoolManager caches pages in memory frames. The frame table is shared
// by every concurrent query; only page content access takes per-page latches.
type BufferPoolManager struct {
	diskManager disk.DiskManager
	pages       []*page.Page
	replacer    *ClockReplacer
	freeList    []FrameID
	pageTable   map[types.PageID]FrameID
	mutex       deadlock.Mutex
}

func NewBufferPoolManager(poolSize uint32, diskManager disk.DiskManager) *BufferPoolManager {
	freeList := make([]FrameID, poolSize)
	pages := make([]*page.Page, poolSize)
	for i := uint32(0); i < poolSize; i++ {
		freeList[i] = FrameID(i)
	}
	return &BufferPoolManager{
		diskManager: diskManager,
		pages:       pages,
		replacer:    NewClockReplacer(poolSize),
		freeList:    freeList,
		pageTable:   make(map[types.PageID]FrameID),
	}
}

// FetchPage returns the requested page pinned, loading it from disk on miss.
func (b *BufferPoolManager) FetchPage(pageID types.PageID) *page.Page {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if frameID, ok := b.pageTable[pageID]; ok {
		pg := b.pages[frameID]
		pg.IncPinCount()
		b.replacer.Pin(frameID)
		return pg
	}

	frameID := b.grabFrame()
	if frameID == nil {
		return nil
	}

	data := make([]byte, common.PageSize)
	if err := b.diskManager.ReadPage(pageID, data); err != nil {
		b.freeList = append(b.freeList, *frameID)
		return nil
	}
	var pageData [common.PageSize]byte
	copy(pageData[:], data)
	pg := page.New(pageID, false, &pageData)
	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg
	return pg
}

// NewPage allocates a fresh page, pinned.
func (b *BufferPoolManager) NewPage() *page.Page {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID := b.grabFrame()
	if frameID == nil {
		return nil
	}

	pageID := b.diskManager.AllocatePage()
	pg := page.NewEmpty(pageID)
	b.pageTable[pageID] = *frameID
	b.pages[*frameID] = pg
	return pg
}

func (b *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	frameID, ok := b.pageTable[pageID]
	if !ok {
		return errors.Newf("unpin of page %d which is not in the pool", pageID)
	}
	pg := b.pages[frameID]
	pg.DecPinCount()
	if pg.PinCount() <= 0 {
		b.replacer.Unpin(frameID)
	}
	if isDirty {
		pg.SetIsDirty(true)
	}
	return nil
}

func (b *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.flushPageLocked(pageID)
}

func (b *BufferPoolManager) FlushAllPages() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for pageID := range b.pageTable {
		b.flushPageLocked(pageID)
	}
}

func (b *BufferPoolManager) flushPageLocked(pageID types.PageID) bool {
	frameID, ok := b.pageTable[pageID]
	if !ok {
		return false
	}
	pg := b.pages[frameID]
	data := pg.Data()
	b.diskManager.WritePage(pageID, data[:])
	pg.SetIsDirty(false)
	return true
}

// grabFrame hands out a frame from the free list, or victimizes one through
// the replacer (flushing it first when dirty).
func (b *BufferPoolManager) grabFrame() *FrameID {
	if len(b.freeList) > 0 {
		frameID := b.freeList[0]
		b.freeList = b.freeList[1:]
		return &frameID
	}

	frameID := b.replacer.Victim()
	if frameID == nil {
		common.Logger().Warn("buffer pool exhausted, all frames pinned")
		return nil
	}
	victim := b.pages[*frameID]
	if victim != nil {
		if victim.IsDirty() {
			data := victim.Data()
			b.diskManager.WritePage(victim.ID(), data[:])
		}
		delete(b.pageTable, victim.ID())
	}
	return frameID
}
