package page

import (
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/types"
)

// Page is one buffer pool frame worth of data. The latch protects the data
// area; the pin count keeps the frame from being victimized while in use.
type Page struct {
	id       types.PageID
	pinCount int32
	isDirty  bool
	data     *[common.PageSize]byte
	rwlatch  deadlock.RWMutex
}

func New(id types.PageID, isDirty bool, data *[common.PageSize]byte) *Page {
	return &Page{id: id, pinCount: 1, isDirty: isDirty, data: data}
}

func NewEmpty(id types.PageID) *Page {
	return New(id, false, &[common.PageSize]byte{})
}

func (p *Page) ID() types.PageID {
	return p.id
}

func (p *Page) Data() *[common.PageSize]byte {
	return p.data
}

func (p *Page) PinCount() int32 {
	return atomic.LoadInt32(&p.pinCount)
}

func (p *Page) IncPinCount() {
	atomic.AddInt32(&p.pinCount, 1)
}

func (p *Page) DecPinCount() {
	atomic.AddInt32(&p.pinCount, -1)
}

func (p *Page) IsDirty() bool {
	return p.isDirty
}

func (p *Page) SetIsDirty(isDirty bool) {
	p.isDirty = isDirty
}

func (p *Page) RLatch() {
	p.rwlatch.RLock()
}

func (p *Page) RUnlatch() {
	p.rwlatch.RUnlock()
}

func (p *Page) WLatch() {
	p.rwlatch.Lock()
}

func (p *Page) WUnlatch() {
	p.rwlatch.Unlock()
}
