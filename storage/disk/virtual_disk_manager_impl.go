package disk

import (
	"github.com/cockroachdb/errors"
	"github.com/dsnet/golib/memfile"
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/types"
)

// VirtualDiskManagerImpl keeps all pages on an in-memory file. Tests and the
// default front door configuration use this so no real file is touched.
type VirtualDiskManagerImpl struct {
	db         *memfile.File
	nextPageID types.PageID
	mutex      deadlock.Mutex
}

func NewVirtualDiskManagerImpl() *VirtualDiskManagerImpl {
	return &VirtualDiskManagerImpl{db: memfile.New(make([]byte, 0))}
}

func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	if offset >= int64(len(d.db.Bytes())) {
		return errors.Newf("read past end of virtual file: page %d", pageID)
	}
	if _, err := d.db.ReadAt(pageData, offset); err != nil {
		return errors.Wrap(err, "virtual page read failed")
	}
	return nil
}

func (d *VirtualDiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	if _, err := d.db.WriteAt(pageData, offset); err != nil {
		return errors.Wrap(err, "virtual page write failed")
	}
	return nil
}

func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {}

func (d *VirtualDiskManagerImpl) NumPages() int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return int64(d.nextPageID)
}

func (d *VirtualDiskManagerImpl) ShutDown() {}
