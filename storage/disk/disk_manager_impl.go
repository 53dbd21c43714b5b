package disk

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/ryogrid/KiriDB/common"
	"github.com/ryogrid/KiriDB/types"
)

// DiskManagerImpl is the file backed implementation of DiskManager.
type DiskManagerImpl struct {
	db         *os.File
	fileName   string
	nextPageID types.PageID
	size       int64
	mutex      deadlock.Mutex
}

func NewDiskManagerImpl(dbFilename string) (*DiskManagerImpl, error) {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open db file %s", dbFilename)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "stat of db file failed")
	}

	fileSize := fileInfo.Size()
	nextPageID := types.PageID(fileSize / common.PageSize)

	return &DiskManagerImpl{db: file, fileName: dbFilename, nextPageID: nextPageID, size: fileSize}, nil
}

func (d *DiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	if offset >= d.size {
		return errors.Newf("read past end of file: page %d", pageID)
	}

	if _, err := d.db.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek failed")
	}
	bytesRead, err := d.db.Read(pageData)
	if err != nil {
		return errors.Wrap(err, "page read failed")
	}
	for i := bytesRead; i < common.PageSize; i++ {
		pageData[i] = 0
	}
	return nil
}

func (d *DiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	offset := int64(pageID) * int64(common.PageSize)
	if _, err := d.db.Seek(offset, io.SeekStart); err != nil {
		return errors.Wrap(err, "seek failed")
	}
	bytesWritten, err := d.db.Write(pageData)
	if err != nil {
		return errors.Wrap(err, "page write failed")
	}
	if bytesWritten != common.PageSize {
		return errors.Newf("partial page write: %d bytes", bytesWritten)
	}
	if offset+int64(bytesWritten) > d.size {
		d.size = offset + int64(bytesWritten)
	}
	d.db.Sync()
	return nil
}

func (d *DiskManagerImpl) AllocatePage() types.PageID {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage would need a page allocation bitmap in a header page.
// It does not actually need to do anything for now.
func (d *DiskManagerImpl) DeallocatePage(pageID types.PageID) {}

func (d *DiskManagerImpl) NumPages() int64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return int64(d.nextPageID)
}

func (d *DiskManagerImpl) ShutDown() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.db.Close()
}
