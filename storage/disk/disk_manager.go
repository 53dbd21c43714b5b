package disk

import "github.com/ryogrid/KiriDB/types"

// DiskManager takes care of the allocation and deallocation of pages within a
// database. It performs the reading and writing of pages to and from disk,
// providing a logical file layer within the context of a database management
// system.
type DiskManager interface {
	ReadPage(pageID types.PageID, pageData []byte) error
	WritePage(pageID types.PageID, pageData []byte) error
	AllocatePage() types.PageID
	DeallocatePage(pageID types.PageID)
	NumPages() int64
	ShutDown()
}
