package types

// PageID is the unique identifier of a page inside one database file
type PageID int32

const InvalidPageID PageID = -1

func (id PageID) IsValid() bool {
	return id != InvalidPageID
}
