package models

// Folder is the minimal view of a destination container this core needs:
// enough to resolve a destination id to an accessible, non-deleted folder.
// Folder hierarchy mutation lives outside the storage core.
type Folder struct {
	ID      int64
	OwnerID string
	Name    string
	Deleted bool
}
