package models

import "time"

// ContentKind tags what an object's content locator points at. This core
// only produces chunked manifests; the blob kind exists so legacy
// single-blob objects stay representable and retrieval can dispatch on the
// shape instead of assuming one.
type ContentKind string

const (
	ContentChunked ContentKind = "chunked"
	ContentBlob    ContentKind = "blob"
)

// StoredObject is the logical file as known to the rest of the system.
// Its content locator always names content that fully validates, and
// VersionNumber increases by exactly 1 on each successful
// finalize-as-replace.
type StoredObject struct {
	ID       string
	OwnerID  string
	Name     string
	FolderID *int64

	FileType string
	FileSize int64

	// ContentKind and ContentLocator describe the current body; for
	// ContentChunked the locator is the manifest's storage key.
	ContentKind    ContentKind
	ContentLocator string

	// IntegrityHash mirrors the current manifest's integrity hash.
	IntegrityHash string

	// EncryptionMeta is the client's key-wrap material, opaque to the
	// server: stored and returned verbatim, never parsed.
	EncryptionMeta []byte

	VersionNumber    int32
	CurrentVersionID string

	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
