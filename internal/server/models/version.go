package models

import "time"

// VersionRecord is one append-only history entry: a snapshot of an object's
// descriptive fields and its own content locator at that point in time.
// Immutable once created; exactly one per successful finalize.
type VersionRecord struct {
	ID       string
	ObjectID string
	Number   int32

	Name     string
	FileType string
	FileSize int64

	ContentKind    ContentKind
	ContentLocator string
	IntegrityHash  string
	EncryptionMeta []byte

	CreatedAt time.Time
}
