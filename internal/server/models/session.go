// Package models defines server-side data models persisted in the database.
package models

import "time"

// SessionStatus is the closed set of upload session states. Transitions only
// move forward: Uploading → Finalizing → Complete, or Uploading/Finalizing →
// Expired on abort or TTL sweep.
type SessionStatus string

const (
	StatusUploading  SessionStatus = "UPLOADING"
	StatusFinalizing SessionStatus = "FINALIZING"
	StatusComplete   SessionStatus = "COMPLETE"
	StatusExpired    SessionStatus = "EXPIRED"
)

// ParseSessionStatus maps a stored string onto the enum, rejecting anything
// outside the closed set.
func ParseSessionStatus(s string) (SessionStatus, bool) {
	switch SessionStatus(s) {
	case StatusUploading, StatusFinalizing, StatusComplete, StatusExpired:
		return SessionStatus(s), true
	}
	return "", false
}

// CanTransition reports whether moving from s to next is a legal forward
// transition. A status never moves backward.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	switch s {
	case StatusUploading:
		return next == StatusFinalizing || next == StatusExpired
	case StatusFinalizing:
		return next == StatusComplete || next == StatusExpired
	}
	return false
}

// UploadSession is one attempted transfer. TotalChunks is fixed at creation
// and never recomputed; once the status leaves StatusUploading no further
// chunk writes are accepted.
type UploadSession struct {
	// ID is the opaque session identifier.
	ID string
	// OwnerID is the verified owner, supplied by the identity context.
	OwnerID string
	// FolderID is the optional destination container.
	FolderID *int64

	// FileName, FileType and FileSize are the declared shape of the file.
	FileName string
	FileType string
	FileSize int64

	// ChunkSize is the negotiated chunk size in bytes.
	ChunkSize int32
	// TotalChunks = ceil(FileSize/ChunkSize), floored at 1 for empty files.
	TotalChunks int32

	Status SessionStatus

	// ReplaceObjectID, when set, makes finalize bump that object's version
	// instead of creating a new object.
	ReplaceObjectID *string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at the given time.
func (s *UploadSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
