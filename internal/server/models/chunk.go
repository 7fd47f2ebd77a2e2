package models

import "time"

// ChunkReceipt is proof that one chunk of a session was persisted.
// (SessionID, Index) is unique; a receipt is never mutated, only superseded
// by a new session if the client restarts the upload.
type ChunkReceipt struct {
	SessionID string
	Index     int32

	// Size is the ciphertext byte length as received.
	Size int32
	// Commitment is the hex SHA-256 binding the chunk bytes to their
	// session, position and declared file shape.
	Commitment string
	// StorageKey locates the enveloped blob in the content store.
	StorageKey string

	CreatedAt time.Time
}
