// Package chunks persists chunk receipts: the (session, index)-unique proof
// that a chunk's enveloped bytes landed in the content store.
package chunks

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/server/models"
)

type Repository interface {
	// Get returns the receipt for (sessionID, index) or common.ErrNotFound.
	Get(ctx context.Context, sessionID string, index int32) (*models.ChunkReceipt, error)

	// Insert adds a receipt. The (session, index) uniqueness constraint is
	// the sole serialization point for concurrent writers at the same
	// index; a violation comes back as common.ErrConflict so the caller
	// can re-read and decide duplicate-ok vs. mismatch.
	Insert(ctx context.Context, rc *models.ChunkReceipt) error

	// ListOrdered returns all receipts for the session sorted by index.
	ListOrdered(ctx context.Context, sessionID string) ([]*models.ChunkReceipt, error)

	// Indices returns only the received chunk indices, ascending.
	Indices(ctx context.Context, sessionID string) ([]int32, error)
}
