// Package objects persists StoredObject records: the logical files the
// rest of the system sees.
package objects

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/server/models"
)

type Repository interface {
	// Create inserts a new object row.
	Create(ctx context.Context, o *models.StoredObject) error

	// GetActive returns the owner's non-deleted object or common.ErrNotFound.
	GetActive(ctx context.Context, ownerID, objectID string) (*models.StoredObject, error)

	// Update rewrites the mutable fields after a finalize-as-replace:
	// name, type, size, content locator, integrity hash, encryption
	// metadata, version number and current version pointer.
	Update(ctx context.Context, o *models.StoredObject) error
}
