// Package versions persists the append-only version history of objects.
package versions

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/server/models"
)

type Repository interface {
	// Create appends a version record. Records are immutable once written.
	Create(ctx context.Context, v *models.VersionRecord) error

	// Get returns a specific version of an object or common.ErrNotFound.
	Get(ctx context.Context, objectID, versionID string) (*models.VersionRecord, error)
}
