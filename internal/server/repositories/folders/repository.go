// Package folders is the destination-container resolver. The storage core
// only ever asks "does this folder exist and belong to this owner"; folder
// hierarchy mutation is a different subsystem.
package folders

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/server/models"
)

type Repository interface {
	// GetActive resolves the owner's non-deleted folder or returns
	// common.ErrNotFound.
	GetActive(ctx context.Context, ownerID string, folderID int64) (*models.Folder, error)
}
