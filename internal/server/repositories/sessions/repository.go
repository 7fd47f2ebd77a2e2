// Package sessions persists upload sessions.
package sessions

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/server/models"
)

type Repository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, s *models.UploadSession) error

	// Get returns the owner's session or common.ErrNotFound.
	Get(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error)

	// UpdateStatus moves the session from one status to another. The
	// conditional update is the concurrency gate for finalize: if the row
	// is no longer in the expected status, common.ErrConflict is returned
	// and nothing changes.
	UpdateStatus(ctx context.Context, ownerID, sessionID string, from, to models.SessionStatus) error
}
