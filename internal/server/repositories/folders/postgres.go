package folders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// PostgresRepository implements folder resolution over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetActive(ctx context.Context, ownerID string, folderID int64) (*models.Folder, error) {
	query := `
		SELECT folder_id, user_id, folder_name, is_deleted
		FROM folders
		WHERE folder_id = $1 AND user_id = $2 AND is_deleted = FALSE
	`
	f := &models.Folder{}
	err := r.db.QueryRowContext(ctx, query, folderID, ownerID).Scan(&f.ID, &f.OwnerID, &f.Name, &f.Deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: folder %d", common.ErrNotFound, folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("select folder: %w", err)
	}
	return f, nil
}
