package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// PostgresRepository implements version history over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.VersionRecord) error {
	query := `
		INSERT INTO file_versions
			(version_id, file_id, version_number, file_name, file_type, file_size,
			 content_kind, content_locator, integrity_hash, encryption_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ObjectID, v.Number, v.Name, v.FileType, v.FileSize,
		string(v.ContentKind), v.ContentLocator, v.IntegrityHash, v.EncryptionMeta, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, objectID, versionID string) (*models.VersionRecord, error) {
	query := `
		SELECT version_id, file_id, version_number, file_name, file_type, file_size,
		       content_kind, content_locator, integrity_hash, encryption_metadata, created_at
		FROM file_versions
		WHERE version_id = $1 AND file_id = $2
	`
	v := &models.VersionRecord{}
	var kind string
	err := r.db.QueryRowContext(ctx, query, versionID, objectID).Scan(
		&v.ID, &v.ObjectID, &v.Number, &v.Name, &v.FileType, &v.FileSize,
		&kind, &v.ContentLocator, &v.IntegrityHash, &v.EncryptionMeta, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: version %s of object %s", common.ErrNotFound, versionID, objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("select version: %w", err)
	}
	v.ContentKind = models.ContentKind(kind)
	return v, nil
}
