package objects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// PostgresRepository implements object storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, o *models.StoredObject) error {
	query := `
		INSERT INTO files
			(file_id, user_id, file_name, folder_id, file_type, file_size,
			 content_kind, content_locator, integrity_hash, encryption_metadata,
			 version_number, current_version_id, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.OwnerID, o.Name, o.FolderID, o.FileType, o.FileSize,
		string(o.ContentKind), o.ContentLocator, o.IntegrityHash, o.EncryptionMeta,
		o.VersionNumber, nullableID(o.CurrentVersionID), o.Deleted, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetActive(ctx context.Context, ownerID, objectID string) (*models.StoredObject, error) {
	query := `
		SELECT file_id, user_id, file_name, folder_id, file_type, file_size,
		       content_kind, content_locator, integrity_hash, encryption_metadata,
		       version_number, current_version_id, is_deleted, created_at, updated_at
		FROM files
		WHERE file_id = $1 AND user_id = $2 AND is_deleted = FALSE
	`
	o := &models.StoredObject{}
	var kind string
	var currentVersion sql.NullString
	err := r.db.QueryRowContext(ctx, query, objectID, ownerID).Scan(
		&o.ID, &o.OwnerID, &o.Name, &o.FolderID, &o.FileType, &o.FileSize,
		&kind, &o.ContentLocator, &o.IntegrityHash, &o.EncryptionMeta,
		&o.VersionNumber, &currentVersion, &o.Deleted, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: object %s", common.ErrNotFound, objectID)
	}
	if err != nil {
		return nil, fmt.Errorf("select object: %w", err)
	}
	o.ContentKind = models.ContentKind(kind)
	o.CurrentVersionID = currentVersion.String
	return o, nil
}

func (r *PostgresRepository) Update(ctx context.Context, o *models.StoredObject) error {
	query := `
		UPDATE files SET
			file_name = $1, folder_id = $2, file_type = $3, file_size = $4,
			content_kind = $5, content_locator = $6, integrity_hash = $7,
			encryption_metadata = $8, version_number = $9, current_version_id = $10,
			updated_at = $11
		WHERE file_id = $12 AND user_id = $13 AND is_deleted = FALSE
	`
	res, err := r.db.ExecContext(ctx, query,
		o.Name, o.FolderID, o.FileType, o.FileSize,
		string(o.ContentKind), o.ContentLocator, o.IntegrityHash,
		o.EncryptionMeta, o.VersionNumber, nullableID(o.CurrentVersionID),
		o.UpdatedAt, o.ID, o.OwnerID)
	if err != nil {
		return fmt.Errorf("update object: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: object %s", common.ErrNotFound, o.ID)
	}
	return nil
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
