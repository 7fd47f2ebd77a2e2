package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// PostgresRepository implements session storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.UploadSession) error {
	query := `
		INSERT INTO upload_sessions
			(upload_id, user_id, folder_id, file_name, file_type, file_size,
			 chunk_size, total_chunks, status, replace_of_file_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.OwnerID, s.FolderID, s.FileName, s.FileType, s.FileSize,
		s.ChunkSize, s.TotalChunks, string(s.Status), s.ReplaceObjectID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	query := `
		SELECT upload_id, user_id, folder_id, file_name, file_type, file_size,
		       chunk_size, total_chunks, status, replace_of_file_id, created_at, expires_at
		FROM upload_sessions
		WHERE upload_id = $1 AND user_id = $2
	`
	s := &models.UploadSession{}
	var status string
	err := r.db.QueryRowContext(ctx, query, sessionID, ownerID).Scan(
		&s.ID, &s.OwnerID, &s.FolderID, &s.FileName, &s.FileType, &s.FileSize,
		&s.ChunkSize, &s.TotalChunks, &status, &s.ReplaceObjectID, &s.CreatedAt, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	parsed, ok := models.ParseSessionStatus(status)
	if !ok {
		return nil, fmt.Errorf("session %s has unknown status %q", sessionID, status)
	}
	s.Status = parsed
	return s, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, ownerID, sessionID string, from, to models.SessionStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: illegal status transition %s -> %s", common.ErrConflict, from, to)
	}
	query := `
		UPDATE upload_sessions SET status = $1
		WHERE upload_id = $2 AND user_id = $3 AND status = $4
	`
	res, err := r.db.ExecContext(ctx, query, string(to), sessionID, ownerID, string(from))
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: session %s is not %s", common.ErrConflict, sessionID, from)
	}
	return nil
}
