package chunks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// pgUniqueViolation is the Postgres error code for a unique constraint hit.
const pgUniqueViolation = "23505"

// PostgresRepository implements receipt storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, sessionID string, index int32) (*models.ChunkReceipt, error) {
	query := `
		SELECT upload_id, chunk_index, size, commitment, storage_key, created_at
		FROM upload_chunks
		WHERE upload_id = $1 AND chunk_index = $2
	`
	rc := &models.ChunkReceipt{}
	err := r.db.QueryRowContext(ctx, query, sessionID, index).Scan(
		&rc.SessionID, &rc.Index, &rc.Size, &rc.Commitment, &rc.StorageKey, &rc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: chunk %d of session %s", common.ErrNotFound, index, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("select chunk receipt: %w", err)
	}
	return rc, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rc *models.ChunkReceipt) error {
	query := `
		INSERT INTO upload_chunks (upload_id, chunk_index, size, commitment, storage_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rc.SessionID, rc.Index, rc.Size, rc.Commitment, rc.StorageKey, rc.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: chunk %d of session %s already recorded", common.ErrConflict, rc.Index, rc.SessionID)
		}
		return fmt.Errorf("insert chunk receipt: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListOrdered(ctx context.Context, sessionID string) ([]*models.ChunkReceipt, error) {
	query := `
		SELECT upload_id, chunk_index, size, commitment, storage_key, created_at
		FROM upload_chunks
		WHERE upload_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select chunk receipts: %w", err)
	}
	defer rows.Close()

	var result []*models.ChunkReceipt
	for rows.Next() {
		rc := &models.ChunkReceipt{}
		if err := rows.Scan(&rc.SessionID, &rc.Index, &rc.Size, &rc.Commitment, &rc.StorageKey, &rc.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Indices(ctx context.Context, sessionID string) ([]int32, error) {
	query := `
		SELECT chunk_index FROM upload_chunks
		WHERE upload_id = $1
		ORDER BY chunk_index ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select chunk indices: %w", err)
	}
	defer rows.Close()

	var result []int32
	for rows.Next() {
		var idx int32
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		result = append(result, idx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
