package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/migrations"
	"github.com/stormdrive/stormdrive/internal/server/repositories/chunks"
	"github.com/stormdrive/stormdrive/internal/server/repositories/folders"
	"github.com/stormdrive/stormdrive/internal/server/repositories/objects"
	"github.com/stormdrive/stormdrive/internal/server/repositories/sessions"
	"github.com/stormdrive/stormdrive/internal/server/repositories/versions"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories and runs
// schema migrations with goose from the embedded FS.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// NewPostgresRepositoryManager opens the pgx stdlib pool for the DSN.
func NewPostgresRepositoryManager(dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return &PostgresRepositoryManager{db: db}, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, m.db, ".")
}

func (m *PostgresRepositoryManager) Conn() dbx.DBTX {
	return m.db
}

func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, m.db, nil, fn)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Chunks(db dbx.DBTX) chunks.Repository {
	return chunks.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Objects(db dbx.DBTX) objects.Repository {
	return objects.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Versions(db dbx.DBTX) versions.Repository {
	return versions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Folders(db dbx.DBTX) folders.Repository {
	return folders.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}
