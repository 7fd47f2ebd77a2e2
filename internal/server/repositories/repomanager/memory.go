package repomanager

import (
	"context"

	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/repositories/chunks"
	"github.com/stormdrive/stormdrive/internal/server/repositories/folders"
	"github.com/stormdrive/stormdrive/internal/server/repositories/objects"
	"github.com/stormdrive/stormdrive/internal/server/repositories/sessions"
	"github.com/stormdrive/stormdrive/internal/server/repositories/versions"
)

// InMemoryRepositoryManager holds singleton in-memory repositories. The
// DBTX arguments are accepted and ignored; WithTx runs fn directly, which
// keeps service code identical across backends. There is no rollback on
// failure; tests are the only place this runs.
type InMemoryRepositoryManager struct {
	SessionRepo *sessions.MemoryRepository
	ChunkRepo   *chunks.MemoryRepository
	ObjectRepo  *objects.MemoryRepository
	VersionRepo *versions.MemoryRepository
	FolderRepo  *folders.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		SessionRepo: sessions.NewMemoryRepository(),
		ChunkRepo:   chunks.NewMemoryRepository(),
		ObjectRepo:  objects.NewMemoryRepository(),
		VersionRepo: versions.NewMemoryRepository(),
		FolderRepo:  folders.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository { return m.SessionRepo }
func (m *InMemoryRepositoryManager) Chunks(db dbx.DBTX) chunks.Repository     { return m.ChunkRepo }
func (m *InMemoryRepositoryManager) Objects(db dbx.DBTX) objects.Repository   { return m.ObjectRepo }
func (m *InMemoryRepositoryManager) Versions(db dbx.DBTX) versions.Repository { return m.VersionRepo }
func (m *InMemoryRepositoryManager) Folders(db dbx.DBTX) folders.Repository   { return m.FolderRepo }

func (m *InMemoryRepositoryManager) Close() error { return nil }
