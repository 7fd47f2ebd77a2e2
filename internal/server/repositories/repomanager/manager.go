// Package repomanager vends repository implementations bound to a database
// handle and owns the transaction seam the services run finalize through.
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

// RepositoryManager binds repositories to a DBTX so the same repository
// code runs against the pooled connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error

	// Conn returns the non-transactional handle repositories use outside
	// WithTx. May be nil for in-memory implementations, which accept it.
	Conn() dbx.DBTX

	// WithTx runs fn atomically: every repository bound to the passed
	// handle commits or rolls back as one unit.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error

	Sessions(db dbx.DBTX) sessions.Repository
	Chunks(db dbx.DBTX) chunks.Repository
	Objects(db dbx.DBTX) objects.Repository
	Versions(db dbx.DBTX) versions.Repository
	Folders(db dbx.DBTX) folders.Repository

	Close() error
}
