// Package server initializes and runs the main application server: it wires
// the repository manager, the content store backend, the chunk envelope and
// the HTTP API together, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/stormdrive/stormdrive/internal/blobstore"
	"github.com/stormdrive/stormdrive/internal/cryptox"
	"github.com/stormdrive/stormdrive/internal/logging"
	"github.com/stormdrive/stormdrive/internal/server/config"
	"github.com/stormdrive/stormdrive/internal/server/httpapi"
	"github.com/stormdrive/stormdrive/internal/server/repositories/repomanager"
	"github.com/stormdrive/stormdrive/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	manager repomanager.RepositoryManager
	store   blobstore.Store
	api     *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// a bad storage key must stop the server before it accepts anything
	envelope, err := cryptox.NewEnvelope(cfg.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("storage key: %w", err)
	}

	manager, err := repomanager.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := manager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := newContentStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("content store init error: %w", err)
	}

	svc := services.NewStorageService(manager, store, envelope, cfg, logger)
	api := httpapi.New(svc, []byte(cfg.SecretKey), logger)

	return &App{
		config:  cfg,
		logger:  logger,
		manager: manager,
		store:   store,
		api:     api,
	}, nil
}

// newContentStore picks the backend named in the config.
func newContentStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.StorageBackend {
	case "fs":
		return blobstore.NewFSStore(cfg.StorageDir)
	case "badger":
		return blobstore.NewBadgerStore(cfg.StorageDir)
	case "s3":
		return blobstore.NewS3Store(ctx, blobstore.S3Options{
			User:         cfg.S3RootUser,
			Password:     cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr, "backend", app.config.StorageBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.api.Run(ctx, app.config.EndpointAddr); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "closing content store", "error", err)
	}
	if err := app.manager.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
