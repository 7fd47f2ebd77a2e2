// Package services contains server-side business logic. This file implements
// the upload coordinator half of StorageService: session open, status,
// and abort. Chunk ingestion, finalize and retrieval live in their own
// files of this package.
package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/stormdrive/stormdrive/internal/blobstore"
	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/cryptox"
	"github.com/stormdrive/stormdrive/internal/logging"
	"github.com/stormdrive/stormdrive/internal/server/config"
	"github.com/stormdrive/stormdrive/internal/server/models"
	"github.com/stormdrive/stormdrive/internal/server/repositories/repomanager"
)

// bitmapThreshold is the chunk count above which Status switches from an
// explicit index list to a bitmap, bounding response size for huge files.
const bitmapThreshold = 5000

const defaultFileType = "application/octet-stream"

// StorageService implements the chunked ingestion, manifest and retrieval
// engine on top of a repository manager and a content store.
type StorageService struct {
	manager  repomanager.RepositoryManager
	store    blobstore.Store
	envelope *cryptox.Envelope
	log      logging.Logger
	policy   AttemptPolicy

	chunkSizeMin     int32
	chunkSizeMax     int32
	chunkSizeDefault int32
	sessionTTL       time.Duration

	// seams for tests
	now   func() time.Time
	newID func() string
}

// NewStorageService constructs a StorageService from its collaborators and
// the server config. The attempt policy defaults to allow-all; inject a
// real one with SetAttemptPolicy.
func NewStorageService(m repomanager.RepositoryManager, store blobstore.Store, envelope *cryptox.Envelope, cfg *config.Config, log logging.Logger) *StorageService {
	return &StorageService{
		manager:          m,
		store:            store,
		envelope:         envelope,
		log:              log.With("component", "storage"),
		policy:           NewAllowAllPolicy(),
		chunkSizeMin:     cfg.ChunkSizeMin,
		chunkSizeMax:     cfg.ChunkSizeMax,
		chunkSizeDefault: cfg.ChunkSizeDefault,
		sessionTTL:       cfg.SessionTTL,
		now:              time.Now,
		newID:            func() string { return uuid.NewString() },
	}
}

// SetAttemptPolicy replaces the policy consulted before open and finalize.
func (s *StorageService) SetAttemptPolicy(p AttemptPolicy) {
	if p != nil {
		s.policy = p
	}
}

// OpenRequest carries the declared shape of an upload.
type OpenRequest struct {
	OwnerID  string
	FileName string
	FileType string
	FileSize int64
	FolderID *int64

	// ChunkSize is the requested chunk size; 0 means use the configured
	// default. The value is clamped into the configured band either way.
	ChunkSize int32

	// ReplaceObjectID, when set, marks this upload as a new version of an
	// existing object rather than a new object.
	ReplaceObjectID *string
}

// Open creates an upload session. The total chunk count is fixed here and
// never recomputed: ceil(size/chunkSize) with a floor of 1 so even a
// zero-byte file requires exactly one chunk.
func (s *StorageService) Open(ctx context.Context, req *OpenRequest) (*models.UploadSession, error) {
	if err := s.policy.Allow(ctx, req.OwnerID, OpOpen); err != nil {
		return nil, err
	}
	if err := ValidateFileName(req.FileName); err != nil {
		return nil, err
	}
	if req.FileSize < 0 {
		return nil, fmt.Errorf("%w: negative file size", common.ErrInvalid)
	}

	fileType := req.FileType
	if fileType == "" {
		fileType = defaultFileType
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.chunkSizeDefault
	}
	if chunkSize < s.chunkSizeMin {
		chunkSize = s.chunkSizeMin
	}
	if chunkSize > s.chunkSizeMax {
		chunkSize = s.chunkSizeMax
	}

	if req.FolderID != nil {
		if _, err := s.manager.Folders(s.manager.Conn()).GetActive(ctx, req.OwnerID, *req.FolderID); err != nil {
			return nil, err
		}
	}
	if req.ReplaceObjectID != nil {
		if _, err := s.manager.Objects(s.manager.Conn()).GetActive(ctx, req.OwnerID, *req.ReplaceObjectID); err != nil {
			return nil, err
		}
	}

	totalChunks := int32(1)
	if req.FileSize > 0 {
		n := (req.FileSize + int64(chunkSize) - 1) / int64(chunkSize)
		if n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: file size requires %d chunks of %d bytes, above the limit of %d",
				common.ErrInvalid, n, chunkSize, math.MaxInt32)
		}
		totalChunks = int32(n)
	}

	now := s.now()
	session := &models.UploadSession{
		ID:              s.newID(),
		OwnerID:         req.OwnerID,
		FolderID:        req.FolderID,
		FileName:        req.FileName,
		FileType:        fileType,
		FileSize:        req.FileSize,
		ChunkSize:       chunkSize,
		TotalChunks:     totalChunks,
		Status:          models.StatusUploading,
		ReplaceObjectID: req.ReplaceObjectID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.sessionTTL),
	}
	if err := s.manager.Sessions(s.manager.Conn()).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info(ctx, "upload session opened",
		"session_id", session.ID, "owner_id", session.OwnerID,
		"file_size", session.FileSize, "chunk_size", session.ChunkSize,
		"total_chunks", session.TotalChunks)
	return session, nil
}

// StatusReport is the compact progress view of a session. Exactly one of
// ReceivedIndices and ReceivedBitmap is populated: the list below the
// bitmap threshold, the bitmap above it.
type StatusReport struct {
	Status        models.SessionStatus
	ChunkSize     int32
	TotalChunks   int32
	ReceivedCount int32

	ReceivedIndices []int32
	// ReceivedBitmap is base64: bit i lives at byte i/8, mask 1<<(i%8).
	ReceivedBitmap string
}

// Status reports session progress. It never rejects an expired session;
// callers that just got a conflict need this to see what is missing, so an
// expired-but-still-UPLOADING row is reported with the EXPIRED status
// instead of an error.
func (s *StorageService) Status(ctx context.Context, ownerID, sessionID string) (*StatusReport, error) {
	session, err := s.manager.Sessions(s.manager.Conn()).Get(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	indices, err := s.manager.Chunks(s.manager.Conn()).Indices(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chunk indices: %w", err)
	}

	status := session.Status
	if (status == models.StatusUploading || status == models.StatusFinalizing) && session.Expired(s.now()) {
		status = models.StatusExpired
	}

	report := &StatusReport{
		Status:        status,
		ChunkSize:     session.ChunkSize,
		TotalChunks:   session.TotalChunks,
		ReceivedCount: int32(len(indices)),
	}
	if session.TotalChunks > bitmapThreshold {
		bitmap := make([]byte, (int(session.TotalChunks)+7)/8)
		for _, idx := range indices {
			bitmap[idx/8] |= 1 << (idx % 8)
		}
		report.ReceivedBitmap = base64.StdEncoding.EncodeToString(bitmap)
	} else {
		report.ReceivedIndices = indices
	}
	return report, nil
}

// Abort marks a session EXPIRED. Persisted chunks are left for the
// out-of-band sweeper; nothing is reclaimed synchronously. Aborting an
// already-expired session is a no-op; aborting a completed one is a
// conflict.
func (s *StorageService) Abort(ctx context.Context, ownerID, sessionID string) error {
	repo := s.manager.Sessions(s.manager.Conn())
	session, err := repo.Get(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case models.StatusExpired:
		return nil
	case models.StatusComplete:
		return fmt.Errorf("%w: session %s already completed", common.ErrConflict, sessionID)
	}
	if err := repo.UpdateStatus(ctx, ownerID, sessionID, session.Status, models.StatusExpired); err != nil {
		return err
	}
	s.log.Info(ctx, "upload session aborted", "session_id", sessionID, "owner_id", ownerID)
	return nil
}
