package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/stormdrive/stormdrive/internal/blobstore"
	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/dbx"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// FinalizeRequest closes an upload session into an object version.
// EncryptionMeta is the client's key-wrap material, stored verbatim. The
// override fields, when set, replace the values declared at open.
type FinalizeRequest struct {
	OwnerID   string
	SessionID string

	EncryptionMeta []byte

	NameOverride   string
	TypeOverride   string
	FolderOverride *int64
}

// FinalizeResult identifies the object version a finalize produced.
type FinalizeResult struct {
	ObjectID      string
	VersionID     string
	VersionNumber int32
	IntegrityHash string
}

// Finalize assembles the manifest and lands the session, object and version
// writes as one atomic unit.
//
// The UPLOADING→FINALIZING transition is the concurrency gate: it is a
// conditional update, so of two concurrent finalize calls exactly one
// advances the row and the other gets a conflict. A crash mid-way rolls the
// transaction back to UPLOADING, leaving finalize safely retryable; chunk
// receipts are only read here, never written.
func (s *StorageService) Finalize(ctx context.Context, req *FinalizeRequest) (*FinalizeResult, error) {
	if err := s.policy.Allow(ctx, req.OwnerID, OpFinalize); err != nil {
		return nil, err
	}
	if req.NameOverride != "" {
		if err := ValidateFileName(req.NameOverride); err != nil {
			return nil, err
		}
	}

	var result *FinalizeResult
	err := s.manager.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		sessionsTx := s.manager.Sessions(tx)

		session, err := sessionsTx.Get(ctx, req.OwnerID, req.SessionID)
		if err != nil {
			return err
		}
		if session.Status != models.StatusUploading {
			return fmt.Errorf("%w: session %s is %s, cannot finalize", common.ErrConflict, session.ID, session.Status)
		}
		if session.Expired(s.now()) {
			return common.ErrExpired
		}
		if err := sessionsTx.UpdateStatus(ctx, req.OwnerID, session.ID, models.StatusUploading, models.StatusFinalizing); err != nil {
			return err
		}

		receipts, err := s.manager.Chunks(tx).ListOrdered(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("list chunk receipts: %w", err)
		}
		if err := checkCoverage(receipts, session.TotalChunks); err != nil {
			return err
		}

		integrity := integrityHash(receipts)

		name := session.FileName
		if req.NameOverride != "" {
			name = req.NameOverride
		}
		fileType := session.FileType
		if req.TypeOverride != "" {
			fileType = req.TypeOverride
		}
		folderID := session.FolderID
		if req.FolderOverride != nil {
			folderID = req.FolderOverride
		}
		if folderID != nil {
			if _, err := s.manager.Folders(tx).GetActive(ctx, req.OwnerID, *folderID); err != nil {
				return err
			}
		}

		now := s.now()
		versionID := s.newID()

		var obj *models.StoredObject
		versionNumber := int32(1)
		if session.ReplaceObjectID != nil {
			obj, err = s.manager.Objects(tx).GetActive(ctx, req.OwnerID, *session.ReplaceObjectID)
			if err != nil {
				return err
			}
			versionNumber = obj.VersionNumber + 1
		}
		var objectID string
		if obj != nil {
			objectID = obj.ID
		} else {
			objectID = s.newID()
		}

		manifestKey := blobstore.ManifestKey(req.OwnerID, objectID, versionID)
		manifest := buildManifest(session, receipts, integrity)
		if err := manifest.Validate(); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInternal, err)
		}
		body, err := json.Marshal(manifest)
		if err != nil {
			return fmt.Errorf("encode manifest: %w", err)
		}
		if err := s.store.Put(ctx, manifestKey, body); err != nil {
			return fmt.Errorf("persist manifest: %w", err)
		}

		if obj != nil {
			obj.Name = name
			obj.FolderID = folderID
			obj.FileType = fileType
			obj.FileSize = session.FileSize
			obj.ContentKind = models.ContentChunked
			obj.ContentLocator = manifestKey
			obj.IntegrityHash = integrity
			obj.EncryptionMeta = req.EncryptionMeta
			obj.VersionNumber = versionNumber
			obj.CurrentVersionID = versionID
			obj.UpdatedAt = now
			if err := s.manager.Objects(tx).Update(ctx, obj); err != nil {
				return fmt.Errorf("update object: %w", err)
			}
		} else {
			obj = &models.StoredObject{
				ID:               objectID,
				OwnerID:          req.OwnerID,
				Name:             name,
				FolderID:         folderID,
				FileType:         fileType,
				FileSize:         session.FileSize,
				ContentKind:      models.ContentChunked,
				ContentLocator:   manifestKey,
				IntegrityHash:    integrity,
				EncryptionMeta:   req.EncryptionMeta,
				VersionNumber:    versionNumber,
				CurrentVersionID: versionID,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.manager.Objects(tx).Create(ctx, obj); err != nil {
				return fmt.Errorf("create object: %w", err)
			}
		}

		version := &models.VersionRecord{
			ID:             versionID,
			ObjectID:       objectID,
			Number:         versionNumber,
			Name:           name,
			FileType:       fileType,
			FileSize:       session.FileSize,
			ContentKind:    models.ContentChunked,
			ContentLocator: manifestKey,
			IntegrityHash:  integrity,
			EncryptionMeta: req.EncryptionMeta,
			CreatedAt:      now,
		}
		if err := s.manager.Versions(tx).Create(ctx, version); err != nil {
			return fmt.Errorf("create version record: %w", err)
		}

		if err := sessionsTx.UpdateStatus(ctx, req.OwnerID, session.ID, models.StatusFinalizing, models.StatusComplete); err != nil {
			return err
		}

		result = &FinalizeResult{
			ObjectID:      objectID,
			VersionID:     versionID,
			VersionNumber: versionNumber,
			IntegrityHash: integrity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "upload finalized",
		"session_id", req.SessionID, "object_id", result.ObjectID,
		"version", result.VersionNumber, "integrity_hash", result.IntegrityHash)
	return result, nil
}

// checkCoverage requires the receipts to cover exactly 0..totalChunks-1.
// Receipts arrive sorted by index and the (session, index) uniqueness
// constraint rules out duplicates, so a single ordered walk finds any gap.
func checkCoverage(receipts []*models.ChunkReceipt, totalChunks int32) error {
	if int32(len(receipts)) != totalChunks {
		return fmt.Errorf("%w: have %d of %d chunks", common.ErrIncomplete, len(receipts), totalChunks)
	}
	for i, rc := range receipts {
		if rc.Index != int32(i) {
			return fmt.Errorf("%w: missing chunk %d", common.ErrIncomplete, i)
		}
	}
	return nil
}

// integrityHash chains the ordered commitment hex strings through SHA-256.
func integrityHash(receipts []*models.ChunkReceipt) string {
	h := sha256.New()
	for _, rc := range receipts {
		h.Write([]byte(rc.Commitment))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildManifest(session *models.UploadSession, receipts []*models.ChunkReceipt, integrity string) *models.ContentManifest {
	descriptors := make([]models.ChunkDescriptor, 0, len(receipts))
	for _, rc := range receipts {
		descriptors = append(descriptors, models.ChunkDescriptor{
			Index:      rc.Index,
			StorageKey: rc.StorageKey,
			Commitment: rc.Commitment,
			Size:       rc.Size,
		})
	}
	return &models.ContentManifest{
		SessionID:     session.ID,
		ChunkSize:     session.ChunkSize,
		TotalChunks:   session.TotalChunks,
		FileSize:      session.FileSize,
		FileType:      session.FileType,
		IntegrityHash: integrity,
		Chunks:        descriptors,
	}
}
