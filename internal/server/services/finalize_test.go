package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormdrive/stormdrive/internal/blobstore"
	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

func TestFinalize_SmallFile(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "small.bin", FileSize: 10, ChunkSize: 4,
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), session.TotalChunks)

	putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))
	putTestChunk(t, svc, session.ID, 1, []byte("bbbb"))
	putTestChunk(t, svc, session.ID, 2, []byte("cc"))

	meta := []byte(`{"wrapped_key":"abc"}`)
	result, err := svc.Finalize(ctx, &FinalizeRequest{
		OwnerID: testOwner, SessionID: session.ID, EncryptionMeta: meta,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), result.VersionNumber)

	// integrity hash is the SHA-256 chain of the ordered commitments
	receipts, err := m.ChunkRepo.ListOrdered(ctx, session.ID)
	require.NoError(t, err)
	h := sha256.New()
	for _, rc := range receipts {
		h.Write([]byte(rc.Commitment))
	}
	assert.Equal(t, hex.EncodeToString(h.Sum(nil)), result.IntegrityHash)

	// session is closed
	report, err := svc.Status(ctx, testOwner, session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusComplete, report.Status)

	// object record points at the manifest
	obj, err := m.ObjectRepo.GetActive(ctx, testOwner, result.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, models.ContentChunked, obj.ContentKind)
	assert.Equal(t, result.IntegrityHash, obj.IntegrityHash)
	assert.Equal(t, meta, obj.EncryptionMeta)
	assert.Equal(t, result.VersionID, obj.CurrentVersionID)

	// the persisted manifest decodes and validates
	wantKey := blobstore.ManifestKey(testOwner, result.ObjectID, result.VersionID)
	assert.Equal(t, wantKey, obj.ContentLocator)
	body, err := store.Get(ctx, wantKey)
	require.NoError(t, err)
	manifest := &models.ContentManifest{}
	require.NoError(t, json.Unmarshal(body, manifest))
	require.NoError(t, manifest.Validate())
	assert.Equal(t, session.ID, manifest.SessionID)
	assert.Equal(t, int32(3), manifest.TotalChunks)
	assert.Equal(t, result.IntegrityHash, manifest.IntegrityHash)

	// version record matches
	version, err := m.VersionRepo.Get(ctx, result.ObjectID, result.VersionID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), version.Number)
	assert.Equal(t, wantKey, version.ContentLocator)
}

func TestFinalize_IncompleteUpload(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "f.bin", FileSize: 10, ChunkSize: 4,
	})
	require.NoError(t, err)

	putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))
	putTestChunk(t, svc, session.ID, 2, []byte("cc"))

	_, err = svc.Finalize(ctx, &FinalizeRequest{OwnerID: testOwner, SessionID: session.ID})
	assert.ErrorIs(t, err, common.ErrIncomplete)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestFinalize_AnyMissingReceiptFails(t *testing.T) {
	for missing := int32(0); missing < 3; missing++ {
		svc, m, _ := newTestService(t)
		ctx := context.Background()

		session, err := svc.Open(ctx, &OpenRequest{
			OwnerID: testOwner, FileName: "f.bin", FileSize: 10, ChunkSize: 4,
		})
		require.NoError(t, err)
		putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))
		putTestChunk(t, svc, session.ID, 1, []byte("bbbb"))
		putTestChunk(t, svc, session.ID, 2, []byte("cc"))

		m.ChunkRepo.Remove(session.ID, missing)

		_, err = svc.Finalize(ctx, &FinalizeRequest{OwnerID: testOwner, SessionID: session.ID})
		assert.ErrorIs(t, err, common.ErrIncomplete, "missing index %d", missing)
	}
}

func TestFinalize_ZeroByteFile(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "empty.bin", FileSize: 0, ChunkSize: 4,
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), session.TotalChunks)

	// no chunkless finalize path
	_, err = svc.Finalize(ctx, &FinalizeRequest{OwnerID: testOwner, SessionID: session.ID})
	assert.ErrorIs(t, err, common.ErrIncomplete)
}

func TestFinalize_DoubleFinalizeConflicts(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, sessionID := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)

	_, err := svc.Finalize(context.Background(), &FinalizeRequest{
		OwnerID: testOwner, SessionID: sessionID,
	})
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestFinalize_Replace(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	first, _ := uploadFile(t, svc, "doc.txt", []byte("version one"), 4, nil)
	require.Equal(t, int32(1), first.VersionNumber)

	second, _ := uploadFile(t, svc, "doc.txt", []byte("version two, longer"), 4, &first.ObjectID)
	assert.Equal(t, first.ObjectID, second.ObjectID)
	assert.Equal(t, int32(2), second.VersionNumber)
	assert.NotEqual(t, first.VersionID, second.VersionID)

	obj, err := m.ObjectRepo.GetActive(ctx, testOwner, first.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, int32(2), obj.VersionNumber)
	assert.Equal(t, second.VersionID, obj.CurrentVersionID)

	// the prior version's manifest is still independently retrievable
	oldVersion, err := m.VersionRepo.Get(ctx, first.ObjectID, first.VersionID)
	require.NoError(t, err)
	body, err := store.Get(ctx, oldVersion.ContentLocator)
	require.NoError(t, err)
	oldManifest := &models.ContentManifest{}
	require.NoError(t, json.Unmarshal(body, oldManifest))
	assert.Equal(t, first.IntegrityHash, oldManifest.IntegrityHash)
}

func TestFinalize_NameOverrideValidated(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "f.bin", FileSize: 4, ChunkSize: 4,
	})
	require.NoError(t, err)
	putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))

	_, err = svc.Finalize(ctx, &FinalizeRequest{
		OwnerID: testOwner, SessionID: session.ID, NameOverride: "../evil",
	})
	assert.ErrorIs(t, err, common.ErrInvalid)
}

func TestFinalize_ExpiredSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "f.bin", FileSize: 4, ChunkSize: 4,
	})
	require.NoError(t, err)
	putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))

	svc.now = func() time.Time { return session.ExpiresAt.Add(time.Minute) }

	_, err = svc.Finalize(ctx, &FinalizeRequest{OwnerID: testOwner, SessionID: session.ID})
	assert.ErrorIs(t, err, common.ErrExpired)
}

func TestFinalize_UnknownSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Finalize(context.Background(), &FinalizeRequest{
		OwnerID: testOwner, SessionID: "nope",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFinalize_PolicyDenied(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	session, err := svc.Open(ctx, &OpenRequest{
		OwnerID: testOwner, FileName: "f.bin", FileSize: 4, ChunkSize: 4,
	})
	require.NoError(t, err)
	putTestChunk(t, svc, session.ID, 0, []byte("aaaa"))

	svc.SetAttemptPolicy(denyPolicy{})
	_, err = svc.Finalize(ctx, &FinalizeRequest{OwnerID: testOwner, SessionID: session.ID})
	assert.ErrorIs(t, err, common.ErrConflict)
}
