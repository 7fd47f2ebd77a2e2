package services

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/cryptox"
	"github.com/stormdrive/stormdrive/internal/frame"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

func TestOpenStream_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	result, sessionID := uploadFile(t, svc, "small.bin", []byte("0123456789"), 4, nil)

	header, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "small.bin", header.Name)
	assert.Equal(t, sessionID, header.SessionID)
	assert.Equal(t, int32(4), header.ChunkSize)
	assert.Equal(t, int32(3), header.TotalChunks)
	assert.Equal(t, int64(10), header.FileSize)
	assert.Equal(t, result.IntegrityHash, header.IntegrityHash)
	assert.Equal(t, int32(1), header.VersionNumber)
	assert.NotEmpty(t, header.EncryptionMeta)

	want := [][]byte{[]byte("0123"), []byte("4567"), []byte("89")}
	for i, w := range want {
		payload, err := stream.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), payload.Index)
		assert.Equal(t, w, payload.Ciphertext)
		assert.Equal(t, chunkNonce(int32(i)), payload.Nonce)
		assert.Equal(t, chunkTag(), payload.Tag)
	}

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenStream_UnknownObject(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, _, err := svc.OpenStream(context.Background(), &StreamRequest{
		OwnerID: testOwner, ObjectID: "nope",
	})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOpenStream_PriorVersionByID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, _ := uploadFile(t, svc, "doc.txt", []byte("old!"), 4, nil)
	_, _ = uploadFile(t, svc, "doc.txt", []byte("new content"), 4, &first.ObjectID)

	// current version streams the new bytes
	header, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: first.ObjectID, Verify: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(2), header.VersionNumber)
	payload, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("new "), payload.Ciphertext)

	// the old version stays retrievable by id
	header, stream, err = svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: first.ObjectID, VersionID: first.VersionID, Verify: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), header.VersionNumber)
	assert.Equal(t, first.IntegrityHash, header.IntegrityHash)
	payload, err = stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("old!"), payload.Ciphertext)
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenStream_MissingManifestIsCorruption(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	result, _ := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)
	obj, err := m.ObjectRepo.GetActive(ctx, testOwner, result.ObjectID)
	require.NoError(t, err)

	store.Delete(obj.ContentLocator)

	_, _, err = svc.OpenStream(ctx, &StreamRequest{OwnerID: testOwner, ObjectID: result.ObjectID})
	assert.ErrorIs(t, err, common.ErrCorruption)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestOpenStream_TamperedManifestDetectedOnlyWithVerify(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	result, _ := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)
	obj, err := m.ObjectRepo.GetActive(ctx, testOwner, result.ObjectID)
	require.NoError(t, err)

	// swap in a manifest whose first commitment differs
	body, err := store.Get(ctx, obj.ContentLocator)
	require.NoError(t, err)
	tampered := make([]byte, len(body))
	copy(tampered, body)
	// flip a hex digit inside the first commitment value
	idx := indexOfCommitment(t, tampered)
	if tampered[idx] == '0' {
		tampered[idx] = '1'
	} else {
		tampered[idx] = '0'
	}
	store.Delete(obj.ContentLocator)
	require.NoError(t, store.Put(ctx, obj.ContentLocator, tampered))

	_, _, err = svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: true,
	})
	assert.ErrorIs(t, err, common.ErrCorruption)

	// with verify off the manifest is taken at face value; the stream then
	// dies at the first chunk because its recorded key no longer matches
	// any stored blob or its commitment check is skipped entirely
	_, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: false,
	})
	require.NoError(t, err)
	require.NotNil(t, stream)
}

func TestStream_BitFlippedBlobFailsEnvelope(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	result, sessionID := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)

	receipt, err := m.ChunkRepo.Get(ctx, sessionID, 1)
	require.NoError(t, err)
	require.True(t, store.Corrupt(receipt.StorageKey, 20))

	// the envelope's own authentication catches raw bit flips even with
	// verify off
	_, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: false,
	})
	require.NoError(t, err)

	_, err = stream.Next(ctx) // chunk 0 intact
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, common.ErrCorruption)

	// terminal: the stream stays dead
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, common.ErrCorruption)
}

func TestStream_SubstitutedChunkDetectedOnlyWithVerify(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	result, sessionID := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)

	// Forge a validly-enveloped replacement for chunk 1 carrying different
	// inner bytes. The envelope authenticates, so only the commitment check
	// can tell it apart from the original.
	receipt, err := m.ChunkRepo.Get(ctx, sessionID, 1)
	require.NoError(t, err)
	framed, err := frame.Encode(1, chunkNonce(1), chunkTag(), []byte("EVIL"))
	require.NoError(t, err)
	forged, err := forgeEnvelope(framed)
	require.NoError(t, err)
	store.Delete(receipt.StorageKey)
	require.NoError(t, store.Put(ctx, receipt.StorageKey, forged))

	// verify on: corruption at chunk 1
	_, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: true,
	})
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, common.ErrCorruption)

	// verify off: the substitution sails through, explicitly
	_, stream, err = svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: false,
	})
	require.NoError(t, err)
	_, err = stream.Next(ctx)
	require.NoError(t, err)
	payload, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("EVIL"), payload.Ciphertext)
}

func TestStream_MissingChunkIsCorruption(t *testing.T) {
	svc, m, store := newTestService(t)
	ctx := context.Background()

	result, sessionID := uploadFile(t, svc, "f.bin", []byte("0123456789"), 4, nil)

	receipt, err := m.ChunkRepo.Get(ctx, sessionID, 2)
	require.NoError(t, err)
	store.Delete(receipt.StorageKey)

	_, stream, err := svc.OpenStream(ctx, &StreamRequest{
		OwnerID: testOwner, ObjectID: result.ObjectID, Verify: true,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = stream.Next(ctx)
		require.NoError(t, err)
	}
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, common.ErrCorruption)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestStream_BlobKindNotStreamable(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := context.Background()

	result, _ := uploadFile(t, svc, "f.bin", []byte("0123"), 4, nil)

	obj, err := m.ObjectRepo.GetActive(ctx, testOwner, result.ObjectID)
	require.NoError(t, err)
	obj.ContentKind = models.ContentBlob
	require.NoError(t, m.ObjectRepo.Update(ctx, obj))

	_, _, err = svc.OpenStream(ctx, &StreamRequest{OwnerID: testOwner, ObjectID: result.ObjectID})
	assert.ErrorIs(t, err, common.ErrInvalid)
}

// forgeEnvelope wraps bytes with the same test master key the service uses.
func forgeEnvelope(plaintext []byte) ([]byte, error) {
	env, err := cryptox.NewEnvelope(testMasterKey())
	if err != nil {
		return nil, err
	}
	return env.Wrap(plaintext, []byte(cryptox.WrapAAD))
}

// indexOfCommitment finds the first byte of the first "h" field's hex value
// in a serialized manifest.
func indexOfCommitment(t *testing.T, body []byte) int {
	t.Helper()
	marker := []byte(`"h":"`)
	i := bytes.Index(body, marker)
	require.GreaterOrEqual(t, i, 0, "no commitment field in manifest body")
	return i + len(marker)
}
