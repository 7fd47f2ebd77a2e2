package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/cryptox"
	"github.com/stormdrive/stormdrive/internal/frame"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// StreamRequest addresses content to retrieve. An empty VersionID means the
// object's current version. Verify controls the integrity recomputation;
// with it off, only the envelope's own authentication still applies.
type StreamRequest struct {
	OwnerID   string
	ObjectID  string
	VersionID string
	Verify    bool
}

// StreamHeader carries the descriptor fields a transport forwards to the
// client before any chunk bytes.
type StreamHeader struct {
	Name          string
	FileType      string
	FileSize      int64
	SessionID     string
	ChunkSize     int32
	TotalChunks   int32
	IntegrityHash string
	VersionNumber int32

	// EncryptionMeta is the client's key-wrap material, returned verbatim.
	EncryptionMeta []byte
}

// ChunkPayload is one still-client-encrypted chunk: the server envelope is
// removed, the inner layer never touched.
type ChunkPayload struct {
	Index      uint32
	Nonce      []byte
	Tag        []byte
	Ciphertext []byte
}

// ChunkStream yields chunk payloads in strict ascending index order. It is
// forward-only and single-pass; a caller that needs to retry must reopen
// from index 0. Once a chunk fails, the stream is dead and every further
// Next returns the same error.
type ChunkStream struct {
	svc      *StorageService
	manifest *models.ContentManifest
	verify   bool

	next int32
	err  error
}

// OpenStream resolves a version's manifest, optionally verifies its
// integrity hash, and returns the header plus a lazy chunk sequence.
// Nothing is read from the content store beyond the manifest until the
// first Next call, so a verify-failure here precedes any emitted bytes.
func (s *StorageService) OpenStream(ctx context.Context, req *StreamRequest) (*StreamHeader, *ChunkStream, error) {
	obj, err := s.manager.Objects(s.manager.Conn()).GetActive(ctx, req.OwnerID, req.ObjectID)
	if err != nil {
		return nil, nil, err
	}

	name := obj.Name
	kind := obj.ContentKind
	locator := obj.ContentLocator
	integrity := obj.IntegrityHash
	encryptionMeta := obj.EncryptionMeta
	versionNumber := obj.VersionNumber

	if req.VersionID != "" && req.VersionID != obj.CurrentVersionID {
		version, err := s.manager.Versions(s.manager.Conn()).Get(ctx, req.ObjectID, req.VersionID)
		if err != nil {
			return nil, nil, err
		}
		name = version.Name
		kind = version.ContentKind
		locator = version.ContentLocator
		integrity = version.IntegrityHash
		encryptionMeta = version.EncryptionMeta
		versionNumber = version.Number
	}

	if kind != models.ContentChunked {
		return nil, nil, fmt.Errorf("%w: content kind %q is not chunk-streamable", common.ErrInvalid, kind)
	}

	blob, err := s.store.Get(ctx, locator)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// The record points at it, so absence is data loss, not a miss.
			return nil, nil, fmt.Errorf("%w: manifest %s is missing from the content store", common.ErrCorruption, locator)
		}
		return nil, nil, fmt.Errorf("load manifest: %w", err)
	}

	manifest := &models.ContentManifest{}
	if err := json.Unmarshal(blob, manifest); err != nil {
		return nil, nil, fmt.Errorf("%w: manifest %s does not decode: %v", common.ErrCorruption, locator, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: manifest %s: %v", common.ErrCorruption, locator, err)
	}

	if req.Verify {
		recomputed := manifestIntegrity(manifest)
		if recomputed != integrity || manifest.IntegrityHash != integrity {
			return nil, nil, fmt.Errorf("%w: manifest integrity hash mismatch for %s", common.ErrCorruption, locator)
		}
	}

	header := &StreamHeader{
		Name:           name,
		FileType:       manifest.FileType,
		FileSize:       manifest.FileSize,
		SessionID:      manifest.SessionID,
		ChunkSize:      manifest.ChunkSize,
		TotalChunks:    manifest.TotalChunks,
		IntegrityHash:  integrity,
		VersionNumber:  versionNumber,
		EncryptionMeta: encryptionMeta,
	}
	stream := &ChunkStream{
		svc:      s,
		manifest: manifest,
		verify:   req.Verify,
	}
	return header, stream, nil
}

// manifestIntegrity recomputes the whole-content hash over the listed
// commitment hashes, mirroring what finalize computed over the receipts.
func manifestIntegrity(m *models.ContentManifest) string {
	receipts := make([]*models.ChunkReceipt, 0, len(m.Chunks))
	for _, c := range m.Chunks {
		receipts = append(receipts, &models.ChunkReceipt{Commitment: c.Commitment})
	}
	return integrityHash(receipts)
}

// Next returns the next chunk payload, io.EOF after the last one, or a
// terminal error. A missing storage key is corruption, distinct from the
// object-level not-found: the manifest promised the chunk exists.
func (st *ChunkStream) Next(ctx context.Context) (*ChunkPayload, error) {
	if st.err != nil {
		return nil, st.err
	}
	if st.next >= st.manifest.TotalChunks {
		return nil, io.EOF
	}

	desc := st.manifest.Chunks[st.next]

	payload, err := st.load(ctx, desc)
	if err != nil {
		st.err = err
		return nil, err
	}
	st.next++
	return payload, nil
}

func (st *ChunkStream) load(ctx context.Context, desc models.ChunkDescriptor) (*ChunkPayload, error) {
	blob, err := st.svc.store.Get(ctx, desc.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: chunk %d blob %s is missing from the content store", common.ErrCorruption, desc.Index, desc.StorageKey)
		}
		return nil, fmt.Errorf("load chunk %d: %w", desc.Index, err)
	}

	framed, err := st.svc.envelope.Unwrap(blob, []byte(cryptox.WrapAAD))
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", desc.Index, err)
	}
	chunk, err := frame.Decode(framed)
	if err != nil {
		return nil, fmt.Errorf("chunk %d: %w", desc.Index, err)
	}
	if chunk.Index != uint32(desc.Index) {
		return nil, fmt.Errorf("%w: chunk frame carries index %d, expected %d", common.ErrCorruption, chunk.Index, desc.Index)
	}

	if st.verify {
		m := st.manifest
		aad := bindingContext(m.SessionID, chunk.Index, m.ChunkSize, m.FileSize, m.FileType)
		if commitmentHash(aad, chunk.Nonce, chunk.Ciphertext, chunk.Tag) != desc.Commitment {
			return nil, fmt.Errorf("%w: chunk %d commitment mismatch", common.ErrCorruption, desc.Index)
		}
	}

	return &ChunkPayload{
		Index:      chunk.Index,
		Nonce:      chunk.Nonce,
		Tag:        chunk.Tag,
		Ciphertext: chunk.Ciphertext,
	}, nil
}
