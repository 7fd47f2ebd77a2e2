package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/stormdrive/stormdrive/internal/blobstore"
	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/cryptox"
	"github.com/stormdrive/stormdrive/internal/frame"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// bindingPrefix is the fixed protocol tag opening every binding context.
const bindingPrefix = "SD:C1|v1|"

// PutOutcome distinguishes a first write from a safe retry.
type PutOutcome string

const (
	OutcomeStored    PutOutcome = "stored"
	OutcomeDuplicate PutOutcome = "duplicate-ok"
)

// PutChunkRequest carries one encrypted chunk as received from the client.
type PutChunkRequest struct {
	OwnerID   string
	SessionID string
	Index     int32

	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// bindingContext builds the deterministic byte string that binds a chunk's
// commitment to its session, position and the file's declared shape:
// prefix, session id, a separator, the index and chunk size as 4-byte
// big-endian integers, the file size as a decimal string, a separator, and
// the media type. Chunks from one upload context can never be replayed into
// another because every one of these fields feeds the commitment.
func bindingContext(sessionID string, index uint32, chunkSize int32, fileSize int64, fileType string) []byte {
	buf := make([]byte, 0, len(bindingPrefix)+len(sessionID)+32+len(fileType))
	buf = append(buf, bindingPrefix...)
	buf = append(buf, sessionID...)
	buf = append(buf, '|')
	buf = binary.BigEndian.AppendUint32(buf, index)
	buf = binary.BigEndian.AppendUint32(buf, uint32(chunkSize))
	buf = append(buf, strconv.FormatInt(fileSize, 10)...)
	buf = append(buf, '|')
	buf = append(buf, fileType...)
	return buf
}

// commitmentHash is the hex SHA-256 over binding context, nonce, ciphertext
// and tag, in that order.
func commitmentHash(aad, nonce, ciphertext, tag []byte) string {
	h := sha256.New()
	h.Write(aad)
	h.Write(nonce)
	h.Write(ciphertext)
	h.Write(tag)
	return hex.EncodeToString(h.Sum(nil))
}

// PutChunk validates, binds, hashes, envelopes and persists one chunk.
//
// A repeat put at an index already bound to the same bytes returns
// OutcomeDuplicate and changes nothing; the same index bound to different
// bytes is a conflict and the stored bytes stay untouched. Two concurrent
// writers at the same index are serialized by the receipt store's
// uniqueness constraint: the loser re-reads the winner's receipt and takes
// the same duplicate-or-conflict decision.
func (s *StorageService) PutChunk(ctx context.Context, req *PutChunkRequest) (PutOutcome, error) {
	session, err := s.manager.Sessions(s.manager.Conn()).Get(ctx, req.OwnerID, req.SessionID)
	if err != nil {
		return "", err
	}
	if session.Status != models.StatusUploading {
		return "", fmt.Errorf("%w: session %s is %s, not accepting chunks", common.ErrConflict, session.ID, session.Status)
	}
	if session.Expired(s.now()) {
		return "", common.ErrExpired
	}
	if req.Index < 0 || req.Index >= session.TotalChunks {
		return "", fmt.Errorf("%w: chunk index %d outside [0,%d)", common.ErrInvalid, req.Index, session.TotalChunks)
	}
	if len(req.Ciphertext) == 0 || int64(len(req.Ciphertext)) > int64(session.ChunkSize) {
		return "", fmt.Errorf("%w: ciphertext length %d outside (0,%d]", common.ErrInvalid, len(req.Ciphertext), session.ChunkSize)
	}
	if len(req.Tag) != 16 && len(req.Tag) != 32 {
		return "", fmt.Errorf("%w: tag length %d, want 16 or 32", common.ErrInvalid, len(req.Tag))
	}
	if len(req.Nonce) == 0 {
		return "", fmt.Errorf("%w: empty nonce", common.ErrInvalid)
	}

	index := uint32(req.Index)
	aad := bindingContext(session.ID, index, session.ChunkSize, session.FileSize, session.FileType)
	commitment := commitmentHash(aad, req.Nonce, req.Ciphertext, req.Tag)

	repo := s.manager.Chunks(s.manager.Conn())
	existing, err := repo.Get(ctx, session.ID, req.Index)
	if err == nil {
		return s.compareReceipt(existing, commitment)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("read chunk receipt: %w", err)
	}

	framed, err := frame.Encode(index, req.Nonce, req.Tag, req.Ciphertext)
	if err != nil {
		return "", err
	}
	enveloped, err := s.envelope.Wrap(framed, []byte(cryptox.WrapAAD))
	if err != nil {
		return "", fmt.Errorf("wrap chunk: %w", err)
	}

	key := blobstore.ChunkKey(session.OwnerID, session.ID, index, commitment)
	if err := s.store.Put(ctx, key, enveloped); err != nil {
		return "", fmt.Errorf("persist chunk: %w", err)
	}

	receipt := &models.ChunkReceipt{
		SessionID:  session.ID,
		Index:      req.Index,
		Size:       int32(len(req.Ciphertext)),
		Commitment: commitment,
		StorageKey: key,
		CreatedAt:  s.now(),
	}
	if err := repo.Insert(ctx, receipt); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Lost the insert race; the winner's receipt decides.
			winner, rerr := repo.Get(ctx, session.ID, req.Index)
			if rerr != nil {
				return "", fmt.Errorf("re-read chunk receipt after conflict: %w", rerr)
			}
			return s.compareReceipt(winner, commitment)
		}
		return "", fmt.Errorf("record chunk receipt: %w", err)
	}

	s.log.Debug(ctx, "chunk stored", "session_id", session.ID, "index", req.Index, "size", len(req.Ciphertext))
	return OutcomeStored, nil
}

// compareReceipt decides the repeat-put outcome against an existing
// receipt: same commitment means a safe retry, anything else means the
// index is already bound to different bytes.
func (s *StorageService) compareReceipt(existing *models.ChunkReceipt, commitment string) (PutOutcome, error) {
	if existing.Commitment == commitment {
		return OutcomeDuplicate, nil
	}
	return "", fmt.Errorf("%w: chunk %d already bound to different content", common.ErrConflict, existing.Index)
}
