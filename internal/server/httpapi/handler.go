package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/frame"
	"github.com/stormdrive/stormdrive/internal/server/services"
)

// maxChunkBody caps a chunk upload's request body. The services layer
// enforces the session's real chunk size; this is just transport hygiene.
const maxChunkBody = 64 << 20

type openRequest struct {
	FileName        string  `json:"file_name"`
	FileType        string  `json:"file_type"`
	FileSize        int64   `json:"file_size"`
	FolderID        *int64  `json:"folder_id"`
	ChunkSize       int32   `json:"chunk_size"`
	ReplaceObjectID *string `json:"replace_file_id"`
}

type openResponse struct {
	UploadID    string `json:"upload_id"`
	ChunkSize   int32  `json:"chunk_size"`
	TotalChunks int32  `json:"total_chunks"`
	ExpiresAt   string `json:"expires_at"`
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrInvalid, err))
		return
	}

	session, err := s.svc.Open(r.Context(), &services.OpenRequest{
		OwnerID:         ownerID(r),
		FileName:        req.FileName,
		FileType:        req.FileType,
		FileSize:        req.FileSize,
		FolderID:        req.FolderID,
		ChunkSize:       req.ChunkSize,
		ReplaceObjectID: req.ReplaceObjectID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, openResponse{
		UploadID:    session.ID,
		ChunkSize:   session.ChunkSize,
		TotalChunks: session.TotalChunks,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// handlePutChunk reads the client's chunk ciphertext from the body and the
// AEAD nonce and tag from base64 headers.
func (s *Server) handlePutChunk(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseInt(r.PathValue("idx"), 10, 32)
	if err != nil {
		writeError(w, fmt.Errorf("%w: chunk index must be an integer", common.ErrInvalid))
		return
	}

	nonce, err := base64.StdEncoding.DecodeString(r.Header.Get("X-Stormdrive-Nonce"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: nonce header is not valid base64", common.ErrInvalid))
		return
	}
	tag, err := base64.StdEncoding.DecodeString(r.Header.Get("X-Stormdrive-Tag"))
	if err != nil {
		writeError(w, fmt.Errorf("%w: tag header is not valid base64", common.ErrInvalid))
		return
	}

	ciphertext, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBody))
	if err != nil {
		writeError(w, fmt.Errorf("%w: reading chunk body: %v", common.ErrInvalid, err))
		return
	}

	outcome, err := s.svc.PutChunk(r.Context(), &services.PutChunkRequest{
		OwnerID:    ownerID(r),
		SessionID:  r.PathValue("id"),
		Index:      int32(index),
		Ciphertext: ciphertext,
		Nonce:      nonce,
		Tag:        tag,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"index":   index,
		"outcome": string(outcome),
	})
}

type statusResponse struct {
	Status          string  `json:"status"`
	ChunkSize       int32   `json:"chunk_size"`
	TotalChunks     int32   `json:"total_chunks"`
	ReceivedCount   int32   `json:"received_count"`
	ReceivedIndices []int32 `json:"received_indices,omitempty"`
	ReceivedBitmap  string  `json:"received_bitmap,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Status(r.Context(), ownerID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Status:          string(report.Status),
		ChunkSize:       report.ChunkSize,
		TotalChunks:     report.TotalChunks,
		ReceivedCount:   report.ReceivedCount,
		ReceivedIndices: report.ReceivedIndices,
		ReceivedBitmap:  report.ReceivedBitmap,
	})
}

type finalizeRequest struct {
	EncryptionMeta json.RawMessage `json:"encryption_meta"`
	Name           string          `json:"name"`
	FileType       string          `json:"file_type"`
	FolderID       *int64          `json:"folder_id"`
}

type finalizeResponse struct {
	FileID        string `json:"file_id"`
	VersionID     string `json:"version_id"`
	Version       int32  `json:"version"`
	IntegrityHash string `json:"integrity_hash"`
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %v", common.ErrInvalid, err))
		return
	}

	result, err := s.svc.Finalize(r.Context(), &services.FinalizeRequest{
		OwnerID:        ownerID(r),
		SessionID:      r.PathValue("id"),
		EncryptionMeta: req.EncryptionMeta,
		NameOverride:   req.Name,
		TypeOverride:   req.FileType,
		FolderOverride: req.FolderID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, finalizeResponse{
		FileID:        result.ObjectID,
		VersionID:     result.VersionID,
		Version:       result.VersionNumber,
		IntegrityHash: result.IntegrityHash,
	})
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Abort(r.Context(), ownerID(r), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContent streams the still-client-encrypted chunks. Each chunk goes
// on the wire in the same binary frame layout used at upload time, back to
// back; headers describing the whole file precede the first frame. A
// corruption discovered mid-stream can only cut the connection, which is
// why verification of the manifest happens before any byte is written.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	verify := true
	if v := r.URL.Query().Get("verify"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, fmt.Errorf("%w: verify must be a boolean", common.ErrInvalid))
			return
		}
		verify = parsed
	}

	header, stream, err := s.svc.OpenStream(r.Context(), &services.StreamRequest{
		OwnerID:   ownerID(r),
		ObjectID:  r.PathValue("id"),
		VersionID: r.URL.Query().Get("version"),
		Verify:    verify,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("X-Stormdrive-Upload-Id", header.SessionID)
	h.Set("X-Stormdrive-Chunk-Size", strconv.FormatInt(int64(header.ChunkSize), 10))
	h.Set("X-Stormdrive-Total-Chunks", strconv.FormatInt(int64(header.TotalChunks), 10))
	h.Set("X-Stormdrive-File-Size", strconv.FormatInt(header.FileSize, 10))
	h.Set("X-Stormdrive-File-Type", header.FileType)
	h.Set("X-Stormdrive-Integrity-Hash", header.IntegrityHash)
	h.Set("X-Stormdrive-Version", strconv.FormatInt(int64(header.VersionNumber), 10))
	if len(header.EncryptionMeta) > 0 {
		h.Set("X-Stormdrive-Encryption-Meta", base64.StdEncoding.EncodeToString(header.EncryptionMeta))
	}
	w.WriteHeader(http.StatusOK)

	for {
		payload, err := stream.Next(r.Context())
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// headers are gone; all we can do is log and drop the connection
			s.log.Error(r.Context(), "content stream aborted", "error", err)
			return
		}
		framed, err := frame.Encode(payload.Index, payload.Nonce, payload.Tag, payload.Ciphertext)
		if err != nil {
			s.log.Error(r.Context(), "content stream aborted", "error", err)
			return
		}
		if _, err := w.Write(framed); err != nil {
			return
		}
	}
}

// writeJSON mirrors the response helper used across the project's HTTP
// handlers.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps the error taxonomy onto HTTP statuses: NotFound 404,
// Invalid 400, Conflict 409, Corruption 502, anything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrCorruption):
		status = http.StatusBadGateway
	case errors.Is(err, common.ErrConflict):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
