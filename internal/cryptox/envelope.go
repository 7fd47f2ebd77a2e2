// Package cryptox implements the server-side envelope layer: every chunk
// frame is re-encrypted with a server-held AES-256-GCM key before it is
// persisted. This layer is orthogonal to whatever encryption the client
// already applied; the server can always remove its own envelope but never
// the client's inner one.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/stormdrive/stormdrive/internal/common"
)

const (
	// WrapAAD is the fixed associated-data value distinguishing this use
	// of the key from any other. Must match between wrap and unwrap.
	WrapAAD = "sd:chunkwrap:v1"

	// hkdfInfo separates the chunk-wrap key from other keys that may be
	// derived from the same master secret.
	hkdfInfo = "stormdrive-chunk-wrap"

	keyLen   = 32
	nonceLen = 12
)

// Envelope wraps and unwraps blobs with a derived AES-256-GCM key.
// Construct once at startup; key problems are configuration errors,
// not per-request errors.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope decodes the base64 master key, derives the chunk-wrap key via
// HKDF-SHA256 and prepares the AEAD. The master key must decode to exactly
// 32 bytes.
func NewEnvelope(masterKeyB64 string) (*Envelope, error) {
	if masterKeyB64 == "" {
		return nil, fmt.Errorf("server storage key is not set")
	}
	master, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("server storage key is not valid base64: %w", err)
	}
	defer common.WipeByteArray(master)
	if len(master) != keyLen {
		return nil, fmt.Errorf("server storage key must decode to %d bytes, got %d", keyLen, len(master))
	}

	key := make([]byte, keyLen)
	r := hkdf.New(sha256.New, master, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive wrap key: %w", err)
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init GCM: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

// Wrap encrypts plaintext under the server key and returns nonce∥ciphertext.
// A fresh random 12-byte nonce is generated per call.
func (e *Envelope) Wrap(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, plaintext, aad), nil
}

// Unwrap reverses Wrap. Any authentication failure, including a wrong aad
// or a flipped ciphertext bit, comes back as common.ErrCorruption.
func (e *Envelope) Unwrap(blob, aad []byte) ([]byte, error) {
	if len(blob) < nonceLen+e.aead.Overhead() {
		return nil, fmt.Errorf("%w: envelope blob too short", common.ErrCorruption)
	}
	nonce, ct := blob[:nonceLen], blob[nonceLen:]
	plaintext, err := e.aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: envelope does not authenticate", common.ErrCorruption)
	}
	return plaintext, nil
}
