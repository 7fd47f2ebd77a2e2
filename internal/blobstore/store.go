// Package blobstore provides the content store: opaque key→bytes
// persistence with atomic, effectively write-once puts. Chunk and manifest
// keys are namespaced by owner and session so concurrent uploads never
// collide, and chunk keys embed the commitment hash so a changed chunk gets
// a new key instead of overwriting an old one.
package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/stormdrive/stormdrive/internal/common"
)

// Store is key→bytes persistence.
//
// Put must be atomic: a reader never observes a partially written value.
// Keys are written once; a repeated Put of the same key is a no-op, which
// together with content-addressed chunk keys is what makes concurrent chunk
// writes and retries safe without locking.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// ChunkKey derives the storage key for an enveloped chunk. Deterministic and
// collision-free per session; the commitment hash in the key doubles as a
// cheap dedup sanity check.
func ChunkKey(ownerID, sessionID string, index uint32, commitment string) string {
	return fmt.Sprintf("chunks/%s/%s/%08d-%s.c2", ownerID, sessionID, index, commitment)
}

// ManifestKey derives the stable storage key for one version's manifest.
// Keyed per version so a finalize-as-replace never overwrites the manifest
// an older VersionRecord still points at.
func ManifestKey(ownerID, objectID, versionID string) string {
	return fmt.Sprintf("blueprint/%s/%s/%s.json", ownerID, objectID, versionID)
}

// ValidateKey rejects keys that could escape a path-backed store. Keys are
// generated server-side, so a violation here indicates a corrupted record
// rather than bad user input.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty storage key", common.ErrCorruption)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") || strings.Contains(key, "\x00") {
		return fmt.Errorf("%w: unsafe storage key %q", common.ErrCorruption, key)
	}
	return nil
}
