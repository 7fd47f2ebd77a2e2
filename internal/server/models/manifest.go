package models

import "fmt"

// ChunkDescriptor is one entry in a manifest's ordered chunk list.
type ChunkDescriptor struct {
	Index      int32  `json:"i"`
	StorageKey string `json:"k"`
	Commitment string `json:"h"`
	Size       int32  `json:"s"`
}

// ContentManifest is the durable body of a finished object: the ordered
// chunk list plus the whole-content integrity hash. Written once at
// finalize and never mutated; a re-upload produces a new manifest.
type ContentManifest struct {
	SessionID     string            `json:"upload_id"`
	ChunkSize     int32             `json:"chunk_size"`
	TotalChunks   int32             `json:"total_chunks"`
	FileSize      int64             `json:"file_size"`
	FileType      string            `json:"file_type"`
	IntegrityHash string            `json:"integrity_hash"`
	Chunks        []ChunkDescriptor `json:"chunks"`
}

// Validate checks the structural invariants: the list covers exactly
// TotalChunks entries in strict ascending index order with no duplicates.
func (m *ContentManifest) Validate() error {
	if m.TotalChunks <= 0 {
		return fmt.Errorf("manifest total_chunks %d out of range", m.TotalChunks)
	}
	if int32(len(m.Chunks)) != m.TotalChunks {
		return fmt.Errorf("manifest lists %d chunks, expected %d", len(m.Chunks), m.TotalChunks)
	}
	for i, c := range m.Chunks {
		if c.Index != int32(i) {
			return fmt.Errorf("manifest chunk at position %d has index %d", i, c.Index)
		}
		if c.StorageKey == "" || c.Commitment == "" {
			return fmt.Errorf("manifest chunk %d missing storage key or commitment", i)
		}
	}
	return nil
}
