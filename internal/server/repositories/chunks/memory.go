package chunks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

type receiptKey struct {
	sessionID string
	index     int32
}

// MemoryRepository keeps receipts in a map guarded by a mutex; the map
// insert plays the role of the database uniqueness constraint.
type MemoryRepository struct {
	mu       sync.Mutex
	receipts map[receiptKey]*models.ChunkReceipt
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{receipts: make(map[receiptKey]*models.ChunkReceipt)}
}

func (r *MemoryRepository) Get(ctx context.Context, sessionID string, index int32) (*models.ChunkReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.receipts[receiptKey{sessionID, index}]
	if !ok {
		return nil, fmt.Errorf("%w: chunk %d of session %s", common.ErrNotFound, index, sessionID)
	}
	cp := *rc
	return &cp, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, rc *models.ChunkReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := receiptKey{rc.SessionID, rc.Index}
	if _, ok := r.receipts[k]; ok {
		return fmt.Errorf("%w: chunk %d of session %s already recorded", common.ErrConflict, rc.Index, rc.SessionID)
	}
	cp := *rc
	r.receipts[k] = &cp
	return nil
}

func (r *MemoryRepository) ListOrdered(ctx context.Context, sessionID string) ([]*models.ChunkReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.ChunkReceipt
	for k, rc := range r.receipts {
		if k.sessionID == sessionID {
			cp := *rc
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}

func (r *MemoryRepository) Indices(ctx context.Context, sessionID string) ([]int32, error) {
	receipts, err := r.ListOrdered(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	indices := make([]int32, 0, len(receipts))
	for _, rc := range receipts {
		indices = append(indices, rc.Index)
	}
	return indices, nil
}

// Remove deletes a receipt. Test hook for incomplete-upload scenarios.
func (r *MemoryRepository) Remove(sessionID string, index int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receipts, receiptKey{sessionID, index})
}
