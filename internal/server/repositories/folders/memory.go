package folders

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// MemoryRepository keeps folders in a map.
type MemoryRepository struct {
	mu      sync.RWMutex
	folders map[int64]*models.Folder
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{folders: make(map[int64]*models.Folder)}
}

// Add registers a folder. Test setup hook.
func (r *MemoryRepository) Add(f *models.Folder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.folders[f.ID] = &cp
}

func (r *MemoryRepository) GetActive(ctx context.Context, ownerID string, folderID int64) (*models.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.folders[folderID]
	if !ok || f.OwnerID != ownerID || f.Deleted {
		return nil, fmt.Errorf("%w: folder %d", common.ErrNotFound, folderID)
	}
	cp := *f
	return &cp, nil
}
