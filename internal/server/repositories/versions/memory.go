package versions

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// MemoryRepository keeps version records in a map.
type MemoryRepository struct {
	mu       sync.RWMutex
	versions map[string]*models.VersionRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{versions: make(map[string]*models.VersionRecord)}
}

func (r *MemoryRepository) Create(ctx context.Context, v *models.VersionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.versions[v.ID]; ok {
		return fmt.Errorf("%w: version %s already exists", common.ErrConflict, v.ID)
	}
	cp := *v
	r.versions[v.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, objectID, versionID string) (*models.VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[versionID]
	if !ok || v.ObjectID != objectID {
		return nil, fmt.Errorf("%w: version %s of object %s", common.ErrNotFound, versionID, objectID)
	}
	cp := *v
	return &cp, nil
}
