package objects

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// MemoryRepository keeps objects in a map. Used by tests and by the
// in-memory repository manager.
type MemoryRepository struct {
	mu      sync.RWMutex
	objects map[string]*models.StoredObject
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{objects: make(map[string]*models.StoredObject)}
}

func (r *MemoryRepository) Create(ctx context.Context, o *models.StoredObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objects[o.ID]; ok {
		return fmt.Errorf("%w: object %s already exists", common.ErrConflict, o.ID)
	}
	cp := *o
	r.objects[o.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetActive(ctx context.Context, ownerID, objectID string) (*models.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.objects[objectID]
	if !ok || o.OwnerID != ownerID || o.Deleted {
		return nil, fmt.Errorf("%w: object %s", common.ErrNotFound, objectID)
	}
	cp := *o
	return &cp, nil
}

func (r *MemoryRepository) Update(ctx context.Context, o *models.StoredObject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.objects[o.ID]
	if !ok || existing.OwnerID != o.OwnerID || existing.Deleted {
		return fmt.Errorf("%w: object %s", common.ErrNotFound, o.ID)
	}
	cp := *o
	r.objects[o.ID] = &cp
	return nil
}

// MarkDeleted flags an object as trashed. Test hook for replace-target
// validation.
func (r *MemoryRepository) MarkDeleted(objectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.objects[objectID]; ok {
		o.Deleted = true
	}
}
