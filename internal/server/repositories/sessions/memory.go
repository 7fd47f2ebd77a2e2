package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/stormdrive/stormdrive/internal/common"
	"github.com/stormdrive/stormdrive/internal/server/models"
)

// MemoryRepository keeps sessions in a map. Used by tests and by the
// in-memory repository manager.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*models.UploadSession
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*models.UploadSession)}
}

func (r *MemoryRepository) Create(ctx context.Context, s *models.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; ok {
		return fmt.Errorf("%w: session %s already exists", common.ErrConflict, s.ID)
	}
	cp := *s
	r.sessions[s.ID] = &cp
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, ownerID, sessionID string) (*models.UploadSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, sessionID)
	}
	cp := *s
	return &cp, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, ownerID, sessionID string, from, to models.SessionStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: illegal status transition %s -> %s", common.ErrConflict, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.OwnerID != ownerID {
		return fmt.Errorf("%w: session %s", common.ErrNotFound, sessionID)
	}
	if s.Status != from {
		return fmt.Errorf("%w: session %s is not %s", common.ErrConflict, sessionID, from)
	}
	s.Status = to
	return nil
}
