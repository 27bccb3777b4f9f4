package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"rtpbridge/internal/rtp/models"
	"rtpbridge/pkg/platform/sentinel"
)

// InMemory keeps RTPs in a map with a secondary index for GDP stream
// lookups. Values are stored and returned by copy, matching the
// aggregate's rebuild-on-transition semantics.
type InMemory struct {
	mu          sync.RWMutex
	byID        map[uuid.UUID]models.Rtp
	byOperation map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:        make(map[uuid.UUID]models.Rtp),
		byOperation: make(map[string]uuid.UUID),
	}
}

func operationKey(operationID, eventDispatcher string) string {
	return operationID + "|" + eventDispatcher
}

func (s *InMemory) Save(ctx context.Context, rtp models.Rtp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rtp.ResourceID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[rtp.ResourceID] = rtp
	if rtp.OperationID != "" {
		s.byOperation[operationKey(rtp.OperationID, rtp.EventDispatcher)] = rtp.ResourceID
	}
	return nil
}

func (s *InMemory) Update(ctx context.Context, rtp models.Rtp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[rtp.ResourceID]; !exists {
		return sentinel.ErrNotFound
	}
	s.byID[rtp.ResourceID] = rtp
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, resourceID uuid.UUID) (models.Rtp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rtp, ok := s.byID[resourceID]
	if !ok {
		return models.Rtp{}, sentinel.ErrNotFound
	}
	return rtp, nil
}

func (s *InMemory) FindByOperationID(ctx context.Context, operationID, eventDispatcher string) (models.Rtp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byOperation[operationKey(operationID, eventDispatcher)]
	if !ok {
		return models.Rtp{}, sentinel.ErrNotFound
	}
	return s.byID[id], nil
}
