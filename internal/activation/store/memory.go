package store

import (
	"context"
	"sync"

	"rtpbridge/internal/activation/models"
	"rtpbridge/pkg/platform/sentinel"
)

// InMemory keeps activations in a map keyed by fiscal code. Useful for
// tests and for running without a database.
type InMemory struct {
	mu           sync.RWMutex
	byFiscalCode map[string]models.Activation
}

func NewInMemory() *InMemory {
	return &InMemory{byFiscalCode: make(map[string]models.Activation)}
}

// Create inserts the activation unless the fiscal code is already taken,
// in which case it returns sentinel.ErrConflict.
func (s *InMemory) Create(ctx context.Context, activation models.Activation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byFiscalCode[activation.FiscalCode]; exists {
		return sentinel.ErrConflict
	}
	s.byFiscalCode[activation.FiscalCode] = activation
	return nil
}

// FindByFiscalCode returns the activation for the fiscal code, or
// sentinel.ErrNotFound.
func (s *InMemory) FindByFiscalCode(ctx context.Context, fiscalCode string) (models.Activation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activation, ok := s.byFiscalCode[fiscalCode]
	if !ok {
		return models.Activation{}, sentinel.ErrNotFound
	}
	return activation, nil
}
