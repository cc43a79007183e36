package store

import (
	"context"
	"sync"
	"time"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/dunamismax/jobboard/internal/domain"
)

var ErrLeadNotFound = apperr.NotFound("lead not found", nil)

type MemoryLeadStore struct {
	mu    sync.RWMutex
	leads map[string]domain.Lead
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{
		leads: make(map[string]domain.Lead),
	}
}

func (s *MemoryLeadStore) CreateLead(_ context.Context, lead domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.leads[lead.ID]; exists {
		return apperr.Conflict("lead already exists", nil)
	}
	s.leads[lead.ID] = lead
	return nil
}

func (s *MemoryLeadStore) GetLead(_ context.Context, id string) (domain.Lead, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[id]
	return lead, ok, nil
}

func (s *MemoryLeadStore) UpdateLeadStatus(_ context.Context, id, status, errText string) (domain.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return domain.Lead{}, ErrLeadNotFound
	}

	lead.Status = status
	lead.Error = errText
	lead.UpdatedAt = time.Now().UTC()
	s.leads[id] = lead
	return lead, nil
}
