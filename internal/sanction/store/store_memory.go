// Package store is the Sanction persistence layer behind C6.
package store

import (
	"context"
	"sync"
	"time"

	"credo/internal/sanction/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

// InMemoryStore is a single-process Store used by unit tests.
type InMemoryStore struct {
	mu        sync.Mutex
	sanctions map[id.SanctionID]*models.Sanction
}

func New() *InMemoryStore {
	return &InMemoryStore{sanctions: make(map[id.SanctionID]*models.Sanction)}
}

func (s *InMemoryStore) Create(ctx context.Context, sanction *models.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sanctions[sanction.ID] = sanction
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, sanctionID id.SanctionID) (*models.Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sanction, ok := s.sanctions[sanctionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sanction, nil
}

func (s *InMemoryStore) Update(ctx context.Context, sanction *models.Sanction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sanctions[sanction.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sanctions[sanction.ID] = sanction
	return nil
}

// ListBySubject returns every sanction recorded against subjectID,
// regardless of status, for the active-set query to filter by window.
func (s *InMemoryStore) ListBySubject(ctx context.Context, subjectID id.UserID) ([]*models.Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Sanction
	for _, sanction := range s.sanctions {
		if sanction.SubjectID == subjectID {
			out = append(out, sanction)
		}
	}
	return out, nil
}

// ListActiveExpiring returns every ACTIVE sanction whose EndAt has already
// passed now, for the expiry sweeper.
func (s *InMemoryStore) ListActiveExpiring(ctx context.Context, now time.Time) ([]*models.Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Sanction
	for _, sanction := range s.sanctions {
		if sanction.Status == models.SanctionStatusActive && sanction.EndAt != nil && !sanction.EndAt.After(now) {
			out = append(out, sanction)
		}
	}
	return out, nil
}
