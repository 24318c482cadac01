// Package store is the Consent persistence layer behind C8.
package store

import (
	"context"
	"sync"
	"time"

	"credo/internal/consent/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

// InMemoryStore is a single-process Store used by unit tests.
type InMemoryStore struct {
	mu       sync.Mutex
	consents map[id.ConsentID]*models.Consent
}

func New() *InMemoryStore {
	return &InMemoryStore{consents: make(map[id.ConsentID]*models.Consent)}
}

func (s *InMemoryStore) Create(ctx context.Context, c *models.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[c.ID] = c
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consents[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) Update(ctx context.Context, c *models.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consents[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.consents[c.ID] = c
	return nil
}

// FindGranted returns the current GRANTED consent for (accountID,
// documentID), if any.
func (s *InMemoryStore) FindGranted(ctx context.Context, accountID id.UserID, documentID id.DocumentID) (*models.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.consents {
		if c.AccountID == accountID && c.DocumentID == documentID && c.Status == models.StatusGranted {
			return c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Consent
	for _, c := range s.consents {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListExpiringSoon returns GRANTED consents with ExpiresAt in (now, now+window].
func (s *InMemoryStore) ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]*models.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Consent
	for _, c := range s.consents {
		if c.IsExpiringWithin(now, window) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListExpired returns GRANTED consents whose ExpiresAt has already passed.
func (s *InMemoryStore) ListExpired(ctx context.Context, now time.Time) ([]*models.Consent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Consent
	for _, c := range s.consents {
		if c.IsExpired(now) {
			out = append(out, c)
		}
	}
	return out, nil
}
