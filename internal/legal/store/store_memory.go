// Package store is the LegalDocument and Law persistence layer behind C7.
package store

import (
	"context"
	"sync"

	"credo/internal/legal/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

// InMemoryStore is a single-process Store used by unit tests.
type InMemoryStore struct {
	mu        sync.Mutex
	documents map[id.DocumentID]*models.LegalDocument
	laws      map[string]*models.Law
}

func New() *InMemoryStore {
	return &InMemoryStore{
		documents: make(map[id.DocumentID]*models.LegalDocument),
		laws:      make(map[string]*models.Law),
	}
}

func (s *InMemoryStore) CreateDocument(ctx context.Context, doc *models.LegalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = doc
	return nil
}

func (s *InMemoryStore) UpdateDocument(ctx context.Context, doc *models.LegalDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.documents[doc.ID] = doc
	return nil
}

// ListDocuments returns every document of (docType, locale), regardless of
// country/service/active flag, for the caller to filter and for the
// version-cut to deactivate.
func (s *InMemoryStore) ListDocuments(ctx context.Context, docType, locale string) ([]*models.LegalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.LegalDocument
	for _, d := range s.documents {
		if d.Type == docType && d.Locale == locale {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SaveLaw(ctx context.Context, law *models.Law) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.laws[law.Code] = law
	return nil
}

func (s *InMemoryStore) FindLaw(ctx context.Context, code string) (*models.Law, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	law, ok := s.laws[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return law, nil
}

func (s *InMemoryStore) ListLawsByCountry(ctx context.Context, country string) ([]*models.Law, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Law
	for _, law := range s.laws {
		if law.Country == "" || law.Country == country {
			out = append(out, law)
		}
	}
	return out, nil
}
