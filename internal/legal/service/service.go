// Package service implements C7: legal document resolution, version-cut
// publishing, and the jurisdiction law registry.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credo/internal/legal/models"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/sentinel"
)

// Store is the persistence surface the service depends on. A single
// implementation backs both documents and laws (store.InMemoryStore,
// store.PostgresStore).
type Store interface {
	CreateDocument(ctx context.Context, doc *models.LegalDocument) error
	UpdateDocument(ctx context.Context, doc *models.LegalDocument) error
	ListDocuments(ctx context.Context, docType, locale string) ([]*models.LegalDocument, error)

	SaveLaw(ctx context.Context, law *models.Law) error
	FindLaw(ctx context.Context, code string) (*models.Law, error)
	ListLawsByCountry(ctx context.Context, country string) ([]*models.Law, error)
}

// versionCutStore is implemented by store.PostgresStore; it lets CreateVersion
// deactivate every prior document of (type, locale) as one statement inside
// the SERIALIZABLE transaction it shares via context with CreateDocument.
type versionCutStore interface {
	DeactivateAllVersions(ctx context.Context, docType, locale string) error
}

// Beginner opens a SERIALIZABLE transaction for the version-cut. Only the
// Postgres store's underlying *sql.DB satisfies it; the in-memory store has
// no transactional boundary and CreateVersion falls back to a
// non-transactional deactivate-then-insert for unit tests.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Retry schedule for the version-cut's SERIALIZABLE transaction (spec §5):
// base=100ms, factor=2, cap=3s, maxRetries=3. Mirrors the exponential
// backoff shape of pkg/platform/outbox's publisher retry schedule, scaled to
// this operation's far shorter bounds.
const (
	versionCutBaseDelay  = 100 * time.Millisecond
	versionCutMaxDelay   = 3 * time.Second
	versionCutMaxRetries = 3
)

// serializationFailure reports whether err is a Postgres SQLSTATE 40001
// (serialization_failure), the error a SERIALIZABLE transaction surfaces
// when a concurrent version-cut wins the race. The driver is intentionally
// not imported here (lib/pq vs pgx vary in error type); matching the SQLSTATE
// code against the error text works against both drivers' Error() output.
func serializationFailure(err error) bool {
	return err != nil && containsSQLState40001(err.Error())
}

func containsSQLState40001(msg string) bool {
	const code = "40001"
	for i := 0; i+len(code) <= len(msg); i++ {
		if msg[i:i+len(code)] == code {
			return true
		}
	}
	return false
}

// Service resolves legal documents, publishes new versions, and answers
// consent-requirement queries against the law registry.
type Service struct {
	store    Store
	beginner Beginner // nil when the store has no transactional boundary (in-memory tests)
}

func New(store Store, beginner Beginner) *Service {
	return &Service{store: store, beginner: beginner}
}

func (s *Service) loadLaw(ctx context.Context, code string) (*models.Law, error) {
	law, err := s.store.FindLaw(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("law %s not found", code))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load law")
	}
	return law, nil
}
