// Package service implements C8: granting, withdrawing, and sweeping
// consent records for expiry.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credo/internal/consent/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

// Store is the persistence surface the service depends on.
type Store interface {
	Create(ctx context.Context, c *models.Consent) error
	FindByID(ctx context.Context, consentID id.ConsentID) (*models.Consent, error)
	Update(ctx context.Context, c *models.Consent) error
	FindGranted(ctx context.Context, accountID id.UserID, documentID id.DocumentID) (*models.Consent, error)
	ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.Consent, error)
	ListExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]*models.Consent, error)
	ListExpired(ctx context.Context, now time.Time) ([]*models.Consent, error)
}

// OutboxAppender is the subset of outbox.Store the service uses to emit events.
type OutboxAppender interface {
	Append(ctx context.Context, event outbox.Event) error
}

// expiringSoonWindow is the lookahead for the daily expiring-soon sweep
// (spec: "expires_at ∈ (now, now+30d]").
const expiringSoonWindow = 30 * 24 * time.Hour

// Service enforces the consent invariants: at most one GRANTED consent per
// (account, document), explicit-event withdrawal, and derived expiration.
type Service struct {
	store  Store
	outbox OutboxAppender
	tx     ConsentStoreTx // nil when the store itself provides a transactional boundary (Postgres)
}

func New(store Store, ob OutboxAppender, tx ConsentStoreTx) *Service {
	return &Service{store: store, outbox: ob, tx: tx}
}

func (s *Service) emit(ctx context.Context, eventType string, c *models.Consent, extra map[string]any) error {
	payload := map[string]any{
		"consent_id":  c.ID.String(),
		"account_id":  c.AccountID.String(),
		"document_id": c.DocumentID.String(),
		"type":        c.Type,
	}
	for k, v := range extra {
		payload[k] = v
	}
	event, err := outbox.NewEvent("consent", c.ID.String(), eventType, payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build outbox event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append outbox event")
	}
	return nil
}

func (s *Service) load(ctx context.Context, consentID id.ConsentID) (*models.Consent, error) {
	c, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("consent %s not found", consentID))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load consent")
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c *models.Consent) error {
	c.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, c); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save consent")
	}
	return nil
}

// runAtomic executes fn with the account-scoped lock held when a
// ConsentStoreTx is configured (the in-memory store), or directly otherwise
// (the Postgres store enforces the invariant within its own transaction).
func (s *Service) runAtomic(ctx context.Context, fn func() error) error {
	if s.tx == nil {
		return fn()
	}
	return s.tx.RunInTx(ctx, func(Store) error { return fn() })
}
