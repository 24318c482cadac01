package service

import (
	"context"
	"errors"
	"time"

	"credo/internal/consent/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

// GrantParams describes one consent decision.
type GrantParams struct {
	AccountID  id.UserID
	DocumentID id.DocumentID
	Type       string
	ExpiresAt  *time.Time
	IPAddress  string
	UserAgent  string
}

// Grant records a new GRANTED consent for (AccountID, DocumentID),
// withdrawing any existing GRANTED consent for the same pair first so the
// "at most one GRANTED" invariant holds without a unique-constraint race.
func (s *Service) Grant(ctx context.Context, p GrantParams) (*models.Consent, error) {
	now := requestcontext.Now(ctx)
	var granted *models.Consent

	err := s.runAtomic(ctx, func() error {
		existing, err := s.store.FindGranted(ctx, p.AccountID, p.DocumentID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check existing grant")
		}
		if err == nil {
			existing.Status = models.StatusWithdrawn
			existing.WithdrawnAt = &now
			if err := s.save(ctx, existing); err != nil {
				return err
			}
		}

		c := &models.Consent{
			ID:         id.NewConsentID(),
			AccountID:  p.AccountID,
			DocumentID: p.DocumentID,
			Type:       p.Type,
			Status:     models.StatusGranted,
			GrantedAt:  now,
			ExpiresAt:  p.ExpiresAt,
			IPAddress:  p.IPAddress,
			UserAgent:  p.UserAgent,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.store.Create(ctx, c); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "create consent")
		}
		granted = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.emit(ctx, outbox.EventConsentGranted, granted, nil); err != nil {
		return nil, err
	}
	return granted, nil
}

// Withdraw explicitly revokes a GRANTED consent. Withdrawing an already
// non-GRANTED consent is a conflict, not a silent no-op: the caller's intent
// to revoke a live consent cannot be honored by a dead one.
func (s *Service) Withdraw(ctx context.Context, consentID id.ConsentID) (*models.Consent, error) {
	c, err := s.load(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusGranted {
		return nil, dErrors.New(dErrors.CodeInvalidState, "consent is not currently granted")
	}

	now := requestcontext.Now(ctx)
	c.Status = models.StatusWithdrawn
	c.WithdrawnAt = &now
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventConsentWithdrawn, c, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every consent recorded for an account, regardless of status.
func (s *Service) List(ctx context.Context, accountID id.UserID) ([]*models.Consent, error) {
	consents, err := s.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list consents")
	}
	return consents, nil
}
