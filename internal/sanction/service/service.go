// Package service implements the C6 Sanction Engine: the sanction
// lifecycle (create/revoke/expire), the independent appeal sub-state
// machine, and the subject-scoped active-set query.
package service

import (
	"context"
	"errors"
	"time"

	"credo/internal/sanction/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, sanction *models.Sanction) error
	FindByID(ctx context.Context, sanctionID id.SanctionID) (*models.Sanction, error)
	Update(ctx context.Context, sanction *models.Sanction) error
	ListBySubject(ctx context.Context, subjectID id.UserID) ([]*models.Sanction, error)
}

type OutboxAppender interface {
	Append(ctx context.Context, event outbox.Event) error
}

type Service struct {
	store  Store
	outbox OutboxAppender
}

func New(store Store, ob OutboxAppender) *Service {
	return &Service{store: store, outbox: ob}
}

// CreateParams carries a new sanction's inputs; Status/AppealStatus/
// timestamps are set by Create.
type CreateParams struct {
	SubjectID          id.UserID
	SubjectType        models.SubjectType
	Service            string
	Type               models.SanctionType
	Severity           int
	RestrictedFeatures []string
	Reason             string
	InternalNote       string
	EvidenceURLs       []string
	IssuerID           id.UserID
	IssuerType         models.SubjectType
	StartAt            *time.Time
	EndAt              *time.Time
}

func (s *Service) emit(ctx context.Context, eventType string, sanction *models.Sanction) error {
	event, err := outbox.NewEvent("sanction", sanction.ID.String(), eventType, map[string]any{
		"sanction_id": sanction.ID.String(),
		"subject_id":  sanction.SubjectID.String(),
		"status":      sanction.Status,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build outbox event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append outbox event")
	}
	return nil
}

func (s *Service) load(ctx context.Context, sanctionID id.SanctionID) (*models.Sanction, error) {
	sanction, err := s.store.FindByID(ctx, sanctionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "sanction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load sanction")
	}
	return sanction, nil
}

func (s *Service) save(ctx context.Context, sanction *models.Sanction) error {
	sanction.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, sanction); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save sanction")
	}
	return nil
}
