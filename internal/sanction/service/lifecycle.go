package service

import (
	"context"
	"time"

	"credo/internal/sanction/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"
)

// Create applies a new sanction, transitioning create -> ACTIVE (§4.6).
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Sanction, error) {
	now := requestcontext.Now(ctx)
	startAt := now
	if p.StartAt != nil {
		startAt = *p.StartAt
	}
	if p.EndAt != nil && p.EndAt.Before(startAt) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "end_at must not precede start_at")
	}

	sanction := &models.Sanction{
		ID:                 id.NewSanctionID(),
		SubjectID:          p.SubjectID,
		SubjectType:        p.SubjectType,
		Service:            p.Service,
		Type:               p.Type,
		Severity:           p.Severity,
		RestrictedFeatures: p.RestrictedFeatures,
		Reason:             p.Reason,
		InternalNote:       p.InternalNote,
		EvidenceURLs:       p.EvidenceURLs,
		IssuerID:           p.IssuerID,
		IssuerType:         p.IssuerType,
		StartAt:            startAt,
		EndAt:              p.EndAt,
		Status:             models.SanctionStatusActive,
		AppealStatus:       models.AppealStatusNone,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.store.Create(ctx, sanction); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create sanction")
	}
	if err := s.emit(ctx, outbox.EventSanctionApplied, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}

// Revoke transitions an ACTIVE sanction to REVOKED; only an operator path
// calls this directly (the appeal-approval path revokes atomically with
// the appeal decision instead — see ReviewAppeal).
func (s *Service) Revoke(ctx context.Context, sanctionID id.SanctionID) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.Status != models.SanctionStatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only an active sanction may be revoked")
	}

	sanction.Status = models.SanctionStatusRevoked
	if err := s.save(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventSanctionRevoked, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}

// Extend changes an ACTIVE sanction's end_at, emitting SANCTION_EXTENDED.
func (s *Service) Extend(ctx context.Context, sanctionID id.SanctionID, newEndAt *time.Time) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.Status != models.SanctionStatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only an active sanction may be extended")
	}
	if newEndAt != nil && newEndAt.Before(sanction.StartAt) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "end_at must not precede start_at")
	}

	sanction.EndAt = newEndAt
	if err := s.save(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventSanctionExtended, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}

// Reduce changes an ACTIVE sanction's severity/restricted-feature set
// downward, emitting SANCTION_REDUCED.
func (s *Service) Reduce(ctx context.Context, sanctionID id.SanctionID, newSeverity int, newRestrictedFeatures []string) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.Status != models.SanctionStatusActive {
		return nil, dErrors.New(dErrors.CodeInvalidState, "only an active sanction may be reduced")
	}

	sanction.Severity = newSeverity
	sanction.RestrictedFeatures = newRestrictedFeatures
	if err := s.save(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventSanctionReduced, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}

// GetActive implements the active-set query (§4.6): sanctions whose window
// contains now and whose scope matches, plus the derived restricted-
// feature union and permanent-ban flag.
func (s *Service) GetActive(ctx context.Context, subjectID id.UserID, service string) (*models.ActiveSetView, error) {
	now := requestcontext.Now(ctx)
	all, err := s.store.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sanctions")
	}

	view := &models.ActiveSetView{}
	featureSet := make(map[string]struct{})
	for _, sanction := range all {
		if sanction.Status != models.SanctionStatusActive {
			continue
		}
		if !sanction.InWindow(now) || !sanction.MatchesScope(service) {
			continue
		}
		view.Sanctions = append(view.Sanctions, sanction)
		for _, feature := range sanction.RestrictedFeatures {
			featureSet[feature] = struct{}{}
		}
		if sanction.Type == models.SanctionTypePermanentBan {
			view.IsPermanentlyBanned = true
		}
	}
	for feature := range featureSet {
		view.RestrictedFeatures = append(view.RestrictedFeatures, feature)
	}
	return view, nil
}
