package service

import (
	"context"

	"credo/internal/sanction/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
)

// FileAppeal transitions unset -> PENDING. Only the sanctioned subject may
// file (no cross-subject appeal, §4.6), and only once per sanction.
func (s *Service) FileAppeal(ctx context.Context, sanctionID id.SanctionID, requesterID id.UserID, reason string, evidence []string) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.SubjectID != requesterID {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot appeal another subject's sanction")
	}
	if sanction.AppealStatus != models.AppealStatusNone {
		return nil, dErrors.New(dErrors.CodeInvalidState, "sanction has already been appealed")
	}

	sanction.AppealStatus = models.AppealStatusPending
	sanction.AppealReason = reason
	sanction.AppealEvidence = evidence
	if err := s.save(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventSanctionAppealFiled, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}

// StartReview transitions PENDING -> UNDER_REVIEW.
func (s *Service) StartReview(ctx context.Context, sanctionID id.SanctionID, reviewerID id.UserID) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.AppealStatus != models.AppealStatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "appeal is not pending")
	}

	sanction.AppealStatus = models.AppealStatusUnderReview
	sanction.AppealReviewer = reviewerID
	return sanction, s.save(ctx, sanction)
}

// ReviewDecision is the outcome an operator records for an under-review
// appeal.
type ReviewDecision string

const (
	ReviewDecisionApproved  ReviewDecision = "APPROVED"
	ReviewDecisionRejected  ReviewDecision = "REJECTED"
	ReviewDecisionEscalated ReviewDecision = "ESCALATED"
)

// ReviewAppeal records the decision on an UNDER_REVIEW appeal. An APPROVED
// decision atomically revokes the sanction alongside the appeal write and
// emits a single SANCTION_APPEAL_REVIEWED event (§4.6 invariant).
func (s *Service) ReviewAppeal(ctx context.Context, sanctionID id.SanctionID, reviewerID id.UserID, decision ReviewDecision, response string) (*models.Sanction, error) {
	sanction, err := s.load(ctx, sanctionID)
	if err != nil {
		return nil, err
	}
	if sanction.AppealStatus != models.AppealStatusUnderReview {
		return nil, dErrors.New(dErrors.CodeInvalidState, "appeal is not under review")
	}

	switch decision {
	case ReviewDecisionApproved:
		sanction.AppealStatus = models.AppealStatusApproved
		sanction.Status = models.SanctionStatusRevoked
	case ReviewDecisionRejected:
		sanction.AppealStatus = models.AppealStatusRejected
	case ReviewDecisionEscalated:
		sanction.AppealStatus = models.AppealStatusEscalated
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unrecognized review decision")
	}
	sanction.AppealReviewer = reviewerID
	sanction.AppealResponse = response

	if err := s.save(ctx, sanction); err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventSanctionAppealReviewed, sanction); err != nil {
		return nil, err
	}
	return sanction, nil
}
