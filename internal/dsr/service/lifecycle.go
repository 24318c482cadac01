package service

import (
	"context"
	"time"

	"credo/internal/dsr/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"
)

// SubmitParams carries a new DSR request's inputs; Status/Deadline/
// EscalationLevel/timestamps are computed by Submit.
type SubmitParams struct {
	AccountID  id.UserID
	Type       models.RequestType
	Priority   int
	Scope      map[string]any
	LegalBasis models.LegalBasis
}

// Submit files a new DSR request in PENDING with its statutory deadline
// computed from legal basis (§4.9).
func (s *Service) Submit(ctx context.Context, p SubmitParams) (*models.DSRRequest, error) {
	now := requestcontext.Now(ctx)
	basis := p.LegalBasis
	if basis == "" {
		basis = models.LegalBasisDefault
	}

	r := &models.DSRRequest{
		ID:              id.NewDSRRequestID(),
		AccountID:       p.AccountID,
		Type:            p.Type,
		Status:          models.StatusPending,
		Priority:        p.Priority,
		Scope:           p.Scope,
		LegalBasis:      basis,
		Deadline:        now.AddDate(0, 0, models.DeadlineDays(basis)),
		EscalationLevel: models.EscalationNone,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create dsr request")
	}
	if err := s.appendAudit(ctx, r.ID, "SUBMITTED", id.OperatorID{}, string(r.Type)); err != nil {
		return nil, err
	}
	return r, nil
}

// Verify transitions PENDING -> VERIFIED, the identity-verification gate
// before work begins.
func (s *Service) Verify(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, models.StatusVerified, "VERIFIED", operatorID, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// Assign records which operator owns a request; it does not itself change
// status.
func (s *Service) Assign(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "cannot assign a terminal dsr request")
	}
	r.AssignedTo = operatorID
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	if err := s.appendAudit(ctx, r.ID, "ASSIGNED", operatorID, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// StartProcessing transitions VERIFIED -> IN_PROGRESS.
func (s *Service) StartProcessing(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	r.ProcessedBy = operatorID
	if err := s.transition(ctx, r, models.StatusInProgress, "PROCESSING_STARTED", operatorID, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// RequestMoreInfo transitions IN_PROGRESS -> AWAITING_INFO.
func (s *Service) RequestMoreInfo(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID, note string) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, models.StatusAwaitingInfo, "AWAITING_INFO", operatorID, note); err != nil {
		return nil, err
	}
	return r, nil
}

// ResumeProcessing transitions AWAITING_INFO -> IN_PROGRESS once the
// subject has supplied the requested information.
func (s *Service) ResumeProcessing(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, models.StatusInProgress, "PROCESSING_RESUMED", operatorID, ""); err != nil {
		return nil, err
	}
	return r, nil
}

// CompleteParams carries the response recorded when a request completes.
type CompleteParams struct {
	ResponseType models.ResponseType
	ResponseBody string
	ResponseNote string
}

// Complete transitions IN_PROGRESS -> COMPLETED, recording the fulfillment
// response.
func (s *Service) Complete(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID, p CompleteParams) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	r.ResponseType = p.ResponseType
	r.ResponseBody = p.ResponseBody
	r.ResponseNote = p.ResponseNote
	if err := s.transition(ctx, r, models.StatusCompleted, "COMPLETED", operatorID, p.ResponseNote); err != nil {
		return nil, err
	}
	return r, nil
}

// Reject transitions PENDING/VERIFIED/IN_PROGRESS -> REJECTED, requiring a
// reason for the audit trail.
func (s *Service) Reject(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID, reason string) (*models.DSRRequest, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rejection requires a reason")
	}
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	r.ResponseNote = reason
	if err := s.transition(ctx, r, models.StatusRejected, "REJECTED", operatorID, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// Cancel transitions PENDING or AWAITING_INFO -> CANCELLED; it is the
// subject-initiated withdrawal path (operatorID may be the zero value).
func (s *Service) Cancel(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID, reason string) (*models.DSRRequest, error) {
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, models.StatusCancelled, "CANCELLED", operatorID, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// ExtendDeadline sets extended_to, requiring a reason and capping the
// extension at one regulator-permitted use (§4.9). Calling it a second
// time on the same request is rejected.
func (s *Service) ExtendDeadline(ctx context.Context, requestID id.DSRRequestID, operatorID id.OperatorID, newDeadline time.Time, reason string) (*models.DSRRequest, error) {
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "extend-deadline requires a reason")
	}
	r, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "cannot extend deadline of a terminal dsr request")
	}
	if r.Extended {
		return nil, dErrors.New(dErrors.CodeInvalidState, "dsr request has already used its one permitted extension")
	}

	maxExtendedTo := r.CreatedAt.AddDate(0, 0, models.DeadlineDays(r.LegalBasis)*defaultExtensionMultiplier)
	if newDeadline.After(maxExtendedTo) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "extension exceeds the regulator-permitted maximum")
	}

	r.ExtendedTo = &newDeadline
	r.Extended = true
	if err := s.save(ctx, r); err != nil {
		return nil, err
	}
	if err := s.appendAudit(ctx, r.ID, "DEADLINE_EXTENDED", operatorID, reason); err != nil {
		return nil, err
	}
	return r, nil
}

// escalationEvent maps an escalation level to its outbox event token.
func escalationEvent(level models.EscalationLevel) string {
	switch level {
	case models.EscalationWarning:
		return outbox.EventDSRDeadlineWarning
	case models.EscalationCritical:
		return outbox.EventDSRDeadlineCritical
	case models.EscalationOverdue:
		return outbox.EventDSRDeadlineOverdue
	default:
		return ""
	}
}
