// Package service implements the C9 DSR Engine: the request state machine,
// deadline computation and extension, the hourly escalation sweep, the
// append-only audit log, and the daily observational summary.
package service

import (
	"context"
	"errors"
	"time"

	"credo/internal/dsr/models"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, r *models.DSRRequest) error
	FindByID(ctx context.Context, requestID id.DSRRequestID) (*models.DSRRequest, error)
	Update(ctx context.Context, r *models.DSRRequest) error
	ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.DSRRequest, error)
	ListOpen(ctx context.Context) ([]*models.DSRRequest, error)
	Summarize(ctx context.Context, now time.Time) (models.Summary, error)
	AppendLog(ctx context.Context, logRow *models.DsrRequestLog) error
	ListLogs(ctx context.Context, requestID id.DSRRequestID) ([]*models.DsrRequestLog, error)
}

type OutboxAppender interface {
	Append(ctx context.Context, event outbox.Event) error
}

// defaultExtensionMultiplier implements "one regulator-permitted extension,
// default = doubling the default" (§4.9): a request's first extension may
// push extended_to out to at most 2x its legal-basis deadline window.
const defaultExtensionMultiplier = 2

type Service struct {
	store  Store
	outbox OutboxAppender
}

func New(store Store, ob OutboxAppender) *Service {
	return &Service{store: store, outbox: ob}
}

func (s *Service) emit(ctx context.Context, eventType string, r *models.DSRRequest, extra map[string]any) error {
	payload := map[string]any{
		"request_id": r.ID.String(),
		"account_id": r.AccountID.String(),
		"status":     r.Status,
	}
	for k, v := range extra {
		payload[k] = v
	}
	event, err := outbox.NewEvent("dsr_request", r.ID.String(), eventType, payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build outbox event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append outbox event")
	}
	return nil
}

func (s *Service) load(ctx context.Context, requestID id.DSRRequestID) (*models.DSRRequest, error) {
	r, err := s.store.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dsr request not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load dsr request")
	}
	return r, nil
}

func (s *Service) save(ctx context.Context, r *models.DSRRequest) error {
	r.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, r); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save dsr request")
	}
	return nil
}

// appendAudit writes one append-only DsrRequestLog row for a state-changing
// operation (§4.9's audit-log requirement). operatorID may be the zero
// value for a subject-initiated action (e.g. Submit).
func (s *Service) appendAudit(ctx context.Context, requestID id.DSRRequestID, action string, operatorID id.OperatorID, details string) error {
	logRow := &models.DsrRequestLog{
		ID:         uuid.New(),
		RequestID:  requestID,
		Action:     action,
		OperatorID: operatorID,
		Details:    details,
		IPAddress:  requestcontext.ClientIP(ctx),
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.AppendLog(ctx, logRow); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append dsr audit log")
	}
	return nil
}

// Logs returns the append-only audit trail for one request.
func (s *Service) Logs(ctx context.Context, requestID id.DSRRequestID) ([]*models.DsrRequestLog, error) {
	logs, err := s.store.ListLogs(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list dsr audit log")
	}
	return logs, nil
}

// ListByAccount returns every DSR request filed by an account.
func (s *Service) ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.DSRRequest, error) {
	requests, err := s.store.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list dsr requests")
	}
	return requests, nil
}

// Get returns a single DSR request by ID.
func (s *Service) Get(ctx context.Context, requestID id.DSRRequestID) (*models.DSRRequest, error) {
	return s.load(ctx, requestID)
}

// transition validates and applies a state-machine edge, persists it, and
// appends the audit row. It emits no outbox event, and neither do its
// callers: lifecycle state changes are recorded only in the audit log.
func (s *Service) transition(ctx context.Context, r *models.DSRRequest, to models.Status, action string, operatorID id.OperatorID, details string) error {
	if !models.CanTransition(r.Status, to) {
		return dErrors.New(dErrors.CodeInvalidState, "illegal dsr status transition from "+string(r.Status)+" to "+string(to))
	}
	r.Status = to
	if err := s.save(ctx, r); err != nil {
		return err
	}
	return s.appendAudit(ctx, r.ID, action, operatorID, details)
}
