package service

import (
	"context"
	"time"

	"credo/internal/dsr/models"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
)

// runEscalationSweep implements the §4.9 hourly escalation sweep: for every
// request in {PENDING, VERIFIED, IN_PROGRESS}, compute the tier from the
// time remaining to the effective deadline and, on a monotonic increase,
// persist the new level and emit its event — one transition, one
// transaction, per row (P9: escalationLevel never decreases).
func (s *Service) runEscalationSweep(ctx context.Context, now time.Time) (int, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list open dsr requests")
	}

	escalated := 0
	for _, r := range open {
		remaining := r.EffectiveDeadline().Sub(now)
		tier := models.TierFor(remaining)
		if !r.EscalationLevel.LessThan(tier) {
			continue
		}

		r.EscalationLevel = tier
		r.EscalatedAt = &now
		if err := s.save(ctx, r); err != nil {
			return escalated, err
		}
		if eventType := escalationEvent(tier); eventType != "" {
			if err := s.emit(ctx, eventType, r, map[string]any{"escalation_level": tier}); err != nil {
				return escalated, err
			}
		}
		if err := s.appendAudit(ctx, r.ID, "ESCALATED", r.AssignedTo, string(tier)); err != nil {
			return escalated, err
		}
		escalated++
	}
	return escalated, nil
}

// Summary computes the §4.9 daily-summary counts as of now. The result is
// observational only and is not persisted by this engine.
func (s *Service) Summary(ctx context.Context, now time.Time) (models.Summary, error) {
	sum, err := s.store.Summarize(ctx, now)
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "summarize dsr requests")
	}
	return sum, nil
}

// EmitDailySummary computes the daily-summary counts and appends the
// dsr.daily.summary outbox event, returning the counts for logging.
func (s *Service) EmitDailySummary(ctx context.Context, now time.Time) (models.Summary, error) {
	sum, err := s.Summary(ctx, now)
	if err != nil {
		return models.Summary{}, err
	}
	event, err := outbox.NewEvent("dsr_request", "summary", outbox.EventDSRDailySummary, map[string]any{
		"pending":     sum.Pending,
		"in_progress": sum.InProgress,
		"approaching": sum.Approaching,
		"overdue":     sum.Overdue,
	})
	if err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "build dsr daily summary event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return models.Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "append dsr daily summary event")
	}
	return sum, nil
}
