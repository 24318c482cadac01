package service

import (
	"context"
	"log/slog"
	"time"

	"credo/internal/consent/models"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the §4.8 daily consent sweep at 02:00 local-UTC: it emits
// CONSENT_EXPIRING_SOON for GRANTED rows expiring within 30 days (deduped on
// (consent_id, date) via Consent.LastExpiryNoticeDate), then transitions
// rows past their ExpiresAt to EXPIRED, emitting CONSENT_EXPIRED per row.
type Sweeper struct {
	svc    *Service
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSweeper(svc *Service, logger *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, logger: logger, cron: cron.New()}
}

// Start schedules the sweep on the given cron spec (default "0 2 * * *",
// 02:00 daily) and begins running it in the background.
func (sw *Sweeper) Start(spec string) error {
	if spec == "" {
		spec = "0 2 * * *"
	}
	_, err := sw.cron.AddFunc(spec, sw.runOnce)
	if err != nil {
		return err
	}
	sw.cron.Start()
	return nil
}

func (sw *Sweeper) Stop() {
	sw.cron.Stop()
}

func (sw *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	notified, err := sw.svc.notifyExpiringSoon(ctx, now)
	if err != nil {
		sw.logger.ErrorContext(ctx, "consent expiring-soon sweep failed", "error", err)
	} else {
		sw.logger.InfoContext(ctx, "consent expiring-soon sweep completed", "notified_count", notified)
	}

	expired, err := sw.svc.expireDue(ctx, now)
	if err != nil {
		sw.logger.ErrorContext(ctx, "consent expiry sweep failed", "error", err)
		return
	}
	sw.logger.InfoContext(ctx, "consent expiry sweep completed", "expired_count", expired)
}

// notifyExpiringSoon emits CONSENT_EXPIRING_SOON for every GRANTED consent
// expiring within expiringSoonWindow that has not already been notified
// today, then stamps LastExpiryNoticeDate so a second sweep the same day is
// a no-op for that row.
func (s *Service) notifyExpiringSoon(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.ListExpiringSoon(ctx, now, expiringSoonWindow)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expiring-soon consents")
	}

	today := now.Format("2006-01-02")
	notified := 0
	for _, c := range candidates {
		if c.LastExpiryNoticeDate == today {
			continue
		}
		daysUntilExpiry := int(c.ExpiresAt.Sub(now).Hours() / 24)
		if err := s.emit(ctx, outbox.EventConsentExpiringSoon, c, map[string]any{
			"daysUntilExpiry": daysUntilExpiry,
		}); err != nil {
			return notified, err
		}

		c.LastExpiryNoticeDate = today
		if err := s.save(ctx, c); err != nil {
			return notified, err
		}
		notified++
	}
	return notified, nil
}

// expireDue transitions every GRANTED consent past its ExpiresAt to EXPIRED,
// one row (one transaction) at a time, emitting CONSENT_EXPIRED for each.
func (s *Service) expireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "list expired consents")
	}

	expired := 0
	for _, c := range due {
		c.Status = models.StatusExpired
		if err := s.save(ctx, c); err != nil {
			return expired, err
		}
		if err := s.emit(ctx, outbox.EventConsentExpired, c, nil); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
