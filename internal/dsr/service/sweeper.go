package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the §4.9 hourly escalation sweep and the 08:00 local-UTC
// daily summary. Both run as independent cron jobs so a failure in one
// never blocks the other.
type Sweeper struct {
	svc    *Service
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSweeper(svc *Service, logger *slog.Logger) *Sweeper {
	return &Sweeper{svc: svc, logger: logger, cron: cron.New()}
}

// Start schedules the escalation sweep (default hourly, "0 * * * *") and
// the daily summary (default "0 8 * * *", 08:00 daily) and begins running
// them in the background.
func (sw *Sweeper) Start(escalationSpec, summarySpec string) error {
	if escalationSpec == "" {
		escalationSpec = "0 * * * *"
	}
	if summarySpec == "" {
		summarySpec = "0 8 * * *"
	}
	if _, err := sw.cron.AddFunc(escalationSpec, sw.runEscalation); err != nil {
		return err
	}
	if _, err := sw.cron.AddFunc(summarySpec, sw.runSummary); err != nil {
		return err
	}
	sw.cron.Start()
	return nil
}

func (sw *Sweeper) Stop() {
	sw.cron.Stop()
}

func (sw *Sweeper) runEscalation() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now().UTC()
	escalated, err := sw.svc.runEscalationSweep(ctx, now)
	if err != nil {
		sw.logger.ErrorContext(ctx, "dsr escalation sweep failed", "error", err)
		return
	}
	sw.logger.InfoContext(ctx, "dsr escalation sweep completed", "escalated_count", escalated)
}

func (sw *Sweeper) runSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	sum, err := sw.svc.EmitDailySummary(ctx, now)
	if err != nil {
		sw.logger.ErrorContext(ctx, "dsr daily summary failed", "error", err)
		return
	}
	sw.logger.InfoContext(ctx, "dsr daily summary completed",
		"pending", sum.Pending, "in_progress", sum.InProgress,
		"approaching", sum.Approaching, "overdue", sum.Overdue)
}
