package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiryStore is the bulk-update surface the sweeper needs; satisfied by
// sanction/store.PostgresStore.
type ExpiryStore interface {
	BulkExpire(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper runs the §4.6 expiry sweep at least every minute: bulk-transition
// ACTIVE sanctions with end_at <= now to EXPIRED. Expiration does not emit
// an outbox event — it is derivable from time plus the prior ACTIVE state.
type Sweeper struct {
	store  ExpiryStore
	logger *slog.Logger
	cron   *cron.Cron
}

func NewSweeper(store ExpiryStore, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start schedules the sweep on the given cron spec (default "@every 1m")
// and begins running it in the background.
func (sw *Sweeper) Start(spec string) error {
	if spec == "" {
		spec = "@every 1m"
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
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := sw.store.BulkExpire(ctx, time.Now())
	if err != nil {
		sw.logger.ErrorContext(ctx, "sanction expiry sweep failed", "error", err)
		return
	}
	sw.logger.InfoContext(ctx, "sanction expiry sweep completed", "expired_count", count)
}
