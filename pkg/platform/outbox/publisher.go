package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Backoff parameters for the publisher's retry schedule (spec §4.2):
// next_attempt_at := now + min(2^retry_count * base, cap).
const (
	DefaultBaseBackoff = 2 * time.Second
	DefaultMaxBackoff  = 5 * time.Minute
	// DefaultMaxRetries bounds automatic retries; rows beyond this are left
	// untouched for an operator sweep rather than dropped (spec: "never
	// dropped").
	DefaultMaxRetries = 20
)

// Publisher polls Store for unpublished rows, ordered by created_at, and
// delivers each to Bus at-least-once.
type Publisher struct {
	store Store
	bus   Bus
	log   *slog.Logger

	batchSize   int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxRetries  int
}

type Option func(*Publisher)

func WithLogger(l *slog.Logger) Option { return func(p *Publisher) { p.log = l } }
func WithBatchSize(n int) Option       { return func(p *Publisher) { p.batchSize = n } }
func WithBackoff(base, capDur time.Duration) Option {
	return func(p *Publisher) { p.baseBackoff = base; p.maxBackoff = capDur }
}
func WithMaxRetries(n int) Option { return func(p *Publisher) { p.maxRetries = n } }

func NewPublisher(store Store, bus Bus, opts ...Option) *Publisher {
	p := &Publisher{
		store:       store,
		bus:         bus,
		log:         slog.Default(),
		batchSize:   100,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		maxRetries:  DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DrainOnce publishes one batch of unpublished rows and returns how many
// were successfully published. Safe to call repeatedly from a ticking
// background task (spec §5: sweepers cancel their current batch at deadline
// and proceed on the next tick; partial progress is safe since each row is
// its own transaction boundary).
func (p *Publisher) DrainOnce(ctx context.Context) (published int, err error) {
	rows, err := p.store.FetchUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if row.RetryCount >= p.maxRetries {
			// Left for an operator sweep; never dropped.
			continue
		}

		if err := p.bus.Publish(ctx, row); err != nil {
			p.log.ErrorContext(ctx, "outbox publish failed",
				"event_id", row.ID, "event_type", row.EventType, "retry_count", row.RetryCount, "error", err)

			nextRetry := row.RetryCount + 1
			delay := p.baseBackoff << nextRetry
			if delay > p.maxBackoff || delay <= 0 {
				delay = p.maxBackoff
			}
			if markErr := p.store.MarkFailed(ctx, row.ID, nextRetry, time.Now().UTC().Add(delay)); markErr != nil {
				p.log.ErrorContext(ctx, "outbox mark-failed failed", "event_id", row.ID, "error", markErr)
			}
			continue
		}

		if err := p.store.MarkPublished(ctx, row.ID, time.Now().UTC()); err != nil {
			p.log.ErrorContext(ctx, "outbox mark-published failed", "event_id", row.ID, "error", err)
			continue
		}
		published++
	}

	return published, nil
}

// Run drains on every tick until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.DrainOnce(ctx); err != nil && ctx.Err() == nil {
				p.log.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}
