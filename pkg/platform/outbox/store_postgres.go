package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "credo/pkg/platform/tx"

	"github.com/google/uuid"
)

// PostgresStore implements Store against a single `outbox` table shared by
// every producer in the system (sanction, consent, dsr, auth). Append joins
// the caller's transaction when present so the business write and the
// outbox row commit or roll back together (P2).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID, event.AggregateType, event.AggregateID, event.EventType,
		[]byte(event.Payload), event.CreatedAt, event.NextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("outbox: insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]Event, error) {
	const query = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
		       created_at, published_at, retry_count, next_attempt_at
		FROM outbox
		WHERE published_at IS NULL AND next_attempt_at <= $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := s.db.QueryContext(ctx, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: fetch unpublished: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev          Event
			publishedAt sql.NullTime
		)
		if err := rows.Scan(
			&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &ev.Payload,
			&ev.CreatedAt, &publishedAt, &ev.RetryCount, &ev.NextAttemptAt,
		); err != nil {
			return nil, fmt.Errorf("outbox: scan event: %w", err)
		}
		if publishedAt.Valid {
			ev.PublishedAt = &publishedAt.Time
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	const query = `UPDATE outbox SET published_at = $2 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id, publishedAt)
	if err != nil {
		return fmt.Errorf("outbox: mark published: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, nextAttemptAt time.Time) error {
	const query = `UPDATE outbox SET retry_count = $2, next_attempt_at = $3 WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, id, retryCount, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("outbox: mark failed: %w", err)
	}
	return nil
}
