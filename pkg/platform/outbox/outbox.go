// Package outbox implements the transactional outbox pattern (spec C2):
// business state mutation and the intent to publish an event commit or
// roll back together, because both happen inside the caller's DB
// transaction. A separate background Publisher drains unpublished rows to
// a message bus at-least-once.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stable event type tokens emitted by this spec (§4.2). Consumers key their
// idempotency on (AggregateID, EventType, CreatedAt).
const (
	EventSanctionApplied        = "SANCTION_APPLIED"
	EventSanctionRevoked        = "SANCTION_REVOKED"
	EventSanctionExtended       = "SANCTION_EXTENDED"
	EventSanctionReduced        = "SANCTION_REDUCED"
	EventSanctionAppealFiled    = "SANCTION_APPEAL_SUBMITTED"
	EventSanctionAppealReviewed = "SANCTION_APPEAL_REVIEWED"

	EventConsentGranted      = "CONSENT_GRANTED"
	EventConsentWithdrawn    = "CONSENT_WITHDRAWN"
	EventConsentExpiringSoon = "CONSENT_EXPIRING_SOON"
	EventConsentExpired      = "CONSENT_EXPIRED"

	EventDSRDeadlineWarning  = "DSR_DEADLINE_WARNING"
	EventDSRDeadlineCritical = "DSR_DEADLINE_CRITICAL"
	EventDSRDeadlineOverdue  = "DSR_DEADLINE_OVERDUE"
	EventDSRDailySummary     = "dsr.daily.summary"

	EventAccountRegistered = "ACCOUNT_REGISTERED"
	EventLoginSuccess      = "LOGIN_SUCCESS"
	EventMFAFailed         = "MFA_FAILED"
	EventLogout            = "LOGOUT"
	EventPasswordChanged   = "PASSWORD_CHANGED"
	EventMFAEnabled        = "MFA_ENABLED"
	EventMFADisabled       = "MFA_DISABLED"
)

// Event is a row appended to the outbox table. Payload is already
// marshalled JSON so the producer transaction never depends on the
// publisher's encoding concerns.
type Event struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       json.RawMessage
	CreatedAt     time.Time
	PublishedAt   *time.Time
	RetryCount    int
	NextAttemptAt time.Time
}

// NewEvent builds an Event ready for Store.Append, marshalling payload to
// JSON. CreatedAt/NextAttemptAt default to now.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	now := time.Now().UTC()
	return Event{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		CreatedAt:     now,
		NextAttemptAt: now,
	}, nil
}

// Store persists outbox rows and lets the Publisher drain them. Append MUST
// be called with a context carrying the caller's transaction
// (pkg/platform/tx.WithTx) so the row commits atomically with the business
// write (P2: exactly one outbox row per observable transition, or none).
type Store interface {
	Append(ctx context.Context, event Event) error
	FetchUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, retryCount int, nextAttemptAt time.Time) error
}

// Bus is the message-bus side the Publisher delivers to. Implemented by
// internal/platform/kafka/producer.Producer.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}
