// Package models holds the Consent entity behind C8.
package models

import (
	"time"

	id "credo/pkg/domain"
)

// Status is a consent record's lifecycle state.
type Status string

const (
	StatusGranted   Status = "GRANTED"
	StatusWithdrawn Status = "WITHDRAWN"
	StatusExpired   Status = "EXPIRED"
)

// Consent records one account's agreement (or withdrawal) for one document.
// At most one GRANTED consent may exist per (AccountID, DocumentID) — the
// service layer enforces this by withdrawing any existing grant before
// recording a new one.
type Consent struct {
	ID         id.ConsentID
	AccountID  id.UserID
	DocumentID id.DocumentID
	Type       string // mirrors legal.ConsentType without importing internal/legal

	Status Status

	GrantedAt   time.Time
	WithdrawnAt *time.Time
	ExpiresAt   *time.Time

	// LastExpiryNoticeDate dedupes the daily expiring-soon sweep: a row
	// already notified on a given date is skipped on subsequent sweeps that
	// same day (spec: "callers MUST dedupe on (consent_id, date)").
	LastExpiryNoticeDate string // "YYYY-MM-DD", empty = never notified

	IPAddress string
	UserAgent string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpiringWithin reports whether the consent's ExpiresAt falls in
// (now, now+window].
func (c *Consent) IsExpiringWithin(now time.Time, window time.Duration) bool {
	if c.Status != StatusGranted || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.After(now) && !c.ExpiresAt.After(now.Add(window))
}

// IsExpired reports whether the consent's ExpiresAt has passed.
func (c *Consent) IsExpired(now time.Time) bool {
	return c.Status == StatusGranted && c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
