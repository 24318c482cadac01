package models

import (
	"time"

	id "credo/pkg/domain"
)

type SessionStatus string

const (
	SessionStatusPendingConsent SessionStatus = "pending_consent"
	SessionStatusActive         SessionStatus = "active"
	SessionStatusRevoked        SessionStatus = "revoked"
	SessionStatusExpired        SessionStatus = "expired"
)

// Session is the persisted record behind C4: a Session is created once at
// login/registration and carries the state the access/refresh token pair
// and the edge cookie are issued against.
type Session struct {
	ID       id.SessionID
	UserID   id.UserID
	ClientID id.ClientID
	TenantID id.TenantID

	RequestedScope []string
	Status         SessionStatus

	// LastAccessTokenJTI is the jti of the most recently minted access
	// token for this session, recorded so revoking the session also
	// revokes that token via cache.IsRevoked.
	LastAccessTokenJTI string

	// RefreshTokenHash is the SHA-256 digest of the opaque refresh token;
	// the plaintext token is never persisted.
	RefreshTokenHash string

	MFAVerified bool

	DeviceID              string
	DeviceFingerprintHash string
	DeviceDisplayName     string
	ApproximateLocation   string
	ClientIP              string
	UserAgent             string

	CreatedAt       time.Time
	ExpiresAt       time.Time
	LastSeenAt      time.Time
	LastRefreshedAt *time.Time
	RevokedAt       *time.Time
}

func (s *Session) IsActive(now time.Time) bool {
	return s.Status == SessionStatusActive && s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
