package models

import (
	"time"

	id "credo/pkg/domain"
)

// MFAState is the C5 MFA setup state machine: DISABLED -> PROVISIONED ->
// ENABLED, collapsing back to DISABLED from anywhere on disable.
type MFAState string

const (
	MFAStateDisabled    MFAState = "DISABLED"
	MFAStateProvisioned MFAState = "PROVISIONED"
	MFAStateEnabled     MFAState = "ENABLED"
)

// User is the Account entity (§4.5): the credential and MFA state an
// authentication flow operates on. Storage of the raw password is never
// attempted — only PasswordHash survives a request.
type User struct {
	ID        id.UserID
	TenantID  id.TenantID
	Email     string
	FirstName string
	LastName  string
	Verified  bool

	PasswordHash string

	MFAState         MFAState
	TOTPSecretBase32 string
	BackupCodeHashes []string

	// FailedLoginAttempts counts consecutive primary-login failures since
	// the last success; LockedUntil, once set, blocks login attempts until
	// that instant passes (spec §4.5 lockout).
	FailedLoginAttempts int
	LockedUntil         *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MFAChallenge is the short-lived record minted after a successful primary
// login when MFA is enabled. It is stored in the shared cache (C1), not a
// local process map, so any replica can complete the verification step.
type MFAChallenge struct {
	ChallengeID string
	UserID      id.UserID
	Email       string
	ExpiresAt   time.Time
}
