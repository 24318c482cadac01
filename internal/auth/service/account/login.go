package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"credo/internal/auth/device"
	"credo/internal/auth/mfa"
	"credo/internal/auth/models"
	sessionsvc "credo/internal/auth/service/session"
	"credo/internal/tenant/secrets"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

// dummyPasswordHash is a fixed bcrypt hash with no known plaintext, compared
// against on a not-found account so the verify step always runs (spec P6).
const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8Q3qiGKPHF3MiL5kAa2KyvvQQJFKSe"

// LoginPrimaryParams carries the inputs to LoginPrimary.
type LoginPrimaryParams struct {
	Email     string
	Password  string
	ClientID  id.ClientID
	TenantID  id.TenantID
	ClientIP  string
	UserAgent string
}

// LoginPrimaryResult is either a fully issued token pair (MFA disabled) or
// a challenge the caller must complete via LoginMFA. Exactly one of
// ChallengeID or AccessToken is populated.
type LoginPrimaryResult struct {
	MFARequired bool   `json:"mfa_required"`
	ChallengeID string `json:"challenge_id,omitempty"`

	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// LoginMFAParams carries the inputs to LoginMFA.
type LoginMFAParams struct {
	ChallengeID string
	Code        string
	Method      string // "totp" or "backup_code"
	ClientID    id.ClientID
	TenantID    id.TenantID
	ClientIP    string
	UserAgent   string
}

// TokenIssuedResult is the token pair issued once a session reaches ACTIVE.
type TokenIssuedResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	SessionID    string `json:"session_id"`
}

// LoginPrimary validates email/password (spec §4.5 step 1). With MFA
// disabled it creates an ACTIVE session and returns tokens directly; with
// MFA enabled it creates a PENDING_CONSENT session, mints an MFAChallenge,
// and returns ChallengeID for LoginMFA to complete.
func (s *Service) LoginPrimary(ctx context.Context, params LoginPrimaryParams) (*LoginPrimaryResult, error) {
	email := strings.TrimSpace(strings.ToLower(params.Email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Run the same bcrypt comparison against a dummy hash so a
			// missing account takes indistinguishable wall-time from a
			// wrong password against a real one (spec P6).
			_ = secrets.Verify(params.Password, dummyPasswordHash)
			return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}

	now := requestcontext.Now(ctx)
	if user.LockedUntil != nil && now.Before(*user.LockedUntil) {
		return nil, dErrors.New(dErrors.CodeAccountLocked, "account is temporarily locked due to repeated failed logins")
	}

	if verifyErr := secrets.Verify(params.Password, user.PasswordHash); verifyErr != nil {
		if err := s.recordFailedLogin(ctx, user); err != nil {
			return nil, err
		}
		return nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid email or password")
	}

	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil {
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
		if err := s.users.Save(ctx, user); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "clear lockout state")
		}
	}

	fingerprint := s.device.ComputeFingerprint(params.UserAgent)
	deviceName := device.ParseUserAgent(params.UserAgent)

	mfaVerified := user.MFAState != models.MFAStateEnabled
	sess, refreshToken, err := s.sessions.Create(ctx, sessionsvc.CreateParams{
		UserID:                user.ID,
		ClientID:              params.ClientID,
		TenantID:              params.TenantID,
		MFAVerified:           mfaVerified,
		DeviceFingerprintHash: fingerprint,
		DeviceDisplayName:     deviceName,
		ClientIP:              params.ClientIP,
		UserAgent:             params.UserAgent,
	})
	if err != nil {
		return nil, err
	}

	if mfaVerified {
		token, ttl, err := s.mintAccessToken(ctx, sess)
		if err != nil {
			return nil, err
		}
		if err := s.emit(ctx, outbox.EventLoginSuccess, user.ID.String(), map[string]any{
			"user_id": user.ID.String(), "session_id": sess.ID.String(),
		}); err != nil {
			return nil, err
		}
		return &LoginPrimaryResult{
			AccessToken:  token,
			RefreshToken: refreshToken,
			TokenType:    "Bearer",
			ExpiresIn:    int(ttl.Seconds()),
			SessionID:    sess.ID.String(),
		}, nil
	}

	// MFA is enabled: the session stays PENDING_CONSENT and neither token
	// reaches the caller until LoginMFA verifies the challenge below.
	rawChallengeID := make([]byte, 32)
	if _, err := rand.Read(rawChallengeID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mint mfa challenge id")
	}
	challengeID := hex.EncodeToString(rawChallengeID)
	challenge := pendingChallenge{
		Challenge: models.MFAChallenge{
			ChallengeID: challengeID,
			UserID:      user.ID,
			Email:       user.Email,
			ExpiresAt:   now.Add(challengeTTL),
		},
		SessionID:    sess.ID.String(),
		RefreshToken: refreshToken,
	}
	if err := s.saveChallenge(ctx, challenge); err != nil {
		return nil, err
	}

	return &LoginPrimaryResult{MFARequired: true, ChallengeID: challengeID}, nil
}

// pendingChallenge is the cache payload backing an in-flight MFA challenge:
// the public MFAChallenge plus the session/refresh-token pair already
// created for it, released to the caller only once LoginMFA succeeds.
type pendingChallenge struct {
	Challenge    models.MFAChallenge `json:"challenge"`
	SessionID    string              `json:"session_id"`
	RefreshToken string              `json:"refresh_token"`
}

func (s *Service) challengeKey(challengeID string) string {
	return s.challenges.KeyFor("mfa_challenge", challengeID)
}

func (s *Service) saveChallenge(ctx context.Context, challenge pendingChallenge) error {
	body, err := json.Marshal(challenge)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "encode mfa challenge")
	}
	if err := s.challenges.Set(ctx, s.challengeKey(challenge.Challenge.ChallengeID), body, challengeTTL); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store mfa challenge")
	}
	return nil
}

func (s *Service) loadChallenge(ctx context.Context, challengeID string) (*pendingChallenge, error) {
	raw, ok, err := s.challenges.Get(ctx, s.challengeKey(challengeID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load mfa challenge")
	}
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "mfa challenge not found or expired")
	}
	var challenge pendingChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "decode mfa challenge")
	}
	return &challenge, nil
}

// LoginMFA completes a pending challenge with a TOTP or backup code (spec
// §4.5 step 2), transitions the already-created session to ACTIVE, and
// issues tokens.
func (s *Service) LoginMFA(ctx context.Context, params LoginMFAParams) (*TokenIssuedResult, error) {
	challenge, err := s.loadChallenge(ctx, params.ChallengeID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	if now.After(challenge.Challenge.ExpiresAt) {
		_ = s.challenges.Delete(ctx, s.challengeKey(params.ChallengeID))
		return nil, dErrors.New(dErrors.CodeUnauthorized, "mfa challenge has expired")
	}

	user, err := s.users.FindByID(ctx, challenge.Challenge.UserID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load account")
	}

	var verified bool
	switch strings.ToLower(params.Method) {
	case "backup_code":
		idx := mfa.MatchBackupCode(params.Code, user.BackupCodeHashes)
		if idx >= 0 {
			verified = true
			user.BackupCodeHashes = append(user.BackupCodeHashes[:idx], user.BackupCodeHashes[idx+1:]...)
			if err := s.users.Save(ctx, user); err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "consume backup code")
			}
		}
	default:
		secret, decodeErr := mfa.DecodeSecret(user.TOTPSecretBase32)
		if decodeErr == nil {
			verified = mfa.VerifyTOTP(secret, params.Code, now)
		}
	}

	if !verified {
		if err := s.emit(ctx, outbox.EventMFAFailed, user.ID.String(), map[string]any{
			"user_id": user.ID.String(), "method": params.Method,
		}); err != nil {
			return nil, err
		}
		return nil, dErrors.New(dErrors.CodeInvalidMfaCode, "invalid mfa code")
	}

	sessionID, err := id.ParseSessionID(challenge.SessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "parse pending session id")
	}
	sess, err := s.sessions.SetMFAVerified(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_ = s.challenges.Delete(ctx, s.challengeKey(params.ChallengeID))

	token, ttl, err := s.mintAccessToken(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := s.emit(ctx, outbox.EventLoginSuccess, user.ID.String(), map[string]any{
		"user_id": user.ID.String(), "session_id": sess.ID.String(), "mfa": true,
	}); err != nil {
		return nil, err
	}

	return &TokenIssuedResult{
		AccessToken:  token,
		RefreshToken: challenge.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(ttl.Seconds()),
		SessionID:    sess.ID.String(),
	}, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, user *models.User) error {
	user.FailedLoginAttempts++
	if user.FailedLoginAttempts >= s.maxFailedLogins {
		lockUntil := requestcontext.Now(ctx).Add(s.lockoutDuration)
		user.LockedUntil = &lockUntil
	}
	if err := s.users.Save(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record failed login")
	}
	return nil
}

