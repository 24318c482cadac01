// Package session implements the C4 Session Store contract: create,
// validate, refresh, revoke, revoke-all-except, and set-mfa-verified,
// against either the in-memory or Redis-backed internal/auth/store/session
// implementation.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"credo/internal/auth/models"
	sessionstore "credo/internal/auth/store/session"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/sentinel"
	"credo/pkg/requestcontext"
)

// Default lifetimes and throttle per spec §4.4.
const (
	DefaultAccessTokenTTL    = time.Hour
	DefaultRefreshTokenTTL   = 14 * 24 * time.Hour
	DefaultActivityThrottle = 60 * time.Second
)

// Store is the C4 persistence contract, satisfied by both
// internal/auth/store/session.InMemorySessionStore and .RedisStore.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	Execute(ctx context.Context, sessionID id.SessionID, validateFn func(*models.Session) error, mutateFn func(*models.Session)) (*models.Session, error)
	RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error)
	ListAll(ctx context.Context) ([]*models.Session, error)
	DeleteSessionsByUser(ctx context.Context, userID id.UserID) error
}

// Revoker marks an access token's jti revoked for the remainder of its
// natural lifetime (pkg/platform/cache.Cache.Revoke in production).
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// Option configures a Service's lifetimes and activity throttle.
type Option func(*Service)

func WithAccessTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.accessTokenTTL = ttl }
}

func WithRefreshTokenTTL(ttl time.Duration) Option {
	return func(s *Service) { s.refreshTokenTTL = ttl }
}

func WithActivityThrottle(d time.Duration) Option {
	return func(s *Service) { s.activityThrottle = d }
}

type Service struct {
	store   Store
	revoker Revoker

	accessTokenTTL    time.Duration
	refreshTokenTTL   time.Duration
	activityThrottle time.Duration
}

func New(store Store, revoker Revoker, opts ...Option) *Service {
	s := &Service{
		store:             store,
		revoker:           revoker,
		accessTokenTTL:    DefaultAccessTokenTTL,
		refreshTokenTTL:   DefaultRefreshTokenTTL,
		activityThrottle: DefaultActivityThrottle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AccessTokenTTL() time.Duration  { return s.accessTokenTTL }
func (s *Service) RefreshTokenTTL() time.Duration { return s.refreshTokenTTL }

// CreateParams carries the inputs to Create; everything identifying the
// requesting device comes from requestcontext at the HTTP edge.
type CreateParams struct {
	UserID         id.UserID
	ClientID       id.ClientID
	TenantID       id.TenantID
	RequestedScope []string
	MFAVerified    bool

	DeviceID              string
	DeviceFingerprintHash string
	DeviceDisplayName     string
	ApproximateLocation   string
	ClientIP              string
	UserAgent             string
}

// newRefreshToken returns a 32-byte CSPRNG token and the hex SHA-256 digest
// stored in its place (spec §4.4: only the digest is ever persisted).
func newRefreshToken() (plaintext string, hash string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "generate refresh token")
	}
	plaintext = hex.EncodeToString(raw)
	sum := sha256.Sum256([]byte(plaintext))
	hash = hex.EncodeToString(sum[:])
	return plaintext, hash, nil
}

// Create starts a new Session in PENDING_CONSENT when MFA has not yet been
// verified for this login, or ACTIVE when it has (non-MFA login passes
// MFAVerified=true since there is no challenge to clear).
// It returns the session plus the plaintext refresh token, which is never
// stored and must reach the caller now or not at all.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Session, string, error) {
	now := requestcontext.Now(ctx)

	refreshPlaintext, refreshHash, err := newRefreshToken()
	if err != nil {
		return nil, "", err
	}

	status := models.SessionStatusPendingConsent
	if params.MFAVerified {
		status = models.SessionStatusActive
	}

	sess := &models.Session{
		ID:                    id.NewSessionID(),
		UserID:                params.UserID,
		ClientID:              params.ClientID,
		TenantID:              params.TenantID,
		RequestedScope:        params.RequestedScope,
		Status:                status,
		RefreshTokenHash:      refreshHash,
		MFAVerified:           params.MFAVerified,
		DeviceID:              params.DeviceID,
		DeviceFingerprintHash: params.DeviceFingerprintHash,
		DeviceDisplayName:     params.DeviceDisplayName,
		ApproximateLocation:   params.ApproximateLocation,
		ClientIP:              params.ClientIP,
		UserAgent:             params.UserAgent,
		CreatedAt:             now,
		ExpiresAt:             now.Add(s.refreshTokenTTL),
		LastSeenAt:            now,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "create session")
	}
	return sess, refreshPlaintext, nil
}

// RecordAccessToken stores the jti of the access token just minted for
// this session, so a later Revoke also revokes that specific token via the
// Revoker rather than waiting out its natural expiry.
func (s *Service) RecordAccessToken(ctx context.Context, sessionID id.SessionID, jti string) error {
	_, err := s.store.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if sess.Status != models.SessionStatusActive && sess.Status != models.SessionStatusPendingConsent {
				return dErrors.New(dErrors.CodeInvalidState, "session is not active")
			}
			return nil
		},
		func(sess *models.Session) {
			sess.LastAccessTokenJTI = jti
		},
	)
	return s.translate(err, "record access token")
}

// SetMFAVerified transitions a pending-consent session to active once the
// MFA challenge has been verified (spec §4.5 step 2).
func (s *Service) SetMFAVerified(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.store.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if sess.Status == models.SessionStatusRevoked || sess.Status == models.SessionStatusExpired {
				return dErrors.New(dErrors.CodeInvalidState, "session is no longer active")
			}
			return nil
		},
		func(sess *models.Session) {
			sess.MFAVerified = true
			sess.Status = models.SessionStatusActive
		},
	)
	if err != nil {
		return nil, s.translate(err, "set mfa verified")
	}
	return sess, nil
}

// Get validates a session is active as of now and returns it; this is the
// Store-level half of "validate(token)" (the JWT signature/expiry half is
// internal/jwt_token's concern).
func (s *Service) Get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}
	if !sess.IsActive(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "session is not active")
	}
	return sess, nil
}

// Touch updates the sliding last-activity timestamp, throttled to at most
// once per activityThrottle to avoid write amplification on the hot path.
func (s *Service) Touch(ctx context.Context, sessionID id.SessionID) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if !sess.IsActive(now) {
				return dErrors.New(dErrors.CodeUnauthorized, "session is not active")
			}
			return nil
		},
		func(sess *models.Session) {
			if now.Sub(sess.LastSeenAt) >= s.activityThrottle {
				sess.LastSeenAt = now
			}
		},
	)
	return s.translate(err, "touch session")
}

// Refresh rotates the refresh token bound to sessionID after verifying
// presented matches the stored digest, extending the session's expiry by a
// fresh refreshTokenTTL window. The caller supplies sessionID directly
// (carried alongside the opaque refresh token at the edge) since the
// Store's contract is keyed by session ID, not by token lookup.
func (s *Service) Refresh(ctx context.Context, sessionID id.SessionID, presented string) (*models.Session, string, error) {
	now := requestcontext.Now(ctx)

	newPlaintext, newHash, err := newRefreshToken()
	if err != nil {
		return nil, "", err
	}

	presentedSum := sha256.Sum256([]byte(presented))
	presentedHash := hex.EncodeToString(presentedSum[:])

	sess, err := s.store.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if !sess.IsActive(now) {
				return dErrors.New(dErrors.CodeUnauthorized, "session is not active")
			}
			if sess.RefreshTokenHash != presentedHash {
				return dErrors.New(dErrors.CodeUnauthorized, "refresh token does not match")
			}
			return nil
		},
		func(sess *models.Session) {
			sess.RefreshTokenHash = newHash
			sess.ExpiresAt = now.Add(s.refreshTokenTTL)
			sess.LastRefreshedAt = &now
			sess.LastSeenAt = now
		},
	)
	if err != nil {
		return nil, "", s.translate(err, "refresh session")
	}
	return sess, newPlaintext, nil
}

// Revoke destroys sessionID, revoking its last-minted access token jti so
// it stops validating before its natural expiry too. Idempotent: revoking
// an already-revoked session is success (spec §4.5 logout).
func (s *Service) Revoke(ctx context.Context, sessionID id.SessionID) error {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load session")
	}

	now := requestcontext.Now(ctx)
	if err := s.store.RevokeSessionIfActive(ctx, sessionID, now); err != nil &&
		!errors.Is(err, sentinel.ErrNotFound) && !errors.Is(err, sessionstore.ErrSessionRevoked) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}

	if sess.LastAccessTokenJTI != "" && s.revoker != nil {
		ttl := time.Until(sess.ExpiresAt)
		if ttl <= 0 {
			ttl = time.Minute
		}
		if err := s.revoker.Revoke(ctx, sess.LastAccessTokenJTI, ttl); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "revoke access token")
		}
	}
	return nil
}

// RevokeAllExcept revokes every session for userID other than exceptID
// (spec §4.5 password change: invalidate all other sessions).
func (s *Service) RevokeAllExcept(ctx context.Context, userID id.UserID, exceptID id.SessionID) error {
	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}
	for _, sess := range sessions {
		if sess.ID == exceptID {
			continue
		}
		if err := s.Revoke(ctx, sess.ID); err != nil {
			return err
		}
	}
	return nil
}

// List renders every active session for userID as the SessionsResult view,
// marking currentID's entry IsCurrent.
func (s *Service) List(ctx context.Context, userID id.UserID, currentID id.SessionID) (*models.SessionsResult, error) {
	sessions, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list sessions")
	}

	now := requestcontext.Now(ctx)
	result := &models.SessionsResult{Sessions: make([]models.SessionSummary, 0, len(sessions))}
	for _, sess := range sessions {
		if !sess.IsActive(now) {
			continue
		}
		result.Sessions = append(result.Sessions, models.SessionSummary{
			SessionID:    sess.ID.String(),
			Device:       sess.DeviceDisplayName,
			IPAddress:    sess.ClientIP,
			Location:     sess.ApproximateLocation,
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastSeenAt,
			IsCurrent:    sess.ID == currentID,
		})
	}
	return result, nil
}

func (s *Service) translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnauthorized, "session not found")
	}
	var de *dErrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
