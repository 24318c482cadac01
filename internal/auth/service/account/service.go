// Package account implements the C5 Auth State Machine: registration,
// primary login, MFA challenge/verify, logout, password change, and MFA
// enrollment, against the typed-UUID Account model in internal/auth/models.
package account

import (
	"context"
	"time"

	"github.com/google/uuid"

	"credo/internal/auth/device"
	"credo/internal/auth/models"
	sessionsvc "credo/internal/auth/service/session"
	jwttoken "credo/internal/jwt_token"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
)

// UserStore is the C5 Account persistence contract, satisfied by
// internal/auth/store/user.InMemoryUserStore (and any future Postgres
// backend with the same shape).
type UserStore interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Delete(ctx context.Context, userID id.UserID) error
}

// ChallengeCache stores the short-lived MFAChallenge minted after a
// successful primary login (pkg/platform/cache.Cache in production; the
// challenge itself is a small JSON blob stored for challengeTTL).
type ChallengeCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	KeyFor(family string, parts ...string) string
}

// OutboxAppender is the C2 transactional-outbox write side.
type OutboxAppender interface {
	Append(ctx context.Context, event outbox.Event) error
}

const (
	challengeTTL     = 5 * time.Minute
	maxFailedLogins  = 5
	lockoutDuration  = 15 * time.Minute
	issuerForTOTP    = "credo"
)

// Service is the C5 Auth State Machine. It issues its own access tokens
// (via jwtService) independently of any particular transport, and delegates
// session lifecycle to sessionsvc.Service so the two concerns (credential
// state vs. session state) stay decoupled the way the store layer already
// splits them.
type Service struct {
	users      UserStore
	sessions   *sessionsvc.Service
	challenges ChallengeCache
	outbox     OutboxAppender
	jwt        *jwttoken.JWTService
	device     *device.Service

	maxFailedLogins int
	lockoutDuration time.Duration
}

// Option configures a Service beyond its required collaborators.
type Option func(*Service)

func WithDeviceService(d *device.Service) Option {
	return func(s *Service) { s.device = d }
}

func WithLockoutPolicy(maxFailed int, duration time.Duration) Option {
	return func(s *Service) {
		s.maxFailedLogins = maxFailed
		s.lockoutDuration = duration
	}
}

// New constructs the Service. jwt may be nil only for callers that never
// exercise LoginPrimary/LoginMFA (e.g. a Register-only test double); any
// production wiring must pass a real JWTService.
func New(users UserStore, sessions *sessionsvc.Service, challenges ChallengeCache, ob OutboxAppender, jwt *jwttoken.JWTService, opts ...Option) (*Service, error) {
	if users == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "account: users store is required")
	}
	if sessions == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "account: session service is required")
	}
	if ob == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "account: outbox appender is required")
	}
	s := &Service{
		users:           users,
		sessions:        sessions,
		challenges:      challenges,
		outbox:          ob,
		jwt:             jwt,
		device:          device.NewService(true),
		maxFailedLogins: maxFailedLogins,
		lockoutDuration: lockoutDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) emit(ctx context.Context, eventType string, aggregateID string, payload map[string]any) error {
	event, err := outbox.NewEvent("account", aggregateID, eventType, payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "build outbox event")
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "append outbox event")
	}
	return nil
}

// mintAccessToken mints a signed access token for sess and records its jti
// against the session so a later revocation reaches this specific token.
func (s *Service) mintAccessToken(ctx context.Context, sess *models.Session) (string, time.Duration, error) {
	ttl := s.sessions.AccessTokenTTL()
	token, jti, err := s.jwt.GenerateAccessToken(
		uuid.UUID(sess.UserID), uuid.UUID(sess.ID), sess.ClientID.String(), ttl)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "mint access token")
	}
	if err := s.sessions.RecordAccessToken(ctx, sess.ID, jti); err != nil {
		return "", 0, err
	}
	return token, ttl, nil
}
