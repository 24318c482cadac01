package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"credo/internal/auth/models"
	sessionstore "credo/internal/auth/store/session"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/requestcontext"

	"github.com/stretchr/testify/suite"
)

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newFakeRevoker() *fakeRevoker { return &fakeRevoker{revoked: make(map[string]time.Duration)} }

func (f *fakeRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeRevoker) has(jti string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok
}

type ServiceSuite struct {
	suite.Suite
	svc     *Service
	store   *sessionstore.InMemorySessionStore
	revoker *fakeRevoker
}

func (s *ServiceSuite) SetupTest() {
	s.store = sessionstore.New()
	s.revoker = newFakeRevoker()
	s.svc = New(s.store, s.revoker)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func (s *ServiceSuite) TestCreate_MFAVerifiedIsActive() {
	ctx := s.ctxAt(time.Now())
	sess, refresh, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusActive, sess.Status)
	s.NotEmpty(refresh)
	s.NotEqual(refresh, sess.RefreshTokenHash)
}

func (s *ServiceSuite) TestCreate_MFAPendingIsPendingConsent() {
	ctx := s.ctxAt(time.Now())
	sess, _, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: false})
	s.Require().NoError(err)
	s.Equal(models.SessionStatusPendingConsent, sess.Status)
	s.False(sess.IsActive(time.Now()))
}

func (s *ServiceSuite) TestSetMFAVerified_TransitionsToActive() {
	ctx := s.ctxAt(time.Now())
	sess, _, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: false})
	s.Require().NoError(err)

	verified, err := s.svc.SetMFAVerified(ctx, sess.ID)
	s.Require().NoError(err)
	s.Equal(models.SessionStatusActive, verified.Status)
	s.True(verified.MFAVerified)
}

func (s *ServiceSuite) TestRefresh_RejectsWrongToken() {
	ctx := s.ctxAt(time.Now())
	sess, _, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)

	_, _, err = s.svc.Refresh(ctx, sess.ID, "wrong-token")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRefresh_RotatesTokenAndExtendsExpiry() {
	now := time.Now()
	ctx := s.ctxAt(now)
	sess, refresh, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)
	originalExpiry := sess.ExpiresAt

	later := now.Add(time.Hour)
	refreshed, newToken, err := s.svc.Refresh(s.ctxAt(later), sess.ID, refresh)
	s.Require().NoError(err)
	s.NotEqual(refresh, newToken)
	s.True(refreshed.ExpiresAt.After(originalExpiry))

	_, _, err = s.svc.Refresh(s.ctxAt(later), sess.ID, refresh)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "the old refresh token must no longer validate")
}

func (s *ServiceSuite) TestRevoke_RevokesAccessTokenJTI() {
	ctx := s.ctxAt(time.Now())
	sess, _, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RecordAccessToken(ctx, sess.ID, "jti-123"))
	s.Require().NoError(s.svc.Revoke(ctx, sess.ID))
	s.True(s.revoker.has("jti-123"))

	_, err = s.svc.Get(ctx, sess.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestRevoke_IsIdempotent() {
	ctx := s.ctxAt(time.Now())
	sess, _, err := s.svc.Create(ctx, CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Revoke(ctx, sess.ID))
	s.Require().NoError(s.svc.Revoke(ctx, sess.ID))
}

func (s *ServiceSuite) TestRevoke_UnknownSessionIsSuccess() {
	ctx := s.ctxAt(time.Now())
	s.Require().NoError(s.svc.Revoke(ctx, id.NewSessionID()))
}

func (s *ServiceSuite) TestRevokeAllExcept_LeavesCurrentSessionActive() {
	ctx := s.ctxAt(time.Now())
	userID := id.NewUserID()
	current, _, err := s.svc.Create(ctx, CreateParams{UserID: userID, MFAVerified: true})
	s.Require().NoError(err)
	other, _, err := s.svc.Create(ctx, CreateParams{UserID: userID, MFAVerified: true})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.RevokeAllExcept(ctx, userID, current.ID))

	_, err = s.svc.Get(ctx, current.ID)
	s.NoError(err)
	_, err = s.svc.Get(ctx, other.ID)
	s.Error(err)
}

func (s *ServiceSuite) TestList_MarksCurrentSession() {
	ctx := s.ctxAt(time.Now())
	userID := id.NewUserID()
	current, _, err := s.svc.Create(ctx, CreateParams{UserID: userID, MFAVerified: true, DeviceDisplayName: "Chrome on macOS"})
	s.Require().NoError(err)
	_, _, err = s.svc.Create(ctx, CreateParams{UserID: userID, MFAVerified: true})
	s.Require().NoError(err)

	result, err := s.svc.List(ctx, userID, current.ID)
	s.Require().NoError(err)
	s.Len(result.Sessions, 2)

	var foundCurrent bool
	for _, summary := range result.Sessions {
		if summary.SessionID == current.ID.String() {
			foundCurrent = true
			s.True(summary.IsCurrent)
			s.Equal("Chrome on macOS", summary.Device)
		}
	}
	s.True(foundCurrent)
}

func (s *ServiceSuite) TestTouch_UpdatesLastSeenPastThrottle() {
	now := time.Now()
	sess, _, err := s.svc.Create(s.ctxAt(now), CreateParams{UserID: id.NewUserID(), MFAVerified: true})
	s.Require().NoError(err)

	later := now.Add(2 * time.Minute)
	s.Require().NoError(s.svc.Touch(s.ctxAt(later), sess.ID))

	updated, err := s.svc.Get(s.ctxAt(later), sess.ID)
	s.Require().NoError(err)
	s.True(updated.LastSeenAt.After(sess.LastSeenAt))
}
