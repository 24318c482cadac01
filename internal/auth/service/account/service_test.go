package account

import (
	"context"
	"sync"
	"testing"
	"time"

	"credo/internal/auth/mfa"
	sessionsvc "credo/internal/auth/service/session"
	sessionstore "credo/internal/auth/store/session"
	userstore "credo/internal/auth/store/user"
	jwttoken "credo/internal/jwt_token"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"

	"github.com/stretchr/testify/suite"
)

func mustUserID(s string) id.UserID {
	parsed, err := id.ParseUserID(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func mustSessionID(s string) id.SessionID {
	parsed, err := id.ParseSessionID(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (o *fakeOutbox) Append(ctx context.Context, event outbox.Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
	return nil
}

func (o *fakeOutbox) types() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.events))
	for i, e := range o.events {
		out[i] = e.EventType
	}
	return out
}

// fakeChallengeCache is an in-memory stand-in for pkg/platform/cache.Cache,
// scoped to exactly the surface ChallengeCache needs.
type fakeChallengeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeChallengeCache() *fakeChallengeCache {
	return &fakeChallengeCache{data: make(map[string][]byte)}
}

func (c *fakeChallengeCache) KeyFor(family string, parts ...string) string {
	key := "test:" + family
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

func (c *fakeChallengeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeChallengeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeChallengeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// AGENTS.MD JUSTIFICATION: the C5 auth state machine (register, two-step
// login, MFA enrollment, password change) has no feature-level coverage
// elsewhere in the pack; this suite is the only place it is exercised end
// to end.
type ServiceSuite struct {
	suite.Suite
	svc        *Service
	users      *userstore.InMemoryUserStore
	challenges *fakeChallengeCache
	outbox     *fakeOutbox
}

func (s *ServiceSuite) SetupTest() {
	s.users = userstore.New()
	s.challenges = newFakeChallengeCache()
	s.outbox = &fakeOutbox{}

	sessionStore := sessionstore.New()
	sessionService := sessionsvc.New(sessionStore, nil)
	jwtService := jwttoken.NewJWTService("test-signing-key", "credo-test", "credo-test-api")

	var err error
	s.svc, err = New(s.users, sessionService, s.challenges, s.outbox, jwtService)
	s.Require().NoError(err)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), time.Now())
}

func (s *ServiceSuite) registerAlice() *RegisterResult {
	result, err := s.svc.Register(s.ctx(), RegisterParams{
		Email:     "alice@example.com",
		Password:  "SecurePassword123!",
		FirstName: "Alice",
		LastName:  "Liddell",
	})
	s.Require().NoError(err)
	return result
}

func (s *ServiceSuite) TestRegister_Succeeds() {
	result := s.registerAlice()
	s.Equal("alice@example.com", result.Email)
	s.Contains(s.outbox.types(), outbox.EventAccountRegistered)
}

func (s *ServiceSuite) TestRegister_DuplicateEmailConflicts() {
	s.registerAlice()
	_, err := s.svc.Register(s.ctx(), RegisterParams{Email: "alice@example.com", Password: "AnotherPassword123!"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestLoginPrimary_WrongPasswordIsInvalidCredentials() {
	s.registerAlice()
	_, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "wrong-password"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *ServiceSuite) TestLoginPrimary_UnknownEmailIsInvalidCredentials() {
	_, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "nobody@example.com", Password: "whatever123"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *ServiceSuite) TestLoginPrimary_NoMFAIssuesTokensDirectly() {
	s.registerAlice()
	result, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{
		Email: "alice@example.com", Password: "SecurePassword123!",
	})
	s.Require().NoError(err)
	s.False(result.MFARequired)
	s.NotEmpty(result.AccessToken)
	s.NotEmpty(result.SessionID)
	s.Contains(s.outbox.types(), outbox.EventLoginSuccess)
}

func (s *ServiceSuite) TestLoginPrimary_LocksAfterRepeatedFailures() {
	s.registerAlice()
	for i := 0; i < s.svc.maxFailedLogins; i++ {
		_, _ = s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "wrong"})
	}
	_, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "SecurePassword123!"})
	s.True(dErrors.HasCode(err, dErrors.CodeAccountLocked))
}

func (s *ServiceSuite) TestMFAFlow_SetupVerifyAndLoginChallenge() {
	registered := s.registerAlice()

	setup, err := s.svc.SetupMFA(s.ctx(), mustUserID(registered.UserID))
	s.Require().NoError(err)
	s.NotEmpty(setup.Secret)
	s.Len(setup.BackupCodes, mfa.BackupCodeCount)

	secret, err := mfa.DecodeSecret(setup.Secret)
	s.Require().NoError(err)
	code := mfa.GenerateTOTP(secret, time.Now())
	s.Require().NoError(s.svc.VerifyMFASetup(s.ctx(), mustUserID(registered.UserID), code))

	loginResult, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{
		Email: "alice@example.com", Password: "SecurePassword123!",
	})
	s.Require().NoError(err)
	s.True(loginResult.MFARequired)
	s.NotEmpty(loginResult.ChallengeID)

	mfaCode := mfa.GenerateTOTP(secret, time.Now())
	issued, err := s.svc.LoginMFA(s.ctx(), LoginMFAParams{
		ChallengeID: loginResult.ChallengeID, Code: mfaCode, Method: "totp",
	})
	s.Require().NoError(err)
	s.NotEmpty(issued.AccessToken)
}

func (s *ServiceSuite) TestLoginMFA_WrongCodeFails() {
	registered := s.registerAlice()
	setup, err := s.svc.SetupMFA(s.ctx(), mustUserID(registered.UserID))
	s.Require().NoError(err)
	secret, _ := mfa.DecodeSecret(setup.Secret)
	code := mfa.GenerateTOTP(secret, time.Now())
	s.Require().NoError(s.svc.VerifyMFASetup(s.ctx(), mustUserID(registered.UserID), code))

	loginResult, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{
		Email: "alice@example.com", Password: "SecurePassword123!",
	})
	s.Require().NoError(err)

	_, err = s.svc.LoginMFA(s.ctx(), LoginMFAParams{
		ChallengeID: loginResult.ChallengeID, Code: "000000", Method: "totp",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidMfaCode))
}

func (s *ServiceSuite) TestChangePassword_InvalidatesOtherSessions() {
	s.registerAlice()
	first, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "SecurePassword123!"})
	s.Require().NoError(err)
	second, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "SecurePassword123!"})
	s.Require().NoError(err)

	user, err := s.users.FindByEmail(s.ctx(), "alice@example.com")
	s.Require().NoError(err)

	err = s.svc.ChangePassword(s.ctx(), ChangePasswordParams{
		UserID:           user.ID,
		CurrentSessionID: mustSessionID(second.SessionID),
		CurrentPassword:  "SecurePassword123!",
		NewPassword:      "EvenMoreSecure456!",
	})
	s.Require().NoError(err)
	s.Contains(s.outbox.types(), outbox.EventPasswordChanged)

	_, err = s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "SecurePassword123!"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))

	// the session used to change the password survives; the other does not
	_, err = s.svc.sessions.Get(s.ctx(), mustSessionID(second.SessionID))
	s.NoError(err)
	_, err = s.svc.sessions.Get(s.ctx(), mustSessionID(first.SessionID))
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestLogout_IsIdempotent() {
	s.registerAlice()
	login, err := s.svc.LoginPrimary(s.ctx(), LoginPrimaryParams{Email: "alice@example.com", Password: "SecurePassword123!"})
	s.Require().NoError(err)

	user, err := s.users.FindByEmail(s.ctx(), "alice@example.com")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Logout(s.ctx(), user.ID, mustSessionID(login.SessionID)))
	s.Require().NoError(s.svc.Logout(s.ctx(), user.ID, mustSessionID(login.SessionID)))
	s.Contains(s.outbox.types(), outbox.EventLogout)
}
