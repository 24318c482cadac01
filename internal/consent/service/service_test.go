package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"credo/internal/consent/models"
	consentstore "credo/internal/consent/store"
	id "credo/pkg/domain"
	dErrors "credo/pkg/domain-errors"
	"credo/pkg/platform/outbox"
	"credo/pkg/requestcontext"

	"github.com/stretchr/testify/suite"
)

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

// AGENTS.MD JUSTIFICATION: the C8 single-grant invariant, explicit
// withdrawal, and the daily expiring-soon/expired sweep have no coverage
// elsewhere in the pack; this suite is the only place they are exercised.
type ServiceSuite struct {
	suite.Suite
	svc    *Service
	store  *consentstore.InMemoryStore
	outbox *fakeOutbox
}

func (s *ServiceSuite) SetupTest() {
	s.store = consentstore.New()
	s.outbox = &fakeOutbox{}
	s.svc = New(s.store, s.outbox, NewShardedConsentTx(s.store, 0))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func (s *ServiceSuite) TestGrant_EmitsConsentGranted() {
	ctx := s.ctxAt(time.Now())
	c, err := s.svc.Grant(ctx, GrantParams{
		AccountID: id.NewUserID(), DocumentID: id.NewDocumentID(), Type: "TERMS_OF_SERVICE",
	})
	s.Require().NoError(err)
	s.Equal(models.StatusGranted, c.Status)
	s.Contains(s.outbox.types(), outbox.EventConsentGranted)
}

func (s *ServiceSuite) TestGrant_WithdrawsPriorGrantForSamePair() {
	ctx := s.ctxAt(time.Now())
	account := id.NewUserID()
	document := id.NewDocumentID()

	first, err := s.svc.Grant(ctx, GrantParams{AccountID: account, DocumentID: document, Type: "TERMS_OF_SERVICE"})
	s.Require().NoError(err)

	second, err := s.svc.Grant(ctx, GrantParams{AccountID: account, DocumentID: document, Type: "TERMS_OF_SERVICE"})
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	reloaded, err := s.store.FindByID(ctx, first.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusWithdrawn, reloaded.Status)

	granted, err := s.store.FindGranted(ctx, account, document)
	s.Require().NoError(err)
	s.Equal(second.ID, granted.ID)
}

func (s *ServiceSuite) TestWithdraw_IsExplicitAndEmitsEvent() {
	ctx := s.ctxAt(time.Now())
	c, err := s.svc.Grant(ctx, GrantParams{
		AccountID: id.NewUserID(), DocumentID: id.NewDocumentID(), Type: "MARKETING",
	})
	s.Require().NoError(err)

	withdrawn, err := s.svc.Withdraw(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusWithdrawn, withdrawn.Status)
	s.NotNil(withdrawn.WithdrawnAt)
	s.Contains(s.outbox.types(), outbox.EventConsentWithdrawn)
}

func (s *ServiceSuite) TestWithdraw_RejectsAlreadyWithdrawnConsent() {
	ctx := s.ctxAt(time.Now())
	c, err := s.svc.Grant(ctx, GrantParams{
		AccountID: id.NewUserID(), DocumentID: id.NewDocumentID(), Type: "MARKETING",
	})
	s.Require().NoError(err)

	_, err = s.svc.Withdraw(ctx, c.ID)
	s.Require().NoError(err)

	_, err = s.svc.Withdraw(ctx, c.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestSweep_NotifiesExpiringSoonOncePerDay() {
	now := time.Now().UTC()
	ctx := s.ctxAt(now)
	expiresAt := now.Add(10 * 24 * time.Hour)
	c, err := s.svc.Grant(ctx, GrantParams{
		AccountID: id.NewUserID(), DocumentID: id.NewDocumentID(), Type: "TERMS_OF_SERVICE", ExpiresAt: &expiresAt,
	})
	s.Require().NoError(err)

	notified, err := s.svc.notifyExpiringSoon(ctx, now)
	s.Require().NoError(err)
	s.Equal(1, notified)

	notifiedAgain, err := s.svc.notifyExpiringSoon(ctx, now)
	s.Require().NoError(err)
	s.Equal(0, notifiedAgain)

	reloaded, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.NotEmpty(reloaded.LastExpiryNoticeDate)
}

func (s *ServiceSuite) TestSweep_ExpiresDueConsentsAtomically() {
	now := time.Now().UTC()
	ctx := s.ctxAt(now)
	past := now.Add(-time.Hour)
	c, err := s.svc.Grant(ctx, GrantParams{
		AccountID: id.NewUserID(), DocumentID: id.NewDocumentID(), Type: "TERMS_OF_SERVICE", ExpiresAt: &past,
	})
	s.Require().NoError(err)

	expired, err := s.svc.expireDue(ctx, now)
	s.Require().NoError(err)
	s.Equal(1, expired)
	s.Contains(s.outbox.types(), outbox.EventConsentExpired)

	reloaded, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, reloaded.Status)
}

func (s *ServiceSuite) TestList_ReturnsEveryConsentRegardlessOfStatus() {
	ctx := s.ctxAt(time.Now())
	account := id.NewUserID()
	_, err := s.svc.Grant(ctx, GrantParams{AccountID: account, DocumentID: id.NewDocumentID(), Type: "TERMS_OF_SERVICE"})
	s.Require().NoError(err)
	_, err = s.svc.Grant(ctx, GrantParams{AccountID: account, DocumentID: id.NewDocumentID(), Type: "MARKETING"})
	s.Require().NoError(err)

	consents, err := s.svc.List(ctx, account)
	s.Require().NoError(err)
	s.Len(consents, 2)
}
