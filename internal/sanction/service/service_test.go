package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"credo/internal/sanction/models"
	sanctionstore "credo/internal/sanction/store"
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

// AGENTS.MD JUSTIFICATION: the C6 sanction lifecycle, appeal sub-machine,
// and active-set query have no feature-level coverage elsewhere in the
// pack; this suite is the only place they are exercised end to end.
type ServiceSuite struct {
	suite.Suite
	svc    *Service
	store  *sanctionstore.InMemoryStore
	outbox *fakeOutbox
}

func (s *ServiceSuite) SetupTest() {
	s.store = sanctionstore.New()
	s.outbox = &fakeOutbox{}
	s.svc = New(s.store, s.outbox)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func (s *ServiceSuite) TestCreate_IsActiveAndEmitsApplied() {
	ctx := s.ctxAt(time.Now())
	sanction, err := s.svc.Create(ctx, CreateParams{
		SubjectID:   id.NewUserID(),
		SubjectType: models.SubjectTypeAccount,
		Type:        models.SanctionTypeWarning,
		IssuerID:    id.NewUserID(),
		IssuerType:  models.SubjectTypeOperator,
	})
	s.Require().NoError(err)
	s.Equal(models.SanctionStatusActive, sanction.Status)
	s.Contains(s.outbox.types(), outbox.EventSanctionApplied)
}

func (s *ServiceSuite) TestRevoke_RejectsNonActiveSanction() {
	ctx := s.ctxAt(time.Now())
	sanction, err := s.svc.Create(ctx, CreateParams{
		SubjectID: id.NewUserID(), Type: models.SanctionTypeWarning, IssuerID: id.NewUserID(),
	})
	s.Require().NoError(err)

	_, err = s.svc.Revoke(ctx, sanction.ID)
	s.Require().NoError(err)

	_, err = s.svc.Revoke(ctx, sanction.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestGetActive_FiltersByWindowAndScope() {
	now := time.Now()
	ctx := s.ctxAt(now)
	subject := id.NewUserID()

	start := now.Add(-2 * time.Hour)
	past := now.Add(-time.Hour)
	_, err := s.svc.Create(ctx, CreateParams{
		SubjectID: subject, Type: models.SanctionTypeTemporaryBan, IssuerID: id.NewUserID(),
		StartAt: &start, EndAt: &past,
	})
	s.Require().NoError(err)

	future := now.Add(time.Hour)
	_, err = s.svc.Create(ctx, CreateParams{
		SubjectID: subject, Type: models.SanctionTypeFeatureRestriction, IssuerID: id.NewUserID(),
		Service: "payments", RestrictedFeatures: []string{"withdraw"}, EndAt: &future,
	})
	s.Require().NoError(err)

	view, err := s.svc.GetActive(ctx, subject, "payments")
	s.Require().NoError(err)
	s.Len(view.Sanctions, 1)
	s.Equal([]string{"withdraw"}, view.RestrictedFeatures)
	s.False(view.IsPermanentlyBanned)

	viewOtherService, err := s.svc.GetActive(ctx, subject, "chat")
	s.Require().NoError(err)
	s.Len(viewOtherService.Sanctions, 0)
}

func (s *ServiceSuite) TestGetActive_FlagsPermanentBan() {
	ctx := s.ctxAt(time.Now())
	subject := id.NewUserID()
	_, err := s.svc.Create(ctx, CreateParams{
		SubjectID: subject, Type: models.SanctionTypePermanentBan, IssuerID: id.NewUserID(),
	})
	s.Require().NoError(err)

	view, err := s.svc.GetActive(ctx, subject, "")
	s.Require().NoError(err)
	s.True(view.IsPermanentlyBanned)
}

func (s *ServiceSuite) TestAppeal_RejectsCrossSubjectFiling() {
	ctx := s.ctxAt(time.Now())
	sanction, err := s.svc.Create(ctx, CreateParams{
		SubjectID: id.NewUserID(), Type: models.SanctionTypeWarning, IssuerID: id.NewUserID(),
	})
	s.Require().NoError(err)

	_, err = s.svc.FileAppeal(ctx, sanction.ID, id.NewUserID(), "not me", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestAppeal_RejectsSecondFiling() {
	ctx := s.ctxAt(time.Now())
	subject := id.NewUserID()
	sanction, err := s.svc.Create(ctx, CreateParams{
		SubjectID: subject, Type: models.SanctionTypeWarning, IssuerID: id.NewUserID(),
	})
	s.Require().NoError(err)

	_, err = s.svc.FileAppeal(ctx, sanction.ID, subject, "unfair", nil)
	s.Require().NoError(err)

	_, err = s.svc.FileAppeal(ctx, sanction.ID, subject, "again", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ServiceSuite) TestAppeal_ApprovedReviewRevokesSanctionAtomically() {
	ctx := s.ctxAt(time.Now())
	subject := id.NewUserID()
	reviewer := id.NewUserID()
	sanction, err := s.svc.Create(ctx, CreateParams{
		SubjectID: subject, Type: models.SanctionTypeTemporaryBan, IssuerID: id.NewUserID(),
	})
	s.Require().NoError(err)

	_, err = s.svc.FileAppeal(ctx, sanction.ID, subject, "unfair", nil)
	s.Require().NoError(err)
	_, err = s.svc.StartReview(ctx, sanction.ID, reviewer)
	s.Require().NoError(err)

	reviewed, err := s.svc.ReviewAppeal(ctx, sanction.ID, reviewer, ReviewDecisionApproved, "granted")
	s.Require().NoError(err)
	s.Equal(models.AppealStatusApproved, reviewed.AppealStatus)
	s.Equal(models.SanctionStatusRevoked, reviewed.Status)
	s.Contains(s.outbox.types(), outbox.EventSanctionAppealReviewed)
}

func (s *ServiceSuite) TestExpiryStore_ListActiveExpiringFindsPastEndAt() {
	now := time.Now()
	ctx := s.ctxAt(now)
	start := now.Add(-2 * time.Minute)
	past := now.Add(-time.Minute)
	_, err := s.svc.Create(ctx, CreateParams{
		SubjectID: id.NewUserID(), Type: models.SanctionTypeTemporaryBan, IssuerID: id.NewUserID(),
		StartAt: &start, EndAt: &past,
	})
	s.Require().NoError(err)

	expiring, err := s.store.ListActiveExpiring(ctx, now)
	s.Require().NoError(err)
	s.Len(expiring, 1)
}
