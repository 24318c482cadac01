package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"credo/internal/dsr/models"
	dsrstore "credo/internal/dsr/store"
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

// AGENTS.MD JUSTIFICATION: the C9 state machine, deadline-by-legal-basis
// computation, extend-deadline cap, escalation monotonicity, and the
// audit log have no coverage elsewhere in the pack; this suite is the only
// place they are exercised.
type ServiceSuite struct {
	suite.Suite
	svc   *Service
	store *dsrstore.InMemoryStore
	ob    *fakeOutbox
}

func (s *ServiceSuite) SetupTest() {
	s.store = dsrstore.New()
	s.ob = &fakeOutbox{}
	s.svc = New(s.store, s.ob)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) ctxAt(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

func (s *ServiceSuite) TestSubmit_ComputesDeadlineFromLegalBasis() {
	now := time.Now().UTC()
	ctx := s.ctxAt(now)

	gdpr, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)
	s.WithinDuration(now.AddDate(0, 0, 30), gdpr.Deadline, time.Second)

	ccpa, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeErasure, LegalBasis: models.LegalBasisCCPA})
	s.Require().NoError(err)
	s.WithinDuration(now.AddDate(0, 0, 45), ccpa.Deadline, time.Second)

	pipa, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisPIPA})
	s.Require().NoError(err)
	s.WithinDuration(now.AddDate(0, 0, 10), pipa.Deadline, time.Second)

	appi, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisAPPI})
	s.Require().NoError(err)
	s.WithinDuration(now.AddDate(0, 0, 14), appi.Deadline, time.Second)

	unspecified, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess})
	s.Require().NoError(err)
	s.WithinDuration(now.AddDate(0, 0, 30), unspecified.Deadline, time.Second)
	s.Equal(models.LegalBasisDefault, unspecified.LegalBasis)
	s.Equal(models.StatusPending, unspecified.Status)
	s.Equal(models.EscalationNone, unspecified.EscalationLevel)
}

func (s *ServiceSuite) TestStateMachine_FollowsAllowedTransitionsOnly() {
	ctx := s.ctxAt(time.Now())
	operator := id.NewOperatorID()
	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	_, err = s.svc.StartProcessing(ctx, r.ID, operator)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "PENDING cannot jump straight to IN_PROGRESS")

	_, err = s.svc.Verify(ctx, r.ID, operator)
	s.Require().NoError(err)

	started, err := s.svc.StartProcessing(ctx, r.ID, operator)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, started.Status)

	awaiting, err := s.svc.RequestMoreInfo(ctx, r.ID, operator, "need proof of identity")
	s.Require().NoError(err)
	s.Equal(models.StatusAwaitingInfo, awaiting.Status)

	resumed, err := s.svc.ResumeProcessing(ctx, r.ID, operator)
	s.Require().NoError(err)
	s.Equal(models.StatusInProgress, resumed.Status)

	completed, err := s.svc.Complete(ctx, r.ID, operator, CompleteParams{ResponseType: models.ResponseTypeData, ResponseBody: "export.zip"})
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, completed.Status)

	_, err = s.svc.Cancel(ctx, r.ID, operator, "too late")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "terminal status must never transition again")
}

func (s *ServiceSuite) TestAuditLog_RecordsEveryStateChange() {
	ctx := s.ctxAt(time.Now())
	operator := id.NewOperatorID()
	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	_, err = s.svc.Verify(ctx, r.ID, operator)
	s.Require().NoError(err)
	_, err = s.svc.Reject(ctx, r.ID, operator, "duplicate request")
	s.Require().NoError(err)

	logs, err := s.svc.Logs(ctx, r.ID)
	s.Require().NoError(err)
	s.Len(logs, 3) // SUBMITTED, VERIFIED, REJECTED
	s.Equal("SUBMITTED", logs[0].Action)
	s.Equal("REJECTED", logs[2].Action)
}

func (s *ServiceSuite) TestReject_RequiresReason() {
	ctx := s.ctxAt(time.Now())
	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	_, err = s.svc.Reject(ctx, r.ID, id.NewOperatorID(), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestExtendDeadline_RequiresReasonAndCapsAtOneUse() {
	now := time.Now().UTC()
	ctx := s.ctxAt(now)
	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	_, err = s.svc.ExtendDeadline(ctx, r.ID, id.NewOperatorID(), now.AddDate(0, 0, 40), "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "extension requires a reason")

	beyondCap := now.AddDate(0, 0, 90)
	_, err = s.svc.ExtendDeadline(ctx, r.ID, id.NewOperatorID(), beyondCap, "regulator approved")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "extension beyond the doubling cap must be rejected")

	extended, err := s.svc.ExtendDeadline(ctx, r.ID, id.NewOperatorID(), now.AddDate(0, 0, 50), "regulator approved")
	s.Require().NoError(err)
	s.NotNil(extended.ExtendedTo)
	s.True(extended.Extended)

	_, err = s.svc.ExtendDeadline(ctx, r.ID, id.NewOperatorID(), now.AddDate(0, 0, 55), "second attempt")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState), "only one regulator-permitted extension is allowed")
}

func (s *ServiceSuite) TestEscalationSweep_IsMonotonicAndEmitsEventsPerTier() {
	base := time.Now().UTC()
	ctx := s.ctxAt(base)
	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	warnTime := base.Add(25 * 24 * time.Hour) // 5 days remaining of a 30-day deadline
	count, err := s.svc.runEscalationSweep(ctx, warnTime)
	s.Require().NoError(err)
	s.Equal(1, count)
	reloaded, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.EscalationWarning, reloaded.EscalationLevel)
	s.Contains(s.ob.types(), outbox.EventDSRDeadlineWarning)

	criticalTime := base.Add(29 * 24 * time.Hour) // 1 day remaining
	count, err = s.svc.runEscalationSweep(ctx, criticalTime)
	s.Require().NoError(err)
	s.Equal(1, count)
	reloaded, err = s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.EscalationCritical, reloaded.EscalationLevel)

	overdueTime := base.Add(31 * 24 * time.Hour) // deadline has passed
	count, err = s.svc.runEscalationSweep(ctx, overdueTime)
	s.Require().NoError(err)
	s.Equal(1, count)
	reloaded, err = s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.EscalationOverdue, reloaded.EscalationLevel)
	s.Contains(s.ob.types(), outbox.EventDSRDeadlineCritical)
	s.Contains(s.ob.types(), outbox.EventDSRDeadlineOverdue)

	// A second sweep at the same tier must not re-escalate or re-emit.
	priorEventCount := len(s.ob.types())
	count, err = s.svc.runEscalationSweep(ctx, overdueTime)
	s.Require().NoError(err)
	s.Equal(0, count)
	s.Len(s.ob.types(), priorEventCount)
}

func (s *ServiceSuite) TestEscalationSweep_ExcludesAwaitingInfoAndTerminalRequests() {
	base := time.Now().UTC()
	ctx := s.ctxAt(base)
	operator := id.NewOperatorID()

	r, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)
	_, err = s.svc.Verify(ctx, r.ID, operator)
	s.Require().NoError(err)
	_, err = s.svc.StartProcessing(ctx, r.ID, operator)
	s.Require().NoError(err)
	_, err = s.svc.RequestMoreInfo(ctx, r.ID, operator, "awaiting id proof")
	s.Require().NoError(err)

	overdueTime := base.Add(40 * 24 * time.Hour)
	count, err := s.svc.runEscalationSweep(ctx, overdueTime)
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *ServiceSuite) TestSummary_CountsPendingInProgressApproachingAndOverdue() {
	base := time.Now().UTC()
	ctx := s.ctxAt(base)

	_, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisGDPR})
	s.Require().NoError(err)

	soon, err := s.svc.Submit(ctx, SubmitParams{AccountID: id.NewUserID(), Type: models.RequestTypeAccess, LegalBasis: models.LegalBasisPIPA})
	s.Require().NoError(err)
	_, err = s.svc.Verify(ctx, soon.ID, id.NewOperatorID())
	s.Require().NoError(err)

	sum, err := s.svc.Summary(ctx, base.Add(9*24*time.Hour)) // PIPA's 10-day deadline is now 1 day out
	s.Require().NoError(err)
	s.Equal(1, sum.Pending)
	s.Equal(0, sum.InProgress)
	s.Equal(1, sum.Approaching)
	s.Equal(0, sum.Overdue)
}
