package store

import (
	"context"
	"sync"
	"time"

	"credo/internal/dsr/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

// InMemoryStore is the fake used by service tests and the non-Postgres
// deployment path.
type InMemoryStore struct {
	mu       sync.Mutex
	requests map[id.DSRRequestID]*models.DSRRequest
	logs     []*models.DsrRequestLog
}

func New() *InMemoryStore {
	return &InMemoryStore{requests: make(map[id.DSRRequestID]*models.DSRRequest)}
}

func (s *InMemoryStore) Create(ctx context.Context, r *models.DSRRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, requestID id.DSRRequestID) (*models.DSRRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemoryStore) Update(ctx context.Context, r *models.DSRRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *r
	s.requests[r.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListByAccount(ctx context.Context, accountID id.UserID) ([]*models.DSRRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DSRRequest
	for _, r := range s.requests {
		if r.AccountID == accountID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListOpen returns every request in PENDING, VERIFIED or IN_PROGRESS — the
// escalation sweep's candidate set; terminal and AWAITING_INFO requests are
// skipped.
func (s *InMemoryStore) ListOpen(ctx context.Context) ([]*models.DSRRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DSRRequest
	for _, r := range s.requests {
		if r.Status.IsTerminal() {
			continue
		}
		if r.Status == models.StatusAwaitingInfo {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// Summarize computes the §4.9 daily-summary counts as of now.
func (s *InMemoryStore) Summarize(ctx context.Context, now time.Time) (models.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum models.Summary
	for _, r := range s.requests {
		switch r.Status {
		case models.StatusPending:
			sum.Pending++
		case models.StatusInProgress:
			sum.InProgress++
		}
		if r.Status.IsTerminal() {
			continue
		}
		remaining := r.EffectiveDeadline().Sub(now)
		if remaining <= 0 {
			sum.Overdue++
		} else if remaining <= 7*24*time.Hour {
			sum.Approaching++
		}
	}
	return sum, nil
}

func (s *InMemoryStore) AppendLog(ctx context.Context, logRow *models.DsrRequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *logRow
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *InMemoryStore) ListLogs(ctx context.Context, requestID id.DSRRequestID) ([]*models.DsrRequestLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DsrRequestLog
	for _, l := range s.logs {
		if l.RequestID == requestID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}
