// Package session implements the C4 Session Store contract against two
// backends: an in-memory store for unit tests and a Redis-backed store for
// production.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"credo/internal/auth/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

// ErrSessionRevoked is returned by RevokeSessionIfActive when the session
// is already revoked, distinguishing "already done" from "not found" so
// callers can treat the former as idempotent success (spec C5 logout).
var ErrSessionRevoked = errors.New("session already revoked")

// InMemorySessionStore is a single-process Store used by unit tests.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*models.Session
}

func New() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[id.SessionID]*models.Session)}
}

func (s *InMemorySessionStore) Create(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *InMemorySessionStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return sess, nil
}

func (s *InMemorySessionStore) UpdateSession(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

// Execute runs validateFn then, on success, mutateFn against the stored
// session under the store's lock, persisting the result atomically — the
// in-process analogue of the Redis store's WATCH-based optimistic
// transaction.
func (s *InMemorySessionStore) Execute(
	ctx context.Context,
	sessionID id.SessionID,
	validateFn func(*models.Session) error,
	mutateFn func(*models.Session),
) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validateFn(sess); err != nil {
		return nil, err
	}
	mutateFn(sess)
	return sess, nil
}

func (s *InMemorySessionStore) RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if sess.Status == models.SessionStatusRevoked {
		return ErrSessionRevoked
	}
	sess.Status = models.SessionStatusRevoked
	revokedAt := at
	sess.RevokedAt = &revokedAt
	return nil
}

func (s *InMemorySessionStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *InMemorySessionStore) ListAll(ctx context.Context) ([]*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out, nil
}

func (s *InMemorySessionStore) DeleteSessionsByUser(ctx context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toDelete []id.SessionID
	for sid, sess := range s.sessions {
		if sess.UserID == userID {
			toDelete = append(toDelete, sid)
		}
	}
	if len(toDelete) == 0 {
		return sentinel.ErrNotFound
	}
	for _, sid := range toDelete {
		delete(s.sessions, sid)
	}
	return nil
}
