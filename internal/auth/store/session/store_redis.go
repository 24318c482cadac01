package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"credo/internal/auth/models"
	id "credo/pkg/domain"
	"credo/pkg/platform/sentinel"
)

const (
	sessionKeyPrefix      = "session:"
	userSessionsKeyPrefix = "user_sessions:"
)

// RedisStore is the production Store backend: one JSON blob per session
// keyed by ID with a TTL equal to its remaining lifetime, plus a Redis set
// per user for ListByUser/DeleteSessionsByUser. Execute uses WATCH/MULTI to
// detect concurrent writers rather than taking a distributed lock, so a
// losing writer gets redis.TxFailedErr and is expected to retry.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + uuid.UUID(sessionID).String()
}

func userSessionsKey(userID id.UserID) string {
	return userSessionsKeyPrefix + uuid.UUID(userID).String()
}

type sessionRecord struct {
	ID                    string   `json:"id"`
	UserID                string   `json:"user_id"`
	ClientID              string   `json:"client_id"`
	TenantID              string   `json:"tenant_id"`
	RequestedScope        []string `json:"requested_scope"`
	Status                string   `json:"status"`
	LastAccessTokenJTI    string   `json:"last_access_token_jti"`
	RefreshTokenHash      string   `json:"refresh_token_hash,omitempty"`
	MFAVerified           bool     `json:"mfa_verified,omitempty"`
	DeviceID              string   `json:"device_id"`
	DeviceFingerprintHash string   `json:"device_fingerprint_hash"`
	DeviceDisplayName     string   `json:"device_display_name"`
	ApproximateLocation   string   `json:"approximate_location"`
	ClientIP              string   `json:"client_ip,omitempty"`
	UserAgent             string   `json:"user_agent,omitempty"`
	CreatedAt             int64    `json:"created_at"`
	ExpiresAt             int64    `json:"expires_at"`
	LastSeenAt            int64    `json:"last_seen_at"`
	LastRefreshedAt       *int64   `json:"last_refreshed_at,omitempty"`
	RevokedAt             *int64   `json:"revoked_at,omitempty"`
}

func toRecord(s *models.Session) *sessionRecord {
	userID := uuid.UUID(s.UserID)
	clientID := uuid.UUID(s.ClientID)
	tenantID := uuid.UUID(s.TenantID)

	rec := &sessionRecord{
		ID:                    uuid.UUID(s.ID).String(),
		UserID:                userID.String(),
		ClientID:              clientID.String(),
		TenantID:              tenantID.String(),
		RequestedScope:        s.RequestedScope,
		Status:                string(s.Status),
		LastAccessTokenJTI:    s.LastAccessTokenJTI,
		RefreshTokenHash:      s.RefreshTokenHash,
		MFAVerified:           s.MFAVerified,
		DeviceID:              s.DeviceID,
		DeviceFingerprintHash: s.DeviceFingerprintHash,
		DeviceDisplayName:     s.DeviceDisplayName,
		ApproximateLocation:   s.ApproximateLocation,
		ClientIP:              s.ClientIP,
		UserAgent:             s.UserAgent,
		CreatedAt:             s.CreatedAt.UnixNano(),
		ExpiresAt:             s.ExpiresAt.UnixNano(),
		LastSeenAt:            s.LastSeenAt.UnixNano(),
	}
	if s.LastRefreshedAt != nil {
		v := s.LastRefreshedAt.UnixNano()
		rec.LastRefreshedAt = &v
	}
	if s.RevokedAt != nil {
		v := s.RevokedAt.UnixNano()
		rec.RevokedAt = &v
	}
	return rec
}

func fromRecord(rec *sessionRecord) (*models.Session, error) {
	sessID, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("session: decode id: %w", err)
	}
	userID, err := uuid.Parse(rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("session: decode user_id: %w", err)
	}

	var clientID, tenantID uuid.UUID
	if rec.ClientID != "" {
		if clientID, err = uuid.Parse(rec.ClientID); err != nil {
			return nil, fmt.Errorf("session: decode client_id: %w", err)
		}
	}
	if rec.TenantID != "" {
		if tenantID, err = uuid.Parse(rec.TenantID); err != nil {
			return nil, fmt.Errorf("session: decode tenant_id: %w", err)
		}
	}

	sess := &models.Session{
		ID:                    id.SessionID(sessID),
		UserID:                id.UserID(userID),
		ClientID:              id.ClientID(clientID),
		TenantID:              id.TenantID(tenantID),
		RequestedScope:        rec.RequestedScope,
		Status:                models.SessionStatus(rec.Status),
		LastAccessTokenJTI:    rec.LastAccessTokenJTI,
		RefreshTokenHash:      rec.RefreshTokenHash,
		MFAVerified:           rec.MFAVerified,
		DeviceID:              rec.DeviceID,
		DeviceFingerprintHash: rec.DeviceFingerprintHash,
		DeviceDisplayName:     rec.DeviceDisplayName,
		ApproximateLocation:   rec.ApproximateLocation,
		ClientIP:              rec.ClientIP,
		UserAgent:             rec.UserAgent,
		CreatedAt:             time.Unix(0, rec.CreatedAt).UTC(),
		ExpiresAt:             time.Unix(0, rec.ExpiresAt).UTC(),
		LastSeenAt:            time.Unix(0, rec.LastSeenAt).UTC(),
	}
	if rec.LastRefreshedAt != nil {
		t := time.Unix(0, *rec.LastRefreshedAt).UTC()
		sess.LastRefreshedAt = &t
	}
	if rec.RevokedAt != nil {
		t := time.Unix(0, *rec.RevokedAt).UTC()
		sess.RevokedAt = &t
	}
	return sess, nil
}

func (s *RedisStore) ttlFor(session *models.Session) time.Duration {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return ttl
}

func (s *RedisStore) Create(ctx context.Context, session *models.Session) error {
	rec := toRecord(session)
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	ttl := s.ttlFor(session)
	pipe := s.client.Pipeline()
	pipe.Set(ctx, sessionKey(session.ID), payload, ttl)
	pipe.SAdd(ctx, userSessionsKey(session.UserID), uuid.UUID(session.ID).String())
	pipe.Expire(ctx, userSessionsKey(session.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	return fromRecord(&rec)
}

func (s *RedisStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	return s.get(ctx, sessionID)
}

func (s *RedisStore) UpdateSession(ctx context.Context, session *models.Session) error {
	key := sessionKey(session.ID)
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("session: ttl: %w", err)
	}
	if ttl < 0 {
		ttl = s.ttlFor(session)
	}

	rec := toRecord(session)
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	ok, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("session: exists: %w", err)
	}
	if ok == 0 {
		return sentinel.ErrNotFound
	}

	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("session: update: %w", err)
	}
	return nil
}

// Execute runs validateFn against the current session, then mutateFn, and
// writes the result back inside a WATCH-guarded transaction so a
// concurrent writer produces redis.TxFailedErr instead of a lost update.
func (s *RedisStore) Execute(
	ctx context.Context,
	sessionID id.SessionID,
	validateFn func(*models.Session) error,
	mutateFn func(*models.Session),
) (*models.Session, error) {
	key := sessionKey(sessionID)
	var result *models.Session

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("session: get in tx: %w", err)
		}
		var rec sessionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("session: unmarshal in tx: %w", err)
		}
		sess, err := fromRecord(&rec)
		if err != nil {
			return err
		}

		if err := validateFn(sess); err != nil {
			return err
		}
		mutateFn(sess)

		newRec := toRecord(sess)
		payload, err := json.Marshal(newRec)
		if err != nil {
			return fmt.Errorf("session: marshal in tx: %w", err)
		}

		ttl, err := tx.TTL(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("session: ttl in tx: %w", err)
		}
		if ttl < 0 {
			ttl = s.ttlFor(sess)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = sess
		return nil
	}

	if err := s.client.Watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *RedisStore) RevokeSessionIfActive(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	_, err := s.Execute(ctx, sessionID,
		func(sess *models.Session) error {
			if sess.Status == models.SessionStatusRevoked {
				return ErrSessionRevoked
			}
			return nil
		},
		func(sess *models.Session) {
			sess.Status = models.SessionStatusRevoked
			revokedAt := at
			sess.RevokedAt = &revokedAt
		},
	)
	return err
}

func (s *RedisStore) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	members, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session: smembers: %w", err)
	}

	var out []*models.Session
	for _, member := range members {
		sid, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		sess, err := s.get(ctx, id.SessionID(sid))
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// ListAll scans every session key; intended for admin/debug tooling, not
// the request path (spec §4.1 pattern-invalidation caveats apply equally
// here: key enumeration is O(n) on this backend).
func (s *RedisStore) ListAll(ctx context.Context) ([]*models.Session, error) {
	var (
		cursor uint64
		out    []*models.Session
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, sessionKeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("session: scan: %w", err)
		}
		for _, key := range keys {
			raw, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("session: get during scan: %w", err)
			}
			var rec sessionRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("session: unmarshal during scan: %w", err)
			}
			sess, err := fromRecord(&rec)
			if err != nil {
				return nil, err
			}
			out = append(out, sess)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) DeleteSessionsByUser(ctx context.Context, userID id.UserID) error {
	setKey := userSessionsKey(userID)
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("session: smembers: %w", err)
	}
	if len(members) == 0 {
		return sentinel.ErrNotFound
	}

	keys := make([]string, 0, len(members)+1)
	for _, member := range members {
		keys = append(keys, sessionKeyPrefix+member)
	}
	keys = append(keys, setKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
