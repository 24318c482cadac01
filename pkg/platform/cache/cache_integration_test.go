//go:build integration

package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credo/pkg/platform/cache"
	"credo/pkg/testutil/containers"
)

type CacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.Cache
}

func TestCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.cache = cache.New(s.redis.Client, "credo")
}

func (s *CacheSuite) SetupTest() {
	ctx := context.Background()
	err := s.redis.FlushAll(ctx)
	s.Require().NoError(err)
}

func (s *CacheSuite) TestGetMiss() {
	ctx := context.Background()
	_, ok, err := s.cache.Get(ctx, s.cache.KeyFor("account", "id", "nope"))
	s.Require().NoError(err)
	s.False(ok)
}

func (s *CacheSuite) TestSetGetRoundTrip() {
	ctx := context.Background()
	key := s.cache.KeyFor("account", "id", "abc")
	s.Require().NoError(s.cache.Set(ctx, key, []byte("hello"), cache.TTLUserData))

	val, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("hello", string(val))
}

func (s *CacheSuite) TestDelete() {
	ctx := context.Background()
	key := s.cache.KeyFor("session", "token", "xyz")
	s.Require().NoError(s.cache.Set(ctx, key, []byte("v"), cache.TTLSession))
	s.Require().NoError(s.cache.Delete(ctx, key))

	_, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *CacheSuite) TestInvalidatePattern() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, s.cache.KeyFor("consent", "status", "acct1", "doc1"), []byte("v"), cache.TTLUserData))
	s.Require().NoError(s.cache.Set(ctx, s.cache.KeyFor("consent", "status", "acct1", "doc2"), []byte("v"), cache.TTLUserData))
	s.Require().NoError(s.cache.Set(ctx, s.cache.KeyFor("consent", "status", "acct2", "doc1"), []byte("v"), cache.TTLUserData))

	deleted, err := s.cache.InvalidatePattern(ctx, s.cache.KeyFor("consent", "status", "acct1", "*"))
	s.Require().NoError(err)
	s.Equal(2, deleted)

	_, ok, err := s.cache.Get(ctx, s.cache.KeyFor("consent", "status", "acct2", "doc1"))
	s.Require().NoError(err)
	s.True(ok, "unmatched key survives invalidation")
}

func (s *CacheSuite) TestGetOrComputeCallsFactoryOnce() {
	ctx := context.Background()
	key := s.cache.KeyFor("law", "code", "GDPR")
	var calls atomic.Int32

	factory := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("computed"), nil
	}

	val1, err := s.cache.GetOrCompute(ctx, key, cache.TTLStaticConfig, factory)
	s.Require().NoError(err)
	s.Equal("computed", string(val1))

	val2, err := s.cache.GetOrCompute(ctx, key, cache.TTLStaticConfig, factory)
	s.Require().NoError(err)
	s.Equal("computed", string(val2))

	s.Equal(int32(1), calls.Load(), "factory must run at most once for a hit key")
}

func (s *CacheSuite) TestGetOrComputePropagatesFactoryError() {
	ctx := context.Background()
	key := s.cache.KeyFor("law", "code", "BROKEN")
	wantErr := errors.New("boom")

	_, err := s.cache.GetOrCompute(ctx, key, cache.TTLStaticConfig, func(ctx context.Context) ([]byte, error) {
		return nil, wantErr
	})
	s.ErrorIs(err, wantErr)

	_, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.False(ok, "a failed factory must not populate the cache")
}

func (s *CacheSuite) TestIsRevokedFailSecureOnMiss() {
	ctx := context.Background()
	revoked, err := s.cache.IsRevoked(ctx, "jti-never-seen")
	s.Require().NoError(err)
	s.False(revoked)
}

func (s *CacheSuite) TestRevokeThenIsRevoked() {
	ctx := context.Background()
	jti := "jti-revoke-me"
	s.Require().NoError(s.cache.Revoke(ctx, jti, time.Minute))

	revoked, err := s.cache.IsRevoked(ctx, jti)
	s.Require().NoError(err)
	s.True(revoked)
}
