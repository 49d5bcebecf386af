package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

type RedisStoreSuite struct {
	suite.Suite
	mr     *miniredis.Miniredis
	client *redis.Client
	now    time.Time
	store  *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.mr.Addr()})
	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.store = NewRedis(s.client,
		WithPrefix("test:session:"),
		WithTTL(time.Hour),
		WithClock(func() time.Time { return s.now }),
	)
}

func (s *RedisStoreSuite) TearDownTest() {
	_ = s.client.Close()
}

func (s *RedisStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	snap := makeSnapshot(s.now)
	s.Require().NoError(s.store.Save(ctx, snap))

	loaded, err := s.store.Load(ctx, snap.SessionID)
	s.Require().NoError(err)
	s.Equal(snap, loaded)
	s.True(s.mr.Exists("test:session:" + snap.SessionID.String()))
	s.Equal(time.Hour, s.mr.TTL("test:session:"+snap.SessionID.String()))
}

func (s *RedisStoreSuite) TestLoadMissingIsNotFound() {
	_, err := s.store.Load(context.Background(), id.NewSessionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestSnapshotExpiresAfterTTL() {
	ctx := context.Background()
	snap := makeSnapshot(s.now)
	s.Require().NoError(s.store.Save(ctx, snap))

	s.mr.FastForward(2 * time.Hour)
	s.now = s.now.Add(2 * time.Hour)

	_, err := s.store.Load(ctx, snap.SessionID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	ids, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *RedisStoreSuite) TestDeleteRemovesIndexEntry() {
	ctx := context.Background()
	first := makeSnapshot(s.now)
	second := makeSnapshot(s.now)
	s.Require().NoError(s.store.Save(ctx, first))
	s.Require().NoError(s.store.Save(ctx, second))

	s.Require().NoError(s.store.Delete(ctx, first.SessionID))
	s.ErrorIs(s.store.Delete(ctx, first.SessionID), sentinel.ErrNotFound)

	ids, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Equal([]id.SessionID{second.SessionID}, ids)
}

func (s *RedisStoreSuite) TestSaveWithoutTTLNeverExpires() {
	ctx := context.Background()
	store := NewRedis(s.client, WithPrefix("forever:"))
	snap := makeSnapshot(s.now)
	s.Require().NoError(store.Save(ctx, snap))

	s.mr.FastForward(24 * time.Hour)
	_, err := store.Load(ctx, snap.SessionID)
	s.Require().NoError(err)
	s.Equal(time.Duration(0), s.mr.TTL("forever:"+snap.SessionID.String()))
}
