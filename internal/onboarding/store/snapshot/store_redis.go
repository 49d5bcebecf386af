package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	"onboard/pkg/platform/sentinel"
)

const defaultPrefix = "onboard:session:"

// noExpiryScore is the index score of snapshots stored without a TTL.
const noExpiryScore = 4102444800

// RedisStore keeps one JSON snapshot per session plus a sorted-set index
// scored by expiry, pruned lazily on List.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type RedisOption func(*RedisStore)

// WithTTL expires idle snapshots. Zero keeps them until deleted.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock is used by tests that fast-forward miniredis.
func WithClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		prefix: defaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisStore) key(sessionID id.SessionID) string {
	return s.prefix + sessionID.String()
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "index"
}

// Save writes the snapshot and refreshes its TTL and index entry in one pipeline.
func (s *RedisStore) Save(ctx context.Context, snap models.Snapshot) error {
	if snap.SessionID.IsNil() {
		return fmt.Errorf("snapshot without session id: %w", sentinel.ErrInvalidState)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	score := float64(noExpiryScore)
	if s.ttl > 0 {
		score = float64(s.now().Add(s.ttl).Unix())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(snap.SessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: score, Member: snap.SessionID.String()})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID id.SessionID) (models.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Snapshot{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	var snap models.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID id.SessionID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if del.Val() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List prunes expired index entries and returns the remaining session ids,
// soonest to expire first.
func (s *RedisStore) List(ctx context.Context) ([]id.SessionID, error) {
	cutoff := strconv.FormatInt(s.now().Unix(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+cutoff).Err(); err != nil {
		return nil, fmt.Errorf("prune snapshot index: %w", err)
	}
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := make([]id.SessionID, 0, len(members))
	for _, m := range members {
		sid, err := id.ParseSessionID(m)
		if err != nil {
			continue
		}
		out = append(out, sid)
	}
	return out, nil
}
