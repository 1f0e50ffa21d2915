package flowstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yoshapihoff/bricks/authenticator/internal/domain"
)

var _ domain.FlowStore = (*RedisStore)(nil)

// RedisStore keeps pending flows in Redis with a TTL
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis-backed flow store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "authflow:",
	}
}

func (s *RedisStore) key(state string) string {
	return s.prefix + state
}

func (s *RedisStore) Save(ctx context.Context, flow domain.Flow, ttl time.Duration) error {
	if flow.State == "" {
		return fmt.Errorf("flowstate: missing state")
	}
	if ttl <= 0 {
		return fmt.Errorf("flowstate: ttl must be positive")
	}

	data, err := json.Marshal(flow)
	if err != nil {
		return fmt.Errorf("flowstate: failed to marshal: %w", err)
	}

	return s.client.Set(ctx, s.key(flow.State), data, ttl).Err()
}

// Take atomically reads and removes the flow (GETDEL, Redis 6.2+)
func (s *RedisStore) Take(ctx context.Context, state string) (*domain.Flow, error) {
	val, err := s.client.GetDel(ctx, s.key(state)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrFlowNotFound
	}
	if err != nil {
		return nil, err
	}

	var flow domain.Flow
	if err := json.Unmarshal([]byte(val), &flow); err != nil {
		return nil, fmt.Errorf("flowstate: failed to unmarshal: %w", err)
	}

	return &flow, nil
}

func (s *RedisStore) Delete(ctx context.Context, state string) error {
	n, err := s.client.Del(ctx, s.key(state)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrFlowNotFound
	}
	return nil
}
