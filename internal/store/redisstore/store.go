package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps the redis client for ephemeral transport state. Durable rows
// live in the database; redis only remembers which inbound update ids were
// already seen, since the bot transport delivers at-least-once.
type Store struct {
	client *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MarkUpdateSeen records an inbound update id with a TTL and reports
// whether this is the first delivery. SETNX keeps the check-and-set atomic
// across concurrent consumers.
func (s *Store) MarkUpdateSeen(ctx context.Context, source string, updateID int64, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("seen:%s:%d", source, updateID)
	return s.client.SetNX(ctx, key, 1, ttl).Result()
}
