package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupChecker remembers honoured request tokens in Redis.
// Key format: dedup:<scope>:<token>
type DedupChecker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupChecker(client *redis.Client, ttl time.Duration) *DedupChecker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DedupChecker{client: client, ttl: ttl}
}

// IsDuplicate reports whether token was already honoured within scope.
func (d *DedupChecker) IsDuplicate(ctx context.Context, scope, token string) (bool, error) {
	n, err := d.client.Exists(ctx, dedupKey(scope, token)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records token for the configured ttl.
func (d *DedupChecker) Mark(ctx context.Context, scope, token string) error {
	return d.client.Set(ctx, dedupKey(scope, token), "1", d.ttl).Err()
}

func dedupKey(scope, token string) string {
	return fmt.Sprintf("dedup:%s:%s", scope, token)
}
