package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kargonusa/freight-core/internal/core/domain"
)

// ResourceGuard records which run slots are taken.
// Key format: resource:<slot>, e.g. resource:vehicle:B-1234-XY:LOADING
type ResourceGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResourceGuard(client *redis.Client, ttl time.Duration) *ResourceGuard {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &ResourceGuard{client: client, ttl: ttl}
}

// Claim takes every slot of the assignment. When one is already taken the
// slots claimed so far are given back.
func (g *ResourceGuard) Claim(ctx context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error {
	keys := a.ClaimKeys(kind)
	claimed := make([]string, 0, len(keys))
	for _, k := range keys {
		ok, err := g.client.SetNX(ctx, "resource:"+k, string(kind), g.ttl).Result()
		if err == nil && ok {
			claimed = append(claimed, "resource:"+k)
			continue
		}
		if len(claimed) > 0 {
			_ = g.client.Del(context.WithoutCancel(ctx), claimed...).Err()
		}
		if err != nil {
			return fmt.Errorf("claim %s: %w", k, err)
		}
		return fmt.Errorf("%w: %s", domain.ErrResourceExhausted, k)
	}
	return nil
}

func (g *ResourceGuard) Release(ctx context.Context, kind domain.MovementKind, a domain.ResourceAssignment) error {
	keys := a.ClaimKeys(kind)
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = "resource:" + k
	}
	if err := g.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("release resources: %w", err)
	}
	return nil
}
