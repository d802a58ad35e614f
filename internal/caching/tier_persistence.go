package caching

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"swimdesk/internal/tierstate"
)

const tierKeyPrefix = keyPrefix + "tier:"

// TierPersistence stores each session's tier identifier as a redis string.
type TierPersistence struct {
	client *redis.Client
	ttl    time.Duration
}

var _ tierstate.Persistence = (*TierPersistence)(nil)

// NewTierPersistence returns a persistence whose keys expire after ttl.
// A zero ttl keeps keys forever.
func NewTierPersistence(client *redis.Client, ttl time.Duration) *TierPersistence {
	return &TierPersistence{client: client, ttl: ttl}
}

func (p *TierPersistence) LoadTier(ctx context.Context, sessionID string) (string, error) {
	val, err := p.client.Get(ctx, tierKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", tierstate.ErrNotFound
		}
		return "", err
	}
	return val, nil
}

func (p *TierPersistence) SaveTier(ctx context.Context, sessionID, tier string) error {
	return p.client.Set(ctx, tierKeyPrefix+sessionID, tier, p.ttl).Err()
}
