package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"swimdesk/internal/lib/sl"
	"swimdesk/internal/models"
)

const (
	keyPrefix     = "swimdesk:"
	businessesKey = keyPrefix + "businesses"
)

type CacheService interface {
	// Business directory caching
	GetBusinesses(ctx context.Context) ([]*models.Business, error)
	SetBusinesses(ctx context.Context, businesses []*models.Business, ttl time.Duration) error
	InvalidateBusinesses(ctx context.Context) error

	// Owner reset confirmation tokens
	SetResetToken(ctx context.Context, businessID uuid.UUID, token string, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, businessID uuid.UUID, token string) (bool, error)

	// Rate limiting
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient builds a client from an address that may carry a
// redis:// or rediss:// scheme.
func NewRedisClient(addr, password string, db int, log *slog.Logger) *redis.Client {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsedAddr = strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis ping failed on initialization", slog.String("addr", parsedAddr), sl.Err(err))
	} else {
		log.Debug("redis connection established", slog.String("addr", parsedAddr))
	}

	return client
}

func NewRedisCacheService(client *redis.Client) CacheService {
	return &redisCacheService{client: client}
}

func (r *redisCacheService) GetBusinesses(ctx context.Context) ([]*models.Business, error) {
	data, err := r.client.Get(ctx, businessesKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var businesses []*models.Business
	if err := json.Unmarshal(data, &businesses); err != nil {
		return nil, err
	}
	return businesses, nil
}

func (r *redisCacheService) SetBusinesses(ctx context.Context, businesses []*models.Business, ttl time.Duration) error {
	if businesses == nil {
		businesses = []*models.Business{}
	}
	data, err := json.Marshal(businesses)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, businessesKey, data, ttl).Err()
}

func (r *redisCacheService) InvalidateBusinesses(ctx context.Context) error {
	return r.client.Del(ctx, businessesKey).Err()
}

func resetTokenKey(businessID uuid.UUID, token string) string {
	return fmt.Sprintf("%sowner_reset:%s:%s", keyPrefix, businessID.String(), token)
}

func (r *redisCacheService) SetResetToken(ctx context.Context, businessID uuid.UUID, token string, ttl time.Duration) error {
	return r.client.Set(ctx, resetTokenKey(businessID, token), "pending", ttl).Err()
}

// ConsumeResetToken deletes the token and reports whether it existed. A
// token can be consumed once.
func (r *redisCacheService) ConsumeResetToken(ctx context.Context, businessID uuid.UUID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := r.client.Del(ctx, resetTokenKey(businessID, token)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// IsRateLimited counts a hit against key in a fixed window. A counter left
// without an expiry, for example after a failed EXPIRE, gets one on the next
// hit.
func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := fmt.Sprintf("%sratelimit:%s", keyPrefix, key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, cacheKey)
		ttl = pipe.TTL(ctx, cacheKey)
		return nil
	}); err != nil {
		return true, err
	}

	count := incr.Val()
	if count == 1 || ttl.Val() < 0 {
		if err := r.client.Expire(ctx, cacheKey, window).Err(); err != nil {
			return true, err
		}
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
