package caching

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"docarchive/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "docarchive:"

// CacheService holds read-model snapshots of storage trees. A miss returns
// nil with no error.
//
// Every scope carries a generation that InvalidateScope bumps. Readers take
// the generation before loading rows and tag the snapshot with it, so a
// snapshot built across an invalidation never matches again.
type CacheService interface {
	// Storage tree snapshots
	TreeGeneration(ctx context.Context, scope models.Scope) (int64, error)
	GetTree(ctx context.Context, scope models.Scope) (*models.TreeSnapshot, error)
	SetTree(ctx context.Context, scope models.Scope, snapshot *models.TreeSnapshot, ttl time.Duration) error

	// Cache invalidation
	InvalidateScope(ctx context.Context, scope models.Scope) error
	InvalidateAllCache(ctx context.Context) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCacheService(addr, password string, db int, logger *zap.Logger) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.Warn("redis ping failed on initialization", zap.String("addr", parsedAddr), zap.Error(pingErr))
	} else {
		logger.Debug("redis connection established", zap.String("addr", parsedAddr))
	}

	return &redisCacheService{client: client, logger: logger}
}

func treeKey(scope models.Scope) string {
	return keyPrefix + "tree:" + scope.Key()
}

func generationKey(scope models.Scope) string {
	return keyPrefix + "tree-gen:" + scope.Key()
}

func (r *redisCacheService) TreeGeneration(ctx context.Context, scope models.Scope) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(scope)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *redisCacheService) GetTree(ctx context.Context, scope models.Scope) (*models.TreeSnapshot, error) {
	data, err := r.client.Get(ctx, treeKey(scope)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var snapshot models.TreeSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *redisCacheService) SetTree(ctx context.Context, scope models.Scope, snapshot *models.TreeSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, treeKey(scope), data, ttl).Err()
}

func (r *redisCacheService) InvalidateScope(ctx context.Context, scope models.Scope) error {
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, generationKey(scope))
	pipe.Del(ctx, treeKey(scope))
	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateAllCache drops every tree snapshot. Generations are kept so
// in-flight readers still see their snapshots as stale.
func (r *redisCacheService) InvalidateAllCache(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"tree:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	r.logger.Info("invalidating cached snapshots", zap.Int("keys", len(keys)))
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
