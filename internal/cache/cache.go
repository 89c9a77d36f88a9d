package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"souq_back_end/internal/models"
)

const (
	ProductListKey = "products:all"
	ProductListTTL = time.Hour
)

// ProductLoader reads the catalog from the database.
type ProductLoader func(ctx context.Context) ([]models.Product, error)

// ProductCache keeps the catalog listing in Redis. Concurrent misses share
// one database read.
type ProductCache struct {
	rdb    *redis.Client
	load   ProductLoader
	logger *zap.Logger
	group  singleflight.Group
	ttl    time.Duration
}

func NewProductCache(rdb *redis.Client, load ProductLoader, logger *zap.Logger) *ProductCache {
	return &ProductCache{rdb: rdb, load: load, logger: logger, ttl: ProductListTTL}
}

func (pc *ProductCache) get(ctx context.Context) ([]models.Product, error) {
	data, err := pc.rdb.Get(ctx, ProductListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode cached products: %w", err)
	}
	return products, nil
}

// List serves the catalog from Redis, falling back to the loader on a
// miss or a Redis failure.
func (pc *ProductCache) List(ctx context.Context) ([]models.Product, error) {
	products, err := pc.get(ctx)
	if err == nil {
		return products, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		pc.logger.Warn("product cache read failed", zap.Error(err))
	}

	v, err, _ := pc.group.Do(ProductListKey, func() (interface{}, error) {
		products, err := pc.load(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(products)
		if err == nil {
			err = pc.rdb.Set(ctx, ProductListKey, data, pc.ttl).Err()
		}
		if err != nil {
			pc.logger.Warn("product cache write failed", zap.Error(err))
		}
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Product), nil
}

// Invalidate drops the cached listing after a catalog change.
func (pc *ProductCache) Invalidate(ctx context.Context) {
	if err := pc.rdb.Del(ctx, ProductListKey).Err(); err != nil {
		pc.logger.Warn("product cache invalidation failed", zap.Error(err))
	}
}
