package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
)

const (
	statusKeyPrefix  = "feeya:order-status:"
	defaultStatusTTL = 24 * time.Hour
)

type StatusCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewStatusCache(client redis.UniversalClient, ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		ttl = defaultStatusTTL
	}
	return &StatusCache{client: client, ttl: ttl}
}

var _ apporder.StatusCache = (*StatusCache)(nil)

func (c *StatusCache) Put(ctx context.Context, v apporder.StatusView) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode status: %w", err)
	}
	return c.client.Set(ctx, statusKeyPrefix+v.OrderID, body, c.ttl).Err()
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (apporder.StatusView, error) {
	body, err := c.client.Get(ctx, statusKeyPrefix+orderID).Bytes()
	if errors.Is(err, redis.Nil) {
		return apporder.StatusView{}, apporder.ErrCacheMiss
	}
	if err != nil {
		return apporder.StatusView{}, err
	}
	var v apporder.StatusView
	if err := json.Unmarshal(body, &v); err != nil {
		return apporder.StatusView{}, fmt.Errorf("redis: decode status: %w", err)
	}
	return v, nil
}
