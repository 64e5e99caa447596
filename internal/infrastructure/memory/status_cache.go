package memory

import (
	"context"
	"sync"

	apporder "github.com/ThierryFotabong/feeya/internal/application/order"
)

// StatusCache stands in for Redis when no cache server is configured.
type StatusCache struct {
	mu    sync.RWMutex
	views map[string]apporder.StatusView
}

func NewStatusCache() *StatusCache {
	return &StatusCache{views: make(map[string]apporder.StatusView)}
}

var _ apporder.StatusCache = (*StatusCache)(nil)

func (c *StatusCache) Put(_ context.Context, v apporder.StatusView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[v.OrderID] = v
	return nil
}

func (c *StatusCache) Get(_ context.Context, orderID string) (apporder.StatusView, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.views[orderID]
	if !ok {
		return apporder.StatusView{}, apporder.ErrCacheMiss
	}
	return v, nil
}
