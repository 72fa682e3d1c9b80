package memory

import (
	"context"
	"sync"

	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
)

// Catalog is an in-memory catalog.Repository.
type Catalog struct {
	mu    sync.RWMutex
	items map[string]catalog.Item
}

func NewCatalog(items ...catalog.Item) *Catalog {
	c := &Catalog{items: map[string]catalog.Item{}}
	for _, it := range items {
		c.items[it.ItemID] = it
	}
	return c
}

func (c *Catalog) Get(ctx context.Context, itemID string) (*catalog.Item, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[itemID]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (c *Catalog) Put(ctx context.Context, item catalog.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[item.ItemID] = item
	return nil
}
