// Package catalog serves per-product preparation times to the timing engine.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
	"github.com/google/uuid"
)

// Catalog is an in-memory copy of the product table. Lookups never touch
// the network; Refresh swaps the copy wholesale.
type Catalog struct {
	repo           interfaces.PrepTimeRepository
	cache          interfaces.PrepTimeCache
	logger         logger.Logger
	defaultMinutes int

	mu     sync.RWMutex
	byID   map[uuid.UUID]int
	byName map[string]int
}

// New builds an empty catalog. cache may be nil.
func New(repo interfaces.PrepTimeRepository, cache interfaces.PrepTimeCache, logger logger.Logger, defaultMinutes int) *Catalog {
	if defaultMinutes <= 0 {
		defaultMinutes = domain.DefaultPrepMinutes
	}
	return &Catalog{
		repo:           repo,
		cache:          cache,
		logger:         logger,
		defaultMinutes: defaultMinutes,
		byID:           make(map[uuid.UUID]int),
		byName:         make(map[string]int),
	}
}

// PrepMinutes resolves an item by product id, then by name, then falls
// back to the default.
func (c *Catalog) PrepMinutes(item domain.OrderItem) int {
	if item.ProductID != nil {
		if m, ok := c.Lookup(item.ProductID.String()); ok {
			return m
		}
	}
	if m, ok := c.Lookup(item.Name); ok {
		return m
	}
	return c.defaultMinutes
}

// Lookup accepts either a product id or a product name.
func (c *Catalog) Lookup(key string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if id, err := uuid.Parse(key); err == nil {
		m, ok := c.byID[id]
		return m, ok
	}
	m, ok := c.byName[domain.NormalizeProductName(key)]
	return m, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Load replaces the catalog contents. Entries with negative minutes are
// dropped; a repeated name keeps its first entry.
func (c *Catalog) Load(entries []domain.PrepTimeEntry) {
	byID := make(map[uuid.UUID]int, len(entries))
	byName := make(map[string]int, len(entries))

	for _, e := range entries {
		if e.Minutes < 0 {
			continue
		}
		if e.ProductID != uuid.Nil {
			byID[e.ProductID] = e.Minutes
		}
		name := domain.NormalizeProductName(e.Name)
		if name == "" {
			continue
		}
		if _, dup := byName[name]; !dup {
			byName[name] = e.Minutes
		}
	}

	c.mu.Lock()
	c.byID = byID
	c.byName = byName
	c.mu.Unlock()
}

// Refresh reloads from the shared cache when it holds a copy, otherwise from
// the database, writing the result back to the cache.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.cache != nil {
		entries, ok, err := c.cache.Load(ctx)
		if err != nil {
			c.logger.Warn("catalog_cache_failed", "Prep time cache unavailable, reading database", "", map[string]interface{}{"error": err.Error()})
		} else if ok {
			c.Load(entries)
			return nil
		}
	}

	entries, err := c.repo.ListPrepTimes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prep times: %w", err)
	}
	c.Load(entries)

	if c.cache != nil {
		if err := c.cache.Store(ctx, entries); err != nil {
			c.logger.Warn("catalog_cache_failed", "Failed to store prep times", "", map[string]interface{}{"error": err.Error()})
		}
	}

	c.logger.Debug("catalog_refreshed", fmt.Sprintf("Loaded %d prep times", len(entries)), "", nil)
	return nil
}

// Run refreshes on every tick until ctx ends. A failed refresh keeps the
// previous copy.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) error {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Error("catalog_refresh_failed", "Using default prep times", "", nil, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("catalog_refresh_failed", "Keeping previous prep times", "", nil, err)
			}
		}
	}
}
