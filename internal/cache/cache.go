// Package cache holds the latest weather snapshot per city.
package cache

import (
	"context"
	"sync"

	"farmfresh-backend/internal/models"
)

// WeatherCache maps a city name to its most recent snapshot.
// Implementations must be safe for concurrent use.
type WeatherCache interface {
	Get(ctx context.Context, city string) (*models.WeatherSnapshot, bool)
	Set(ctx context.Context, city string, snapshot *models.WeatherSnapshot) error
}

// MemoryCache is a process-local WeatherCache
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]models.WeatherSnapshot
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]models.WeatherSnapshot)}
}

// Get returns a copy of the cached snapshot
func (c *MemoryCache) Get(_ context.Context, city string) (*models.WeatherSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	w, ok := c.items[city]
	if !ok {
		return nil, false
	}
	return &w, true
}

// Set overwrites the city's entry
func (c *MemoryCache) Set(_ context.Context, city string, snapshot *models.WeatherSnapshot) error {
	if snapshot == nil {
		return nil
	}
	c.mu.Lock()
	c.items[city] = *snapshot
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached cities
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
