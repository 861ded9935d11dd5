package settings

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds recently read settings for a fixed time-to-live.
type Cache struct {
	lru *expirable.LRU[uuid.UUID, Settings]
}

// NewCache creates a Cache holding at most size organizations for ttl.
func NewCache(size int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[uuid.UUID, Settings](size, nil, ttl),
	}
}

// Get returns the cached settings for an organization.
func (c *Cache) Get(organizationID uuid.UUID) (Settings, bool) {
	return c.lru.Get(organizationID)
}

// Put stores s under its organization.
func (c *Cache) Put(s Settings) {
	c.lru.Add(s.OrganizationID, s)
}

// Invalidate drops the cached entry for an organization.
func (c *Cache) Invalidate(organizationID uuid.UUID) {
	c.lru.Remove(organizationID)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
