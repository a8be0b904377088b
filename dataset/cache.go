package dataset

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryCache is a size-bounded, time-boxed in-process Cache.
type MemoryCache struct {
	lru *expirable.LRU[string, []Record]
}

// NewMemoryCache returns a cache holding at most size files for ttl each.
// A zero ttl keeps entries until evicted by size or removed by the caller.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []Record](size, nil, ttl)}
}

func (c *MemoryCache) Get(key string) ([]Record, bool) { return c.lru.Get(key) }

func (c *MemoryCache) Add(key string, recs []Record) { c.lru.Add(key, recs) }

func (c *MemoryCache) Remove(key string) { c.lru.Remove(key) }

func (c *MemoryCache) Purge() { c.lru.Purge() }

// Len reports the number of cached files.
func (c *MemoryCache) Len() int { return c.lru.Len() }
