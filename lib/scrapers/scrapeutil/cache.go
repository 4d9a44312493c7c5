package scrapeutil

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NotFoundCache remembers handles a source reported as missing so they
// are not requested again until the entry expires.
type NotFoundCache struct {
	cache *expirable.LRU[string, struct{}]
}

func NewNotFoundCache(ttl time.Duration) *NotFoundCache {
	return &NotFoundCache{
		cache: expirable.NewLRU[string, struct{}](1024, nil, ttl),
	}
}

func (c *NotFoundCache) Has(handle string) bool {
	_, hit := c.cache.Get(handle)
	return hit
}

func (c *NotFoundCache) Add(handle string) {
	c.cache.Add(handle, struct{}{})
}
