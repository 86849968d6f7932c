package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trimrr/trimr/internal/models"
)

// LinkCache is a read-through cache in front of the link store, keyed by
// short code or custom alias. Entries age out after the TTL; the resolver
// still re-checks every gate on a hit, so a stale entry can never carry a
// link past an expiry or quota boundary.
type LinkCache struct {
	c *expirable.LRU[string, *models.Link]
}

func New(size int, ttl time.Duration) *LinkCache {
	return &LinkCache{c: expirable.NewLRU[string, *models.Link](size, nil, ttl)}
}

func (lc *LinkCache) Get(code string) (*models.Link, bool) {
	return lc.c.Get(code)
}

func (lc *LinkCache) Set(code string, link *models.Link) {
	lc.c.Add(code, link)
}

// Invalidate drops a link under both of its namespace keys. Called on
// owner edits and deletes so a cached target never outlives a change.
func (lc *LinkCache) Invalidate(link *models.Link) {
	lc.c.Remove(link.ShortCode)
	if link.CustomAlias != "" {
		lc.c.Remove(link.CustomAlias)
	}
}

func (lc *LinkCache) InvalidateCode(code string) {
	lc.c.Remove(code)
}
