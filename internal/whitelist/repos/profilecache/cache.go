// Package profilecache memoizes successful external profile lookups in an
// LRU so repeated administrative operations on the same name do not pay the
// network round trip each time. Misses and failures are never cached: a name
// that gains an account later must still resolve.
package profilecache

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/minehattan/whitelister/internal/whitelist/domain"
	"github.com/minehattan/whitelister/internal/whitelist/services/resolve"
)

// cachingResolver wraps an inner Resolver with an LRU of positive results.
type cachingResolver struct {
	inner  resolve.Resolver
	lru    *lru.Cache[string, domain.Profile]
	hits   uint64
	misses uint64
}

// Wrap returns a Resolver that caches up to size positive results from
// inner. If size <= 0 the inner resolver is returned unchanged.
func Wrap(inner resolve.Resolver, size int) (resolve.Resolver, error) {
	if size <= 0 {
		return inner, nil
	}
	cache, err := lru.New[string, domain.Profile](size)
	if err != nil {
		return nil, err
	}
	return &cachingResolver{inner: inner, lru: cache}, nil
}

func (c *cachingResolver) FindByName(ctx context.Context, name string) (domain.Profile, bool, error) {
	if p, ok := c.lru.Get(name); ok {
		atomic.AddUint64(&c.hits, 1)
		return p, true, nil
	}
	atomic.AddUint64(&c.misses, 1)
	p, ok, err := c.inner.FindByName(ctx, name)
	if err != nil || !ok {
		return domain.Profile{}, ok, err
	}
	c.lru.Add(name, p)
	return p, true, nil
}

// Stats returns cumulative hit and miss counters.
func (c *cachingResolver) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}
