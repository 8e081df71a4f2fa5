package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/techequitycollaborative/ca-leg-tracker/internal/event"
)

type cacheEntry struct {
	key      string
	notFound bool
	cachedAt time.Time
}

// Cached memoizes another Resolver with a TTL. Unknown bills are cached too,
// so a floor agenda listing the same unresolvable measure costs one lookup.
// Lookup failures other than ErrNotFound are not cached.
type Cached struct {
	next Resolver
	TTL  time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry // session|bill -> entry
	hits    int
	misses  int
	now     func() time.Time
}

// NewCached wraps next with a cache of the given TTL
func NewCached(next Resolver, ttl time.Duration) *Cached {
	return &Cached{
		next:    next,
		TTL:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *Cached) Resolve(ctx context.Context, billNumber, session string) (string, error) {
	k := cacheKey(billNumber, session)

	c.mu.Lock()
	if e, ok := c.lookup(k); ok {
		c.hits++
		c.mu.Unlock()
		if e.notFound {
			return "", ErrNotFound
		}
		return e.key, nil
	}
	c.misses++
	c.mu.Unlock()

	key, err := c.next.Resolve(ctx, billNumber, session)
	switch {
	case errors.Is(err, ErrNotFound):
		c.store(k, cacheEntry{notFound: true})
	case err == nil:
		c.store(k, cacheEntry{key: key})
	}
	return key, err
}

// lookup returns a live entry, dropping it if expired. Callers hold mu.
func (c *Cached) lookup(k string) (cacheEntry, bool) {
	e, ok := c.entries[k]
	if !ok {
		return cacheEntry{}, false
	}
	if c.TTL > 0 && c.now().Sub(e.cachedAt) > c.TTL {
		delete(c.entries, k)
		return cacheEntry{}, false
	}
	return e, true
}

func (c *Cached) store(k string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.cachedAt = c.now()
	c.entries[k] = e
}

// Size returns the number of cached entries
func (c *Cached) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache hits and misses so far
func (c *Cached) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func cacheKey(billNumber, session string) string {
	return session + "|" + event.NormalizeBillNumber(billNumber)
}
