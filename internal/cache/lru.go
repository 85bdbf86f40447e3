// Package cache holds policy lookups and assignment cursors for Heron.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
)

// LRUCache keeps policies in process, evicting the least recently read once
// full. It is the Community tier cache and the local layer of TwoPhaseCache.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	cursors  map[string]*cursor
	now      func() time.Time
}

type policyEntry struct {
	key     string
	policy  domain.Policy
	expires time.Time
}

type cursor struct {
	value    int64
	lastUsed time.Time
}

// NewLRUCache creates a cache holding up to capacity policies. Zero means 10000.
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LRUCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		cursors:  make(map[string]*cursor),
		now:      time.Now,
	}
}

// GetPolicy returns a copy of the cached policy so callers cannot mutate the entry.
func (c *LRUCache) GetPolicy(ctx context.Context, policyNumber string) (*domain.Policy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[policyKey(policyNumber)]
	if !ok {
		return nil, nil
	}
	entry := elem.Value.(*policyEntry)
	if c.now().After(entry.expires) {
		c.evict(elem)
		return nil, nil
	}
	c.recency.MoveToFront(elem)
	return clonePolicy(&entry.policy), nil
}

// SetPolicy stores a copy of p under its number.
func (c *LRUCache) SetPolicy(ctx context.Context, p *domain.Policy, ttl time.Duration) error {
	key := policyKey(p.PolicyNumber)
	expires := c.now().Add(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*policyEntry)
		entry.policy = *clonePolicy(p)
		entry.expires = expires
		c.recency.MoveToFront(elem)
		return nil
	}

	c.entries[key] = c.recency.PushFront(&policyEntry{
		key:     key,
		policy:  *clonePolicy(p),
		expires: expires,
	})
	for c.recency.Len() > c.capacity {
		c.evict(c.recency.Back())
	}
	return nil
}

// InvalidatePolicy drops the cached policy, if any.
func (c *LRUCache) InvalidatePolicy(ctx context.Context, policyNumber string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[policyKey(policyNumber)]; ok {
		c.evict(elem)
	}
	return nil
}

// NextCursor advances the named cursor. Cursors are not subject to eviction.
func (c *LRUCache) NextCursor(ctx context.Context, name string, idle time.Duration) (int64, error) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.cursors[name]
	if !ok || now.Sub(cur.lastUsed) > idle {
		cur = &cursor{}
		c.cursors[name] = cur
	}
	cur.value++
	cur.lastUsed = now
	return cur.value, nil
}

// Ping always succeeds.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Close empties the cache.
func (c *LRUCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.recency.Init()
	c.cursors = make(map[string]*cursor)
	return nil
}

// Len returns the number of cached policies.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

func (c *LRUCache) evict(elem *list.Element) {
	if elem == nil {
		return
	}
	c.recency.Remove(elem)
	delete(c.entries, elem.Value.(*policyEntry).key)
}
