// Package cache implements a read-through result cache: an LRU-bounded
// map from fingerprint to cached payload, invalidated by
// mutating commands on the owning session, with at-most-one concurrent
// compute per fingerprint (singleflight).
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// entry is the cached payload plus the timestamp it was captured at, used
// to judge freshness against the configured TTL.
type entry struct {
	payload   any
	capturedAt time.Time
}

// Cache is a process-wide, LRU-bounded fingerprint -> payload map.
type Cache struct {
	ttl   time.Duration
	lru   *lru.Cache[string, entry]
	group singleflight.Group

	mu          sync.Mutex
	bySession   map[string]map[string]struct{} // session id -> set of fingerprints
}

// New builds a Cache with the given LRU capacity and freshness TTL.
func New(capacity int, ttl time.Duration) *Cache {
	l, _ := lru.New[string, entry](capacity)
	return &Cache{
		ttl:       ttl,
		lru:       l,
		bySession: make(map[string]map[string]struct{}),
	}
}

// Get returns a cached payload for fingerprint if present and younger than
// the TTL, and whether it was a hit.
func (c *Cache) Get(fingerprint string) (any, bool) {
	e, ok := c.lru.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if time.Since(e.capturedAt) > c.ttl {
		return nil, false
	}
	return e.payload, true
}

// Put stores payload under fingerprint, scoped to sessionID for later
// invalidation.
func (c *Cache) Put(sessionID, fingerprint string, payload any) {
	c.lru.Add(fingerprint, entry{payload: payload, capturedAt: time.Now()})

	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.bySession[sessionID]
	if !ok {
		set = make(map[string]struct{})
		c.bySession[sessionID] = set
	}
	set[fingerprint] = struct{}{}
}

// InvalidateSession evicts every entry scoped to sessionID. Called after
// every mutating command whose state diff reports a change.
func (c *Cache) InvalidateSession(sessionID string) {
	c.mu.Lock()
	set, ok := c.bySession[sessionID]
	delete(c.bySession, sessionID)
	c.mu.Unlock()

	if !ok {
		return
	}
	for fp := range set {
		c.lru.Remove(fp)
	}
}

// ForgetSession drops the session's fingerprint index without evicting
// entries (the entries simply age out of the LRU / TTL naturally). Nothing
// in the gateway calls it; closing a session leaves its index in place.
func (c *Cache) ForgetSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bySession, sessionID)
}

// GetOrCompute returns the cached payload for fingerprint if fresh;
// otherwise it calls compute, guaranteeing at most one concurrent call to
// compute per fingerprint — concurrent callers for the same fingerprint
// wait for the in-flight call and share its result.
func (c *Cache) GetOrCompute(sessionID, fingerprint string, compute func() (any, error)) (any, bool, error) {
	if payload, ok := c.Get(fingerprint); ok {
		return payload, true, nil
	}

	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		if payload, ok := c.Get(fingerprint); ok {
			return payload, nil
		}
		payload, err := compute()
		if err != nil {
			return nil, err
		}
		c.Put(sessionID, fingerprint, payload)
		return payload, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// Len reports the number of entries currently cached, for tests and metrics.
func (c *Cache) Len() int {
	return c.lru.Len()
}
