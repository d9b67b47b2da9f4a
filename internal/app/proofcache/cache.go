package proofcache

import (
	"sync"
	"time"

	"zk-attestation/internal/app/attestation"
)

const DefaultTTL = 10 * time.Minute

// Entry wraps a cached attestation. It is usable iff now < ExpiresAt.
type Entry struct {
	Attestation *attestation.Attestation
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type Stats struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// Cache maps request fingerprints to attestations. Expired entries are
// evicted lazily on read or in bulk by SweepExpired.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

type Option func(*Cache)

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the live attestation stored under fingerprint.
func (c *Cache) Get(fingerprint string) (*attestation.Attestation, bool) {
	now := c.now()

	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !now.Before(entry.ExpiresAt) {
		c.mu.Lock()
		if current, still := c.entries[fingerprint]; still && !now.Before(current.ExpiresAt) {
			delete(c.entries, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}

	return entry.Attestation.Clone(), true
}

// Put stores a copy of a under fingerprint and returns the created entry.
func (c *Cache) Put(fingerprint string, a *attestation.Attestation) Entry {
	now := c.now()
	entry := Entry{
		Attestation: a.Clone(),
		CreatedAt:   now,
		ExpiresAt:   now.Add(c.ttl),
	}

	c.mu.Lock()
	c.entries[fingerprint] = entry
	c.mu.Unlock()

	return entry
}

// SweepExpired removes every entry with ExpiresAt <= now and returns how many were removed.
func (c *Cache) SweepExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for fp, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(c.entries, fp)
			removed++
		}
	}
	return removed
}

func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Total: len(c.entries)}
	for _, entry := range c.entries {
		if !now.Before(entry.ExpiresAt) {
			stats.Expired++
		}
	}
	return stats
}
