package authmode

import (
	"sync"
	"sync/atomic"
)

// Classifier resolves the AuthRequirement of a request.
//
// Table lookups are memoized per lower-cased first path segment. Entries are
// written once and never invalidated; concurrent first writes of the same key
// race benignly because the computation is pure. Once limit entries exist,
// further segments are still classified but no longer stored.
type Classifier struct {
	identity  map[string]struct{}
	telemetry map[string]struct{}

	cache   sync.Map // string -> AuthRequirement
	entries atomic.Int64
	limit   int64

	computations atomic.Uint64
}

// NewClassifier creates a classifier over table with a bounded cache.
// A limit of zero or less disables the bound.
func NewClassifier(table Table, limit int) *Classifier {
	return &Classifier{
		identity:  toSet(table.Identity),
		telemetry: toSet(table.Telemetry),
		limit:     int64(limit),
	}
}

// Resolve classifies a request. A concrete override always wins; otherwise
// the first path segment decides.
func (c *Classifier) Resolve(override Mode, segment string) (AuthRequirement, Source) {
	if override != ModeAuto && override != "" {
		return RequirementFor(override), SourceOverride
	}
	return c.Lookup(segment)
}

// Lookup classifies a first path segment through the cache
func (c *Classifier) Lookup(segment string) (AuthRequirement, Source) {
	key := normalizeSegment(segment)

	if v, ok := c.cache.Load(key); ok {
		return v.(AuthRequirement), SourceCache
	}

	req := c.compute(key)

	if c.limit > 0 && c.entries.Load() >= c.limit {
		return req, SourceTable
	}
	if _, loaded := c.cache.LoadOrStore(key, req); !loaded {
		c.entries.Add(1)
	}
	return req, SourceTable
}

func (c *Classifier) compute(key string) AuthRequirement {
	c.computations.Add(1)

	if _, ok := c.identity[key]; ok {
		return AuthRequirement{RequiresSessionAuth: true}
	}
	if _, ok := c.telemetry[key]; ok {
		return AuthRequirement{RequiresServiceToken: true}
	}
	return AuthRequirement{}
}

// Computations returns how many table scans have run
func (c *Classifier) Computations() uint64 {
	return c.computations.Load()
}

// Len returns the number of cached segments
func (c *Classifier) Len() int {
	return int(c.entries.Load())
}
