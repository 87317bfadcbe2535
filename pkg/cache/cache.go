/*
 * Copyright 2025 Scholarsys Labs.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache stores discovery results in two tiers: a bounded in-process
// LRU and an optional durable key-value store written through on every put.
// Durable faults degrade to tier-1-only operation and never fail a request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scholarsys/paperscout/pkg/kv"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const (
	defaultMaxEntries = 1000
	defaultTTL        = 24 * time.Hour

	envelopeFormatVersion = 1
)

// Config tunes the discovery cache.
type Config struct {
	MaxEntries int             `json:"max_entries,omitempty"`
	TTL        models.Duration `json:"ttl,omitempty"`
}

func (c Config) maxEntries() int {
	if c.MaxEntries > 0 {
		return c.MaxEntries
	}

	return defaultMaxEntries
}

func (c Config) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL.AsDuration()
	}

	return defaultTTL
}

// CachedDiscoveryResult is a hit returned by Get. Result is a private copy;
// callers may mutate it freely.
type CachedDiscoveryResult struct {
	Result   *models.UnifiedDiscoveryResult `json:"result"`
	StoredAt time.Time                      `json:"stored_at"`
	TTL      time.Duration                  `json:"ttl"`
	HitCount int64                          `json:"hit_count"`
}

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// envelope is the durable tier-2 encoding of one entry.
type envelope struct {
	FormatVersion int                            `json:"format_version"`
	StoredAt      time.Time                      `json:"stored_at"`
	TTL           models.Duration                `json:"ttl"`
	HitCount      int64                          `json:"hit_count"`
	Result        *models.UnifiedDiscoveryResult `json:"result"`
}

type entry struct {
	storedAt time.Time
	ttl      time.Duration
	hitCount atomic.Int64
	result   *models.UnifiedDiscoveryResult
}

// DiscoveryCache is safe for concurrent use.
type DiscoveryCache struct {
	logger logger.Logger
	lru    *expirable.LRU[string, *entry]
	store  kv.Store
	ttl    time.Duration
	now    func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// Option customizes cache construction.
type Option func(*DiscoveryCache)

// WithClock overrides the cache's time source. Intended for tests; the LRU's
// own expiry keeps using wall time, freshness checks use this clock.
func WithClock(now func() time.Time) Option {
	return func(c *DiscoveryCache) {
		c.now = now
	}
}

// New builds a discovery cache. store may be nil for tier-1-only operation.
func New(config Config, store kv.Store, log logger.Logger, opts ...Option) *DiscoveryCache {
	if log == nil {
		log = logger.NewTestLogger()
	}

	c := &DiscoveryCache{
		logger: log.WithComponent("discovery_cache"),
		store:  store,
		ttl:    config.ttl(),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.lru = expirable.NewLRU[string, *entry](config.maxEntries(), func(string, *entry) {
		c.evictions.Add(1)
	}, c.ttl)

	return c
}

// Get returns the cached result for key, or a miss. Hits bump the entry's
// hit count and LRU recency. Entries past their TTL count as misses and are
// evicted from both tiers.
func (c *DiscoveryCache) Get(ctx context.Context, key string) (*CachedDiscoveryResult, bool) {
	if ent, ok := c.lru.Get(key); ok {
		if c.fresh(ent) {
			c.hits.Add(1)

			return c.view(ent, ent.hitCount.Add(1)), true
		}

		c.lru.Remove(key)
		c.deleteDurable(ctx, key)
		c.misses.Add(1)

		return nil, false
	}

	if ent, ok := c.getDurable(ctx, key); ok {
		if c.fresh(ent) {
			ent.hitCount.Add(1)
			c.lru.Add(key, ent)
			c.hits.Add(1)

			return c.view(ent, ent.hitCount.Load()), true
		}

		c.deleteDurable(ctx, key)
		c.evictions.Add(1)
		c.misses.Add(1)

		return nil, false
	}

	c.misses.Add(1)

	return nil, false
}

// Put stores result under key in both tiers. A durable write failure is
// logged and otherwise ignored.
func (c *DiscoveryCache) Put(ctx context.Context, key string, result *models.UnifiedDiscoveryResult) {
	ent := &entry{
		storedAt: c.now(),
		ttl:      c.ttl,
		result:   result.Clone(),
	}

	c.lru.Add(key, ent)

	if c.store == nil {
		return
	}

	data, err := json.Marshal(envelope{
		FormatVersion: envelopeFormatVersion,
		StoredAt:      ent.storedAt,
		TTL:           models.Duration(ent.ttl),
		Result:        ent.result,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("cache_key", key).Msg("Failed to encode cache entry")
		return
	}

	if err := c.store.Put(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Durable cache write failed")
	}
}

// Invalidate removes key from both tiers.
func (c *DiscoveryCache) Invalidate(ctx context.Context, key string) {
	c.lru.Remove(key)
	c.deleteDurable(ctx, key)
}

// Stats returns cumulative counters and the current tier-1 size.
func (c *DiscoveryCache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.lru.Len(),
	}
}

func (c *DiscoveryCache) fresh(ent *entry) bool {
	return c.now().Before(ent.storedAt.Add(ent.ttl))
}

func (c *DiscoveryCache) view(ent *entry, hitCount int64) *CachedDiscoveryResult {
	return &CachedDiscoveryResult{
		Result:   ent.result.Clone(),
		StoredAt: ent.storedAt,
		TTL:      ent.ttl,
		HitCount: hitCount,
	}
}

func (c *DiscoveryCache) getDurable(ctx context.Context, key string) (*entry, bool) {
	if c.store == nil {
		return nil, false
	}

	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Durable cache read failed")
		return nil, false
	}

	if !found {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.FormatVersion != envelopeFormatVersion || env.Result == nil {
		if err == nil {
			err = fmt.Errorf("unsupported cache entry format %d", env.FormatVersion)
		}

		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Discarding undecodable cache entry")
		c.deleteDurable(ctx, key)

		return nil, false
	}

	ent := &entry{
		storedAt: env.StoredAt,
		ttl:      env.TTL.AsDuration(),
		result:   env.Result,
	}
	ent.hitCount.Store(env.HitCount)

	return ent, true
}

func (c *DiscoveryCache) deleteDurable(ctx context.Context, key string) {
	if c.store == nil {
		return
	}

	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn().Err(err).Str("cache_key", key).Msg("Durable cache delete failed")
	}
}
