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

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
)

// CacheStatsFunc returns the cache counters at scrape time.
type CacheStatsFunc func() cache.Stats

// RateLimitStatsFunc returns the per-source limiter snapshots at scrape time.
type RateLimitStatsFunc func() map[models.DiscoverySource]ratelimit.Snapshot

// SnapshotCollector converts component snapshots into Prometheus metrics on
// every scrape. The cache and rate-limit manager already keep their own
// counters; this avoids double bookkeeping. Either func may be nil.
type SnapshotCollector struct {
	cacheStats CacheStatsFunc
	limitStats RateLimitStatsFunc

	cacheHits      *prometheus.Desc
	cacheMisses    *prometheus.Desc
	cacheEvictions *prometheus.Desc
	cacheEntries   *prometheus.Desc

	limiterTokens   *prometheus.Desc
	limiterCapacity *prometheus.Desc
	acquired        *prometheus.Desc
	succeeded       *prometheus.Desc
	failed          *prometheus.Desc
	rejected        *prometheus.Desc
	acquireTimeouts *prometheus.Desc

	circuitState    *prometheus.Desc
	circuitFailures *prometheus.Desc
}

var _ prometheus.Collector = (*SnapshotCollector)(nil)

// NewSnapshotCollector builds the collector. Register it with the same
// registry the task instruments use.
func NewSnapshotCollector(cacheStats CacheStatsFunc, limitStats RateLimitStatsFunc) *SnapshotCollector {
	sourceLabel := []string{"source"}

	return &SnapshotCollector{
		cacheStats: cacheStats,
		limitStats: limitStats,
		cacheHits: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "hits_total"),
			"Cache hits since process start.", nil, nil),
		cacheMisses: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "misses_total"),
			"Cache misses since process start.", nil, nil),
		cacheEvictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"Cache evictions since process start.", nil, nil),
		cacheEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Entries currently resident in the memory tier.", nil, nil),
		limiterTokens: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "tokens"),
			"Tokens currently available in the source's bucket.", sourceLabel, nil),
		limiterCapacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "capacity"),
			"Burst capacity of the source's bucket.", sourceLabel, nil),
		acquired: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "acquired_total"),
			"Permits granted, by source.", sourceLabel, nil),
		succeeded: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "succeeded_total"),
			"Permits reported back as success, by source.", sourceLabel, nil),
		failed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "failed_total"),
			"Permits reported back as failure, by source.", sourceLabel, nil),
		rejected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "rejected_total"),
			"Acquisitions rejected by an open circuit, by source.", sourceLabel, nil),
		acquireTimeouts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ratelimit", "acquire_timeouts_total"),
			"Acquisitions that timed out waiting for a token, by source.", sourceLabel, nil),
		circuitState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "circuit", "state"),
			"Breaker state by source: 0 closed, 1 half-open, 2 open.", sourceLabel, nil),
		circuitFailures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "circuit", "consecutive_failures"),
			"Consecutive failures observed by the breaker, by source.", sourceLabel, nil),
	}
}

func (c *SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	if c.cacheStats != nil {
		stats := c.cacheStats()

		ch <- prometheus.MustNewConstMetric(c.cacheHits, prometheus.CounterValue, float64(stats.Hits))
		ch <- prometheus.MustNewConstMetric(c.cacheMisses, prometheus.CounterValue, float64(stats.Misses))
		ch <- prometheus.MustNewConstMetric(c.cacheEvictions, prometheus.CounterValue, float64(stats.Evictions))
		ch <- prometheus.MustNewConstMetric(c.cacheEntries, prometheus.GaugeValue, float64(stats.Size))
	}

	if c.limitStats == nil {
		return
	}

	for source, snap := range c.limitStats() {
		label := string(source)

		ch <- prometheus.MustNewConstMetric(c.limiterTokens, prometheus.GaugeValue, snap.Tokens, label)
		ch <- prometheus.MustNewConstMetric(c.limiterCapacity, prometheus.GaugeValue, float64(snap.Capacity), label)
		ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.CounterValue, float64(snap.Acquired), label)
		ch <- prometheus.MustNewConstMetric(c.succeeded, prometheus.CounterValue, float64(snap.Succeeded), label)
		ch <- prometheus.MustNewConstMetric(c.failed, prometheus.CounterValue, float64(snap.Failed), label)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(snap.Rejected), label)
		ch <- prometheus.MustNewConstMetric(c.acquireTimeouts, prometheus.CounterValue, float64(snap.AcquireTimeouts), label)
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, circuitStateValue(snap.CircuitState), label)
		ch <- prometheus.MustNewConstMetric(c.circuitFailures, prometheus.GaugeValue, float64(snap.ConsecutiveFailures), label)
	}
}

func circuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}
