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

package ratelimit

import (
	"errors"
	"fmt"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
)

const defaultAcquireTimeout = 10 * time.Second

// SourceConfig describes the token bucket for a single upstream source.
// Exactly one of RequestsPerSecond or RequestsPerMinute should be set; when
// both are set the effective refill rate is their sum.
type SourceConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
	RequestsPerMinute float64 `json:"requests_per_minute,omitempty"`
	Burst             int     `json:"burst,omitempty"`
}

// ratePerSecond resolves the configured refill rate to tokens per second.
func (s SourceConfig) ratePerSecond() float64 {
	return s.RequestsPerSecond + s.RequestsPerMinute/60
}

// BreakerConfig holds the circuit breaker tuning shared by all sources.
type BreakerConfig struct {
	// FailureThreshold is the number of failures within FailureWindow that
	// trips the breaker open.
	FailureThreshold int `json:"failure_threshold,omitempty"`
	// FailureWindow is the sliding window over which failures are counted.
	FailureWindow models.Duration `json:"failure_window,omitempty"`
	// Cooldown is how long the breaker stays open before admitting a probe.
	Cooldown models.Duration `json:"cooldown,omitempty"`
	// SuccessThreshold is the number of probe successes needed to close a
	// half-open breaker.
	SuccessThreshold int `json:"success_threshold,omitempty"`
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()

	if b.FailureThreshold <= 0 {
		b.FailureThreshold = def.FailureThreshold
	}

	if b.FailureWindow <= 0 {
		b.FailureWindow = def.FailureWindow
	}

	if b.Cooldown <= 0 {
		b.Cooldown = def.Cooldown
	}

	if b.SuccessThreshold <= 0 {
		b.SuccessThreshold = def.SuccessThreshold
	}

	return b
}

// DefaultBreakerConfig returns the breaker tuning used when none is
// configured: open after 5 failures inside a 60s window, probe after 30s,
// close again on the first successful probe.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		FailureWindow:    models.Duration(60 * time.Second),
		Cooldown:         models.Duration(30 * time.Second),
		SuccessThreshold: 1,
	}
}

// Config configures the rate limit manager.
type Config struct {
	// Limits maps each source to its token bucket. Sources absent from the
	// map fall back to the published defaults for that source.
	Limits map[models.DiscoverySource]SourceConfig `json:"limits,omitempty"`
	// AcquireTimeout bounds how long Acquire blocks waiting for a token.
	AcquireTimeout models.Duration `json:"acquire_timeout,omitempty"`
	Breaker        BreakerConfig   `json:"breaker,omitempty"`
}

// DefaultLimits returns the published per-source budgets: Crossref allows
// sustained polite-pool traffic, Semantic Scholar and Perplexity are
// per-minute quotas with small bursts.
func DefaultLimits() map[models.DiscoverySource]SourceConfig {
	return map[models.DiscoverySource]SourceConfig{
		models.DiscoverySourceCrossref:        {RequestsPerSecond: 45, Burst: 45},
		models.DiscoverySourceSemanticScholar: {RequestsPerMinute: 100, Burst: 10},
		models.DiscoverySourcePerplexity:      {RequestsPerMinute: 10, Burst: 2},
	}
}

// Validate rejects negative rates and bursts. Unset values fall back to the
// per-source defaults, so zero is allowed here; the effective refill rate is
// checked at manager construction.
func (c *Config) Validate() error {
	for source, limit := range c.Limits {
		if limit.RequestsPerSecond < 0 || limit.RequestsPerMinute < 0 {
			return fmt.Errorf("%w: source %s", errNegativeRate, source)
		}

		if limit.Burst < 0 {
			return fmt.Errorf("%w: source %s", errNegativeBurst, source)
		}
	}

	return nil
}

var (
	errNegativeRate   = errors.New("rate limit refill rate must not be negative")
	errNegativeBurst  = errors.New("rate limit burst must not be negative")
	errZeroRefillRate = errors.New("rate limit refill rate must be positive")
)

// effectiveLimits merges configured limits over the defaults so every known
// source has a bucket.
func (c *Config) effectiveLimits() map[models.DiscoverySource]SourceConfig {
	limits := DefaultLimits()

	for source, limit := range c.Limits {
		merged := limits[source]

		if limit.RequestsPerSecond > 0 || limit.RequestsPerMinute > 0 {
			merged.RequestsPerSecond = limit.RequestsPerSecond
			merged.RequestsPerMinute = limit.RequestsPerMinute
		}

		if limit.Burst > 0 {
			merged.Burst = limit.Burst
		}

		limits[source] = merged
	}

	for source, limit := range limits {
		if limit.Burst <= 0 {
			limit.Burst = 1
			limits[source] = limit
		}
	}

	return limits
}

func (c *Config) acquireTimeout() time.Duration {
	if c.AcquireTimeout > 0 {
		return c.AcquireTimeout.AsDuration()
	}

	return defaultAcquireTimeout
}
