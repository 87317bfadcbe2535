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

// Package ratelimit coordinates access to upstream discovery sources. Each
// source gets a token bucket and a circuit breaker; callers acquire a permit
// before every outbound request and report the outcome exactly once.
package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

// Snapshot is a point-in-time view of one source's limiter and breaker.
type Snapshot struct {
	Source              models.DiscoverySource `json:"source"`
	Capacity            int                    `json:"capacity"`
	Tokens              float64                `json:"tokens"`
	RefillRatePerSecond float64                `json:"refill_rate_per_second"`
	CircuitState        string                 `json:"circuit_state"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	OpenedAt            *time.Time             `json:"opened_at,omitempty"`
	Acquired            int64                  `json:"acquired"`
	Succeeded           int64                  `json:"succeeded"`
	Failed              int64                  `json:"failed"`
	AcquireTimeouts     int64                  `json:"acquire_timeouts"`
	Rejected            int64                  `json:"rejected"`
	LatencyBuckets      map[string]int64       `json:"latency_buckets"`
}

// latencyBounds are the upper bounds of the request latency histogram.
var latencyBounds = [...]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

type latencyHistogram struct {
	counts [len(latencyBounds) + 1]atomic.Int64
}

func (h *latencyHistogram) observe(d time.Duration) {
	for i, bound := range latencyBounds {
		if d <= bound {
			h.counts[i].Add(1)
			return
		}
	}

	h.counts[len(latencyBounds)].Add(1)
}

func (h *latencyHistogram) snapshot() map[string]int64 {
	out := make(map[string]int64, len(h.counts))

	for i, bound := range latencyBounds {
		out["le_"+bound.String()] = h.counts[i].Load()
	}

	out["gt_"+latencyBounds[len(latencyBounds)-1].String()] = h.counts[len(latencyBounds)].Load()

	return out
}

// sourceLimiter bundles the token bucket, breaker, and usage counters for
// one source.
type sourceLimiter struct {
	source  models.DiscoverySource
	limiter *rate.Limiter
	breaker *circuitBreaker
	now     func() time.Time

	acquired        atomic.Int64
	succeeded       atomic.Int64
	failed          atomic.Int64
	acquireTimeouts atomic.Int64
	rejected        atomic.Int64
	latency         latencyHistogram
}

// Permit is the right to perform a single request against a source. Every
// permit must be reported exactly once; extra reports are ignored.
type Permit interface {
	// Report records the outcome of the request this permit covered. The
	// first call wins; later calls are no-ops.
	Report(success bool)
}

type permit struct {
	sl         *sourceLimiter
	acquiredAt time.Time
	reported   atomic.Bool
}

func (p *permit) Report(success bool) {
	if p == nil || !p.reported.CompareAndSwap(false, true) {
		return
	}

	p.sl.latency.observe(p.sl.now().Sub(p.acquiredAt))

	if success {
		p.sl.succeeded.Add(1)
	} else {
		p.sl.failed.Add(1)
	}

	p.sl.breaker.record(success)
}

// Manager hands out permits for upstream sources. The set of sources is
// fixed at construction.
type Manager struct {
	logger         logger.Logger
	acquireTimeout time.Duration
	now            func() time.Time
	sources        map[models.DiscoverySource]*sourceLimiter
}

// ManagerOption customizes manager construction.
type ManagerOption func(*Manager)

// WithClock overrides the manager's time source. Intended for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager builds a manager from the given config, filling unset limits
// with the per-source defaults.
func NewManager(config *Config, log logger.Logger, opts ...ManagerOption) (*Manager, error) {
	if config == nil {
		config = &Config{}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	m := &Manager{
		logger:         log.WithComponent("ratelimit"),
		acquireTimeout: config.acquireTimeout(),
		now:            time.Now,
		sources:        make(map[models.DiscoverySource]*sourceLimiter),
	}

	for _, opt := range opts {
		opt(m)
	}

	for source, limit := range config.effectiveLimits() {
		perSecond := limit.ratePerSecond()
		if perSecond <= 0 {
			return nil, fmt.Errorf("%w: source %s", errZeroRefillRate, source)
		}

		m.sources[source] = &sourceLimiter{
			source:  source,
			limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst),
			breaker: newCircuitBreaker(string(source), config.Breaker, log, m.now),
			now:     m.now,
		}

		m.logger.Debug().
			Str("source", string(source)).
			Float64("rate_per_second", perSecond).
			Int("burst", limit.Burst).
			Msg("Configured source rate limiter")
	}

	return m, nil
}

// Acquire blocks until a token for the source is available, the acquire
// timeout elapses, or ctx is done. While the source's circuit is open it
// fails fast without consuming a token. The breaker lock is never held while
// waiting on the bucket.
func (m *Manager) Acquire(ctx context.Context, source models.DiscoverySource) (Permit, error) {
	sl, ok := m.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	if err := sl.breaker.allow(); err != nil {
		sl.rejected.Add(1)
		return nil, fmt.Errorf("%w: source %s", ErrCircuitOpen, source)
	}

	waitCtx := ctx

	if m.acquireTimeout > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, m.acquireTimeout)
		defer cancel()
	}

	if err := sl.limiter.Wait(waitCtx); err != nil {
		// An admitted half-open probe that never ran must free the slot.
		sl.breaker.releaseProbe()

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		sl.acquireTimeouts.Add(1)

		return nil, fmt.Errorf("%w: source %s", ErrAcquireTimeout, source)
	}

	sl.acquired.Add(1)

	return &permit{sl: sl, acquiredAt: m.now()}, nil
}

// Stats returns the current snapshot for one source.
func (m *Manager) Stats(source models.DiscoverySource) (Snapshot, error) {
	sl, ok := m.sources[source]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	return sl.stats(), nil
}

// StatsAll returns snapshots for every configured source.
func (m *Manager) StatsAll() map[models.DiscoverySource]Snapshot {
	out := make(map[models.DiscoverySource]Snapshot, len(m.sources))

	for source, sl := range m.sources {
		out[source] = sl.stats()
	}

	return out
}

// Reset forces the source's circuit breaker closed. Administrative override;
// the token bucket is left untouched.
func (m *Manager) Reset(source models.DiscoverySource) error {
	sl, ok := m.sources[source]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}

	sl.breaker.reset()
	m.logger.Info().
		Str("source", string(source)).
		Msg("Circuit breaker reset")

	return nil
}

func (sl *sourceLimiter) stats() Snapshot {
	state, consecutiveFailures, openedAt := sl.breaker.snapshot()

	return Snapshot{
		Source:              sl.source,
		Capacity:            sl.limiter.Burst(),
		Tokens:              sl.limiter.Tokens(),
		RefillRatePerSecond: float64(sl.limiter.Limit()),
		CircuitState:        state.String(),
		ConsecutiveFailures: consecutiveFailures,
		OpenedAt:            openedAt,
		Acquired:            sl.acquired.Load(),
		Succeeded:           sl.succeeded.Load(),
		Failed:              sl.failed.Load(),
		AcquireTimeouts:     sl.acquireTimeouts.Load(),
		Rejected:            sl.rejected.Load(),
		LatencyBuckets:      sl.latency.snapshot(),
	}
}
