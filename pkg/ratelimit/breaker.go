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
	"sync"
	"time"

	"github.com/scholarsys/paperscout/pkg/logger"
)

// CircuitState represents the state of a source's circuit breaker.
type CircuitState int

const (
	// StateClosed allows requests through.
	StateClosed CircuitState = iota
	// StateOpen rejects all requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits a single probe request.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuitBreaker guards a single upstream source. Failures are counted over
// a sliding window; once the threshold trips the breaker rejects requests for
// the cooldown period, then admits exactly one in-flight probe at a time
// until a probe succeeds.
type circuitBreaker struct {
	name   string
	config BreakerConfig
	logger logger.Logger
	now    func() time.Time

	mu                  sync.Mutex
	state               CircuitState
	failureTimes        []time.Time
	consecutiveFailures int
	successCount        int
	openedAt            time.Time
	probeInFlight       bool
}

func newCircuitBreaker(name string, config BreakerConfig, log logger.Logger, now func() time.Time) *circuitBreaker {
	if now == nil {
		now = time.Now
	}

	return &circuitBreaker{
		name:   name,
		config: config.withDefaults(),
		logger: log.WithComponent("circuit_breaker"),
		now:    now,
		state:  StateClosed,
	}
}

// allow reports whether a request may proceed. When the cooldown has elapsed
// on an open breaker, the calling request becomes the half-open probe.
func (cb *circuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.config.Cooldown.AsDuration() {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.probeInFlight = true
			cb.logger.Info().
				Str("circuit_breaker", cb.name).
				Msg("Circuit breaker transitioning to half-open")

			return nil
		}

		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probeInFlight {
			return ErrCircuitOpen
		}

		cb.probeInFlight = true

		return nil
	default:
		return ErrCircuitOpen
	}
}

// releaseProbe frees the half-open probe slot without recording an outcome.
// Used when an admitted request never reached the network, for example when
// token acquisition timed out.
func (cb *circuitBreaker) releaseProbe() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probeInFlight = false
	}
}

// record feeds a request outcome back into the breaker.
func (cb *circuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.probeInFlight = false
	}

	if success {
		cb.onSuccess()
	} else {
		cb.onFailure()
	}
}

func (cb *circuitBreaker) onFailure() {
	now := cb.now()

	cb.consecutiveFailures++
	cb.failureTimes = append(cb.failureTimes, now)
	cb.pruneWindow(now)

	switch cb.state {
	case StateClosed:
		if len(cb.failureTimes) >= cb.config.FailureThreshold {
			cb.open(now)
			cb.logger.Warn().
				Str("circuit_breaker", cb.name).
				Int("failure_count", len(cb.failureTimes)).
				Msg("Circuit breaker opened due to failures")
		}
	case StateHalfOpen:
		cb.open(now)
		cb.logger.Warn().
			Str("circuit_breaker", cb.name).
			Msg("Circuit breaker reopened after failed probe")
	case StateOpen:
		// Late report from a permit acquired before the breaker opened.
	}
}

func (cb *circuitBreaker) onSuccess() {
	cb.consecutiveFailures = 0

	switch cb.state {
	case StateClosed:
		cb.failureTimes = cb.failureTimes[:0]
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failureTimes = cb.failureTimes[:0]
			cb.logger.Info().
				Str("circuit_breaker", cb.name).
				Msg("Circuit breaker closed after successful probe")
		}
	case StateOpen:
		// Late report from a permit acquired before the breaker opened.
	}
}

func (cb *circuitBreaker) open(now time.Time) {
	cb.state = StateOpen
	cb.openedAt = now
	cb.successCount = 0
	cb.probeInFlight = false
}

// pruneWindow drops failures older than the sliding window.
func (cb *circuitBreaker) pruneWindow(now time.Time) {
	cutoff := now.Add(-cb.config.FailureWindow.AsDuration())

	keep := 0
	for ; keep < len(cb.failureTimes); keep++ {
		if cb.failureTimes[keep].After(cutoff) {
			break
		}
	}

	if keep > 0 {
		cb.failureTimes = append(cb.failureTimes[:0], cb.failureTimes[keep:]...)
	}
}

// reset forces the breaker closed and clears its failure history.
func (cb *circuitBreaker) reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failureTimes = cb.failureTimes[:0]
	cb.consecutiveFailures = 0
	cb.successCount = 0
	cb.probeInFlight = false
}

// getState returns the current state of the circuit breaker.
func (cb *circuitBreaker) getState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// snapshot returns the breaker fields exposed through Manager.Stats.
func (cb *circuitBreaker) snapshot() (state CircuitState, consecutiveFailures int, openedAt *time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state = cb.state
	consecutiveFailures = cb.consecutiveFailures

	if cb.state != StateClosed {
		at := cb.openedAt
		openedAt = &at
	}

	return state, consecutiveFailures, openedAt
}
