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

package tasks

import (
	"sync"
	"time"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

// Metrics defines the interface for collecting task substrate metrics
type Metrics interface {
	// Lifecycle counters
	RecordTaskCreated(agentID string)
	RecordTaskStarted(agentID string, queued time.Duration)
	RecordTaskCompleted(agentID string, run time.Duration)
	RecordTaskFailed(agentID string, kind models.ErrorKind, run time.Duration)
	RecordTaskTimedOut(agentID string, run time.Duration)
	RecordTaskCancelled(agentID string)
	RecordTaskRetry(agentID string)

	// Maintenance metrics
	RecordTasksPurged(count int64)
	RecordTasksRecovered(count int)

	// Export metrics for monitoring systems
	GetMetrics() map[string]interface{}
}

// NoOpMetrics provides a no-op implementation of the Metrics interface
type NoOpMetrics struct{}

func (n *NoOpMetrics) RecordTaskCreated(agentID string)                                 {}
func (n *NoOpMetrics) RecordTaskStarted(agentID string, queued time.Duration)           {}
func (n *NoOpMetrics) RecordTaskCompleted(agentID string, run time.Duration)            {}
func (n *NoOpMetrics) RecordTaskFailed(agentID string, kind models.ErrorKind, run time.Duration) {
}
func (n *NoOpMetrics) RecordTaskTimedOut(agentID string, run time.Duration) {}
func (n *NoOpMetrics) RecordTaskCancelled(agentID string)                   {}
func (n *NoOpMetrics) RecordTaskRetry(agentID string)                       {}
func (n *NoOpMetrics) RecordTasksPurged(count int64)                        {}
func (n *NoOpMetrics) RecordTasksRecovered(count int)                       {}
func (n *NoOpMetrics) GetMetrics() map[string]interface{}                   { return map[string]interface{}{} }

// InMemoryMetrics provides an in-memory implementation of the Metrics interface
type InMemoryMetrics struct {
	mu     sync.RWMutex
	logger logger.Logger

	// Lifecycle counters keyed by agent id; failures keyed by agent:kind
	created   map[string]int
	started   map[string]int
	completed map[string]int
	failed    map[string]int
	timedOut  map[string]int
	cancelled map[string]int
	retries   map[string]int

	// Last observed timings keyed by agent id
	queuedDuration map[string]time.Duration
	runDuration    map[string]time.Duration

	// Maintenance counters
	purged    int64
	recovered int

	lastUpdated time.Time
}

// NewInMemoryMetrics creates a new in-memory metrics collector
func NewInMemoryMetrics(log logger.Logger) *InMemoryMetrics {
	return &InMemoryMetrics{
		logger:         log,
		created:        make(map[string]int),
		started:        make(map[string]int),
		completed:      make(map[string]int),
		failed:         make(map[string]int),
		timedOut:       make(map[string]int),
		cancelled:      make(map[string]int),
		retries:        make(map[string]int),
		queuedDuration: make(map[string]time.Duration),
		runDuration:    make(map[string]time.Duration),
		lastUpdated:    time.Now(),
	}
}

func (m *InMemoryMetrics) RecordTaskCreated(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[agentID]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordTaskStarted(agentID string, queued time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[agentID]++
	m.queuedDuration[agentID] = queued
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordTaskCompleted(agentID string, run time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[agentID]++
	m.runDuration[agentID] = run
	m.lastUpdated = time.Now()

	m.logger.Info().
		Str("agent_id", agentID).
		Dur("duration", run).
		Msg("Task completed successfully")
}

func (m *InMemoryMetrics) RecordTaskFailed(agentID string, kind models.ErrorKind, run time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[agentID+":"+string(kind)]++
	m.runDuration[agentID] = run
	m.lastUpdated = time.Now()

	m.logger.Error().
		Str("agent_id", agentID).
		Str("error_kind", string(kind)).
		Dur("duration", run).
		Msg("Task failed")
}

func (m *InMemoryMetrics) RecordTaskTimedOut(agentID string, run time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timedOut[agentID]++
	m.runDuration[agentID] = run
	m.lastUpdated = time.Now()

	m.logger.Warn().
		Str("agent_id", agentID).
		Dur("duration", run).
		Msg("Task timed out")
}

func (m *InMemoryMetrics) RecordTaskCancelled(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[agentID]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordTaskRetry(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[agentID]++
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordTasksPurged(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged += count
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) RecordTasksRecovered(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recovered += count
	m.lastUpdated = time.Now()
}

func (m *InMemoryMetrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"tasks": map[string]interface{}{
			"created":        m.created,
			"started":        m.started,
			"completed":      m.completed,
			"failed_by_kind": m.failed,
			"timed_out":      m.timedOut,
			"cancelled":      m.cancelled,
			"retries":        m.retries,
		},
		"timers": map[string]interface{}{
			"queued": m.queuedDuration,
			"run":    m.runDuration,
		},
		"maintenance": map[string]interface{}{
			"purged":    m.purged,
			"recovered": m.recovered,
		},
		"last_updated": m.lastUpdated,
	}
}
