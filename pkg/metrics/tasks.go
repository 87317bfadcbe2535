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

// Package metrics exposes the service's Prometheus instruments: a
// tasks.Metrics implementation feeding lifecycle counters and histograms,
// and a collector that bridges cache and rate-limit snapshots at scrape
// time.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/tasks"
)

const namespace = "paperscout"

// durationBuckets cover task timings from sub-second cache replays up to the
// five-minute task timeout ceiling.
var durationBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// TaskMetrics records task lifecycle events into Prometheus and forwards
// every event to an inner collector, so the JSON stats endpoints keep
// working off the in-memory snapshot.
type TaskMetrics struct {
	inner tasks.Metrics

	created  *prometheus.CounterVec
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	failures *prometheus.CounterVec
	retries  *prometheus.CounterVec

	purged    prometheus.Counter
	recovered prometheus.Counter

	queuedSeconds *prometheus.HistogramVec
	runSeconds    *prometheus.HistogramVec
}

var _ tasks.Metrics = (*TaskMetrics)(nil)

// NewTaskMetrics registers the task instruments with registry. A nil
// registry uses the default registerer; a nil inner disables forwarding.
func NewTaskMetrics(registry prometheus.Registerer, inner tasks.Metrics) *TaskMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	if inner == nil {
		inner = &tasks.NoOpMetrics{}
	}

	factory := promauto.With(registry)

	return &TaskMetrics{
		inner: inner,
		created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Tasks created, by agent.",
		}, []string{"agent_id"}),
		started: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "started_total",
			Help:      "Tasks claimed for execution, by agent.",
		}, []string{"agent_id"}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Tasks reaching a terminal status, by agent and status.",
		}, []string{"agent_id", "status"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "failures_total",
			Help:      "Failed tasks, by agent and error kind.",
		}, []string{"agent_id", "kind"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "retries_total",
			Help:      "Task attempt retries, by agent.",
		}, []string{"agent_id"}),
		purged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "purged_total",
			Help:      "Terminal tasks removed by the retention purger.",
		}),
		recovered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "recovered_total",
			Help:      "Orphaned tasks marked timed out by the startup recovery scan.",
		}),
		queuedSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "queued_seconds",
			Help:      "Time from task creation to claim.",
			Buckets:   durationBuckets,
		}, []string{"agent_id"}),
		runSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "run_seconds",
			Help:      "Time from claim to terminal status, by agent and status.",
			Buckets:   durationBuckets,
		}, []string{"agent_id", "status"}),
	}
}

func (m *TaskMetrics) RecordTaskCreated(agentID string) {
	m.created.WithLabelValues(agentID).Inc()
	m.inner.RecordTaskCreated(agentID)
}

func (m *TaskMetrics) RecordTaskStarted(agentID string, queued time.Duration) {
	m.started.WithLabelValues(agentID).Inc()
	m.queuedSeconds.WithLabelValues(agentID).Observe(queued.Seconds())
	m.inner.RecordTaskStarted(agentID, queued)
}

func (m *TaskMetrics) RecordTaskCompleted(agentID string, run time.Duration) {
	m.observeFinished(agentID, models.TaskStatusCompleted, run)
	m.inner.RecordTaskCompleted(agentID, run)
}

func (m *TaskMetrics) RecordTaskFailed(agentID string, kind models.ErrorKind, run time.Duration) {
	m.observeFinished(agentID, models.TaskStatusFailed, run)
	m.failures.WithLabelValues(agentID, string(kind)).Inc()
	m.inner.RecordTaskFailed(agentID, kind, run)
}

func (m *TaskMetrics) RecordTaskTimedOut(agentID string, run time.Duration) {
	m.observeFinished(agentID, models.TaskStatusTimedOut, run)
	m.inner.RecordTaskTimedOut(agentID, run)
}

func (m *TaskMetrics) RecordTaskCancelled(agentID string) {
	m.finished.WithLabelValues(agentID, string(models.TaskStatusCancelled)).Inc()
	m.inner.RecordTaskCancelled(agentID)
}

func (m *TaskMetrics) RecordTaskRetry(agentID string) {
	m.retries.WithLabelValues(agentID).Inc()
	m.inner.RecordTaskRetry(agentID)
}

func (m *TaskMetrics) RecordTasksPurged(count int64) {
	m.purged.Add(float64(count))
	m.inner.RecordTasksPurged(count)
}

func (m *TaskMetrics) RecordTasksRecovered(count int) {
	m.recovered.Add(float64(count))
	m.inner.RecordTasksRecovered(count)
}

// GetMetrics returns the inner collector's snapshot.
func (m *TaskMetrics) GetMetrics() map[string]interface{} {
	return m.inner.GetMetrics()
}

func (m *TaskMetrics) observeFinished(agentID string, status models.TaskStatus, run time.Duration) {
	m.finished.WithLabelValues(agentID, string(status)).Inc()
	m.runSeconds.WithLabelValues(agentID, string(status)).Observe(run.Seconds())
}
