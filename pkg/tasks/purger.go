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
	"context"
	"errors"
	"time"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const (
	// DefaultRetention is how long terminal tasks stay queryable.
	DefaultRetention = 7 * 24 * time.Hour

	// DefaultPurgeInterval is the sweep cadence.
	DefaultPurgeInterval = time.Hour

	recoveryBatchSize = 100
)

// PurgerConfig shapes retention and orphan recovery.
type PurgerConfig struct {
	Retention time.Duration `json:"retention"`
	Interval  time.Duration `json:"interval"`

	// AgentID scopes the recovery scan. Empty scans every agent.
	AgentID string `json:"agent_id"`

	// RunTimeout is the age past which a PROCESSING task with no live
	// runner counts as orphaned.
	RunTimeout time.Duration `json:"run_timeout"`
}

func (c PurgerConfig) withDefaults() PurgerConfig {
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}

	if c.Interval <= 0 {
		c.Interval = DefaultPurgeInterval
	}

	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultTaskTimeout
	}

	return c
}

// Purger removes expired terminal tasks and recovers tasks orphaned by a
// crashed runner. Sweep failures are logged and retried on the next tick;
// the sweep never blocks live operations.
type Purger struct {
	store   Store
	metrics Metrics
	logger  logger.Logger
	config  PurgerConfig
	now     func() time.Time
}

// PurgerOption customizes a Purger.
type PurgerOption func(*Purger)

// WithPurgerClock overrides the time source, for tests.
func WithPurgerClock(now func() time.Time) PurgerOption {
	return func(p *Purger) {
		p.now = now
	}
}

// NewPurger builds a purger over store. metrics may be nil.
func NewPurger(store Store, m Metrics, log logger.Logger, config PurgerConfig, opts ...PurgerOption) *Purger {
	if m == nil {
		m = &NoOpMetrics{}
	}

	p := &Purger{
		store:   store,
		metrics: m,
		logger:  log.WithComponent("task_purger"),
		config:  config.withDefaults(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start runs the sweep loop until ctx is done. Run it in its own goroutine.
func (p *Purger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PurgeOnce(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Task purge failed")
			}
		}
	}
}

// PurgeOnce deletes terminal tasks older than the retention window.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.config.Retention)

	removed, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		p.metrics.RecordTasksPurged(removed)

		p.logger.Info().
			Int64("removed", removed).
			Time("cutoff", cutoff).
			Msg("Purged expired tasks")
	}

	return removed, nil
}

// RecoverOrphans marks PROCESSING tasks whose run deadline has long passed
// as TIMED_OUT. Run it once at startup, before accepting new work, so a
// crash never strands tasks in PROCESSING forever.
func (p *Purger) RecoverOrphans(ctx context.Context) (int, error) {
	stale, err := p.store.ListByStatus(ctx, p.config.AgentID, models.TaskStatusProcessing, recoveryBatchSize)
	if err != nil {
		return 0, err
	}

	deadline := p.now().Add(-p.config.RunTimeout)
	recovered := 0

	for _, task := range stale {
		if task.StartedAt == nil || task.StartedAt.After(deadline) {
			continue
		}

		outcome := Outcome{
			Status:     models.TaskStatusTimedOut,
			Error:      "orphaned by runner restart",
			ErrorKind:  models.ErrorKindTimeout,
			Attempts:   task.Attempts,
			FinishedAt: p.now(),
		}

		if err := p.store.Finish(ctx, task.TaskID, outcome); err != nil {
			// A live runner may have finished it between the scan and
			// this write.
			if errors.Is(err, ErrTaskAlreadyTerminal) {
				continue
			}

			return recovered, err
		}

		recovered++

		p.logger.Warn().
			Str("task_id", task.TaskID).
			Time("started_at", *task.StartedAt).
			Msg("Recovered orphaned task")
	}

	if recovered > 0 {
		p.metrics.RecordTasksRecovered(recovered)
	}

	return recovered, nil
}
