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

// Package discovery runs one related-paper discovery pass: cache lookup,
// fan-out to the enabled source workers under per-source deadlines, and
// hand-off of the collected results to the synthesis engine.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
)

// maxPerSourceTimeout caps how long any single worker may run, regardless
// of how generous the overall run timeout is.
const maxPerSourceTimeout = 60 * time.Second

var errNilWorkerResult = errors.New("worker returned no result")

// Coordinator owns the execution of one discovery run. It never returns an
// error: every failure degrades to a minimal result with the failure
// recorded in the synthesis metadata.
type Coordinator struct {
	workers map[models.DiscoverySource]sources.Worker
	engine  Synthesizer
	cache   ResultCache
	logger  logger.Logger
	now     func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// New creates a coordinator over the given worker set. resultCache may be
// nil, which disables caching.
func New(workers map[models.DiscoverySource]sources.Worker, engine Synthesizer, resultCache ResultCache, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		workers: workers,
		engine:  engine,
		cache:   resultCache,
		logger:  log.WithComponent("coordinator"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes one discovery pass for paper under config. The configuration
// must already be normalized. Callers own the returned result.
func (c *Coordinator) Run(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.UnifiedDiscoveryResult {
	start := c.now()

	if len(config.SourcesEnabled) == 0 {
		return c.minimalResult(paper, config, nil, start, "no discovery sources enabled")
	}

	key := cache.Key(paper.ID, config)

	if c.cache != nil {
		if hit, ok := c.cache.Get(ctx, key); ok {
			result := hit.Result
			result.Metadata.CacheHit = true

			c.logger.Debug().
				Str("source_paper_id", paper.ID).
				Str("cache_key", key).
				Msg("Discovery served from cache")

			return result
		}
	}

	results := c.fanOut(ctx, paper, config)

	succeeded := 0

	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}

	if succeeded == 0 {
		return c.minimalResult(paper, config, results, start, "all discovery sources failed")
	}

	result := c.engine.Synthesize(ctx, paper, config, results)

	if c.cache != nil {
		c.cache.Put(ctx, key, result)
	}

	c.logger.Info().
		Str("source_paper_id", paper.ID).
		Int("sources_succeeded", succeeded).
		Int("sources_enabled", len(config.SourcesEnabled)).
		Int("papers", len(result.Papers)).
		Dur("duration", c.now().Sub(start)).
		Msg("Discovery run complete")

	return result
}

// fanOut runs every enabled source's worker and returns one result per
// enabled source, in configuration order. Sources without a registered
// worker fail immediately.
func (c *Coordinator) fanOut(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) []*models.SourceDiscoveryResult {
	runCtx, cancel := context.WithTimeout(ctx, time.Duration(config.Timeout))
	defer cancel()

	deadline := perSourceTimeout(time.Duration(config.Timeout), len(config.SourcesEnabled))
	results := make([]*models.SourceDiscoveryResult, len(config.SourcesEnabled))

	if config.Parallel {
		g, gctx := errgroup.WithContext(runCtx)

		for i, source := range config.SourcesEnabled {
			g.Go(func() error {
				results[i] = c.runWorker(gctx, source, paper, config, deadline)
				return nil
			})
		}

		_ = g.Wait()
	} else {
		for i, source := range config.SourcesEnabled {
			results[i] = c.runWorker(runCtx, source, paper, config, deadline)
		}
	}

	return results
}

func (c *Coordinator) runWorker(ctx context.Context, source models.DiscoverySource, paper *models.SourcePaper, config *models.DiscoveryConfiguration, timeout time.Duration) *models.SourceDiscoveryResult {
	worker, ok := c.workers[source]
	if !ok {
		return sources.FailureResult(source, c.now(),
			models.NewDiscoveryError(models.ErrorKindInvalidInput,
				fmt.Sprintf("no worker registered for source %s", source), nil))
	}

	workerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := worker.Discover(workerCtx, paper, config)
	if result == nil {
		result = sources.FailureResult(source, c.now(), errNilWorkerResult)
	}

	c.logger.Debug().
		Str("source", string(source)).
		Bool("success", result.Success).
		Int("papers", len(result.Papers)).
		Dur("duration", result.Duration).
		Msg("Source worker finished")

	return result
}

// perSourceTimeout is the soft deadline for one worker: an even share of
// the run budget, capped.
func perSourceTimeout(total time.Duration, n int) time.Duration {
	if n <= 0 {
		return maxPerSourceTimeout
	}

	share := total / time.Duration(n)
	if share <= 0 || share > maxPerSourceTimeout {
		return maxPerSourceTimeout
	}

	return share
}

// minimalResult is what callers get when nothing could be discovered. It is
// never cached.
func (c *Coordinator) minimalResult(paper *models.SourcePaper, config *models.DiscoveryConfiguration, results []*models.SourceDiscoveryResult, start time.Time, reason string) *models.UnifiedDiscoveryResult {
	var failed []models.DiscoverySource
	for _, r := range results {
		if !r.Success {
			failed = append(failed, r.Source)
		}
	}

	c.logger.Warn().
		Str("source_paper_id", paper.ID).
		Str("reason", reason).
		Msg("Discovery degraded to minimal result")

	return &models.UnifiedDiscoveryResult{
		SourcePaperID:    paper.ID,
		Papers:           []*models.DiscoveredPaper{},
		PerSourceResults: results,
		Metadata: models.SynthesisMetadata{
			FailedSources:  failed,
			ProcessingTime: c.now().Sub(start),
			PartialResult:  len(failed) > 0,
			Errors:         []string{reason},
		},
		Configuration: config.Clone(),
	}
}
