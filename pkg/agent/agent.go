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

// Package agent is the entry point of the discovery core. It validates the
// request, resolves the configuration, wraps one coordinator run in a
// durable task, persists the outcome, and shapes the caller-facing
// response. Everything below it (coordination, synthesis, sources, cache,
// rate limiting) is reached through the task body.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/tasks"
)

// AgentID is the durable task namespace for related-paper discovery runs.
const AgentID = "related-paper-discovery"

// DefaultMode is the preset applied when a caller passes no configuration
// at all.
const DefaultMode = models.ModeComprehensive

// taskInput is the durable input payload stored on every discovery task.
type taskInput struct {
	PaperID string                        `json:"paper_id"`
	Config  models.DiscoveryConfiguration `json:"config"`
}

// DiscoveryAgent exposes discovery as a single synchronous call plus a few
// operational reads. Safe for concurrent use.
type DiscoveryAgent struct {
	papers      PaperStore
	repo        DiscoveryRepository
	coordinator Coordinator
	runner      *tasks.Runner
	cache       *cache.DiscoveryCache
	limits      *ratelimit.Manager
	logger      logger.Logger
	now         func() time.Time
}

// Option customizes a DiscoveryAgent.
type Option func(*DiscoveryAgent)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *DiscoveryAgent) {
		a.now = now
	}
}

// New creates the agent. repo may be nil, which disables persistence;
// resultCache and limits may be nil, which leaves the corresponding stats
// reads empty.
func New(papers PaperStore, repo DiscoveryRepository, coordinator Coordinator, runner *tasks.Runner, resultCache *cache.DiscoveryCache, limits *ratelimit.Manager, log logger.Logger, opts ...Option) *DiscoveryAgent {
	a := &DiscoveryAgent{
		papers:      papers,
		repo:        repo,
		coordinator: coordinator,
		runner:      runner,
		cache:       resultCache,
		limits:      limits,
		logger:      log.WithComponent("agent"),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Discover runs related-paper discovery for paperID on behalf of userID.
// cfg is optional: nil, or a bare mode, resolves to the mode preset.
//
// Validation failures surface as errors before any task exists. Once a task
// is created, its outcome travels inside the response: a completed task
// carries the unified result (partial results included), every other
// terminal state carries an error summary. Scheduler faults are the only
// errors returned after task creation.
func (a *DiscoveryAgent) Discover(ctx context.Context, paperID, userID string, cfg *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
	if _, err := uuid.Parse(paperID); err != nil {
		return nil, models.NewDiscoveryError(models.ErrorKindInvalidInput,
			fmt.Sprintf("paper id %q is not a uuid", paperID), err)
	}

	paper, err := a.papers.GetSourcePaper(ctx, paperID)
	if err != nil {
		return nil, models.NewDiscoveryError(models.ErrorKindInvalidInput,
			fmt.Sprintf("source paper %s could not be loaded", paperID), err)
	}

	config, err := resolveConfiguration(cfg)
	if err != nil {
		return nil, err
	}

	input, err := json.Marshal(taskInput{PaperID: paperID, Config: config})
	if err != nil {
		return nil, fmt.Errorf("encoding task input: %w", err)
	}

	taskID, err := a.runner.Create(ctx, AgentID, userID, input)
	if err != nil {
		return nil, fmt.Errorf("creating discovery task: %w", err)
	}

	a.logger.Info().
		Str("task_id", taskID).
		Str("source_paper_id", paperID).
		Str("user_id", userID).
		Str("mode", string(config.Mode)).
		Int("sources_enabled", len(config.SourcesEnabled)).
		Msg("Discovery task accepted")

	task, err := a.runner.Run(ctx, taskID, func(runCtx context.Context) (json.RawMessage, error) {
		return a.runDiscovery(runCtx, taskID, paper, &config)
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Str("task_id", task.TaskID).
		Str("source_paper_id", paperID).
		Str("status", string(task.Status)).
		Msg("Discovery task finished")

	return buildResponse(task)
}

// runDiscovery is the task body: one coordinator run plus persistence of
// its output. Cancellation and deadline expiry skip persistence and bubble
// the context error up for the runner to map onto the terminal state.
func (a *DiscoveryAgent) runDiscovery(ctx context.Context, taskID string, paper *models.SourcePaper, config *models.DiscoveryConfiguration) (json.RawMessage, error) {
	result := a.coordinator.Run(ctx, paper, config)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.persist(ctx, taskID, paper, config, result)

	return json.Marshal(result)
}

// persist writes the run's output through the repository. Persistence
// failures never fail the task; they are logged and attached to the result
// as a warning for the caller to act on.
func (a *DiscoveryAgent) persist(ctx context.Context, taskID string, paper *models.SourcePaper, config *models.DiscoveryConfiguration, result *models.UnifiedDiscoveryResult) {
	if a.repo == nil {
		return
	}

	if err := a.persistRun(ctx, taskID, paper, config, result); err != nil {
		a.logger.Warn().
			Str("task_id", taskID).
			Str("source_paper_id", paper.ID).
			Err(err).
			Msg("Persisting discovery output failed")

		result.Metadata.Warnings = append(result.Metadata.Warnings,
			fmt.Sprintf("persistence failed: %v", err))
	}
}

func (a *DiscoveryAgent) persistRun(ctx context.Context, taskID string, paper *models.SourcePaper, config *models.DiscoveryConfiguration, result *models.UnifiedDiscoveryResult) error {
	if len(result.Papers) > 0 {
		if err := a.repo.UpsertDiscoveredPapers(ctx, result.Papers); err != nil {
			return fmt.Errorf("upserting discovered papers: %w", err)
		}

		if err := a.repo.UpsertRelationships(ctx, relationshipEdges(paper.ID, result.Papers)); err != nil {
			return fmt.Errorf("upserting relationships: %w", err)
		}
	}

	metadata, err := json.Marshal(result.Metadata)
	if err != nil {
		return fmt.Errorf("encoding synthesis metadata: %w", err)
	}

	record := &models.DiscoveryResultRecord{
		TaskID:            taskID,
		SourcePaperID:     paper.ID,
		Mode:              config.Mode,
		ConfigFingerprint: cache.Key(paper.ID, config),
		RawCount:          result.Metadata.RawCount,
		ProcessedCount:    result.Metadata.ProcessedCount,
		PartialResult:     result.Metadata.PartialResult,
		CacheHit:          result.Metadata.CacheHit,
		ProcessingTime:    result.Metadata.ProcessingTime,
		SynthesisMetadata: metadata,
		CreatedAt:         a.now(),
	}

	if err := a.repo.InsertDiscoveryResult(ctx, record); err != nil {
		return fmt.Errorf("inserting discovery result: %w", err)
	}

	return nil
}

// relationshipEdges builds one persisted edge per kept paper, attributed to
// the paper's source of record.
func relationshipEdges(sourcePaperID string, papers []*models.DiscoveredPaper) []*models.PaperRelationship {
	edges := make([]*models.PaperRelationship, 0, len(papers))

	for _, p := range papers {
		edges = append(edges, &models.PaperRelationship{
			SourcePaperID:     sourcePaperID,
			DiscoveredPaperID: p.ID,
			RelationshipType:  p.RelationshipType,
			DiscoverySource:   p.SourceOfRecord,
			RelevanceScore:    p.RelevanceScore,
		})
	}

	return edges
}

// resolveConfiguration turns the caller's optional configuration into a
// validated, normalized one. A nil configuration, or one that names a mode
// without naming sources, resolves to the mode preset; anything else is
// explicit and must pass validation before clamping.
func resolveConfiguration(cfg *models.DiscoveryConfiguration) (models.DiscoveryConfiguration, error) {
	switch {
	case cfg == nil:
		preset, err := models.PresetConfiguration(DefaultMode)
		if err != nil {
			return models.DiscoveryConfiguration{}, err
		}

		return preset, nil
	case cfg.Mode != "" && len(cfg.SourcesEnabled) == 0:
		preset, err := models.PresetConfiguration(cfg.Mode)
		if err != nil {
			return models.DiscoveryConfiguration{},
				models.NewDiscoveryError(models.ErrorKindInvalidInput, "invalid discovery configuration", err)
		}

		return preset, nil
	default:
		config := cfg.Clone()
		if err := config.Validate(); err != nil {
			return models.DiscoveryConfiguration{},
				models.NewDiscoveryError(models.ErrorKindInvalidInput, "invalid discovery configuration", err)
		}

		config.Normalize()

		return config, nil
	}
}

// buildResponse maps a terminal task onto the caller-facing response. A
// completed task carries the unified result; every other state carries an
// error summary.
func buildResponse(task *models.AgentTask) (*models.DiscoveryResponse, error) {
	resp := &models.DiscoveryResponse{TaskID: task.TaskID}

	if task.Status == models.TaskStatusCompleted {
		var result models.UnifiedDiscoveryResult
		if err := json.Unmarshal(task.Result, &result); err != nil {
			return nil, fmt.Errorf("decoding task result: %w", err)
		}

		resp.Result = &result

		return resp, nil
	}

	resp.Error = &models.ErrorSummary{Kind: task.ErrorKind, Message: task.Error}

	return resp, nil
}

// TaskStatus returns the durable record for taskID.
func (a *DiscoveryAgent) TaskStatus(ctx context.Context, taskID string) (*models.AgentTask, error) {
	return a.runner.Task(ctx, taskID)
}

// Cancel stops a queued or running discovery task.
func (a *DiscoveryAgent) Cancel(ctx context.Context, taskID string) error {
	return a.runner.Cancel(ctx, taskID)
}

// CacheStats reports result cache effectiveness.
func (a *DiscoveryAgent) CacheStats() cache.Stats {
	if a.cache == nil {
		return cache.Stats{}
	}

	return a.cache.Stats()
}

// RateLimitStats reports per-source limiter and breaker state.
func (a *DiscoveryAgent) RateLimitStats() map[models.DiscoverySource]ratelimit.Snapshot {
	if a.limits == nil {
		return nil
	}

	return a.limits.StatsAll()
}
