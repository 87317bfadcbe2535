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

// Package synthesis merges per-source discovery results into one ranked,
// deduplicated paper list. The pipeline is deterministic for a given input
// unless AI reranking is enabled: dedup, cross-source score fusion,
// relevance filter, diversity selection, trim, optional rerank.
package synthesis

import (
	"context"
	"time"

	"github.com/scholarsys/paperscout/pkg/llm"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

// Engine runs the synthesis pipeline. It is stateless across runs and safe
// for concurrent use.
type Engine struct {
	chat   llm.ChatClient
	logger logger.Logger
	now    func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithChatClient wires the model used for AI reranking. Without one,
// enable_ai_synthesis degrades to the deterministic ranking plus a warning.
func WithChatClient(chat llm.ChatClient) Option {
	return func(e *Engine) {
		e.chat = chat
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates a synthesis engine.
func New(log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger: log.WithComponent("synthesis"),
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Synthesize merges the per-source results for one run into a unified,
// ranked result. Input results and their papers are never mutated; all
// merging happens on clones.
func (e *Engine) Synthesize(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration, results []*models.SourceDiscoveryResult) *models.UnifiedDiscoveryResult {
	start := e.now()

	var (
		candidates []*models.DiscoveredPaper
		successful []models.DiscoverySource
		failed     []models.DiscoverySource
	)

	scales := make(map[models.DiscoverySource]seedScale, len(results))

	for _, result := range results {
		if !result.Success {
			failed = append(failed, result.Source)
			continue
		}

		successful = append(successful, result.Source)
		scales[result.Source] = scaleOf(result.Papers)

		for _, p := range result.Papers {
			clone := p.Clone()
			clone.AddSource(result.Source)

			if clone.SourceOfRecord == "" {
				clone.SourceOfRecord = result.Source
			}

			candidates = append(candidates, clone)
		}
	}

	rawCount := len(candidates)

	kept := Deduplicate(candidates)
	FuseScores(kept, scales)
	kept = filterByRelevance(kept, config.MinRelevance)
	kept = SelectDiverse(kept, config.DiversityLevel)

	if len(kept) > config.MaxTotal {
		kept = kept[:config.MaxTotal]
	}

	var warnings []string

	if config.EnableAISynthesis {
		if warning := e.applyRerank(ctx, paper, kept); warning != "" {
			warnings = append(warnings, warning)
		}
	}

	SortRanked(kept)

	metadata := models.SynthesisMetadata{
		RawCount:          rawCount,
		ProcessedCount:    len(kept),
		SuccessfulSources: successful,
		FailedSources:     failed,
		ProcessingTime:    e.now().Sub(start),
		OverallConfidence: overallConfidence(kept, len(successful), len(config.SourcesEnabled)),
		PartialResult:     len(failed) > 0,
		Warnings:          warnings,
	}

	e.logger.Debug().
		Str("source_paper_id", paper.ID).
		Int("raw", rawCount).
		Int("kept", len(kept)).
		Float64("confidence", metadata.OverallConfidence).
		Bool("partial", metadata.PartialResult).
		Msg("Synthesis complete")

	return &models.UnifiedDiscoveryResult{
		SourcePaperID:    paper.ID,
		Papers:           kept,
		PerSourceResults: results,
		Metadata:         metadata,
		Configuration:    config.Clone(),
	}
}

func filterByRelevance(papers []*models.DiscoveredPaper, minRelevance float64) []*models.DiscoveredPaper {
	if minRelevance <= 0 {
		return papers
	}

	out := papers[:0]

	for _, p := range papers {
		if p.RelevanceScore >= minRelevance {
			out = append(out, p)
		}
	}

	return out
}

// overallConfidence is the mean kept relevance damped by the fraction of
// enabled sources that actually answered.
func overallConfidence(papers []*models.DiscoveredPaper, successful, enabled int) float64 {
	if len(papers) == 0 || enabled == 0 || successful == 0 {
		return 0
	}

	sum := 0.0
	for _, p := range papers {
		sum += p.RelevanceScore
	}

	mean := sum / float64(len(papers))

	return clip01(mean * float64(successful) / float64(enabled))
}
