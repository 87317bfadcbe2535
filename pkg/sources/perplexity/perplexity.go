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

// Package perplexity discovers related papers by prompting an online LLM
// with web access and parsing structured citations out of its answers.
// Model output is noisy, so every candidate must clear a confidence floor
// and carry a verifiable external identifier.
package perplexity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/scholarsys/paperscout/pkg/llm"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
)

const (
	// minConfidence is the floor below which a model-reported candidate
	// is discarded as hallucination risk.
	minConfidence = 0.3

	promptCount = 2

	maxResponseTokens = 2048
)

// Worker discovers related papers through a Perplexity-style online LLM.
type Worker struct {
	chat    llm.ChatClient
	limiter sources.RateLimiter
	logger  logger.Logger
}

var _ sources.Worker = (*Worker)(nil)

// New creates a Perplexity worker on top of a configured chat client.
func New(chat llm.ChatClient, limiter sources.RateLimiter, log logger.Logger) *Worker {
	return &Worker{
		chat:    chat,
		limiter: limiter,
		logger:  log.WithComponent("perplexity"),
	}
}

// Source implements sources.Worker.
func (*Worker) Source() models.DiscoverySource {
	return models.DiscoverySourcePerplexity
}

type promptSpec struct {
	name       string
	prompt     string
	defaultRel models.RelationshipType
}

// Discover implements sources.Worker.
func (w *Worker) Discover(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.SourceDiscoveryResult {
	start := time.Now()

	if paper.Title == "" {
		return sources.FailureResult(w.Source(), start,
			models.NewDiscoveryError(models.ErrorKindInvalidInput, "paper has no title to prompt with", nil))
	}

	limit := sources.SubFetchLimit(config.MaxPerSource, promptCount)

	prompts := []promptSpec{
		{name: "trending", prompt: trendingPrompt(paper, limit), defaultRel: models.RelationshipTrending},
		{name: "variants", prompt: variantsPrompt(paper, limit), defaultRel: models.RelationshipTopic},
	}

	var (
		candidates  []*models.DiscoveredPaper
		failed      []string
		firstErr    error
		totalTokens int64
		dropped     int
	)

	for _, spec := range prompts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sources.FailureResult(w.Source(), start, sources.ContextError(w.Source(), ctxErr))
		}

		papers, tokens, skipped, err := w.ask(ctx, spec, limit)
		totalTokens += tokens
		dropped += skipped

		if err != nil {
			w.logger.Warn().Err(err).Str("prompt", spec.name).Msg("Perplexity prompt failed")

			failed = append(failed, spec.name)

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		candidates = append(candidates, papers...)
	}

	if len(candidates) == 0 && firstErr != nil {
		return sources.FailureResult(w.Source(), start, firstErr)
	}

	raw := len(candidates)
	candidates = sources.DedupeCandidates(candidates)
	sources.SortCandidates(candidates)
	candidates = sources.Cap(candidates, config.MaxPerSource)

	metadata := map[string]interface{}{
		"prompts":        len(prompts),
		"tokens_used":    totalTokens,
		"raw_candidates": raw,
	}
	if dropped > 0 {
		metadata["dropped_candidates"] = dropped
	}

	if len(failed) > 0 {
		metadata["failed_prompts"] = failed
	}

	return sources.SuccessResult(w.Source(), candidates, start, metadata)
}

// ask runs one prompt under one permit and maps the structured citations
// out of the answer.
func (w *Worker) ask(ctx context.Context, spec promptSpec, limit int) (papers []*models.DiscoveredPaper, tokens int64, dropped int, err error) {
	permit, err := sources.AcquirePermit(ctx, w.limiter, w.Source())
	if err != nil {
		return nil, 0, 0, err
	}

	resp, err := w.chat.Chat(ctx, llm.ChatRequest{
		System:    systemPrompt,
		Prompt:    spec.prompt,
		JSONOnly:  true,
		MaxTokens: maxResponseTokens,
	})

	sources.ReportForError(permit, err)

	if err != nil {
		return nil, 0, 0, err
	}

	var parsed modelCitations
	if jsonErr := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &parsed); jsonErr != nil {
		return nil, int64(resp.TokensUsed), 0, models.NewDiscoveryError(models.ErrorKindProtocol,
			"model returned unparseable citations", jsonErr)
	}

	papers = make([]*models.DiscoveredPaper, 0, len(parsed.Papers))

	for i := range parsed.Papers {
		candidate, reason := w.mapCitation(&parsed.Papers[i], spec.defaultRel)
		if candidate == nil {
			if reason != "" {
				dropped++
			}

			continue
		}

		papers = append(papers, candidate)
	}

	return sources.Cap(papers, limit), int64(resp.TokensUsed), dropped, nil
}

// mapCitation converts one model citation into a candidate. It returns nil
// with a reason for candidates that fail the trust gates.
func (w *Worker) mapCitation(c *modelCitation, defaultRel models.RelationshipType) (*models.DiscoveredPaper, string) {
	if c.Title == "" {
		return nil, "missing title"
	}

	confidence := sources.ClampScore(c.Confidence)
	if confidence < minConfidence {
		return nil, "low confidence"
	}

	externalIDs := make(map[string]string, 3)

	if doi := models.NormalizeDOI(c.DOI); doi != "" {
		externalIDs[models.ExternalIDDOI] = doi
	}

	if c.ArxivID != "" {
		externalIDs[models.ExternalIDArxiv] = c.ArxivID
	}

	if c.URL != "" {
		externalIDs[models.ExternalIDURL] = c.URL
	}

	if len(externalIDs) == 0 {
		return nil, "no external identifier"
	}

	candidate := &models.DiscoveredPaper{
		ExternalIDs:      externalIDs,
		Title:            c.Title,
		Authors:          c.Authors,
		Venue:            c.Venue,
		PublishedDate:    yearStart(c.Year),
		SourceOfRecord:   models.DiscoverySourcePerplexity,
		DiscoverySources: []models.DiscoverySource{models.DiscoverySourcePerplexity},
		RelationshipType: relationshipFor(c.Relationship, defaultRel),
		RelevanceScore:   confidence,
		Confidence:       confidence,
	}

	if c.Summary != "" {
		candidate.AdditionalMetadata = map[string]interface{}{"summary": c.Summary}
	}

	return candidate, ""
}

func yearStart(year int) *time.Time {
	if year <= 0 {
		return nil
	}

	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	return &t
}
