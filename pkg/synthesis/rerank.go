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

package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scholarsys/paperscout/pkg/llm"
	"github.com/scholarsys/paperscout/pkg/models"
)

const (
	rerankMaxTokens    = 2048
	rerankBlend        = 0.5
	rerankAbstractCap  = 1200
	rerankWarnPrefix   = "ai rerank skipped"
	rerankNoModelWarn  = "ai rerank requested but no model is configured"
	rerankSystemPrompt = `You re-rank papers by how relevant they are to a source paper.
Respond with a single JSON object {"rankings": [{"index": 0, "score": 0.0}]}
covering every candidate index exactly once, score between 0 and 1.
Judge relevance from topical and methodological closeness to the source abstract.`
)

type rerankAnswer struct {
	Rankings []rankAdjustment `json:"rankings"`
}

type rankAdjustment struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// applyRerank asks the model to re-score the ranked list and blends its
// scores half and half into the deterministic ones. It returns a warning
// string instead of an error: rerank problems never fail a run, they only
// leave the deterministic ranking in place.
func (e *Engine) applyRerank(ctx context.Context, paper *models.SourcePaper, papers []*models.DiscoveredPaper) string {
	if len(papers) == 0 {
		return ""
	}

	if e.chat == nil {
		return rerankNoModelWarn
	}

	resp, err := e.chat.Chat(ctx, llm.ChatRequest{
		System:    rerankSystemPrompt,
		Prompt:    rerankPrompt(paper, papers),
		JSONOnly:  true,
		MaxTokens: rerankMaxTokens,
	})
	if err != nil {
		e.logger.Warn().Err(err).Msg("AI rerank call failed")

		return fmt.Sprintf("%s: %s", rerankWarnPrefix, err)
	}

	var answer rerankAnswer
	if err := json.Unmarshal([]byte(llm.StripCodeFence(resp.Content)), &answer); err != nil {
		e.logger.Warn().Err(err).Msg("AI rerank returned unparseable rankings")

		return fmt.Sprintf("%s: unparseable model response", rerankWarnPrefix)
	}

	applied := 0

	for _, adj := range answer.Rankings {
		if adj.Index < 0 || adj.Index >= len(papers) {
			continue
		}

		p := papers[adj.Index]
		p.RelevanceScore = clip01(rerankBlend*p.RelevanceScore + rerankBlend*clip01(adj.Score))
		applied++
	}

	if applied == 0 {
		return fmt.Sprintf("%s: no usable rankings in model response", rerankWarnPrefix)
	}

	return ""
}

func rerankPrompt(paper *models.SourcePaper, papers []*models.DiscoveredPaper) string {
	var b strings.Builder

	b.WriteString("Source paper:\n")
	fmt.Fprintf(&b, "Title: %s\n", paper.Title)

	if abstract := strings.TrimSpace(paper.Abstract); abstract != "" {
		if len(abstract) > rerankAbstractCap {
			abstract = abstract[:rerankAbstractCap] + "..."
		}

		fmt.Fprintf(&b, "Abstract: %s\n", abstract)
	}

	b.WriteString("\nCandidates:\n")

	for i, p := range papers {
		fmt.Fprintf(&b, "[%d] %s", i, p.Title)

		if p.Venue != "" {
			fmt.Fprintf(&b, " (%s", p.Venue)

			if p.PublishedDate != nil {
				fmt.Fprintf(&b, ", %d", p.PublishedDate.Year())
			}

			b.WriteString(")")
		} else if p.PublishedDate != nil {
			fmt.Fprintf(&b, " (%d)", p.PublishedDate.Year())
		}

		fmt.Fprintf(&b, " relationship=%s score=%.2f\n", p.RelationshipType, p.RelevanceScore)
	}

	return b.String()
}
