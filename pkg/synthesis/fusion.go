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
	"math"
	"sort"

	"github.com/scholarsys/paperscout/pkg/models"
)

// Fusion term weights. The seed carries the per-source signal; agreement
// rewards papers independently found by more than one source.
const (
	weightSeed         = 0.35
	weightAgreement    = 0.20
	weightRelationship = 0.20
	weightCitations    = 0.15
	weightCompleteness = 0.10

	// citationSaturation is the log10 scale divisor; the citation term
	// reaches 1.0 near ten thousand citations.
	citationSaturation = 4.0

	completenessFields = 5.0
)

// seedScale is one source's observed seed range within a run, used to
// min-max rescale seeds so sources with conservative scoring are not
// structurally outranked.
type seedScale struct {
	min float64
	max float64
}

func scaleOf(papers []*models.DiscoveredPaper) seedScale {
	s := seedScale{min: math.Inf(1), max: math.Inf(-1)}

	for _, p := range papers {
		if p.RelevanceScore < s.min {
			s.min = p.RelevanceScore
		}

		if p.RelevanceScore > s.max {
			s.max = p.RelevanceScore
		}
	}

	return s
}

// normalize maps seed onto [0,1] within this source's range. A source with
// a single candidate, or identical seeds throughout, maps everything to 1.
func (s seedScale) normalize(seed float64) float64 {
	if s.max <= s.min {
		return 1
	}

	return clip01((seed - s.min) / (s.max - s.min))
}

// FuseScores replaces each candidate's per-source seed with the fused
// cross-source relevance score.
func FuseScores(papers []*models.DiscoveredPaper, scales map[models.DiscoverySource]seedScale) {
	for _, p := range papers {
		p.RelevanceScore = fuse(p, scales)
	}
}

func fuse(p *models.DiscoveredPaper, scales map[models.DiscoverySource]seedScale) float64 {
	seed := clip01(p.RelevanceScore)
	if scale, ok := scales[p.SourceOfRecord]; ok {
		seed = scale.normalize(p.RelevanceScore)
	}

	agreement := float64(len(p.DiscoverySources)) / 2
	if agreement > 1 {
		agreement = 1
	}

	citations := math.Log10(1+float64(p.CitationCount)) / citationSaturation
	if citations > 1 {
		citations = 1
	}

	score := weightSeed*seed +
		weightAgreement*agreement +
		weightRelationship*p.RelationshipType.Weight() +
		weightCitations*citations +
		weightCompleteness*completeness(p)

	return clip01(score)
}

// completeness is the fraction of core bibliographic fields present.
func completeness(p *models.DiscoveredPaper) float64 {
	present := 0

	if p.Title != "" {
		present++
	}

	if p.Abstract != "" {
		present++
	}

	if len(p.Authors) > 0 {
		present++
	}

	if p.Venue != "" {
		present++
	}

	if p.PublishedDate != nil {
		present++
	}

	return float64(present) / completenessFields
}

// SortRanked orders papers the way callers see them: relevance descending,
// then relationship weight descending, then citation count descending, then
// title ascending as the stable last resort.
func SortRanked(papers []*models.DiscoveredPaper) {
	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]

		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}

		aw, bw := a.RelationshipType.Weight(), b.RelationshipType.Weight()
		if aw != bw {
			return aw > bw
		}

		if a.CitationCount != b.CitationCount {
			return a.CitationCount > b.CitationCount
		}

		return a.Title < b.Title
	})
}

func clip01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
