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

package semanticscholar

import (
	"strings"

	"github.com/scholarsys/paperscout/pkg/sources"
)

// Seed formula weights. Each component is clipped to its weight before the
// sum, so a runaway signal cannot dominate the seed.
const (
	weightRecommendation = 0.4
	weightInfluential    = 0.25
	weightTopicOverlap   = 0.2
	weightVelocity       = 0.15

	// citationAffinityInfluential and friends feed the recommendation
	// component for fetches that have no engine score of their own.
	citationAffinityInfluential = 0.9
	citationAffinityPlain       = 0.55
	authorAffinity              = 0.5
	topicAffinityScale          = 0.6

	// velocityCeiling is the citations-per-year rate treated as a full
	// velocity signal.
	velocityCeiling = 50.0

	minVelocityAgeYears = 0.5
)

// seedScore combines the four relevance signals into one [0,1] seed:
// recommendation affinity, influential-citation ratio, topic overlap with
// the source paper, and citation velocity.
func (w *Worker) seedScore(item *s2Paper, topics []string, affinity float64) float64 {
	seed := sources.ClampComponent(weightRecommendation*affinity, weightRecommendation) +
		sources.ClampComponent(weightInfluential*influentialRatio(item), weightInfluential) +
		sources.ClampComponent(weightTopicOverlap*topicOverlap(item.FieldsOfStudy, topics), weightTopicOverlap) +
		sources.ClampComponent(weightVelocity*w.velocityFactor(item), weightVelocity)

	return sources.ClampScore(seed)
}

func influentialRatio(item *s2Paper) float64 {
	if item.CitationCount <= 0 {
		return 0
	}

	return float64(item.InfluentialCitationCount) / float64(item.CitationCount)
}

// topicOverlap is the Jaccard similarity between the candidate's fields of
// study and the source paper's topic set, case-insensitive.
func topicOverlap(fields, topics []string) float64 {
	if len(fields) == 0 || len(topics) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	union := len(set)
	shared := 0

	for _, f := range fields {
		key := strings.ToLower(strings.TrimSpace(f))
		if _, ok := set[key]; ok {
			shared++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}

	return float64(shared) / float64(union)
}

// velocityFactor normalizes citations-per-year against velocityCeiling.
// Very young papers are aged to half a year so a handful of citations does
// not read as explosive growth.
func (w *Worker) velocityFactor(item *s2Paper) float64 {
	published := item.publishedTime()
	if published == nil || item.CitationCount <= 0 {
		return 0
	}

	ageYears := w.now().Sub(*published).Hours() / (24 * 365.25)
	if ageYears < minVelocityAgeYears {
		ageYears = minVelocityAgeYears
	}

	velocity := float64(item.CitationCount) / ageYears
	if velocity > velocityCeiling {
		velocity = velocityCeiling
	}

	return velocity / velocityCeiling
}
