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
	"strings"

	"github.com/scholarsys/paperscout/pkg/models"
)

// diversityBypassLimit is the result size at or below which diversity
// selection is skipped; small sets stay purely relevance-ranked.
const diversityBypassLimit = 20

// diversityProfile controls how much of the list is eligible for selection
// and what share of picks are diversity-driven rather than rank-driven.
type diversityProfile struct {
	poolFraction      float64
	diversityFraction float64
}

var diversityProfiles = map[models.DiversityLevel]diversityProfile{
	models.DiversityLow:    {poolFraction: 0.8, diversityFraction: 0.3},
	models.DiversityMedium: {poolFraction: 0.6, diversityFraction: 0.5},
	models.DiversityHigh:   {poolFraction: 1.0, diversityFraction: 0.7},
}

// dimensionKeys maps a paper onto the four spread dimensions: venue,
// publication era, topic bucket, and first-author surname initial.
var dimensionKeys = []func(*models.DiscoveredPaper) string{
	venueKey,
	eraKey,
	topicKey,
	authorInitialKey,
}

// SelectDiverse reorders papers so that a later trim keeps a spread of
// venues, eras, topics, and author initials instead of only the top scores.
// The list is rank-sorted internally first, so feeding the output back in
// reproduces it. Lists within the bypass limit come back purely rank-sorted.
func SelectDiverse(papers []*models.DiscoveredPaper, level models.DiversityLevel) []*models.DiscoveredPaper {
	SortRanked(papers)

	if len(papers) <= diversityBypassLimit {
		return papers
	}

	profile, ok := diversityProfiles[level]
	if !ok {
		profile = diversityProfiles[models.DiversityMedium]
	}

	poolSize := int(math.Ceil(profile.poolFraction * float64(len(papers))))
	if poolSize < 1 {
		poolSize = 1
	}

	pool := append([]*models.DiscoveredPaper(nil), papers[:poolSize]...)
	tail := papers[poolSize:]

	out := make([]*models.DiscoveredPaper, 0, len(papers))
	picker := newDiversityPicker()

	// Bresenham-style interleave: accumulate the diversity share and pick
	// by dimension whenever it crosses one whole pick, otherwise by rank.
	acc := 0.0

	for len(pool) > 0 {
		idx := 0

		acc += profile.diversityFraction
		if acc >= 1 {
			acc--
			idx = picker.pick(pool)
		}

		chosen := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)

		picker.mark(chosen)
		out = append(out, chosen)
	}

	return append(out, tail...)
}

// diversityPicker tracks which dimension values are already represented and
// cycles through dimensions between picks.
type diversityPicker struct {
	seen []map[string]struct{}
	next int
}

func newDiversityPicker() *diversityPicker {
	seen := make([]map[string]struct{}, len(dimensionKeys))
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}

	return &diversityPicker{seen: seen}
}

// pick returns the index of the highest-ranked paper whose value in the
// current dimension is not yet represented, advancing through dimensions
// until one yields a fresh value. Falls back to the highest-ranked paper
// when every value is covered.
func (dp *diversityPicker) pick(pool []*models.DiscoveredPaper) int {
	for offset := 0; offset < len(dimensionKeys); offset++ {
		dim := (dp.next + offset) % len(dimensionKeys)

		for i, p := range pool {
			if _, dup := dp.seen[dim][dimensionKeys[dim](p)]; !dup {
				dp.next = (dim + 1) % len(dimensionKeys)
				return i
			}
		}
	}

	return 0
}

func (dp *diversityPicker) mark(p *models.DiscoveredPaper) {
	for dim, key := range dimensionKeys {
		dp.seen[dim][key(p)] = struct{}{}
	}
}

func venueKey(p *models.DiscoveredPaper) string {
	if v := NormalizeTitle(p.Venue); v != "" {
		return v
	}

	return "unknown"
}

func eraKey(p *models.DiscoveredPaper) string {
	if p.PublishedDate == nil {
		return "unknown"
	}

	switch year := p.PublishedDate.Year(); {
	case year >= 2020:
		return "2020s"
	case year >= 2015:
		return "2015-2019"
	case year >= 2010:
		return "2010-2014"
	default:
		return "pre-2010"
	}
}

func topicKey(p *models.DiscoveredPaper) string {
	if len(p.ResearchTopics) > 0 {
		if topic := strings.ToLower(strings.TrimSpace(p.ResearchTopics[0])); topic != "" {
			return topic
		}
	}

	return "unknown"
}

func authorInitialKey(p *models.DiscoveredPaper) string {
	if len(p.Authors) > 0 {
		for _, r := range surname(p.Authors[0]) {
			return string(r)
		}
	}

	return "unknown"
}
