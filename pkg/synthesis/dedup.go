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
	"github.com/scholarsys/paperscout/pkg/models"
)

// titleMatchThreshold is the minimum normalized title similarity for two
// candidates without a shared identifier to be treated as the same paper.
// A surname match is additionally required at this level.
const titleMatchThreshold = 0.92

// hitsKey counts how many raw candidates merged into one survivor.
const hitsKey = "hits"

// sourceOfRecordRank orders sources by trustworthiness of their bibliographic
// records. The survivor of a merge comes from the highest-ranked source.
var sourceOfRecordRank = map[models.DiscoverySource]int{
	models.DiscoverySourceSemanticScholar: 3,
	models.DiscoverySourceCrossref:        2,
	models.DiscoverySourcePerplexity:      1,
}

type mergeGroup struct {
	paper *models.DiscoveredPaper
	title string
}

// Deduplicate collapses candidates that describe the same paper: identical
// normalized DOI, identical Semantic Scholar id, or near-identical title
// with a shared author surname. Survivors keep their first-seen position.
// Candidates must already be clones; merging mutates them.
func Deduplicate(papers []*models.DiscoveredPaper) []*models.DiscoveredPaper {
	groups := make([]*mergeGroup, 0, len(papers))
	byDOI := make(map[string]int, len(papers))
	byS2 := make(map[string]int, len(papers))

	for _, p := range papers {
		doi := models.NormalizeDOI(p.ExternalIDs[models.ExternalIDDOI])
		s2 := p.ExternalIDs[models.ExternalIDSemanticScholar]
		title := NormalizeTitle(p.Title)

		idx := findGroup(groups, byDOI, byS2, doi, s2, title, p)

		if idx < 0 {
			idx = len(groups)
			groups = append(groups, &mergeGroup{paper: p, title: title})
		} else {
			merge(groups[idx], p)
		}

		if doi != "" {
			byDOI[doi] = idx
		}

		if s2 != "" {
			byS2[s2] = idx
		}
	}

	out := make([]*models.DiscoveredPaper, len(groups))
	for i, g := range groups {
		out[i] = g.paper
	}

	return out
}

func findGroup(groups []*mergeGroup, byDOI, byS2 map[string]int, doi, s2, title string, p *models.DiscoveredPaper) int {
	if doi != "" {
		if idx, ok := byDOI[doi]; ok {
			return idx
		}
	}

	if s2 != "" {
		if idx, ok := byS2[s2]; ok {
			return idx
		}
	}

	if title == "" {
		return -1
	}

	for idx, g := range groups {
		if titleSimilarity(title, g.title) >= titleMatchThreshold && shareSurname(p.Authors, g.paper.Authors) {
			return idx
		}
	}

	return -1
}

// merge folds p into the group, choosing the survivor by source-of-record
// rank and filling its gaps from the loser.
func merge(g *mergeGroup, p *models.DiscoveredPaper) {
	survivor, donor := g.paper, p
	if sourceOfRecordRank[p.SourceOfRecord] > sourceOfRecordRank[survivor.SourceOfRecord] {
		survivor, donor = p, g.paper
	}

	fillMissing(survivor, donor)

	for _, s := range donor.DiscoverySources {
		survivor.AddSource(s)
	}

	if donor.RelevanceScore > survivor.RelevanceScore {
		survivor.RelevanceScore = donor.RelevanceScore
	}

	if donor.Confidence > survivor.Confidence {
		survivor.Confidence = donor.Confidence
	}

	setHits(survivor, hitsOf(g.paper)+hitsOf(p))

	g.paper = survivor
	g.title = NormalizeTitle(survivor.Title)
}

// fillMissing copies every field the survivor lacks from the donor. Fields
// the survivor already carries win.
func fillMissing(survivor, donor *models.DiscoveredPaper) {
	if survivor.Title == "" {
		survivor.Title = donor.Title
	}

	if survivor.Abstract == "" {
		survivor.Abstract = donor.Abstract
	}

	if len(survivor.Authors) == 0 {
		survivor.Authors = donor.Authors
	}

	if survivor.Venue == "" {
		survivor.Venue = donor.Venue
	}

	if survivor.PublishedDate == nil {
		survivor.PublishedDate = donor.PublishedDate
	}

	if survivor.CitationCount == 0 {
		survivor.CitationCount = donor.CitationCount
	}

	if survivor.InfluentialCitationCount == 0 {
		survivor.InfluentialCitationCount = donor.InfluentialCitationCount
	}

	if len(survivor.ResearchTopics) == 0 {
		survivor.ResearchTopics = donor.ResearchTopics
	}

	if survivor.RelationshipType == "" {
		survivor.RelationshipType = donor.RelationshipType
	}

	for k, v := range donor.ExternalIDs {
		if _, ok := survivor.ExternalIDs[k]; !ok {
			if survivor.ExternalIDs == nil {
				survivor.ExternalIDs = make(map[string]string, len(donor.ExternalIDs))
			}

			survivor.ExternalIDs[k] = v
		}
	}

	for k, v := range donor.AdditionalMetadata {
		if k == hitsKey {
			continue
		}

		if _, ok := survivor.AdditionalMetadata[k]; !ok {
			if survivor.AdditionalMetadata == nil {
				survivor.AdditionalMetadata = make(map[string]interface{}, len(donor.AdditionalMetadata))
			}

			survivor.AdditionalMetadata[k] = v
		}
	}
}

func hitsOf(p *models.DiscoveredPaper) int {
	switch v := p.AdditionalMetadata[hitsKey].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 1
	}
}

func setHits(p *models.DiscoveredPaper, hits int) {
	if p.AdditionalMetadata == nil {
		p.AdditionalMetadata = make(map[string]interface{}, 1)
	}

	p.AdditionalMetadata[hitsKey] = hits
}
