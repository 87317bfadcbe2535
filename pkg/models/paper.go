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

package models

import (
	"encoding/json"
	"strings"
	"time"
)

// DiscoverySource identifies where a candidate paper came from.
type DiscoverySource string

const (
	DiscoverySourceCrossref        DiscoverySource = "crossref"
	DiscoverySourceSemanticScholar DiscoverySource = "semantic_scholar"
	DiscoverySourcePerplexity      DiscoverySource = "perplexity"
	DiscoverySourceInternalCache   DiscoverySource = "internal_cache"
)

// RelationshipType classifies how a discovered paper relates to the source paper.
type RelationshipType string

const (
	RelationshipCites             RelationshipType = "cites"
	RelationshipCitedBy           RelationshipType = "cited_by"
	RelationshipSemanticSimilar   RelationshipType = "semantic_similarity"
	RelationshipAuthorNetwork     RelationshipType = "author_network"
	RelationshipVenue             RelationshipType = "venue"
	RelationshipTopic             RelationshipType = "topic"
	RelationshipTrending          RelationshipType = "trending"
	RelationshipOpenAccessVariant RelationshipType = "open_access_variant"
)

// relationshipWeights holds the importance weight used for ranking ties and
// for the relationship term of score fusion.
var relationshipWeights = map[RelationshipType]float64{
	RelationshipCites:             0.9,
	RelationshipCitedBy:           0.9,
	RelationshipSemanticSimilar:   0.8,
	RelationshipAuthorNetwork:     0.6,
	RelationshipVenue:             0.4,
	RelationshipTopic:             0.5,
	RelationshipTrending:          0.5,
	RelationshipOpenAccessVariant: 0.3,
}

// Weight returns the importance weight for the relationship type, or 0 for
// unknown values.
func (r RelationshipType) Weight() float64 {
	return relationshipWeights[r]
}

// External identifier keys recognized in DiscoveredPaper.ExternalIDs, in
// decreasing order of strength for upsert matching.
const (
	ExternalIDDOI             = "doi"
	ExternalIDSemanticScholar = "s2_id"
	ExternalIDArxiv           = "arxiv"
	ExternalIDURL             = "url"
)

// externalIDPrecedence orders external identifiers from strongest to weakest.
var externalIDPrecedence = []string{ExternalIDDOI, ExternalIDSemanticScholar, ExternalIDArxiv, ExternalIDURL}

// NormalizeDOI lowercases a DOI and strips resolver prefixes so the forms
// different sources hand back compare equal.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(strings.ToLower(doi))

	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "doi.org/", "doi:"} {
		doi = strings.TrimPrefix(doi, prefix)
	}

	return doi
}

// SourcePaper is the read-only input paper discovery starts from. Fields
// mirror what the external paper store exposes; the core never mutates them.
type SourcePaper struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Abstract           string          `json:"abstract,omitempty"`
	Authors            []string        `json:"authors,omitempty"`
	DOI                string          `json:"doi,omitempty"`
	Journal            string          `json:"journal,omitempty"`
	PublishedDate      *time.Time      `json:"published_date,omitempty"`
	PrimaryField       string          `json:"primary_field,omitempty"`
	Keywords           []string        `json:"keywords,omitempty"`
	MainConcepts       json.RawMessage `json:"main_concepts,omitempty"`
	MethodologyDetails json.RawMessage `json:"methodology_details,omitempty"`
	KeyFindings        json.RawMessage `json:"key_findings,omitempty"`
}

// DiscoveredPaper is one candidate related paper, normalized across sources.
type DiscoveredPaper struct {
	ID                       string                 `json:"id"`
	ExternalIDs              map[string]string      `json:"external_ids,omitempty"`
	Title                    string                 `json:"title"`
	Abstract                 string                 `json:"abstract,omitempty"`
	Authors                  []string               `json:"authors,omitempty"`
	Venue                    string                 `json:"venue,omitempty"`
	PublishedDate            *time.Time             `json:"published_date,omitempty"`
	CitationCount            int                    `json:"citation_count,omitempty"`
	InfluentialCitationCount int                    `json:"influential_citation_count,omitempty"`
	ResearchTopics           []string               `json:"research_topics,omitempty"`
	RelevanceScore           float64                `json:"relevance_score"`
	SourceOfRecord           DiscoverySource        `json:"source_of_record"`
	DiscoverySources         []DiscoverySource      `json:"discovery_sources"`
	RelationshipType         RelationshipType       `json:"relationship_type"`
	Confidence               float64                `json:"confidence,omitempty"`
	AdditionalMetadata       map[string]interface{} `json:"additional_metadata,omitempty"`
}

// StrongestExternalID returns the highest-precedence external identifier the
// paper carries, as (kind, value). ok is false when the paper has none.
func (p *DiscoveredPaper) StrongestExternalID() (kind, value string, ok bool) {
	for _, k := range externalIDPrecedence {
		if v, found := p.ExternalIDs[k]; found && v != "" {
			return k, v, true
		}
	}

	return "", "", false
}

// HasSource reports whether s is already recorded in DiscoverySources.
func (p *DiscoveredPaper) HasSource(s DiscoverySource) bool {
	for _, existing := range p.DiscoverySources {
		if existing == s {
			return true
		}
	}

	return false
}

// AddSource records s in DiscoverySources if not already present.
func (p *DiscoveredPaper) AddSource(s DiscoverySource) {
	if !p.HasSource(s) {
		p.DiscoverySources = append(p.DiscoverySources, s)
	}
}

// Clone returns a deep copy. Synthesis merges candidates in place, so it
// copies worker output first to keep per-source results unaliased.
func (p *DiscoveredPaper) Clone() *DiscoveredPaper {
	if p == nil {
		return nil
	}

	clone := *p

	if p.ExternalIDs != nil {
		clone.ExternalIDs = make(map[string]string, len(p.ExternalIDs))
		for k, v := range p.ExternalIDs {
			clone.ExternalIDs[k] = v
		}
	}

	clone.Authors = append([]string(nil), p.Authors...)
	clone.ResearchTopics = append([]string(nil), p.ResearchTopics...)
	clone.DiscoverySources = append([]DiscoverySource(nil), p.DiscoverySources...)

	if p.PublishedDate != nil {
		date := *p.PublishedDate
		clone.PublishedDate = &date
	}

	if p.AdditionalMetadata != nil {
		clone.AdditionalMetadata = make(map[string]interface{}, len(p.AdditionalMetadata))
		for k, v := range p.AdditionalMetadata {
			clone.AdditionalMetadata[k] = v
		}
	}

	return &clone
}

// PaperRelationship is the persisted edge between a source paper and one
// discovered paper. The triple (SourcePaperID, DiscoveredPaperID,
// RelationshipType) is unique; re-running discovery updates the score and
// source on the existing edge instead of inserting a duplicate.
type PaperRelationship struct {
	SourcePaperID     string           `json:"source_paper_id"`
	DiscoveredPaperID string           `json:"discovered_paper_id"`
	RelationshipType  RelationshipType `json:"relationship_type"`
	DiscoverySource   DiscoverySource  `json:"discovery_source"`
	RelevanceScore    float64          `json:"relevance_score"`
	CreatedAt         time.Time        `json:"created_at,omitempty"`
}
