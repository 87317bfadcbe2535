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

package crossref

import (
	"strings"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
)

const (
	freshnessDecayPerYear = 0.03
	freshnessFloor        = 0.55
	freshnessUnknown      = 0.7

	venueQualityMatching = 1.0
	venueQualityKnown    = 0.9
	venueQualityUnknown  = 0.7

	hoursPerYear = 24 * 365.25
)

// seedScore computes the initial relevance for a candidate: the relationship
// base weight discounted by staleness and venue quality. Synthesis refines
// this later; the seed only needs to rank candidates within one source.
func (w *Worker) seedScore(candidate *models.DiscoveredPaper, sourceVenue string) float64 {
	seed := candidate.RelationshipType.Weight() *
		w.freshnessFactor(candidate.PublishedDate) *
		venueQualityFactor(candidate.Venue, sourceVenue)

	return sources.ClampScore(seed)
}

func (w *Worker) freshnessFactor(published *time.Time) float64 {
	if published == nil {
		return freshnessUnknown
	}

	ageYears := w.now().Sub(*published).Hours() / hoursPerYear
	if ageYears < 0 {
		ageYears = 0
	}

	factor := 1 - ageYears*freshnessDecayPerYear
	if factor < freshnessFloor {
		return freshnessFloor
	}

	return factor
}

// venueQualityFactor is a coarse prior: a candidate from the source paper's
// own venue outranks one from a known venue, which outranks no venue at all.
func venueQualityFactor(venue, sourceVenue string) float64 {
	switch {
	case venue == "":
		return venueQualityUnknown
	case sourceVenue != "" && strings.EqualFold(venue, sourceVenue):
		return venueQualityMatching
	default:
		return venueQualityKnown
	}
}
