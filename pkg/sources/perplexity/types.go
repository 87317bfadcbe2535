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

package perplexity

import (
	"strings"

	"github.com/scholarsys/paperscout/pkg/models"
)

// modelCitations is the JSON object the system prompt instructs the model
// to emit.
type modelCitations struct {
	Papers []modelCitation `json:"papers"`
}

type modelCitation struct {
	Title        string   `json:"title"`
	Authors      []string `json:"authors,omitempty"`
	DOI          string   `json:"doi,omitempty"`
	ArxivID      string   `json:"arxiv_id,omitempty"`
	URL          string   `json:"url,omitempty"`
	Venue        string   `json:"venue,omitempty"`
	Year         int      `json:"year,omitempty"`
	Relationship string   `json:"relationship,omitempty"`
	Confidence   float64  `json:"confidence"`
	Summary      string   `json:"summary,omitempty"`
}

// relationshipFor maps the model's free-form relationship label onto the
// worker's allowed types, falling back to the prompt's default.
func relationshipFor(raw string, fallback models.RelationshipType) models.RelationshipType {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "trending":
		return models.RelationshipTrending
	case "open_access_variant", "open access variant", "open_access", "preprint":
		return models.RelationshipOpenAccessVariant
	case "topic", "topical", "related_topic":
		return models.RelationshipTopic
	default:
		return fallback
	}
}
