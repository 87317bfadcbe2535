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
	"time"
)

// s2Paper is the Semantic Scholar Graph API paper shape, restricted to the
// fields the worker requests.
type s2Paper struct {
	PaperID                  string         `json:"paperId"`
	ExternalIDs              *s2ExternalIDs `json:"externalIds,omitempty"`
	Title                    string         `json:"title"`
	Abstract                 string         `json:"abstract,omitempty"`
	Venue                    string         `json:"venue,omitempty"`
	Year                     int            `json:"year,omitempty"`
	PublicationDate          string         `json:"publicationDate,omitempty"`
	CitationCount            int            `json:"citationCount,omitempty"`
	InfluentialCitationCount int            `json:"influentialCitationCount,omitempty"`
	FieldsOfStudy            []string       `json:"fieldsOfStudy,omitempty"`
	Authors                  []s2Author     `json:"authors,omitempty"`
}

type s2ExternalIDs struct {
	DOI   string `json:"DOI,omitempty"`
	ArXiv string `json:"ArXiv,omitempty"`
}

type s2Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// searchResponse is the /graph/v1/paper/search envelope.
type searchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

// recommendationsResponse is the /recommendations/v1/papers/forpaper envelope.
type recommendationsResponse struct {
	RecommendedPapers []s2Paper `json:"recommendedPapers"`
}

// citationsResponse is the /graph/v1/paper/{id}/citations envelope.
type citationsResponse struct {
	Data []s2Citation `json:"data"`
}

type s2Citation struct {
	IsInfluential bool    `json:"isInfluential"`
	CitingPaper   s2Paper `json:"citingPaper"`
}

// authorPapersResponse is the /graph/v1/author/{id}/papers envelope.
type authorPapersResponse struct {
	Data []s2Paper `json:"data"`
}

// publishedTime parses the publication date, falling back to January 1 of
// the publication year.
func (p *s2Paper) publishedTime() *time.Time {
	if p.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", p.PublicationDate); err == nil {
			return &t
		}
	}

	if p.Year > 0 {
		t := time.Date(p.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}

	return nil
}

func (p *s2Paper) authorNames() []string {
	if len(p.Authors) == 0 {
		return nil
	}

	names := make([]string, 0, len(p.Authors))

	for _, a := range p.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			names = append(names, name)
		}
	}

	return names
}

func (p *s2Paper) doi() string {
	if p.ExternalIDs == nil {
		return ""
	}

	return strings.ToLower(strings.TrimSpace(p.ExternalIDs.DOI))
}
