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
	"regexp"
	"strconv"
	"strings"
	"time"
)

// worksResponse is the Crossref envelope for /works list queries.
type worksResponse struct {
	Status  string       `json:"status"`
	Message worksMessage `json:"message"`
}

type worksMessage struct {
	TotalResults int        `json:"total-results"`
	Items        []workItem `json:"items"`
}

// workResponse is the Crossref envelope for /works/{doi}.
type workResponse struct {
	Status  string   `json:"status"`
	Message workItem `json:"message"`
}

type workItem struct {
	DOI                 string          `json:"DOI"`
	Title               []string        `json:"title"`
	Abstract            string          `json:"abstract,omitempty"`
	Author              []workAuthor    `json:"author,omitempty"`
	ContainerTitle      []string        `json:"container-title,omitempty"`
	Published           *workDate       `json:"published,omitempty"`
	PublishedPrint      *workDate       `json:"published-print,omitempty"`
	PublishedOnline     *workDate       `json:"published-online,omitempty"`
	IsReferencedByCount int             `json:"is-referenced-by-count,omitempty"`
	Subject             []string        `json:"subject,omitempty"`
	URL                 string          `json:"URL,omitempty"`
	Reference           []workReference `json:"reference,omitempty"`
}

type workAuthor struct {
	Given  string `json:"given,omitempty"`
	Family string `json:"family,omitempty"`
}

// workDate carries Crossref's date-parts encoding, e.g. [[2023,4,12]].
type workDate struct {
	DateParts [][]int `json:"date-parts"`
}

// workReference is one entry of a work's reference list. Crossref embeds
// enough bibliographic detail to build a candidate without resolving it.
type workReference struct {
	DOI          string `json:"DOI,omitempty"`
	ArticleTitle string `json:"article-title,omitempty"`
	Author       string `json:"author,omitempty"`
	Year         string `json:"year,omitempty"`
	JournalTitle string `json:"journal-title,omitempty"`
	Unstructured string `json:"unstructured,omitempty"`
}

func (i *workItem) title() string {
	if len(i.Title) == 0 {
		return ""
	}

	return strings.TrimSpace(i.Title[0])
}

func (i *workItem) venue() string {
	if len(i.ContainerTitle) == 0 {
		return ""
	}

	return strings.TrimSpace(i.ContainerTitle[0])
}

// publishedTime picks the first populated publication date, preferring the
// issued date over print and online variants.
func (i *workItem) publishedTime() *time.Time {
	for _, d := range []*workDate{i.Published, i.PublishedPrint, i.PublishedOnline} {
		if t := d.time(); t != nil {
			return t
		}
	}

	return nil
}

func (i *workItem) authorNames() []string {
	if len(i.Author) == 0 {
		return nil
	}

	names := make([]string, 0, len(i.Author))

	for _, a := range i.Author {
		name := strings.TrimSpace(strings.TrimSpace(a.Given) + " " + strings.TrimSpace(a.Family))
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

func (d *workDate) time() *time.Time {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return nil
	}

	parts := d.DateParts[0]
	if parts[0] <= 0 {
		return nil
	}

	month, day := 1, 1
	if len(parts) > 1 && parts[1] >= 1 && parts[1] <= 12 {
		month = parts[1]
	}

	if len(parts) > 2 && parts[2] >= 1 && parts[2] <= 31 {
		day = parts[2]
	}

	t := time.Date(parts[0], time.Month(month), day, 0, 0, 0, 0, time.UTC)

	return &t
}

func (r *workReference) publishedTime() *time.Time {
	year, err := strconv.Atoi(strings.TrimSpace(r.Year))
	if err != nil || year <= 0 {
		return nil
	}

	t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	return &t
}

// jatsMarkup matches the JATS XML tags Crossref wraps abstracts in.
var jatsMarkup = regexp.MustCompile(`<[^>]+>`)

func abstractText(raw string) string {
	return strings.Join(strings.Fields(jatsMarkup.ReplaceAllString(raw, " ")), " ")
}
