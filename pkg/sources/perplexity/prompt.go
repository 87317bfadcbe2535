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
	"fmt"
	"strings"

	"github.com/scholarsys/paperscout/pkg/models"
)

const maxAbstractChars = 800

const systemPrompt = `You are a research-paper discovery assistant with live web access.
You find real, verifiable academic papers related to a source paper.
Respond with a single JSON object of the form
{"papers": [{"title": "...", "authors": ["..."], "doi": "...", "arxiv_id": "...",
"url": "...", "venue": "...", "year": 2024, "relationship": "trending|open_access_variant|topic",
"confidence": 0.0}]}
Every paper must carry at least one of doi, arxiv_id, or url.
Set confidence to how certain you are that the paper exists and is relevant, between 0 and 1.
Never invent papers; omit anything you cannot verify.`

// trendingPrompt asks for papers gaining attention right now in the source
// paper's area.
func trendingPrompt(paper *models.SourcePaper, limit int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Find up to %d papers that are trending in the last 12 months and closely related to this paper.\n\n", limit)
	describePaper(&b, paper)
	b.WriteString("\nPrefer papers with rapidly growing citations, active preprint discussion, or recent conference attention. Mark each with relationship \"trending\".")

	return b.String()
}

// variantsPrompt asks for open-access versions and topical neighbors.
func variantsPrompt(paper *models.SourcePaper, limit int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Find up to %d papers that are either open-access versions or variants of this paper (preprints, extended versions) or strong topical matches for it.\n\n", limit)
	describePaper(&b, paper)
	b.WriteString("\nMark open-access versions with relationship \"open_access_variant\" and topical matches with relationship \"topic\".")

	return b.String()
}

func describePaper(b *strings.Builder, paper *models.SourcePaper) {
	fmt.Fprintf(b, "Title: %s\n", paper.Title)

	if paper.PrimaryField != "" {
		fmt.Fprintf(b, "Field: %s\n", paper.PrimaryField)
	}

	if len(paper.Keywords) > 0 {
		fmt.Fprintf(b, "Keywords: %s\n", strings.Join(paper.Keywords, ", "))
	}

	if abstract := truncate(paper.Abstract, maxAbstractChars); abstract != "" {
		fmt.Fprintf(b, "Abstract: %s\n", abstract)
	}
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}
