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

package sources

import (
	"sort"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
)

// ClampScore bounds a relevance seed to [0,1].
func ClampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ClampComponent bounds one weighted term of a seed formula to [0, weight].
func ClampComponent(v, weight float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > weight:
		return weight
	default:
		return v
	}
}

// SubFetchLimit splits max_per_source across n sub-fetches, rounding up so
// the combined cap still covers max_per_source.
func SubFetchLimit(maxPerSource, fetches int) int {
	if fetches <= 0 {
		return maxPerSource
	}

	limit := (maxPerSource + fetches - 1) / fetches
	if limit < 1 {
		limit = 1
	}

	return limit
}

// SortCandidates orders papers by seed score descending, then citation count
// descending, then recency descending, then title ascending.
func SortCandidates(papers []*models.DiscoveredPaper) {
	sort.SliceStable(papers, func(i, j int) bool {
		a, b := papers[i], papers[j]

		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}

		if a.CitationCount != b.CitationCount {
			return a.CitationCount > b.CitationCount
		}

		at, bt := publishedTime(a), publishedTime(b)
		if !at.Equal(bt) {
			return at.After(bt)
		}

		return a.Title < b.Title
	})
}

func publishedTime(p *models.DiscoveredPaper) time.Time {
	if p.PublishedDate != nil {
		return *p.PublishedDate
	}

	return time.Time{}
}

// DedupeCandidates collapses papers sharing their strongest external id,
// keeping the occurrence with the higher seed. Papers without any external
// id pass through; cross-source dedup happens later in synthesis.
func DedupeCandidates(papers []*models.DiscoveredPaper) []*models.DiscoveredPaper {
	out := make([]*models.DiscoveredPaper, 0, len(papers))
	seen := make(map[string]int, len(papers))

	for _, p := range papers {
		kind, value, ok := p.StrongestExternalID()
		if !ok {
			out = append(out, p)
			continue
		}

		key := kind + ":" + value

		if idx, dup := seen[key]; dup {
			if p.RelevanceScore > out[idx].RelevanceScore {
				out[idx] = p
			}

			continue
		}

		seen[key] = len(out)
		out = append(out, p)
	}

	return out
}

// Cap truncates papers to limit, preserving order.
func Cap(papers []*models.DiscoveredPaper, limit int) []*models.DiscoveredPaper {
	if limit >= 0 && len(papers) > limit {
		return papers[:limit]
	}

	return papers
}
