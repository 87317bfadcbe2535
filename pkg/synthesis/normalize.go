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
	"strings"
	"unicode"
)

// NormalizeTitle lowercases a title, strips punctuation, and collapses
// whitespace so that formatting differences between sources compare equal.
func NormalizeTitle(title string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}

		return ' '
	}, title)

	return strings.Join(strings.Fields(mapped), " ")
}

// titleSimilarity scores two normalized titles in [0,1]. It takes the best
// of token-set Jaccard, which forgives word reordering, and a character
// edit-distance ratio, which forgives small spelling and hyphenation
// differences.
func titleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return 1
	}

	jaccard := tokenJaccard(strings.Fields(a), strings.Fields(b))
	edit := editSimilarity(a, b)

	if jaccard > edit {
		return jaccard
	}

	return edit
}

func tokenJaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}

	union := len(set)
	shared := 0

	seen := make(map[string]struct{}, len(b))

	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}

		seen[tok] = struct{}{}

		if _, ok := set[tok]; ok {
			shared++
		} else {
			union++
		}
	}

	return float64(shared) / float64(union)
}

// editSimilarity is 1 - levenshtein(a,b)/max(len), computed over runes with
// a two-row table.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)

	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}

	if len(ra) == 0 {
		return 1
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i

		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}

			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}

		prev, curr = curr, prev
	}

	return 1 - float64(prev[len(rb)])/float64(len(ra))
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}

	if c < a {
		a = c
	}

	return a
}

// surname extracts the family name from a single author string, handling
// both "Given Family" and "Family, Given" forms.
func surname(author string) string {
	author = strings.TrimSpace(author)

	if comma := strings.IndexByte(author, ','); comma >= 0 {
		author = author[:comma]
	}

	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}

	return strings.ToLower(fields[len(fields)-1])
}

// shareSurname reports whether the two author lists have at least one family
// name in common. Empty lists never match.
func shareSurname(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}

	names := make(map[string]struct{}, len(a))

	for _, author := range a {
		if s := surname(author); s != "" {
			names[s] = struct{}{}
		}
	}

	for _, author := range b {
		if s := surname(author); s != "" {
			if _, ok := names[s]; ok {
				return true
			}
		}
	}

	return false
}
