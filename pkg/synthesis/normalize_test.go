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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "punctuation stripped",
			title: "Attention Is All You Need!",
			want:  "attention is all you need",
		},
		{
			name:  "whitespace collapsed",
			title: "  Deep   Learning:\tA Survey  ",
			want:  "deep learning a survey",
		},
		{
			name:  "hyphens become separators",
			title: "Self-Supervised Pre-Training",
			want:  "self supervised pre training",
		},
		{
			name:  "digits kept",
			title: "GPT-4 Technical Report",
			want:  "gpt 4 technical report",
		},
		{
			name:  "unicode letters kept",
			title: "Çağlar's Résumé",
			want:  "çağlar s résumé",
		},
		{
			name:  "empty",
			title: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTitle(tt.title))
		})
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    string
		minimum float64
		maximum float64
	}{
		{
			name:    "identical",
			a:       "attention is all you need",
			b:       "attention is all you need",
			minimum: 1, maximum: 1,
		},
		{
			name:    "single typo stays above match threshold",
			a:       "attention is all you need",
			b:       "atention is all you need",
			minimum: titleMatchThreshold, maximum: 1,
		},
		{
			name:    "word reorder keeps full token overlap",
			a:       "attention is all you need",
			b:       "all you need is attention",
			minimum: titleMatchThreshold, maximum: 1,
		},
		{
			name:    "unrelated titles score low",
			a:       "attention is all you need",
			b:       "a survey of graph databases",
			minimum: 0, maximum: 0.5,
		},
		{
			name:    "empty never matches",
			a:       "",
			b:       "attention is all you need",
			minimum: 0, maximum: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := titleSimilarity(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.minimum)
			assert.LessOrEqual(t, got, tt.maximum)
		})
	}
}

func TestSurname(t *testing.T) {
	tests := []struct {
		author string
		want   string
	}{
		{author: "Grace Hopper", want: "hopper"},
		{author: "Hopper, Grace", want: "hopper"},
		{author: "Jean-Luc van der Berg", want: "berg"},
		{author: "Plato", want: "plato"},
		{author: "   ", want: ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, surname(tt.author), "author=%q", tt.author)
	}
}

func TestShareSurname(t *testing.T) {
	assert.True(t, shareSurname(
		[]string{"Grace Hopper", "Alan Turing"},
		[]string{"Turing, Alan", "Ada Lovelace"},
	))

	assert.False(t, shareSurname(
		[]string{"Grace Hopper"},
		[]string{"Ada Lovelace"},
	))

	assert.False(t, shareSurname(nil, []string{"Grace Hopper"}), "empty author lists never match")
}
