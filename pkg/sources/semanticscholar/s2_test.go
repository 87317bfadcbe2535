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
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/sources"
)

type grantAllLimiter struct{}

type nopPermit struct{}

func (nopPermit) Report(bool) {}

func (grantAllLimiter) Acquire(context.Context, models.DiscoverySource) (ratelimit.Permit, error) {
	return nopPermit{}, nil
}

type requestLog struct {
	mu      sync.Mutex
	names   []string
	apiKeys []string
}

func (l *requestLog) add(name, apiKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
	l.apiKeys = append(l.apiKeys, apiKey)
}

func (l *requestLog) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.names...)
}

func (l *requestLog) keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.apiKeys...)
}

const (
	anchorPayload = `{"paperId":"anchor123","title":"Attention Mechanisms Revisited",
		"authors":[{"authorId":"auth1","name":"Grace Hopper"}],
		"fieldsOfStudy":["Computer Science"]}`

	resolveSearchPayload = `{"total":1,"data":[` + anchorPayload + `]}`

	recommendationsPayload = `{"recommendedPapers":[
		{"paperId":"rec1","title":"Sparse Attention at Scale",
		 "externalIds":{"DOI":"10.2000/rec1","ArXiv":"2401.01234"},
		 "venue":"NeurIPS","publicationDate":"2024-03-15",
		 "citationCount":80,"influentialCitationCount":20,
		 "fieldsOfStudy":["Computer Science"],
		 "authors":[{"authorId":"a9","name":"Ada Lovelace"}]},
		{"paperId":"rec2","title":"A Minor Note on Attention","year":2019}
	]}`

	citationsPayload = `{"data":[
		{"isInfluential":true,"citingPaper":
			{"paperId":"cit1","title":"Influential Follow-up",
			 "externalIds":{"DOI":"10.2000/cit1"},
			 "publicationDate":"2023-08-01","citationCount":40,"influentialCitationCount":10,
			 "fieldsOfStudy":["Computer Science"]}},
		{"isInfluential":false,"citingPaper":
			{"paperId":"cit2","title":"Routine Citation",
			 "publicationDate":"2023-08-01","citationCount":40,"influentialCitationCount":10,
			 "fieldsOfStudy":["Computer Science"]}}
	]}`

	topicPayload = `{"total":1,"data":[
		{"paperId":"top1","title":"Field Overview","year":2022,
		 "fieldsOfStudy":["Computer Science","Mathematics"]}
	]}`

	authorPapersPayload = `{"data":[
		{"paperId":"anchor123","title":"Attention Mechanisms Revisited"},
		{"paperId":"ap1","title":"Earlier Work by Same Author","year":2021,
		 "citationCount":15}
	]}`
)

func classifyRequest(r *http.Request) (name, payload string) {
	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/graph/v1/paper/DOI:"):
		return "resolve_doi", anchorPayload
	case strings.HasPrefix(path, "/recommendations/v1/papers/forpaper/"):
		return "recommendations", recommendationsPayload
	case strings.HasSuffix(path, "/citations"):
		return "influential_citations", citationsPayload
	case strings.HasPrefix(path, "/graph/v1/author/"):
		return "author_influence", authorPapersPayload
	case path == "/graph/v1/paper/search" && r.URL.Query().Get("limit") == "1":
		return "resolve_search", resolveSearchPayload
	case path == "/graph/v1/paper/search":
		return "topic_siblings", topicPayload
	default:
		return "unknown", ""
	}
}

func newAPIServer(t *testing.T, log *requestLog, overrides map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, payload := classifyRequest(r)
		log.add(name, r.Header.Get("x-api-key"))

		if handler, ok := overrides[name]; ok {
			handler(w, r)
			return
		}

		if payload == "" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(server.Close)

	return server
}

func newTestWorker(t *testing.T, baseURL string) *Worker {
	t.Helper()

	fixed := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	credentials := sources.StaticCredentials{models.DiscoverySourceSemanticScholar: "s2-test-key"}

	return New(
		Config{BaseURL: baseURL},
		nil,
		grantAllLimiter{},
		credentials,
		logger.NewTestLogger(),
		WithClock(func() time.Time { return fixed }),
	)
}

func sourcePaper() *models.SourcePaper {
	return &models.SourcePaper{
		ID:           "paper-1",
		Title:        "Attention Mechanisms Revisited",
		Authors:      []string{"Grace Hopper"},
		DOI:          "10.1234/source",
		PrimaryField: "Computer Science",
		Keywords:     []string{"attention"},
	}
}

func TestWorker_Discover_FullFetchPlan(t *testing.T) {
	log := &requestLog{}
	server := newAPIServer(t, log, nil)
	worker := newTestWorker(t, server.URL)

	result := worker.Discover(context.Background(), sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 20})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.Equal(t, models.DiscoverySourceSemanticScholar, result.Source)

	assert.ElementsMatch(t,
		[]string{"resolve_doi", "recommendations", "influential_citations", "topic_siblings", "author_influence"},
		log.seen())

	for _, key := range log.keys() {
		assert.Equal(t, "s2-test-key", key, "every request must carry the API key")
	}

	ids := map[string]models.RelationshipType{}
	for _, p := range result.Papers {
		ids[p.ExternalIDs[models.ExternalIDSemanticScholar]] = p.RelationshipType

		assert.NotEqual(t, "anchor123", p.ExternalIDs[models.ExternalIDSemanticScholar],
			"the anchor paper must be skipped")
		assert.GreaterOrEqual(t, p.RelevanceScore, 0.0)
		assert.LessOrEqual(t, p.RelevanceScore, 1.0)
	}

	assert.Equal(t, models.RelationshipSemanticSimilar, ids["rec1"])
	assert.Equal(t, models.RelationshipSemanticSimilar, ids["rec2"])
	assert.Equal(t, models.RelationshipCites, ids["cit1"])
	assert.Equal(t, models.RelationshipCites, ids["cit2"])
	assert.Equal(t, models.RelationshipTopic, ids["top1"])
	assert.Equal(t, models.RelationshipSemanticSimilar, ids["ap1"])

	assert.Equal(t, "anchor123", result.Metadata["anchor_id"])
}

func TestWorker_Discover_ExternalIDMapping(t *testing.T) {
	log := &requestLog{}
	server := newAPIServer(t, log, nil)
	worker := newTestWorker(t, server.URL)

	result := worker.Discover(context.Background(), sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 20})
	require.True(t, result.Success)

	var rec1 *models.DiscoveredPaper

	for _, p := range result.Papers {
		if p.ExternalIDs[models.ExternalIDSemanticScholar] == "rec1" {
			rec1 = p
			break
		}
	}

	require.NotNil(t, rec1)
	assert.Equal(t, "10.2000/rec1", rec1.ExternalIDs[models.ExternalIDDOI])
	assert.Equal(t, "2401.01234", rec1.ExternalIDs[models.ExternalIDArxiv])
	assert.Equal(t, "NeurIPS", rec1.Venue)
	assert.Equal(t, 80, rec1.CitationCount)
	assert.Equal(t, 20, rec1.InfluentialCitationCount)
}

func TestWorker_Discover_InfluentialCitationOutranksPlain(t *testing.T) {
	log := &requestLog{}
	server := newAPIServer(t, log, nil)
	worker := newTestWorker(t, server.URL)

	result := worker.Discover(context.Background(), sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 20})
	require.True(t, result.Success)

	scores := map[string]float64{}
	for _, p := range result.Papers {
		scores[p.ExternalIDs[models.ExternalIDSemanticScholar]] = p.RelevanceScore
	}

	// cit1 and cit2 differ only in the influential flag.
	assert.Greater(t, scores["cit1"], scores["cit2"])
}

func TestWorker_Discover_ResolveFallsBackToTitleSearch(t *testing.T) {
	log := &requestLog{}
	overrides := map[string]http.HandlerFunc{
		"resolve_doi": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "unknown DOI", http.StatusNotFound)
		},
	}
	server := newAPIServer(t, log, overrides)
	worker := newTestWorker(t, server.URL)

	result := worker.Discover(context.Background(), sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 10})

	require.True(t, result.Success, "error: %s", result.ErrorMessage)
	assert.Contains(t, log.seen(), "resolve_search")
}

func TestWorker_Discover_ResolveFailureFailsWorker(t *testing.T) {
	log := &requestLog{}
	overrides := map[string]http.HandlerFunc{
		"resolve_doi": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "malformed id", http.StatusBadRequest)
		},
	}
	server := newAPIServer(t, log, overrides)
	worker := newTestWorker(t, server.URL)

	paper := sourcePaper()
	paper.Title = ""

	result := worker.Discover(context.Background(), paper, &models.DiscoveryConfiguration{MaxPerSource: 10})

	require.False(t, result.Success)
	assert.Empty(t, result.Papers)
}

func TestWorker_Discover_NoTitleNoDOI(t *testing.T) {
	worker := newTestWorker(t, "http://unused")

	result := worker.Discover(context.Background(), &models.SourcePaper{ID: "p"}, &models.DiscoveryConfiguration{MaxPerSource: 10})

	require.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "neither")
}

func TestWorker_Discover_RespectsMaxPerSource(t *testing.T) {
	log := &requestLog{}
	server := newAPIServer(t, log, nil)
	worker := newTestWorker(t, server.URL)

	result := worker.Discover(context.Background(), sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 3})

	require.True(t, result.Success)
	assert.LessOrEqual(t, len(result.Papers), 3)
}

func TestWorker_Discover_CancelledContextFailsWorker(t *testing.T) {
	log := &requestLog{}
	server := newAPIServer(t, log, nil)
	worker := newTestWorker(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := worker.Discover(ctx, sourcePaper(), &models.DiscoveryConfiguration{MaxPerSource: 10})

	require.False(t, result.Success)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestTopicOverlap(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		topics []string
		want   float64
	}{
		{name: "identical sets", fields: []string{"CS"}, topics: []string{"cs"}, want: 1.0},
		{name: "half overlap", fields: []string{"CS", "Math"}, topics: []string{"CS"}, want: 0.5},
		{name: "disjoint", fields: []string{"Biology"}, topics: []string{"CS"}, want: 0.0},
		{name: "empty fields", fields: nil, topics: []string{"CS"}, want: 0.0},
		{name: "empty topics", fields: []string{"CS"}, topics: nil, want: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, topicOverlap(tt.fields, tt.topics), 1e-9)
		})
	}
}

func TestVelocityFactor(t *testing.T) {
	worker := newTestWorker(t, "http://unused")

	fast := &s2Paper{PublicationDate: "2024-06-01", CitationCount: 200}
	slow := &s2Paper{PublicationDate: "2015-06-01", CitationCount: 10}
	unknown := &s2Paper{CitationCount: 10}

	assert.Equal(t, 1.0, worker.velocityFactor(fast), "200 citations in a year saturates the ceiling")
	assert.InDelta(t, 0.02, worker.velocityFactor(slow), 0.001)
	assert.Equal(t, 0.0, worker.velocityFactor(unknown))
}

func TestRankAffinity(t *testing.T) {
	assert.Equal(t, 1.0, rankAffinity(0, 4))
	assert.Equal(t, 0.25, rankAffinity(3, 4))
	assert.Equal(t, 0.0, rankAffinity(0, 0))
}

func TestSurname(t *testing.T) {
	assert.Equal(t, "Hopper", surname("Grace Hopper"))
	assert.Equal(t, "Curie", surname("Curie"))
	assert.Equal(t, "", surname("  "))
}
