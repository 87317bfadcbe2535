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

// Package semanticscholar discovers related papers through the Semantic
// Scholar Graph API: AI recommendations, influential citations, topic
// siblings, and the first author's recent output.
package semanticscholar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
)

const (
	defaultBaseURL = "https://api.semanticscholar.org"

	subFetchCount = 4

	// paperFields is the field list requested for every paper payload.
	paperFields = "paperId,externalIds,title,abstract,venue,year,publicationDate,citationCount,influentialCitationCount,fieldsOfStudy,authors"
)

// Config holds the Semantic Scholar worker settings. The API works without a
// key at a shared public rate; a key raises the quota.
type Config struct {
	BaseURL string `json:"base_url"`
}

// Worker discovers related papers from Semantic Scholar.
type Worker struct {
	client      *sources.Client
	credentials sources.Credentials
	logger      logger.Logger
	baseURL     string
	now         func() time.Time
}

var _ sources.Worker = (*Worker)(nil)

// Option adjusts worker construction.
type Option func(*Worker)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// New creates a Semantic Scholar worker. httpClient may be nil to use
// defaults; credentials may be nil when no API key is provisioned.
func New(config Config, httpClient sources.HTTPClient, limiter sources.RateLimiter, credentials sources.Credentials, log logger.Logger, opts ...Option) *Worker {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	w := &Worker{
		client:      sources.NewClient(models.DiscoverySourceSemanticScholar, httpClient, limiter, log),
		credentials: credentials,
		logger:      log.WithComponent("semantic_scholar"),
		baseURL:     baseURL,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Source implements sources.Worker.
func (*Worker) Source() models.DiscoverySource {
	return models.DiscoverySourceSemanticScholar
}

// Discover implements sources.Worker. The worker resolves the source paper
// to an S2 id first; without one no neighborhood can be queried, so resolve
// failures are worker failures.
func (w *Worker) Discover(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.SourceDiscoveryResult {
	start := time.Now()

	header, err := w.header(ctx)
	if err != nil {
		return sources.FailureResult(w.Source(), start, err)
	}

	anchor, err := w.resolvePaper(ctx, paper, header)
	if err != nil {
		return sources.FailureResult(w.Source(), start, err)
	}

	limit := sources.SubFetchLimit(config.MaxPerSource, subFetchCount)
	topics := w.sourceTopics(paper, anchor)

	var (
		candidates []*models.DiscoveredPaper
		failed     []string
		firstErr   error
	)

	for _, fetch := range w.fetchPlan(anchor, topics, limit) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sources.FailureResult(w.Source(), start, sources.ContextError(w.Source(), ctxErr))
		}

		papers, fetchErr := fetch.run(ctx, header)
		if fetchErr != nil {
			if errors.Is(fetchErr, sources.ErrNotFound) {
				continue
			}

			w.logger.Warn().Err(fetchErr).Str("fetch", fetch.name).Msg("Semantic Scholar sub-fetch failed")

			failed = append(failed, fetch.name)

			if firstErr == nil {
				firstErr = fetchErr
			}

			continue
		}

		candidates = append(candidates, papers...)
	}

	if len(candidates) == 0 && firstErr != nil {
		return sources.FailureResult(w.Source(), start, firstErr)
	}

	raw := len(candidates)
	candidates = sources.DedupeCandidates(candidates)
	sources.SortCandidates(candidates)
	candidates = sources.Cap(candidates, config.MaxPerSource)

	metadata := map[string]interface{}{
		"anchor_id":      anchor.PaperID,
		"raw_candidates": raw,
	}
	if len(failed) > 0 {
		metadata["failed_fetches"] = failed
	}

	return sources.SuccessResult(w.Source(), candidates, start, metadata)
}

type subFetch struct {
	name string
	run  func(ctx context.Context, header http.Header) ([]*models.DiscoveredPaper, error)
}

func (w *Worker) fetchPlan(anchor *s2Paper, topics []string, limit int) []subFetch {
	plan := []subFetch{
		{name: "recommendations", run: func(ctx context.Context, header http.Header) ([]*models.DiscoveredPaper, error) {
			return w.fetchRecommendations(ctx, header, anchor, topics, limit)
		}},
		{name: "influential_citations", run: func(ctx context.Context, header http.Header) ([]*models.DiscoveredPaper, error) {
			return w.fetchInfluentialCitations(ctx, header, anchor, topics, limit)
		}},
	}

	if len(topics) > 0 {
		plan = append(plan, subFetch{name: "topic_siblings", run: func(ctx context.Context, header http.Header) ([]*models.DiscoveredPaper, error) {
			return w.fetchTopicSiblings(ctx, header, anchor, topics, limit)
		}})
	}

	if authorID := anchor.firstAuthorID(); authorID != "" {
		plan = append(plan, subFetch{name: "author_influence", run: func(ctx context.Context, header http.Header) ([]*models.DiscoveredPaper, error) {
			return w.fetchAuthorPapers(ctx, header, anchor, topics, authorID, limit)
		}})
	}

	return plan
}

func (p *s2Paper) firstAuthorID() string {
	for _, a := range p.Authors {
		if a.AuthorID != "" {
			return a.AuthorID
		}
	}

	return ""
}

// resolvePaper finds the source paper's S2 record, by DOI when available,
// otherwise by a title and first-author search.
func (w *Worker) resolvePaper(ctx context.Context, paper *models.SourcePaper, header http.Header) (*s2Paper, error) {
	if paper.DOI != "" {
		reqURL := fmt.Sprintf("%s/graph/v1/paper/DOI:%s?fields=%s",
			w.baseURL, url.PathEscape(paper.DOI), url.QueryEscape(paperFields))

		var anchor s2Paper
		if err := w.client.GetJSON(ctx, reqURL, header, &anchor); err == nil {
			return &anchor, nil
		} else if !errors.Is(err, sources.ErrNotFound) {
			return nil, err
		}
		// Unknown DOI, fall through to the title search.
	}

	if paper.Title == "" {
		return nil, models.NewDiscoveryError(models.ErrorKindInvalidInput,
			"paper has neither a resolvable DOI nor a title", nil)
	}

	query := paper.Title
	if len(paper.Authors) > 0 {
		query += " " + surname(paper.Authors[0])
	}

	reqURL := fmt.Sprintf("%s/graph/v1/paper/search?query=%s&limit=1&fields=%s",
		w.baseURL, url.QueryEscape(query), url.QueryEscape(paperFields))

	var resp searchResponse
	if err := w.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || resp.Data[0].PaperID == "" {
		return nil, models.NewDiscoveryError(models.ErrorKindProtocol,
			fmt.Sprintf("no Semantic Scholar match for %q", paper.Title), nil)
	}

	return &resp.Data[0], nil
}

func surname(author string) string {
	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}

	return fields[len(fields)-1]
}

// fetchRecommendations pulls the recommendation engine's similar papers.
func (w *Worker) fetchRecommendations(ctx context.Context, header http.Header, anchor *s2Paper, topics []string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := fmt.Sprintf("%s/recommendations/v1/papers/forpaper/%s?limit=%d&fields=%s",
		w.baseURL, url.PathEscape(anchor.PaperID), limit, url.QueryEscape(paperFields))

	var resp recommendationsResponse
	if err := w.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	papers := make([]*models.DiscoveredPaper, 0, len(resp.RecommendedPapers))

	for i := range resp.RecommendedPapers {
		affinity := rankAffinity(i, len(resp.RecommendedPapers))
		if p := w.mapPaper(&resp.RecommendedPapers[i], anchor, topics, models.RelationshipSemanticSimilar, affinity); p != nil {
			papers = append(papers, p)
		}
	}

	return capPapers(papers, limit), nil
}

// fetchInfluentialCitations pulls citing papers, weighting the ones Semantic
// Scholar marks as highly influential.
func (w *Worker) fetchInfluentialCitations(ctx context.Context, header http.Header, anchor *s2Paper, topics []string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := fmt.Sprintf("%s/graph/v1/paper/%s/citations?limit=%d&fields=%s",
		w.baseURL, url.PathEscape(anchor.PaperID), limit, url.QueryEscape("isInfluential,"+paperFields))

	var resp citationsResponse
	if err := w.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	papers := make([]*models.DiscoveredPaper, 0, len(resp.Data))

	for i := range resp.Data {
		affinity := citationAffinityPlain
		if resp.Data[i].IsInfluential {
			affinity = citationAffinityInfluential
		}

		if p := w.mapPaper(&resp.Data[i].CitingPaper, anchor, topics, models.RelationshipCites, affinity); p != nil {
			papers = append(papers, p)
		}
	}

	return capPapers(papers, limit), nil
}

// fetchTopicSiblings searches for papers in the source paper's fields.
func (w *Worker) fetchTopicSiblings(ctx context.Context, header http.Header, anchor *s2Paper, topics []string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := fmt.Sprintf("%s/graph/v1/paper/search?query=%s&limit=%d&fields=%s",
		w.baseURL, url.QueryEscape(strings.Join(topics, " ")), limit, url.QueryEscape(paperFields))

	var resp searchResponse
	if err := w.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	papers := make([]*models.DiscoveredPaper, 0, len(resp.Data))

	for i := range resp.Data {
		affinity := topicAffinityScale * rankAffinity(i, len(resp.Data))
		if p := w.mapPaper(&resp.Data[i], anchor, topics, models.RelationshipTopic, affinity); p != nil {
			papers = append(papers, p)
		}
	}

	return capPapers(papers, limit), nil
}

// fetchAuthorPapers pulls the anchor's first author's other papers.
func (w *Worker) fetchAuthorPapers(ctx context.Context, header http.Header, anchor *s2Paper, topics []string, authorID string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := fmt.Sprintf("%s/graph/v1/author/%s/papers?limit=%d&fields=%s",
		w.baseURL, url.PathEscape(authorID), limit, url.QueryEscape(paperFields))

	var resp authorPapersResponse
	if err := w.client.GetJSON(ctx, reqURL, header, &resp); err != nil {
		return nil, err
	}

	papers := make([]*models.DiscoveredPaper, 0, len(resp.Data))

	for i := range resp.Data {
		if p := w.mapPaper(&resp.Data[i], anchor, topics, models.RelationshipSemanticSimilar, authorAffinity); p != nil {
			papers = append(papers, p)
		}
	}

	return capPapers(papers, limit), nil
}

// mapPaper converts an API paper into a candidate, or nil for the anchor
// itself and untitled records.
func (w *Worker) mapPaper(item *s2Paper, anchor *s2Paper, topics []string, rel models.RelationshipType, affinity float64) *models.DiscoveredPaper {
	if item.PaperID == "" || item.PaperID == anchor.PaperID {
		return nil
	}

	if strings.TrimSpace(item.Title) == "" {
		return nil
	}

	externalIDs := map[string]string{models.ExternalIDSemanticScholar: item.PaperID}
	if doi := item.doi(); doi != "" {
		externalIDs[models.ExternalIDDOI] = doi
	}

	if item.ExternalIDs != nil && item.ExternalIDs.ArXiv != "" {
		externalIDs[models.ExternalIDArxiv] = item.ExternalIDs.ArXiv
	}

	candidate := &models.DiscoveredPaper{
		ExternalIDs:              externalIDs,
		Title:                    strings.TrimSpace(item.Title),
		Abstract:                 item.Abstract,
		Authors:                  item.authorNames(),
		Venue:                    item.Venue,
		PublishedDate:            item.publishedTime(),
		CitationCount:            item.CitationCount,
		InfluentialCitationCount: item.InfluentialCitationCount,
		ResearchTopics:           item.FieldsOfStudy,
		SourceOfRecord:           models.DiscoverySourceSemanticScholar,
		DiscoverySources:         []models.DiscoverySource{models.DiscoverySourceSemanticScholar},
		RelationshipType:         rel,
	}
	candidate.RelevanceScore = w.seedScore(item, topics, affinity)

	return candidate
}

// sourceTopics merges the source paper's own field and keywords with the
// resolved anchor's fields of study.
func (w *Worker) sourceTopics(paper *models.SourcePaper, anchor *s2Paper) []string {
	seen := make(map[string]struct{})
	topics := make([]string, 0, len(paper.Keywords)+len(anchor.FieldsOfStudy)+1)

	add := func(topic string) {
		topic = strings.TrimSpace(topic)
		if topic == "" {
			return
		}

		key := strings.ToLower(topic)
		if _, dup := seen[key]; dup {
			return
		}

		seen[key] = struct{}{}
		topics = append(topics, topic)
	}

	add(paper.PrimaryField)

	for _, k := range paper.Keywords {
		add(k)
	}

	for _, f := range anchor.FieldsOfStudy {
		add(f)
	}

	return topics
}

func (w *Worker) header(ctx context.Context) (http.Header, error) {
	header := http.Header{}

	if w.credentials == nil {
		return header, nil
	}

	key, err := w.credentials.CredentialsFor(ctx, w.Source(), sources.UserIDFrom(ctx))
	if err != nil {
		return nil, models.NewDiscoveryError(models.ErrorKindInvalidInput,
			"resolving Semantic Scholar credentials", err)
	}

	if key != "" {
		header.Set("x-api-key", key)
	}

	return header, nil
}

func capPapers(papers []*models.DiscoveredPaper, limit int) []*models.DiscoveredPaper {
	return sources.Cap(papers, limit)
}

// rankAffinity converts a result's position into a score in (0,1], the
// first result counting full.
func rankAffinity(idx, total int) float64 {
	if total <= 0 {
		return 0
	}

	return 1 - float64(idx)/float64(total)
}
