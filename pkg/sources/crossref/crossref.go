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

// Package crossref discovers related papers through the Crossref works API,
// walking the citation graph plus author, venue, and subject neighborhoods.
package crossref

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
)

const (
	defaultBaseURL = "https://api.crossref.org"

	// subFetchCount is the number of candidate neighborhoods the worker
	// queries; each one gets an equal share of max_per_source.
	subFetchCount = 5

	authorLookbackYears = 5
	venueLookbackYears  = 3
)

// Config holds the Crossref worker settings. The API needs no key; a mailto
// address opts requests into Crossref's polite pool.
type Config struct {
	BaseURL string `json:"base_url"`
	Mailto  string `json:"mailto,omitempty"`
}

// Worker discovers related papers from the Crossref citation network.
type Worker struct {
	client  *sources.Client
	logger  logger.Logger
	baseURL string
	mailto  string
	now     func() time.Time
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

// New creates a Crossref worker. httpClient may be nil to use defaults.
func New(config Config, httpClient sources.HTTPClient, limiter sources.RateLimiter, log logger.Logger, opts ...Option) *Worker {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	w := &Worker{
		client:  sources.NewClient(models.DiscoverySourceCrossref, httpClient, limiter, log),
		logger:  log.WithComponent("crossref"),
		baseURL: baseURL,
		mailto:  config.Mailto,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Source implements sources.Worker.
func (*Worker) Source() models.DiscoverySource {
	return models.DiscoverySourceCrossref
}

// subFetch is one named candidate neighborhood query.
type subFetch struct {
	name string
	run  func(ctx context.Context) ([]*models.DiscoveredPaper, error)
}

// Discover implements sources.Worker. Sub-fetches fail independently; the
// worker only reports failure when nothing at all could be retrieved.
func (w *Worker) Discover(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.SourceDiscoveryResult {
	start := time.Now()

	doi, err := w.resolveDOI(ctx, paper)
	if err != nil && !errors.Is(err, sources.ErrNotFound) {
		return sources.FailureResult(w.Source(), start, err)
	}

	if doi == "" {
		w.logger.Debug().Str("paper_id", paper.ID).Msg("No DOI resolved, citation fetches skipped")
	}

	limit := sources.SubFetchLimit(config.MaxPerSource, subFetchCount)

	var (
		candidates []*models.DiscoveredPaper
		failed     []string
		firstErr   error
	)

	for _, fetch := range w.fetchPlan(paper, doi, limit) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return sources.FailureResult(w.Source(), start, sources.ContextError(w.Source(), ctxErr))
		}

		papers, fetchErr := fetch.run(ctx)
		if fetchErr != nil {
			if errors.Is(fetchErr, sources.ErrNotFound) {
				continue
			}

			w.logger.Warn().Err(fetchErr).Str("fetch", fetch.name).Msg("Crossref sub-fetch failed")

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
		"resolved_doi":   doi,
		"raw_candidates": raw,
	}
	if len(failed) > 0 {
		metadata["failed_fetches"] = failed
	}

	return sources.SuccessResult(w.Source(), candidates, start, metadata)
}

// fetchPlan assembles the sub-fetches that have enough input to run.
func (w *Worker) fetchPlan(paper *models.SourcePaper, doi string, limit int) []subFetch {
	plan := make([]subFetch, 0, subFetchCount)

	if doi != "" {
		plan = append(plan,
			subFetch{name: "forward_citations", run: func(ctx context.Context) ([]*models.DiscoveredPaper, error) {
				return w.fetchForwardCitations(ctx, paper, doi, limit)
			}},
			subFetch{name: "backward_references", run: func(ctx context.Context) ([]*models.DiscoveredPaper, error) {
				return w.fetchBackwardReferences(ctx, paper, doi, limit)
			}},
		)
	}

	if len(paper.Authors) > 0 {
		plan = append(plan, subFetch{name: "same_author", run: func(ctx context.Context) ([]*models.DiscoveredPaper, error) {
			return w.fetchSameAuthor(ctx, paper, doi, limit)
		}})
	}

	if paper.Journal != "" {
		plan = append(plan, subFetch{name: "same_venue", run: func(ctx context.Context) ([]*models.DiscoveredPaper, error) {
			return w.fetchSameVenue(ctx, paper, doi, limit)
		}})
	}

	if paper.PrimaryField != "" {
		plan = append(plan, subFetch{name: "same_subject", run: func(ctx context.Context) ([]*models.DiscoveredPaper, error) {
			return w.fetchSameSubject(ctx, paper, doi, limit)
		}})
	}

	return plan
}

// resolveDOI returns the source paper's normalized DOI, probing Crossref by
// title when the input carries none. An empty return with nil error means
// the paper could not be matched and citation fetches are skipped.
func (w *Worker) resolveDOI(ctx context.Context, paper *models.SourcePaper) (string, error) {
	if paper.DOI != "" {
		return models.NormalizeDOI(paper.DOI), nil
	}

	if paper.Title == "" {
		return "", nil
	}

	reqURL := w.listURL(fmt.Sprintf("query.bibliographic=%s&rows=1&select=DOI", url.QueryEscape(paper.Title)))

	var resp worksResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			return "", nil
		}

		return "", err
	}

	if len(resp.Message.Items) == 0 || resp.Message.Items[0].DOI == "" {
		return "", nil
	}

	return models.NormalizeDOI(resp.Message.Items[0].DOI), nil
}

// fetchForwardCitations lists works that cite the source paper.
func (w *Worker) fetchForwardCitations(ctx context.Context, paper *models.SourcePaper, doi string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := w.listURL(fmt.Sprintf("filter=cites:%s&rows=%d", url.QueryEscape(doi), limit))

	var resp worksResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		return nil, err
	}

	return w.mapItems(paper, doi, resp.Message.Items, models.RelationshipCites, limit), nil
}

// fetchBackwardReferences reads the source work's own reference list, which
// Crossref embeds in the work record.
func (w *Worker) fetchBackwardReferences(ctx context.Context, paper *models.SourcePaper, doi string, limit int) ([]*models.DiscoveredPaper, error) {
	reqURL := fmt.Sprintf("%s/works/%s%s", w.baseURL, url.PathEscape(doi), w.mailtoSuffix("?"))

	var resp workResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		return nil, err
	}

	papers := make([]*models.DiscoveredPaper, 0, limit)

	for i := range resp.Message.Reference {
		if len(papers) >= limit {
			break
		}

		if p := w.mapReference(paper, doi, &resp.Message.Reference[i]); p != nil {
			papers = append(papers, p)
		}
	}

	return papers, nil
}

// fetchSameAuthor lists recent works by the source paper's first author.
func (w *Worker) fetchSameAuthor(ctx context.Context, paper *models.SourcePaper, doi string, limit int) ([]*models.DiscoveredPaper, error) {
	since := w.now().AddDate(-authorLookbackYears, 0, 0).Format("2006-01-02")
	reqURL := w.listURL(fmt.Sprintf("query.author=%s&filter=from-pub-date:%s&sort=published&order=desc&rows=%d",
		url.QueryEscape(paper.Authors[0]), since, limit))

	var resp worksResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		return nil, err
	}

	return w.mapItems(paper, doi, resp.Message.Items, models.RelationshipAuthorNetwork, limit), nil
}

// fetchSameVenue lists recent works from the source paper's journal.
func (w *Worker) fetchSameVenue(ctx context.Context, paper *models.SourcePaper, doi string, limit int) ([]*models.DiscoveredPaper, error) {
	since := w.now().AddDate(-venueLookbackYears, 0, 0).Format("2006-01-02")
	reqURL := w.listURL(fmt.Sprintf("query.container-title=%s&filter=from-pub-date:%s&sort=published&order=desc&rows=%d",
		url.QueryEscape(paper.Journal), since, limit))

	var resp worksResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		return nil, err
	}

	return w.mapItems(paper, doi, resp.Message.Items, models.RelationshipVenue, limit), nil
}

// fetchSameSubject lists highly cited works matching the primary field.
func (w *Worker) fetchSameSubject(ctx context.Context, paper *models.SourcePaper, doi string, limit int) ([]*models.DiscoveredPaper, error) {
	query := paper.PrimaryField
	if len(paper.Keywords) > 0 {
		query += " " + paper.Keywords[0]
	}

	reqURL := w.listURL(fmt.Sprintf("query=%s&sort=is-referenced-by-count&order=desc&rows=%d",
		url.QueryEscape(query), limit))

	var resp worksResponse
	if err := w.client.GetJSON(ctx, reqURL, w.header(), &resp); err != nil {
		return nil, err
	}

	return w.mapItems(paper, doi, resp.Message.Items, models.RelationshipTopic, limit), nil
}

// mapItems converts API work items into candidates, skipping the source
// paper itself and untitled records.
func (w *Worker) mapItems(paper *models.SourcePaper, sourceDOI string, items []workItem, rel models.RelationshipType, limit int) []*models.DiscoveredPaper {
	papers := make([]*models.DiscoveredPaper, 0, len(items))

	for i := range items {
		if len(papers) >= limit {
			break
		}

		item := &items[i]

		itemDOI := models.NormalizeDOI(item.DOI)
		if itemDOI == "" || itemDOI == sourceDOI {
			continue
		}

		title := item.title()
		if title == "" {
			continue
		}

		externalIDs := map[string]string{models.ExternalIDDOI: itemDOI}
		if item.URL != "" {
			externalIDs[models.ExternalIDURL] = item.URL
		}

		candidate := &models.DiscoveredPaper{
			ExternalIDs:      externalIDs,
			Title:            title,
			Abstract:         abstractText(item.Abstract),
			Authors:          item.authorNames(),
			Venue:            item.venue(),
			PublishedDate:    item.publishedTime(),
			CitationCount:    item.IsReferencedByCount,
			ResearchTopics:   item.Subject,
			SourceOfRecord:   models.DiscoverySourceCrossref,
			DiscoverySources: []models.DiscoverySource{models.DiscoverySourceCrossref},
			RelationshipType: rel,
		}
		candidate.RelevanceScore = w.seedScore(candidate, paper.Journal)

		papers = append(papers, candidate)
	}

	return papers
}

// mapReference builds a candidate from an embedded reference entry, or nil
// when the entry lacks a usable title or identifier.
func (w *Worker) mapReference(paper *models.SourcePaper, sourceDOI string, ref *workReference) *models.DiscoveredPaper {
	refDOI := models.NormalizeDOI(ref.DOI)
	if refDOI == sourceDOI {
		return nil
	}

	if ref.ArticleTitle == "" || refDOI == "" {
		return nil
	}

	candidate := &models.DiscoveredPaper{
		ExternalIDs:      map[string]string{models.ExternalIDDOI: refDOI},
		Title:            ref.ArticleTitle,
		Venue:            ref.JournalTitle,
		PublishedDate:    ref.publishedTime(),
		SourceOfRecord:   models.DiscoverySourceCrossref,
		DiscoverySources: []models.DiscoverySource{models.DiscoverySourceCrossref},
		RelationshipType: models.RelationshipCitedBy,
	}

	if ref.Author != "" {
		candidate.Authors = []string{ref.Author}
	}

	candidate.RelevanceScore = w.seedScore(candidate, paper.Journal)

	return candidate
}

func (w *Worker) listURL(query string) string {
	return fmt.Sprintf("%s/works?%s%s", w.baseURL, query, w.mailtoSuffix("&"))
}

func (w *Worker) mailtoSuffix(sep string) string {
	if w.mailto == "" {
		return ""
	}

	return fmt.Sprintf("%smailto=%s", sep, url.QueryEscape(w.mailto))
}

func (w *Worker) header() http.Header {
	header := http.Header{}
	header.Set("User-Agent", userAgent(w.mailto))

	return header
}

func userAgent(mailto string) string {
	if mailto == "" {
		return "paperscout/1.0"
	}

	return fmt.Sprintf("paperscout/1.0 (mailto:%s)", mailto)
}
