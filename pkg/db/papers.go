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

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const getSourcePaperSQL = `
SELECT id,
       title,
       abstract,
       authors,
       doi,
       journal,
       published_date,
       primary_field,
       keywords,
       main_concepts,
       methodology_details,
       key_findings
FROM source_papers
WHERE id = $1`

// upsertDiscoveredPaperSQLTemplate is instantiated once per external
// identifier column. The conflict target must name the partial unique index's
// column and predicate, so the statement cannot be a single constant.
//
// Merge rules on conflict: identifiers and bibliographic fields enrich but
// never blank out existing values, citation counts and confidence keep their
// maximum, and score/relationship reflect the most recent run. The
// per-relationship score lives on paper_relationships; the copy here is only
// a convenience for catalog queries.
const upsertDiscoveredPaperSQLTemplate = `
INSERT INTO discovered_papers (
	doi,
	s2_id,
	arxiv_id,
	url,
	title,
	abstract,
	authors,
	venue,
	published_date,
	citation_count,
	influential_citation_count,
	research_topics,
	relevance_score,
	source_of_record,
	discovery_sources,
	relationship_type,
	confidence,
	additional_metadata,
	first_seen,
	last_seen
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
)
ON CONFLICT (%[1]s) WHERE %[1]s IS NOT NULL DO UPDATE SET
	doi = COALESCE(discovered_papers.doi, EXCLUDED.doi),
	s2_id = COALESCE(discovered_papers.s2_id, EXCLUDED.s2_id),
	arxiv_id = COALESCE(discovered_papers.arxiv_id, EXCLUDED.arxiv_id),
	url = COALESCE(discovered_papers.url, EXCLUDED.url),
	title = EXCLUDED.title,
	abstract = COALESCE(NULLIF(EXCLUDED.abstract, ''), discovered_papers.abstract),
	authors = CASE WHEN cardinality(EXCLUDED.authors) > 0 THEN EXCLUDED.authors ELSE discovered_papers.authors END,
	venue = COALESCE(NULLIF(EXCLUDED.venue, ''), discovered_papers.venue),
	published_date = COALESCE(EXCLUDED.published_date, discovered_papers.published_date),
	citation_count = GREATEST(discovered_papers.citation_count, EXCLUDED.citation_count),
	influential_citation_count = GREATEST(discovered_papers.influential_citation_count, EXCLUDED.influential_citation_count),
	research_topics = CASE WHEN cardinality(EXCLUDED.research_topics) > 0 THEN EXCLUDED.research_topics ELSE discovered_papers.research_topics END,
	relevance_score = EXCLUDED.relevance_score,
	source_of_record = EXCLUDED.source_of_record,
	discovery_sources = EXCLUDED.discovery_sources,
	relationship_type = EXCLUDED.relationship_type,
	confidence = GREATEST(discovered_papers.confidence, EXCLUDED.confidence),
	additional_metadata = COALESCE(discovered_papers.additional_metadata, '{}'::jsonb) || COALESCE(EXCLUDED.additional_metadata, '{}'::jsonb),
	last_seen = GREATEST(discovered_papers.last_seen, EXCLUDED.last_seen)
RETURNING id`

const upsertRelationshipSQL = `
INSERT INTO paper_relationships (
	source_paper_id,
	discovered_paper_id,
	relationship_type,
	discovery_source,
	relevance_score,
	created_at,
	last_confirmed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)
ON CONFLICT (source_paper_id, discovered_paper_id, relationship_type) DO UPDATE SET
	discovery_source = EXCLUDED.discovery_source,
	relevance_score = EXCLUDED.relevance_score,
	last_confirmed_at = EXCLUDED.last_confirmed_at`

const insertDiscoveryResultSQL = `
INSERT INTO discovery_results (
	task_id,
	source_paper_id,
	mode,
	config_fingerprint,
	raw_count,
	processed_count,
	partial_result,
	cache_hit,
	processing_time_ms,
	synthesis_metadata,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`

// externalIDColumns maps external identifier kinds to their catalog columns.
var externalIDColumns = map[string]string{
	models.ExternalIDDOI:             "doi",
	models.ExternalIDSemanticScholar: "s2_id",
	models.ExternalIDArxiv:           "arxiv_id",
	models.ExternalIDURL:             "url",
}

// upsertPaperSQLByColumn holds the instantiated upsert statement per conflict
// column.
var upsertPaperSQLByColumn = map[string]string{
	"doi":      fmt.Sprintf(upsertDiscoveredPaperSQLTemplate, "doi"),
	"s2_id":    fmt.Sprintf(upsertDiscoveredPaperSQLTemplate, "s2_id"),
	"arxiv_id": fmt.Sprintf(upsertDiscoveredPaperSQLTemplate, "arxiv_id"),
	"url":      fmt.Sprintf(upsertDiscoveredPaperSQLTemplate, "url"),
}

var (
	errDiscoveredPaperNil       = errors.New("discovered paper is nil")
	errPaperTitleMissing        = errors.New("title is required")
	errPaperExternalIDMissing   = errors.New("paper carries no external identifier")
	errRelationshipNil          = errors.New("relationship is nil")
	errRelationshipEndsMissing  = errors.New("source_paper_id and discovered_paper_id are required")
	errRelationshipTypeMissing  = errors.New("relationship_type is required")
	errResultRecordNil          = errors.New("discovery result record is nil")
	errResultTaskIDMissing      = errors.New("task_id is required")
	errResultSourcePaperMissing = errors.New("source_paper_id is required")
	errResultFingerprintMissing = errors.New("config_fingerprint is required")
)

// PaperRepository reads source papers and writes discovery output. It is safe
// for concurrent use.
type PaperRepository struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPaperRepository builds a repository over pool.
func NewPaperRepository(pool *pgxpool.Pool, log logger.Logger) *PaperRepository {
	return &PaperRepository{
		pool:   pool,
		logger: log.WithComponent("db"),
	}
}

// GetSourcePaper loads the paper discovery starts from.
func (r *PaperRepository) GetSourcePaper(ctx context.Context, paperID string) (*models.SourcePaper, error) {
	row := r.pool.QueryRow(ctx, getSourcePaperSQL, paperID)

	var paper models.SourcePaper

	err := row.Scan(
		&paper.ID,
		&paper.Title,
		&paper.Abstract,
		&paper.Authors,
		&paper.DOI,
		&paper.Journal,
		&paper.PublishedDate,
		&paper.PrimaryField,
		&paper.Keywords,
		&paper.MainConcepts,
		&paper.MethodologyDetails,
		&paper.KeyFindings,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSourcePaperNotFound, paperID)
		}

		return nil, fmt.Errorf("%w source paper: %w", ErrFailedToQuery, err)
	}

	return &paper, nil
}

// UpsertDiscoveredPapers writes papers into the catalog keyed by their
// strongest external identifier and rewrites each paper's ID in place to the
// canonical stored id. Papers without any external identifier are skipped and
// keep an empty ID.
func (r *PaperRepository) UpsertDiscoveredPapers(ctx context.Context, papers []*models.DiscoveredPaper) (err error) {
	if len(papers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	queued := make([]*models.DiscoveredPaper, 0, len(papers))

	for _, paper := range papers {
		args, column, buildErr := buildDiscoveredPaperArgs(paper)
		if buildErr != nil {
			r.logger.Warn().
				Err(buildErr).
				Str("title", safePaperTitle(paper)).
				Msg("Skipping discovered paper")

			continue
		}

		batch.Queue(upsertPaperSQLByColumn[column], args...)
		queued = append(queued, paper)
	}

	if len(queued) == 0 {
		return nil
	}

	br := r.pool.SendBatch(ctx, batch)

	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("discovered papers batch close: %w", closeErr)
		}
	}()

	for i, paper := range queued {
		var id string

		if err = br.QueryRow().Scan(&id); err != nil {
			return fmt.Errorf("%w discovered paper (command %d): %w", ErrFailedToInsert, i, err)
		}

		paper.ID = id
	}

	return nil
}

// UpsertRelationships writes discovery edges. Re-discovered edges update the
// score, source, and confirmation time on the existing row.
func (r *PaperRepository) UpsertRelationships(ctx context.Context, relationships []*models.PaperRelationship) error {
	if len(relationships) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, rel := range relationships {
		args, err := buildRelationshipArgs(rel)
		if err != nil {
			r.logger.Warn().
				Err(err).
				Str("source_paper_id", safeRelationshipSource(rel)).
				Msg("Skipping paper relationship")

			continue
		}

		batch.Queue(upsertRelationshipSQL, args...)
	}

	return sendBatchExecAll(ctx, r.pool, batch, "paper relationships")
}

// InsertDiscoveryResult records the audit row for one completed run.
func (r *PaperRepository) InsertDiscoveryResult(ctx context.Context, record *models.DiscoveryResultRecord) error {
	args, err := buildDiscoveryResultArgs(record)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(insertDiscoveryResultSQL, args...)

	return sendBatchExecAll(ctx, r.pool, batch, "discovery result")
}

func buildDiscoveredPaperArgs(paper *models.DiscoveredPaper) (args []interface{}, conflictColumn string, err error) {
	if paper == nil {
		return nil, "", errDiscoveredPaperNil
	}

	title := strings.TrimSpace(paper.Title)
	if title == "" {
		return nil, "", errPaperTitleMissing
	}

	kind, _, ok := paper.StrongestExternalID()
	if !ok {
		return nil, "", errPaperExternalIDMissing
	}

	doi := strings.TrimSpace(paper.ExternalIDs[models.ExternalIDDOI])
	if doi != "" {
		doi = models.NormalizeDOI(doi)
	}

	authors := paper.Authors
	if authors == nil {
		authors = []string{}
	}

	topics := paper.ResearchTopics
	if topics == nil {
		topics = []string{}
	}

	metadata, err := marshalJSONObject(paper.AdditionalMetadata)
	if err != nil {
		return nil, "", fmt.Errorf("additional_metadata: %w", err)
	}

	now := nowUTC()

	args = []interface{}{
		toNullableString(doi),
		toNullableString(strings.TrimSpace(paper.ExternalIDs[models.ExternalIDSemanticScholar])),
		toNullableString(strings.TrimSpace(paper.ExternalIDs[models.ExternalIDArxiv])),
		toNullableString(strings.TrimSpace(paper.ExternalIDs[models.ExternalIDURL])),
		title,
		paper.Abstract,
		authors,
		paper.Venue,
		toNullableTime(paper.PublishedDate),
		paper.CitationCount,
		paper.InfluentialCitationCount,
		topics,
		paper.RelevanceScore,
		string(paper.SourceOfRecord),
		sourceStrings(paper.DiscoverySources),
		string(paper.RelationshipType),
		paper.Confidence,
		metadata,
		now,
		now,
	}

	return args, externalIDColumns[kind], nil
}

func buildRelationshipArgs(rel *models.PaperRelationship) ([]interface{}, error) {
	if rel == nil {
		return nil, errRelationshipNil
	}

	sourceID := strings.TrimSpace(rel.SourcePaperID)
	discoveredID := strings.TrimSpace(rel.DiscoveredPaperID)

	if sourceID == "" || discoveredID == "" {
		return nil, errRelationshipEndsMissing
	}

	if rel.RelationshipType == "" {
		return nil, errRelationshipTypeMissing
	}

	createdAt := sanitizeTime(rel.CreatedAt)

	return []interface{}{
		sourceID,
		discoveredID,
		string(rel.RelationshipType),
		string(rel.DiscoverySource),
		rel.RelevanceScore,
		createdAt,
		createdAt,
	}, nil
}

func buildDiscoveryResultArgs(record *models.DiscoveryResultRecord) ([]interface{}, error) {
	if record == nil {
		return nil, errResultRecordNil
	}

	taskID := strings.TrimSpace(record.TaskID)
	if taskID == "" {
		return nil, errResultTaskIDMissing
	}

	sourcePaperID := strings.TrimSpace(record.SourcePaperID)
	if sourcePaperID == "" {
		return nil, errResultSourcePaperMissing
	}

	fingerprint := strings.TrimSpace(record.ConfigFingerprint)
	if fingerprint == "" {
		return nil, errResultFingerprintMissing
	}

	return []interface{}{
		taskID,
		sourcePaperID,
		string(record.Mode),
		fingerprint,
		record.RawCount,
		record.ProcessedCount,
		record.PartialResult,
		record.CacheHit,
		record.ProcessingTime.Milliseconds(),
		normalizeRawJSON(record.SynthesisMetadata),
		sanitizeTime(record.CreatedAt),
	}, nil
}

func sourceStrings(sources []models.DiscoverySource) []string {
	out := make([]string, 0, len(sources))

	for _, s := range sources {
		out = append(out, string(s))
	}

	return out
}

// marshalJSONObject encodes m for a NOT NULL jsonb column. An explicit NULL
// bypasses the column default, so empty maps become an empty object.
func marshalJSONObject(m map[string]interface{}) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage(`{}`), nil
	}

	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	return json.RawMessage(data), nil
}

func normalizeRawJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}

	return raw
}

func toNullableString(v string) interface{} {
	if v == "" {
		return nil
	}

	return v
}

func toNullableTime(ts *time.Time) interface{} {
	if ts == nil || ts.IsZero() {
		return nil
	}

	return ts.UTC()
}

func sanitizeTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return nowUTC()
	}

	return ts.UTC()
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func safePaperTitle(paper *models.DiscoveredPaper) string {
	if paper == nil {
		return ""
	}

	return paper.Title
}

func safeRelationshipSource(rel *models.PaperRelationship) string {
	if rel == nil {
		return ""
	}

	return rel.SourcePaperID
}
