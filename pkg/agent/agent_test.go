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

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/llm"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/sources"
	"github.com/scholarsys/paperscout/pkg/tasks"
)

const (
	testPaperID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	testUserID  = "user-42"

	testOperationType = "related_paper_discovery"
)

func testSourcePaper() *models.SourcePaper {
	return &models.SourcePaper{
		ID:    testPaperID,
		Title: "Scaling Laws for Neural Language Models",
		DOI:   "10.1/x",
	}
}

// stubCoordinator records the configuration it was handed and serves a
// canned result, or defers to run when set.
type stubCoordinator struct {
	run func(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.UnifiedDiscoveryResult

	mu     sync.Mutex
	calls  int
	config models.DiscoveryConfiguration
}

func (c *stubCoordinator) Run(ctx context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.UnifiedDiscoveryResult {
	c.mu.Lock()
	c.calls++
	c.config = config.Clone()
	c.mu.Unlock()

	if c.run != nil {
		return c.run(ctx, paper, config)
	}

	return unifiedFixture(paper.ID)
}

func (c *stubCoordinator) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}

func (c *stubCoordinator) lastConfig() models.DiscoveryConfiguration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.config
}

// unifiedFixture is a small two-paper result in the shape the synthesis
// engine produces.
func unifiedFixture(paperID string) *models.UnifiedDiscoveryResult {
	return &models.UnifiedDiscoveryResult{
		SourcePaperID: paperID,
		Papers: []*models.DiscoveredPaper{
			{
				ID:               "dp-1",
				ExternalIDs:      map[string]string{models.ExternalIDDOI: "10.2/a"},
				Title:            "Training Compute-Optimal Large Language Models",
				RelevanceScore:   0.82,
				SourceOfRecord:   models.DiscoverySourceCrossref,
				DiscoverySources: []models.DiscoverySource{models.DiscoverySourceCrossref},
				RelationshipType: models.RelationshipCites,
			},
			{
				ID:               "dp-2",
				ExternalIDs:      map[string]string{models.ExternalIDSemanticScholar: "s2-77"},
				Title:            "Emergent Abilities of Large Language Models",
				RelevanceScore:   0.64,
				SourceOfRecord:   models.DiscoverySourceSemanticScholar,
				DiscoverySources: []models.DiscoverySource{models.DiscoverySourceSemanticScholar},
				RelationshipType: models.RelationshipSemanticSimilar,
			},
		},
		Metadata: models.SynthesisMetadata{
			RawCount:       4,
			ProcessedCount: 2,
			SuccessfulSources: []models.DiscoverySource{
				models.DiscoverySourceCrossref, models.DiscoverySourceSemanticScholar,
			},
			OverallConfidence: 0.7,
		},
	}
}

type agentFixture struct {
	papers *MockPaperStore
	repo   *MockDiscoveryRepository
	costs  *tasks.MockCostService
	store  *tasks.MemoryStore
	coord  *stubCoordinator
	agent  *DiscoveryAgent
}

func newAgentFixture(t *testing.T) *agentFixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	log := logger.NewTestLogger()

	f := &agentFixture{
		papers: NewMockPaperStore(ctrl),
		repo:   NewMockDiscoveryRepository(ctrl),
		costs:  tasks.NewMockCostService(ctrl),
		store:  tasks.NewMemoryStore(),
		coord:  &stubCoordinator{},
	}

	runner := tasks.NewRunner(f.store, f.costs, nil, log, tasks.Config{
		OperationType: testOperationType,
		CostUnits:     5,
		TaskTimeout:   5 * time.Second,
		MaxAttempts:   2,
	}, tasks.WithRetryInterval(time.Millisecond))

	f.agent = New(f.papers, f.repo, f.coord, runner, nil, nil, log)

	return f
}

func (f *agentFixture) expectPaperLoad(times int) {
	f.papers.EXPECT().GetSourcePaper(gomock.Any(), testPaperID).
		Return(testSourcePaper(), nil).Times(times)
}

func (f *agentFixture) expectHappyCosts(times int) {
	f.costs.EXPECT().Charge(gomock.Any(), testOperationType, testUserID).Return(nil).Times(times)
	f.costs.EXPECT().Record(gomock.Any(), testOperationType, testUserID, 5, gomock.Any()).Return(nil).Times(times)
}

func (f *agentFixture) expectAnyPersistence() {
	f.repo.EXPECT().UpsertDiscoveredPapers(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.repo.EXPECT().UpsertRelationships(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	f.repo.EXPECT().InsertDiscoveryResult(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func TestDiscover_RejectsNonUUIDPaperID(t *testing.T) {
	f := newAgentFixture(t)

	resp, err := f.agent.Discover(context.Background(), "not-a-uuid", testUserID, nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrorKindInvalidInput, models.KindOf(err))
	assert.Equal(t, 0, f.coord.callCount())
}

func TestDiscover_UnknownPaperIsInvalidInput(t *testing.T) {
	f := newAgentFixture(t)

	f.papers.EXPECT().GetSourcePaper(gomock.Any(), testPaperID).
		Return(nil, errors.New("no such paper"))

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrorKindInvalidInput, models.KindOf(err))
	assert.Equal(t, 0, f.coord.callCount())
}

func TestDiscover_NilConfigUsesDefaultPreset(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)
	f.expectAnyPersistence()

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)

	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)

	cfg := f.coord.lastConfig()
	assert.Equal(t, models.ModeComprehensive, cfg.Mode)
	assert.Len(t, cfg.SourcesEnabled, 3)
	assert.Equal(t, 50, cfg.MaxPerSource)

	task, err := f.agent.TaskStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
	assert.Equal(t, AgentID, task.AgentID)

	var input taskInput
	require.NoError(t, json.Unmarshal(task.Input, &input))
	assert.Equal(t, testPaperID, input.PaperID)
	assert.Equal(t, models.ModeComprehensive, input.Config.Mode)
}

func TestDiscover_ModeOnlyConfigResolvesPreset(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)
	f.expectAnyPersistence()

	_, err := f.agent.Discover(context.Background(), testPaperID, testUserID,
		&models.DiscoveryConfiguration{Mode: models.ModeQuick})

	require.NoError(t, err)

	cfg := f.coord.lastConfig()
	assert.Equal(t, models.ModeQuick, cfg.Mode)
	assert.Len(t, cfg.SourcesEnabled, 2)
	assert.Equal(t, 10, cfg.MaxPerSource)
	assert.Equal(t, 15, cfg.MaxTotal)
	assert.Equal(t, models.DiversityLow, cfg.DiversityLevel)
}

func TestDiscover_UnknownModeFails(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID,
		&models.DiscoveryConfiguration{Mode: "turbo"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrorKindInvalidInput, models.KindOf(err))
	assert.Equal(t, 0, f.coord.callCount())
}

func TestDiscover_ExplicitConfigIsClamped(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)
	f.expectAnyPersistence()

	_, err := f.agent.Discover(context.Background(), testPaperID, testUserID,
		&models.DiscoveryConfiguration{
			SourcesEnabled: []models.DiscoverySource{models.DiscoverySourceCrossref},
			MaxPerSource:   500,
			MaxTotal:       10000,
			MinRelevance:   0.5,
		})

	require.NoError(t, err)

	cfg := f.coord.lastConfig()
	assert.Equal(t, 200, cfg.MaxPerSource, "per-source cap clamps to the ceiling")
	assert.Equal(t, 200, cfg.MaxTotal, "total clamps to max_per_source times source count")
	assert.InDelta(t, 0.5, cfg.MinRelevance, 0.0001)
	assert.Equal(t, models.Duration(60*time.Second), cfg.Timeout, "timeout defaults when unset")
}

func TestDiscover_InvalidExplicitConfigFails(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID,
		&models.DiscoveryConfiguration{
			SourcesEnabled: []models.DiscoverySource{models.DiscoverySourceCrossref},
			MinRelevance:   1.5,
		})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, models.ErrorKindInvalidInput, models.KindOf(err))
	assert.Equal(t, 0, f.coord.callCount())
}

func TestDiscover_PersistsRunOutput(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)

	var (
		gotPapers []*models.DiscoveredPaper
		gotEdges  []*models.PaperRelationship
		gotRecord *models.DiscoveryResultRecord
	)

	f.repo.EXPECT().UpsertDiscoveredPapers(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, papers []*models.DiscoveredPaper) error {
			gotPapers = papers
			return nil
		})
	f.repo.EXPECT().UpsertRelationships(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, edges []*models.PaperRelationship) error {
			gotEdges = edges
			return nil
		})
	f.repo.EXPECT().InsertDiscoveryResult(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, record *models.DiscoveryResultRecord) error {
			gotRecord = record
			return nil
		})

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)
	require.NoError(t, err)

	require.Len(t, gotPapers, 2)

	require.Len(t, gotEdges, 2)
	assert.Equal(t, testPaperID, gotEdges[0].SourcePaperID)
	assert.Equal(t, "dp-1", gotEdges[0].DiscoveredPaperID)
	assert.Equal(t, models.RelationshipCites, gotEdges[0].RelationshipType)
	assert.Equal(t, models.DiscoverySourceCrossref, gotEdges[0].DiscoverySource)
	assert.InDelta(t, 0.82, gotEdges[0].RelevanceScore, 0.0001)
	assert.Equal(t, "dp-2", gotEdges[1].DiscoveredPaperID)
	assert.Equal(t, models.RelationshipSemanticSimilar, gotEdges[1].RelationshipType)

	require.NotNil(t, gotRecord)
	assert.Equal(t, resp.TaskID, gotRecord.TaskID)
	assert.Equal(t, testPaperID, gotRecord.SourcePaperID)
	assert.NotEmpty(t, gotRecord.ConfigFingerprint)
	assert.Equal(t, 4, gotRecord.RawCount)
	assert.Equal(t, 2, gotRecord.ProcessedCount)
	assert.False(t, gotRecord.CreatedAt.IsZero())

	var metadata models.SynthesisMetadata
	require.NoError(t, json.Unmarshal(gotRecord.SynthesisMetadata, &metadata))
	assert.InDelta(t, 0.7, metadata.OverallConfidence, 0.0001)

	expectedConfig := f.coord.lastConfig()
	assert.Equal(t, cache.Key(testPaperID, &expectedConfig), gotRecord.ConfigFingerprint)
}

func TestDiscover_PersistenceFailureKeepsTaskCompleted(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)

	f.repo.EXPECT().UpsertDiscoveredPapers(gomock.Any(), gomock.Any()).
		Return(models.NewDiscoveryError(models.ErrorKindPersistenceFault, "relation does not exist", nil))

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)

	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Nil(t, resp.Error)

	require.NotEmpty(t, resp.Result.Metadata.Warnings)
	assert.Contains(t, resp.Result.Metadata.Warnings[0], "persistence failed")

	task, err := f.agent.TaskStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)
}

func TestDiscover_EmptyResultSkipsPaperWrites(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)

	f.coord.run = func(_ context.Context, paper *models.SourcePaper, config *models.DiscoveryConfiguration) *models.UnifiedDiscoveryResult {
		return &models.UnifiedDiscoveryResult{
			SourcePaperID: paper.ID,
			Papers:        []*models.DiscoveredPaper{},
			Metadata: models.SynthesisMetadata{
				FailedSources: config.SourcesEnabled,
				PartialResult: true,
				Errors:        []string{"all discovery sources failed"},
			},
			Configuration: config.Clone(),
		}
	}

	f.repo.EXPECT().InsertDiscoveryResult(gomock.Any(), gomock.Any()).Return(nil)

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)

	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	assert.Empty(t, resp.Result.Papers)
	assert.True(t, resp.Result.Metadata.PartialResult)
}

func TestDiscover_ChargeRefusalFailsTask(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)

	f.costs.EXPECT().Charge(gomock.Any(), testOperationType, testUserID).
		Return(models.NewDiscoveryError(models.ErrorKindInsufficientCredits, "insufficient credits", nil))

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)

	require.NoError(t, err)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, models.ErrorKindInsufficientCredits, resp.Error.Kind)
	assert.Equal(t, 0, f.coord.callCount())

	task, err := f.agent.TaskStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}

func TestTaskStatusAndCancel(t *testing.T) {
	f := newAgentFixture(t)
	f.expectPaperLoad(1)
	f.expectHappyCosts(1)
	f.expectAnyPersistence()

	resp, err := f.agent.Discover(context.Background(), testPaperID, testUserID, nil)
	require.NoError(t, err)

	task, err := f.agent.TaskStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	// Cancelling a finished task is a no-op.
	require.NoError(t, f.agent.Cancel(context.Background(), resp.TaskID))

	task, err = f.agent.TaskStatus(context.Background(), resp.TaskID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, task.Status)

	_, err = f.agent.TaskStatus(context.Background(), "11111111-2222-3333-4444-555555555555")
	assert.ErrorIs(t, err, tasks.ErrTaskNotFound)
}

func TestStatsWithoutBackends(t *testing.T) {
	f := newAgentFixture(t)

	assert.Equal(t, cache.Stats{}, f.agent.CacheStats())
	assert.Nil(t, f.agent.RateLimitStats())
}

func TestStatsWithBackends(t *testing.T) {
	log := logger.NewTestLogger()

	limits, err := ratelimit.NewManager(nil, log)
	require.NoError(t, err)

	resultCache := cache.New(cache.Config{}, nil, log)

	runner := tasks.NewRunner(tasks.NewMemoryStore(), nil, nil, log, tasks.Config{})
	a := New(nil, nil, &stubCoordinator{}, runner, resultCache, limits, log)

	resultCache.Put(context.Background(), "k", unifiedFixture(testPaperID))

	stats := a.CacheStats()
	assert.Equal(t, 1, stats.Size)

	snapshots := a.RateLimitStats()
	require.Len(t, snapshots, 3)
	assert.Equal(t, "closed", snapshots[models.DiscoverySourceCrossref].CircuitState)
}

func TestRelationshipEdges(t *testing.T) {
	papers := unifiedFixture(testPaperID).Papers

	edges := relationshipEdges(testPaperID, papers)

	require.Len(t, edges, 2)

	for i, edge := range edges {
		assert.Equal(t, testPaperID, edge.SourcePaperID)
		assert.Equal(t, papers[i].ID, edge.DiscoveredPaperID)
		assert.Equal(t, papers[i].RelationshipType, edge.RelationshipType)
		assert.Equal(t, papers[i].SourceOfRecord, edge.DiscoverySource)
		assert.InDelta(t, papers[i].RelevanceScore, edge.RelevanceScore, 0.0001)
	}
}

func TestBuildWorkers(t *testing.T) {
	log := logger.NewTestLogger()

	limiter, err := ratelimit.NewManager(nil, log)
	require.NoError(t, err)

	workers, err := BuildWorkers(SourcesConfig{}, limiter, sources.StaticCredentials{}, nil, log)
	require.NoError(t, err)

	require.Len(t, workers, 2, "perplexity is omitted without an api key")
	assert.Contains(t, workers, models.DiscoverySourceCrossref)
	assert.Contains(t, workers, models.DiscoverySourceSemanticScholar)

	withKey := SourcesConfig{Perplexity: llm.Config{APIKey: "pplx-test-key"}}

	workers, err = BuildWorkers(withKey, limiter, sources.StaticCredentials{}, nil, log)
	require.NoError(t, err)

	require.Len(t, workers, 3)
	require.Contains(t, workers, models.DiscoverySourcePerplexity)
	assert.Equal(t, models.DiscoverySourcePerplexity, workers[models.DiscoverySourcePerplexity].Source())
}
