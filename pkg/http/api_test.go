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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/tasks"
)

type agentStub struct {
	discoverFn     func(ctx context.Context, paperID, userID string, cfg *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error)
	taskStatusFn   func(ctx context.Context, taskID string) (*models.AgentTask, error)
	cancelFn       func(ctx context.Context, taskID string) error
	cacheStats     cache.Stats
	rateLimitStats map[models.DiscoverySource]ratelimit.Snapshot
}

func (s *agentStub) Discover(ctx context.Context, paperID, userID string, cfg *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
	if s.discoverFn == nil {
		return &models.DiscoveryResponse{TaskID: "task-1"}, nil
	}

	return s.discoverFn(ctx, paperID, userID, cfg)
}

func (s *agentStub) TaskStatus(ctx context.Context, taskID string) (*models.AgentTask, error) {
	if s.taskStatusFn == nil {
		return nil, tasks.ErrTaskNotFound
	}

	return s.taskStatusFn(ctx, taskID)
}

func (s *agentStub) Cancel(ctx context.Context, taskID string) error {
	if s.cancelFn == nil {
		return nil
	}

	return s.cancelFn(ctx, taskID)
}

func (s *agentStub) CacheStats() cache.Stats {
	return s.cacheStats
}

func (s *agentStub) RateLimitStats() map[models.DiscoverySource]ratelimit.Snapshot {
	return s.rateLimitStats
}

func newTestAPIServer(stub *agentStub, options ...func(server *APIServer)) *APIServer {
	return NewAPIServer(stub, logger.NewTestLogger(), options...)
}

func serve(s *APIServer, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)

	return rr
}

func TestHandleDiscoverReturnsResult(t *testing.T) {
	var gotPaperID, gotUserID string

	stub := &agentStub{
		discoverFn: func(_ context.Context, paperID, userID string, _ *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
			gotPaperID = paperID
			gotUserID = userID

			return &models.DiscoveryResponse{
				TaskID: "task-42",
				Result: &models.UnifiedDiscoveryResult{
					SourcePaperID: paperID,
					Papers:        []*models.DiscoveredPaper{{Title: "Attention Is All You Need"}},
				},
			}, nil
		},
	}
	s := newTestAPIServer(stub)

	body := `{"paper_id": "d6f1e0a8-9a51-4c68-9b22-0c4bafee2f10", "user_id": "user-7"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", strings.NewReader(body))

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "d6f1e0a8-9a51-4c68-9b22-0c4bafee2f10", gotPaperID)
	assert.Equal(t, "user-7", gotUserID)

	var resp models.DiscoveryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "task-42", resp.TaskID)
	require.NotNil(t, resp.Result)
	require.Len(t, resp.Result.Papers, 1)
	assert.Equal(t, "Attention Is All You Need", resp.Result.Papers[0].Title)
	assert.Nil(t, resp.Error)
}

func TestHandleDiscoverForwardsConfig(t *testing.T) {
	var gotConfig *models.DiscoveryConfiguration

	stub := &agentStub{
		discoverFn: func(_ context.Context, _, _ string, cfg *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
			gotConfig = cfg

			return &models.DiscoveryResponse{TaskID: "task-1"}, nil
		},
	}
	s := newTestAPIServer(stub)

	body := `{
		"paper_id": "d6f1e0a8-9a51-4c68-9b22-0c4bafee2f10",
		"user_id": "user-7",
		"config": {"mode": "quick", "max_total": 5, "sources_enabled": ["crossref"]}
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", strings.NewReader(body))

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, gotConfig)
	assert.Equal(t, models.ModeQuick, gotConfig.Mode)
	assert.Equal(t, 5, gotConfig.MaxTotal)
	assert.Equal(t, []models.DiscoverySource{models.DiscoverySourceCrossref}, gotConfig.SourcesEnabled)
}

func TestHandleDiscoverRejectsMalformedBody(t *testing.T) {
	s := newTestAPIServer(&agentStub{
		discoverFn: func(_ context.Context, _, _ string, _ *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
			t.Fatal("agent should not be called for a malformed body")
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", strings.NewReader("{not json"))

	rr := serve(s, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusBadRequest, errResp.Status)
	assert.Contains(t, errResp.Message, "Invalid request body")
}

func TestHandleDiscoverStatusByErrorKind(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "invalid input",
			err:        models.NewDiscoveryError(models.ErrorKindInvalidInput, "paper id is not a uuid", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "insufficient credits",
			err:        models.NewDiscoveryError(models.ErrorKindInsufficientCredits, "balance exhausted", nil),
			wantStatus: http.StatusPaymentRequired,
		},
		{
			name:       "rate limited",
			err:        models.NewDiscoveryError(models.ErrorKindRateLimited, "crossref budget exhausted", nil),
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "circuit open",
			err:        models.NewDiscoveryError(models.ErrorKindCircuitOpen, "semantic_scholar circuit open", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "transport",
			err:        models.NewDiscoveryError(models.ErrorKindTransport, "connection reset", nil),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "timeout",
			err:        models.NewDiscoveryError(models.ErrorKindTimeout, "deadline exceeded", nil),
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "wrapped discovery error",
			err:        fmt.Errorf("creating discovery task: %w", models.NewDiscoveryError(models.ErrorKindInvalidInput, "bad", nil)),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unclassified",
			err:        errors.New("database down"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &agentStub{
				discoverFn: func(_ context.Context, _, _ string, _ *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error) {
					return nil, tt.err
				},
			}
			s := newTestAPIServer(stub)

			body := `{"paper_id": "not-a-uuid", "user_id": "user-7"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", strings.NewReader(body))

			rr := serve(s, req)

			require.Equal(t, tt.wantStatus, rr.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
			assert.Equal(t, tt.wantStatus, errResp.Status)
			assert.NotEmpty(t, errResp.Message)
		})
	}
}

func TestHandleTaskStatusReturnsTask(t *testing.T) {
	stub := &agentStub{
		taskStatusFn: func(_ context.Context, taskID string) (*models.AgentTask, error) {
			return &models.AgentTask{
				TaskID:  taskID,
				AgentID: "related-paper-discovery",
				Status:  models.TaskStatusProcessing,
			}, nil
		},
	}
	s := newTestAPIServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-9", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var task models.AgentTask
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &task))
	assert.Equal(t, "task-9", task.TaskID)
	assert.Equal(t, models.TaskStatusProcessing, task.Status)
}

func TestHandleTaskStatusNotFound(t *testing.T) {
	s := newTestAPIServer(&agentStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/missing", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusNotFound, rr.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &errResp))
	assert.Equal(t, "Task not found", errResp.Message)
}

func TestHandleCancelTask(t *testing.T) {
	var cancelled string

	stub := &agentStub{
		cancelFn: func(_ context.Context, taskID string) error {
			cancelled = taskID
			return nil
		},
	}
	s := newTestAPIServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/task-3/cancel", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "task-3", cancelled)
}

func TestHandleCancelTaskNotFound(t *testing.T) {
	stub := &agentStub{
		cancelFn: func(_ context.Context, taskID string) error {
			return fmt.Errorf("%w: %s", tasks.ErrTaskNotFound, taskID)
		},
	}
	s := newTestAPIServer(stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks/missing/cancel", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleCacheStats(t *testing.T) {
	stub := &agentStub{
		cacheStats: cache.Stats{Hits: 12, Misses: 4, Evictions: 1, Size: 7},
	}
	s := newTestAPIServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/cache", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, int64(12), stats.Hits)
	assert.Equal(t, 7, stats.Size)
}

func TestHandleRateLimitStats(t *testing.T) {
	stub := &agentStub{
		rateLimitStats: map[models.DiscoverySource]ratelimit.Snapshot{
			models.DiscoverySourceCrossref: {
				Source:       models.DiscoverySourceCrossref,
				Capacity:     45,
				Tokens:       12.5,
				CircuitState: "closed",
			},
		},
	}
	s := newTestAPIServer(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/ratelimits", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var stats map[string]ratelimit.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	require.Contains(t, stats, "crossref")
	assert.Equal(t, 45, stats["crossref"].Capacity)
	assert.Equal(t, "closed", stats["crossref"].CircuitState)
}

func TestHandleRateLimitStatsEmptyWhenUnconfigured(t *testing.T) {
	s := newTestAPIServer(&agentStub{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/ratelimits", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, "{}", rr.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestAPIServer(&agentStub{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var health map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, health["version"])
}

func TestMetricsEndpointMounted(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# counters\n"))
	})
	s := newTestAPIServer(&agentStub{}, WithMetricsHandler(handler))

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# counters")
}

func TestMetricsEndpointAbsentWithoutHandler(t *testing.T) {
	s := newTestAPIServer(&agentStub{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)

	rr := serve(s, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPIKeyGuardsAPIRoutes(t *testing.T) {
	s := newTestAPIServer(&agentStub{
		taskStatusFn: func(_ context.Context, taskID string) (*models.AgentTask, error) {
			return &models.AgentTask{TaskID: taskID, Status: models.TaskStatusPending}, nil
		},
	}, WithAPIKey("sekret"))

	t.Run("missing key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", http.NoBody)

		rr := serve(s, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", http.NoBody)
		req.Header.Set("X-API-Key", "guess")

		rr := serve(s, req)

		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("header key is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1", http.NoBody)
		req.Header.Set("X-API-Key", "sekret")

		rr := serve(s, req)

		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("query key is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks/task-1?api_key=sekret", http.NoBody)

		rr := serve(s, req)

		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)

		rr := serve(s, req)

		require.Equal(t, http.StatusOK, rr.Code)
	})
}
