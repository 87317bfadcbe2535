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

// Package http exposes the discovery agent over a JSON HTTP API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/tasks"
	"github.com/scholarsys/paperscout/pkg/version"
)

// maxRequestBody caps discover request bodies; configurations are small.
const maxRequestBody = 1 << 20

// Agent is the surface the HTTP layer drives.
type Agent interface {
	Discover(ctx context.Context, paperID, userID string, cfg *models.DiscoveryConfiguration) (*models.DiscoveryResponse, error)
	TaskStatus(ctx context.Context, taskID string) (*models.AgentTask, error)
	Cancel(ctx context.Context, taskID string) error
	CacheStats() cache.Stats
	RateLimitStats() map[models.DiscoverySource]ratelimit.Snapshot
}

// DiscoverRequest is the body of POST /api/v1/discover. Config is optional;
// when absent the agent falls back to the comprehensive preset.
type DiscoverRequest struct {
	PaperID string                         `json:"paper_id"`
	UserID  string                         `json:"user_id"`
	Config  *models.DiscoveryConfiguration `json:"config,omitempty"`
}

// ErrorResponse is the envelope for non-2xx responses.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// APIServer routes HTTP requests to the discovery agent.
type APIServer struct {
	agent          Agent
	logger         logger.Logger
	router         *mux.Router
	metricsHandler http.Handler
	apiKey         string
}

// NewAPIServer creates a new API server around agent.
func NewAPIServer(agent Agent, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		agent:  agent,
		logger: log,
		router: mux.NewRouter(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) func(server *APIServer) {
	return func(server *APIServer) {
		server.metricsHandler = h
	}
}

// WithAPIKey requires key on every /api/v1 request. An empty key leaves the
// API open.
func WithAPIKey(key string) func(server *APIServer) {
	return func(server *APIServer) {
		server.apiKey = key
	}
}

// Router returns the configured handler for an HTTP server to serve.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes for the API server.
func (s *APIServer) setupRoutes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return RequestLogging(next, s.logger)
	})

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(APIKeyMiddleware(s.apiKey, s.logger))

	api.HandleFunc("/discover", s.handleDiscover).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", s.handleTaskStatus).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/cancel", s.handleCancelTask).Methods(http.MethodPost)
	api.HandleFunc("/stats/cache", s.handleCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/ratelimits", s.handleRateLimitStats).Methods(http.MethodGet)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]string{
		"status":  "ok",
		"version": version.Full(),
	}

	if err := s.encodeJSONResponse(w, health); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding health response")
	}
}

// handleDiscover runs one discovery end to end. Failures before a task
// exists map onto HTTP status codes; once a task ran, its outcome travels
// inside the 200 response body.
func (s *APIServer) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := s.agent.Discover(r.Context(), req.PaperID, req.UserID, req.Config)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("paper_id", req.PaperID).
			Str("user_id", req.UserID).
			Msg("Discovery request failed")
		writeError(w, err.Error(), statusForError(err))

		return
	}

	if err := s.encodeJSONResponse(w, resp); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding discovery response")
	}
}

func (s *APIServer) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	task, err := s.agent.TaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			writeError(w, "Task not found", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("task_id", taskID).Msg("Error fetching task")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	if err := s.encodeJSONResponse(w, task); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding task response")
	}
}

func (s *APIServer) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]

	if err := s.agent.Cancel(r.Context(), taskID); err != nil {
		if errors.Is(err, tasks.ErrTaskNotFound) {
			writeError(w, "Task not found", http.StatusNotFound)
			return
		}

		s.logger.Error().Err(err).Str("task_id", taskID).Msg("Error cancelling task")
		writeError(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (s *APIServer) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	if err := s.encodeJSONResponse(w, s.agent.CacheStats()); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding cache stats")
	}
}

func (s *APIServer) handleRateLimitStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.agent.RateLimitStats()
	if stats == nil {
		stats = map[models.DiscoverySource]ratelimit.Snapshot{}
	}

	if err := s.encodeJSONResponse(w, stats); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding rate limit stats")
	}
}

// encodeJSONResponse encodes a response as JSON
func (*APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return err
	}

	return nil
}

// statusForError maps classified discovery errors onto HTTP status codes.
// Anything unclassified is an internal fault.
func statusForError(err error) int {
	var de *models.DiscoveryError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}

	switch de.Kind {
	case models.ErrorKindInvalidInput:
		return http.StatusBadRequest
	case models.ErrorKindInsufficientCredits:
		return http.StatusPaymentRequired
	case models.ErrorKindRateLimited:
		return http.StatusTooManyRequests
	case models.ErrorKindCircuitOpen, models.ErrorKindTransport, models.ErrorKindProtocol:
		return http.StatusBadGateway
	case models.ErrorKindTimeout:
		return http.StatusGatewayTimeout
	case models.ErrorKindCancelled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)

	errResponse := ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		// Fallback in case encoding fails
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
