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
	"fmt"
	"net/http"
	"time"

	"github.com/scholarsys/paperscout/pkg/llm"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/sources"
	"github.com/scholarsys/paperscout/pkg/sources/crossref"
	"github.com/scholarsys/paperscout/pkg/sources/perplexity"
	"github.com/scholarsys/paperscout/pkg/sources/semanticscholar"
)

const (
	// defaultTransportTimeout bounds a single outbound HTTP request. Worker
	// and run deadlines layer on top of it.
	defaultTransportTimeout = 30 * time.Second

	defaultPerplexityBaseURL = "https://api.perplexity.ai"
)

// SourcesConfig configures the worker set the agent fans out to.
type SourcesConfig struct {
	Crossref        crossref.Config        `json:"crossref,omitempty"`
	SemanticScholar semanticscholar.Config `json:"semantic_scholar,omitempty"`
	// Perplexity configures the chat client behind the Perplexity worker.
	// The worker is only built when an API key is present.
	Perplexity llm.Config `json:"perplexity,omitempty"`
}

// BuildWorkers constructs one worker per reachable upstream source. The
// Perplexity worker requires a bearer token and is omitted without one;
// discovery runs that enable it then degrade to a per-source failure
// instead of a doomed network call.
func BuildWorkers(cfg SourcesConfig, limiter sources.RateLimiter, credentials sources.Credentials, httpClient sources.HTTPClient, log logger.Logger) (map[models.DiscoverySource]sources.Worker, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTransportTimeout}
	}

	workers := map[models.DiscoverySource]sources.Worker{
		models.DiscoverySourceCrossref:        crossref.New(cfg.Crossref, httpClient, limiter, log),
		models.DiscoverySourceSemanticScholar: semanticscholar.New(cfg.SemanticScholar, httpClient, limiter, credentials, log),
	}

	if cfg.Perplexity.APIKey != "" {
		if cfg.Perplexity.BaseURL == "" {
			cfg.Perplexity.BaseURL = defaultPerplexityBaseURL
		}

		chat, err := llm.NewOpenAIClient(cfg.Perplexity, log)
		if err != nil {
			return nil, fmt.Errorf("building perplexity chat client: %w", err)
		}

		workers[models.DiscoverySourcePerplexity] = perplexity.New(chat, limiter, log)
	}

	return workers, nil
}
