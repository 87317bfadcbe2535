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

package main

import (
	"errors"
	"os"

	"github.com/scholarsys/paperscout/pkg/agent"
	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/db"
	"github.com/scholarsys/paperscout/pkg/kv"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
)

const defaultListenAddr = ":8090"

var (
	errDatabaseHostRequired = errors.New("database.host is required")
	errDatabaseNameRequired = errors.New("database.database is required")
)

// serviceConfig is the on-disk configuration for the paperscout service.
// Sections left empty fall back to the defaults of the package they
// configure.
type serviceConfig struct {
	ListenAddr string         `json:"listen_addr,omitempty"`
	APIKey     string         `json:"api_key,omitempty"`
	Logging    *logger.Config `json:"logging,omitempty"`

	Database   db.Config           `json:"database"`
	KV         kv.Config           `json:"kv,omitempty"`
	Cache      cache.Config        `json:"cache,omitempty"`
	RateLimits ratelimit.Config    `json:"rate_limits,omitempty"`
	Sources    agent.SourcesConfig `json:"sources,omitempty"`
	Tasks      taskSettings        `json:"tasks,omitempty"`

	// SemanticScholarAPIKey is optional; without it the Semantic Scholar
	// worker runs against the public unauthenticated quota.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty"`
}

// taskSettings shapes the task runner and the retention sweep. Zero values
// take the tasks package defaults.
type taskSettings struct {
	OperationType string          `json:"operation_type,omitempty"`
	CostUnits     int             `json:"cost_units,omitempty"`
	Timeout       models.Duration `json:"timeout,omitempty"`
	MaxAttempts   uint            `json:"max_attempts,omitempty"`
	Retention     models.Duration `json:"retention,omitempty"`
	PurgeInterval models.Duration `json:"purge_interval,omitempty"`
}

// ApplyEnvOverrides lets credentials live in the environment instead of on
// disk. Set variables replace whatever the file carried.
func (c *serviceConfig) ApplyEnvOverrides() error {
	if v := os.Getenv("PAPERSCOUT_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}

	if v := os.Getenv("PAPERSCOUT_API_KEY"); v != "" {
		c.APIKey = v
	}

	if v := os.Getenv("PAPERSCOUT_S2_API_KEY"); v != "" {
		c.SemanticScholarAPIKey = v
	}

	if v := os.Getenv("PAPERSCOUT_PERPLEXITY_API_KEY"); v != "" {
		c.Sources.Perplexity.APIKey = v
	}

	return nil
}

// Validate checks required fields and fills service-level defaults.
func (c *serviceConfig) Validate() error {
	if c.Database.Host == "" {
		return errDatabaseHostRequired
	}

	if c.Database.Database == "" {
		return errDatabaseNameRequired
	}

	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	return nil
}
