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

// The paperscout binary serves the related-paper discovery agent over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scholarsys/paperscout/pkg/agent"
	"github.com/scholarsys/paperscout/pkg/cache"
	"github.com/scholarsys/paperscout/pkg/config"
	"github.com/scholarsys/paperscout/pkg/db"
	"github.com/scholarsys/paperscout/pkg/discovery"
	pshttp "github.com/scholarsys/paperscout/pkg/http"
	"github.com/scholarsys/paperscout/pkg/kv"
	"github.com/scholarsys/paperscout/pkg/lifecycle"
	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/metrics"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
	"github.com/scholarsys/paperscout/pkg/sources"
	"github.com/scholarsys/paperscout/pkg/synthesis"
	"github.com/scholarsys/paperscout/pkg/tasks"
	"github.com/scholarsys/paperscout/pkg/version"
)

func main() {
	configPath := flag.String("config", "/etc/paperscout/paperscout.json", "Path to config file")
	flag.Parse()

	ctx := context.Background()

	var cfg serviceConfig
	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := run(ctx, &cfg); err != nil {
		log.Fatalf("paperscout failed: %v", err)
	}
}

func run(ctx context.Context, cfg *serviceConfig) error {
	mainLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	mainLogger.Info().
		Str("version", version.Full()).
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting paperscout")

	pool, err := db.NewPool(ctx, &cfg.Database, mainLogger)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool, mainLogger); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	papers := db.NewPaperRepository(pool, mainLogger)
	taskStore := db.NewTaskStore(pool, mainLogger)

	kvStore, err := kv.NewStore(ctx, cfg.KV, cfg.Cache.TTL.AsDuration())
	if err != nil {
		return fmt.Errorf("opening kv store: %w", err)
	}

	defer func() {
		if err := kvStore.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Error closing kv store")
		}
	}()

	resultCache := cache.New(cfg.Cache, kvStore, mainLogger)

	limits, err := ratelimit.NewManager(&cfg.RateLimits, mainLogger)
	if err != nil {
		return fmt.Errorf("building rate limit manager: %w", err)
	}

	credentials := sources.StaticCredentials{
		models.DiscoverySourceSemanticScholar: cfg.SemanticScholarAPIKey,
	}

	workers, err := agent.BuildWorkers(cfg.Sources, limits, credentials, nil, mainLogger)
	if err != nil {
		return fmt.Errorf("building source workers: %w", err)
	}

	coordinator := discovery.New(workers, synthesis.New(mainLogger), resultCache, mainLogger)

	registry := prometheus.NewRegistry()
	taskMetrics := metrics.NewTaskMetrics(registry, tasks.NewInMemoryMetrics(mainLogger))

	runner := tasks.NewRunner(taskStore, tasks.NewUnmeteredCosts(mainLogger), taskMetrics, mainLogger, tasks.Config{
		OperationType: cfg.Tasks.OperationType,
		CostUnits:     cfg.Tasks.CostUnits,
		TaskTimeout:   cfg.Tasks.Timeout.AsDuration(),
		MaxAttempts:   cfg.Tasks.MaxAttempts,
	})

	discoveryAgent := agent.New(papers, papers, coordinator, runner, resultCache, limits, mainLogger)

	registry.MustRegister(metrics.NewSnapshotCollector(discoveryAgent.CacheStats, discoveryAgent.RateLimitStats))

	purger := tasks.NewPurger(taskStore, taskMetrics, mainLogger, tasks.PurgerConfig{
		Retention:  cfg.Tasks.Retention.AsDuration(),
		Interval:   cfg.Tasks.PurgeInterval.AsDuration(),
		AgentID:    agent.AgentID,
		RunTimeout: cfg.Tasks.Timeout.AsDuration(),
	})

	if recovered, err := purger.RecoverOrphans(ctx); err != nil {
		mainLogger.Warn().Err(err).Msg("Orphan recovery failed")
	} else if recovered > 0 {
		mainLogger.Info().Int("recovered", recovered).Msg("Recovered orphaned tasks")
	}

	go purger.Start(ctx)

	apiServer := pshttp.NewAPIServer(discoveryAgent, mainLogger,
		pshttp.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		pshttp.WithAPIKey(cfg.APIKey),
	)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: "paperscout",
		Handler:     apiServer.Router(),
		Logger:      mainLogger,
	})
}
