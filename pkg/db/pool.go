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

// Package db persists discovery output and task state in Postgres through a
// pgx connection pool: the discovered-paper catalog, relationship edges,
// per-run audit rows, and the durable task store.
package db

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const defaultPostgresPort = 5432

// Config describes the Postgres connection and pool tuning.
type Config struct {
	Host            string          `json:"host"`
	Port            int             `json:"port,omitempty"`
	Database        string          `json:"database"`
	Username        string          `json:"username,omitempty"`
	Password        string          `json:"password,omitempty"`
	SSLMode         string          `json:"ssl_mode,omitempty"`
	ApplicationName string          `json:"application_name,omitempty"`
	MaxConnections  int32           `json:"max_connections,omitempty"`
	MinConnections  int32           `json:"min_connections,omitempty"`
	MaxConnLifetime models.Duration `json:"max_conn_lifetime,omitempty"`
	HealthCheck     models.Duration `json:"health_check_period,omitempty"`
	// StatementTimeout is applied server-side to every statement on the
	// connection.
	StatementTimeout models.Duration `json:"statement_timeout,omitempty"`
}

// connURL builds the postgres connection URL for cfg.
func connURL(cfg *Config) (*url.URL, error) {
	if cfg.Host == "" {
		return nil, ErrDatabaseHostRequired
	}

	if cfg.Database == "" {
		return nil, ErrDatabaseNameRequired
	}

	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			u.User = url.User(cfg.Username)
		}
	}

	query := u.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	u.RawQuery = query.Encode()

	return u, nil
}

// NewPool dials Postgres and returns a configured pgx pool. Connections are
// established lazily; the first query surfaces connectivity problems.
func NewPool(ctx context.Context, cfg *Config, log logger.Logger) (*pgxpool.Pool, error) {
	u, err := connURL(cfg)
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(u.String())
	if err != nil {
		return nil, fmt.Errorf("db: failed to parse connection string: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime.AsDuration()
	}

	if cfg.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheck.AsDuration()
	}

	if cfg.StatementTimeout > 0 {
		if poolConfig.ConnConfig.RuntimeParams == nil {
			poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
		}

		timeout := cfg.StatementTimeout.AsDuration() / time.Millisecond
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", timeout)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("db: failed to initialize pool: %w", err)
	}

	if log != nil {
		log.Info().
			Str("host", cfg.Host).
			Str("database", cfg.Database).
			Int32("max_conns", poolConfig.MaxConns).
			Msg("Connected to Postgres pool")
	}

	return pool, nil
}
