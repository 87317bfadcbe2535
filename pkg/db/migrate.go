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
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholarsys/paperscout/pkg/logger"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the embedded schema. Every statement uses IF NOT
// EXISTS, so running it on every boot is safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	if pool == nil {
		return nil
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("schema: acquire connection: %w", err)
	}
	defer conn.Release()

	statements := splitSchemaStatements(schemaSQL)

	for idx, statement := range statements {
		if _, err := conn.Exec(ctx, statement); err != nil {
			return fmt.Errorf("schema: statement %d failed: %w", idx+1, err)
		}
	}

	log.Info().Int("statements", len(statements)).Msg("Schema ensured")

	return nil
}

// splitSchemaStatements splits DDL on semicolons outside line comments and
// single-quoted literals. The schema carries no dollar-quoted bodies, so
// those need no handling here.
func splitSchemaStatements(content string) []string {
	var (
		statements []string
		current    strings.Builder
	)

	inLineComment := false
	inSingleQuote := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inLineComment {
			if ch == '\n' {
				inLineComment = false
				current.WriteByte(ch)
			}

			continue
		}

		if !inSingleQuote && ch == '-' && i+1 < len(content) && content[i+1] == '-' {
			inLineComment = true
			i++

			continue
		}

		if ch == '\'' {
			inSingleQuote = !inSingleQuote
			current.WriteByte(ch)

			continue
		}

		if ch == ';' && !inSingleQuote {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}

			current.Reset()

			continue
		}

		current.WriteByte(ch)
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
