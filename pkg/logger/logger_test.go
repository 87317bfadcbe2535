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

package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	log, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestNewDebugOverridesLevel(t *testing.T) {
	log, err := New(&Config{Level: "error", Debug: true})
	require.NoError(t, err)

	impl, ok := log.(*loggerImpl)
	require.True(t, ok)
	assert.Equal(t, zerolog.DebugLevel, impl.logger.GetLevel())
}

func TestWithComponentReturnsNewLogger(t *testing.T) {
	log := NewTestLogger()
	tagged := log.WithComponent("discovery")

	assert.NotNil(t, tagged)
	assert.NotSame(t, log, tagged)
}

func TestWithRunSkipsEmptyFields(t *testing.T) {
	log := NewTestLogger()

	same := WithRun(log, "", "", "")
	assert.Same(t, log, same, "no fields means the logger passes through")

	tagged := WithRun(log, "task-1", "paper-1", "crossref")
	assert.NotSame(t, log, tagged)
}

func TestTestLoggerDiscards(t *testing.T) {
	log := NewTestLogger()

	// Must not panic or emit anything.
	log.Info().Str("k", "v").Msg("dropped")
	log.Error().Msg("dropped too")
}
