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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarsys/paperscout/pkg/db"
)

func TestServiceConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  serviceConfig
		wantErr error
	}{
		{
			name:    "missing host",
			config:  serviceConfig{Database: db.Config{Database: "paperscout"}},
			wantErr: errDatabaseHostRequired,
		},
		{
			name:    "missing database",
			config:  serviceConfig{Database: db.Config{Host: "postgres-rw"}},
			wantErr: errDatabaseNameRequired,
		},
		{
			name:   "minimal valid",
			config: serviceConfig{Database: db.Config{Host: "postgres-rw", Database: "paperscout"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
		})
	}
}

func TestServiceConfigValidateFillsDefaults(t *testing.T) {
	cfg := serviceConfig{Database: db.Config{Host: "postgres-rw", Database: "paperscout"}}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	require.NotNil(t, cfg.Logging)
	assert.NotEmpty(t, cfg.Logging.Level)
}

func TestServiceConfigValidateKeepsExplicitValues(t *testing.T) {
	cfg := serviceConfig{
		ListenAddr: "127.0.0.1:9999",
		Database:   db.Config{Host: "postgres-rw", Database: "paperscout"},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9999", cfg.ListenAddr)
}

func TestServiceConfigApplyEnvOverrides(t *testing.T) {
	t.Setenv("PAPERSCOUT_DB_PASSWORD", "from-env")
	t.Setenv("PAPERSCOUT_API_KEY", "inbound-key")
	t.Setenv("PAPERSCOUT_S2_API_KEY", "s2-key")
	t.Setenv("PAPERSCOUT_PERPLEXITY_API_KEY", "pplx-key")

	cfg := serviceConfig{}
	cfg.Database.Password = "from-file"

	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "inbound-key", cfg.APIKey)
	assert.Equal(t, "s2-key", cfg.SemanticScholarAPIKey)
	assert.Equal(t, "pplx-key", cfg.Sources.Perplexity.APIKey)
}

func TestServiceConfigEnvOverridesIgnoreUnset(t *testing.T) {
	t.Setenv("PAPERSCOUT_API_KEY", "")

	cfg := serviceConfig{APIKey: "from-file"}

	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "from-file", cfg.APIKey)
}
