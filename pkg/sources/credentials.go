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

package sources

import (
	"context"

	"github.com/scholarsys/paperscout/pkg/models"
)

// StaticCredentials resolves API keys from a fixed per-source map,
// ignoring the requesting user. An absent source yields an empty key;
// workers that require one decide how to react.
type StaticCredentials map[models.DiscoverySource]string

// CredentialsFor implements Credentials.
func (s StaticCredentials) CredentialsFor(_ context.Context, source models.DiscoverySource, _ string) (string, error) {
	return s[source], nil
}
