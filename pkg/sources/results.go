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
	"errors"
	"fmt"
	"time"

	"github.com/scholarsys/paperscout/pkg/models"
)

// SuccessResult packages papers into a successful per-source result.
func SuccessResult(source models.DiscoverySource, papers []*models.DiscoveredPaper, start time.Time, metadata map[string]interface{}) *models.SourceDiscoveryResult {
	return &models.SourceDiscoveryResult{
		Source:   source,
		Papers:   papers,
		Metadata: metadata,
		Duration: time.Since(start),
		Success:  true,
	}
}

// FailureResult packages a worker failure. Failed results never carry
// papers, only the error message surfaced to the caller.
func FailureResult(source models.DiscoverySource, start time.Time, err error) *models.SourceDiscoveryResult {
	return &models.SourceDiscoveryResult{
		Source:       source,
		Duration:     time.Since(start),
		Success:      false,
		ErrorMessage: err.Error(),
	}
}

// ContextError classifies a context failure, separating the per-source
// deadline from caller cancellation.
func ContextError(source models.DiscoverySource, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewDiscoveryError(models.ErrorKindTimeout,
			fmt.Sprintf("%s discovery timed out", source), err)
	}

	return models.NewDiscoveryError(models.ErrorKindCancelled,
		fmt.Sprintf("%s discovery cancelled", source), err)
}
