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

package tasks

import (
	"context"

	"github.com/scholarsys/paperscout/pkg/logger"
)

// UnmeteredCosts is a CostService that never refuses work. Deployments
// without a billing backend run on it; Record still logs usage so operators
// can see consumption.
type UnmeteredCosts struct {
	logger logger.Logger
}

var _ CostService = (*UnmeteredCosts)(nil)

// NewUnmeteredCosts builds the pass-through cost service.
func NewUnmeteredCosts(log logger.Logger) *UnmeteredCosts {
	return &UnmeteredCosts{logger: log.WithComponent("costs")}
}

// Charge always grants the operation.
func (c *UnmeteredCosts) Charge(_ context.Context, _, _ string) error {
	return nil
}

// Record logs the usage that a billing backend would persist.
func (c *UnmeteredCosts) Record(_ context.Context, operationType, userID string, costUnits int, taskID string) error {
	c.logger.Debug().
		Str("operation_type", operationType).
		Str("user_id", userID).
		Int("cost_units", costUnits).
		Str("task_id", taskID).
		Msg("Recorded task cost")

	return nil
}
