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

package ratelimit

import "errors"

var (
	// ErrCircuitOpen is returned by Acquire while a source's circuit is open,
	// or while a half-open probe is already in flight.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrAcquireTimeout is returned when no token became available within the
	// acquire timeout.
	ErrAcquireTimeout = errors.New("timed out waiting for rate limit token")
	// ErrUnknownSource is returned for sources the manager was not configured
	// with.
	ErrUnknownSource = errors.New("unknown rate limit source")
)
