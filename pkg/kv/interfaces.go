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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/scholarsys/paperscout/pkg/kv Store

// Package kv provides the durable key-value store behind the discovery
// cache's second tier.
package kv

import (
	"context"
	"time"
)

// Store is a durable key-value bucket with per-entry or bucket-level TTL.
type Store interface {
	// Get retrieves the value for a key. found is false when the key does
	// not exist or has expired.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Put stores a value. A zero ttl means the bucket default applies.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases the underlying connection.
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendNATS   Backend = "nats"
	BackendMemory Backend = "memory"
)

// Config describes how to reach the durable KV bucket.
type Config struct {
	Backend Backend `json:"backend"`
	URL     string  `json:"url,omitempty"`
	Bucket  string  `json:"bucket,omitempty"`
}
