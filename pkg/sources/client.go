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

// Package sources holds the per-source discovery workers and the plumbing
// they share: permit-guarded HTTP access, credential resolution, and
// candidate shaping helpers.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
	"github.com/scholarsys/paperscout/pkg/ratelimit"
)

const (
	defaultMaxTries   = 3
	defaultHTTPTimeout = 30 * time.Second
)

var (
	// ErrNotFound marks a 404 from the upstream API; workers treat it as an
	// expected miss, not a source failure.
	ErrNotFound = errors.New("resource not found")

	errUnexpectedStatusCode = errors.New("unexpected status code")
)

// Client performs permit-guarded JSON GETs against one source's REST API.
// Every physical request holds its own permit and reports its outcome:
// transport faults and 5xx responses count against the breaker, expected
// business-logic 4xx responses do not.
type Client struct {
	source     models.DiscoverySource
	httpClient HTTPClient
	limiter    RateLimiter
	logger     logger.Logger
	maxTries   uint
}

// NewClient builds a client for one source. httpClient may be nil, in which
// case a default client with a request timeout is used.
func NewClient(source models.DiscoverySource, httpClient HTTPClient, limiter RateLimiter, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Client{
		source:     source,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     log.WithComponent(string(source)),
		maxTries:   defaultMaxTries,
	}
}

// GetJSON fetches reqURL and decodes the response into out. Transient
// failures are retried with exponential backoff up to the client's try
// budget; 4xx responses and permit rejections fail immediately.
func (c *Client) GetJSON(ctx context.Context, reqURL string, header http.Header, out interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2

	operation := func() ([]byte, error) {
		return c.fetch(ctx, reqURL, header)
	}

	body, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return models.NewDiscoveryError(models.ErrorKindProtocol,
			fmt.Sprintf("failed to parse %s response", c.source), err)
	}

	return nil
}

// fetch performs one attempt: acquire a permit, issue the request, report
// the outcome.
func (c *Client) fetch(ctx context.Context, reqURL string, header http.Header) ([]byte, error) {
	permit, err := c.limiter.Acquire(ctx, c.source)
	if err != nil {
		return nil, backoff.Permanent(classifyAcquireError(err, c.source))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		permit.Report(true)
		return nil, backoff.Permanent(models.NewDiscoveryError(models.ErrorKindInvalidInput,
			fmt.Sprintf("invalid %s request", c.source), err))
	}

	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		permit.Report(false)

		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		return nil, models.NewDiscoveryError(models.ErrorKindTransport,
			fmt.Sprintf("%s request failed", c.source), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		permit.Report(false)
		return nil, models.NewDiscoveryError(models.ErrorKindTransport,
			fmt.Sprintf("failed to read %s response body", c.source), err)
	}

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		permit.Report(true)
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		permit.Report(true)
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		permit.Report(false)
		return nil, models.NewDiscoveryError(models.ErrorKindRateLimited,
			fmt.Sprintf("%s throttled the request", c.source),
			fmt.Errorf("%w: %d", errUnexpectedStatusCode, resp.StatusCode))
	case resp.StatusCode >= http.StatusInternalServerError:
		permit.Report(false)
		return nil, models.NewDiscoveryError(models.ErrorKindTransport,
			fmt.Sprintf("%s server error", c.source),
			fmt.Errorf("%w: %d, response: %s", errUnexpectedStatusCode, resp.StatusCode, body))
	default:
		// Remaining 4xx responses are expected business-logic answers and
		// must not trip the breaker.
		permit.Report(true)
		return nil, backoff.Permanent(models.NewDiscoveryError(models.ErrorKindProtocol,
			fmt.Sprintf("%s rejected the request", c.source),
			fmt.Errorf("%w: %d, response: %s", errUnexpectedStatusCode, resp.StatusCode, body)))
	}
}

// classifyAcquireError maps permit rejections onto the discovery error
// taxonomy; context errors pass through untouched.
// AcquirePermit obtains a permit for one outbound call, classifying limiter
// refusals into the shared error taxonomy. Workers that do not go through
// Client (the LLM-backed ones) use this directly.
func AcquirePermit(ctx context.Context, limiter RateLimiter, source models.DiscoverySource) (ratelimit.Permit, error) {
	permit, err := limiter.Acquire(ctx, source)
	if err != nil {
		return nil, classifyAcquireError(err, source)
	}

	return permit, nil
}

func classifyAcquireError(err error, source models.DiscoverySource) error {
	switch {
	case errors.Is(err, ratelimit.ErrCircuitOpen):
		return models.NewDiscoveryError(models.ErrorKindCircuitOpen,
			fmt.Sprintf("%s circuit is open", source), err)
	case errors.Is(err, ratelimit.ErrAcquireTimeout):
		return models.NewDiscoveryError(models.ErrorKindRateLimited,
			fmt.Sprintf("no %s request budget available", source), err)
	default:
		return err
	}
}

// ReportForError pairs a permit with the outcome of a call made outside
// GetJSON. Transient faults count against the breaker; expected business
// failures and successes do not.
func ReportForError(p ratelimit.Permit, err error) {
	if err == nil {
		p.Report(true)
		return
	}

	p.Report(!models.KindOf(err).Transient())
}
