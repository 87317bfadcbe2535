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

// Package llm wraps OpenAI-compatible chat-completion endpoints behind a
// small client interface. Perplexity and the AI synthesis re-ranker both
// speak this protocol, with different base URLs and models.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/scholarsys/paperscout/pkg/logger"
	"github.com/scholarsys/paperscout/pkg/models"
)

const defaultTemperature = 0.2

var errMissingAPIKey = errors.New("llm api key is required")

// Config describes one chat-completion endpoint.
type Config struct {
	// BaseURL overrides the OpenAI default, e.g. https://api.perplexity.ai.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	Model   string `json:"model,omitempty"`
	// Temperature is the default sampling temperature for requests that do
	// not set their own.
	Temperature float64 `json:"temperature,omitempty"`
	// MaxRetries controls SDK-level retries of transient failures. Zero
	// means the SDK default; negative disables retries.
	MaxRetries int             `json:"max_retries,omitempty"`
	Timeout    models.Duration `json:"timeout,omitempty"`
}

// OpenAIClient is a ChatClient backed by the openai-go SDK.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float64
	logger      logger.Logger
}

var _ ChatClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client for the configured endpoint.
func NewOpenAIClient(config Config, log logger.Logger) (*OpenAIClient, error) {
	if config.APIKey == "" {
		return nil, errMissingAPIKey
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout.AsDuration()))
	}

	if config.MaxRetries != 0 {
		retries := config.MaxRetries
		if retries < 0 {
			retries = 0
		}

		opts = append(opts, option.WithMaxRetries(retries))
	}

	client := openai.NewClient(opts...)

	temperature := config.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	return &OpenAIClient{
		client:      &client,
		model:       config.Model,
		temperature: temperature,
		logger:      log.WithComponent("llm"),
	}, nil
}

// Chat sends a single-turn completion request and returns the assistant
// reply. Errors are classified into the discovery error taxonomy.
func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.System),
				},
			},
		})
	}

	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	temperature := req.Temperature
	if temperature <= 0 {
		temperature = c.temperature
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(temperature),
	}

	if req.JSONOnly {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(req.MaxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, models.NewDiscoveryError(models.ErrorKindProtocol, "chat completion returned no choices", nil)
	}

	return &ChatResponse{
		Content:    completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
	}, nil
}

// classifyError maps SDK failures onto the discovery error taxonomy so
// callers can decide about retries uniformly.
func classifyError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewDiscoveryError(models.ErrorKindTimeout, "chat completion timed out", err)
	}

	lower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return models.NewDiscoveryError(models.ErrorKindRateLimited, "chat endpoint rate limited", err)
	case strings.Contains(lower, "401") || strings.Contains(lower, "403") ||
		strings.Contains(lower, "unauthorized") || strings.Contains(lower, "api key"):
		return models.NewDiscoveryError(models.ErrorKindProtocol, "chat endpoint rejected credentials", err)
	case strings.Contains(lower, "500") || strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") || strings.Contains(lower, "504") ||
		strings.Contains(lower, "connection") || strings.Contains(lower, "network") ||
		strings.Contains(lower, "timeout"):
		return models.NewDiscoveryError(models.ErrorKindTransport, "chat endpoint unavailable", err)
	default:
		return models.NewDiscoveryError(models.ErrorKindProtocol, "chat completion failed", err)
	}
}

// StripCodeFence removes a wrapping markdown code block from a model reply.
// Endpoints without a JSON response mode routinely fence their output.
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	return strings.TrimSpace(content)
}
