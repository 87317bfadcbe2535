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

package llm

//go:generate mockgen -destination=mock_llm.go -package=llm github.com/scholarsys/paperscout/pkg/llm ChatClient

import "context"

// ChatRequest is a single-turn prompt against a chat-completion endpoint.
type ChatRequest struct {
	// System is an optional system message prepended to the conversation.
	System string
	// Prompt is the user message.
	Prompt string
	// JSONOnly asks the endpoint for a JSON-object response where supported.
	JSONOnly bool
	// Temperature overrides the client default when > 0.
	Temperature float64
	// MaxTokens caps the completion length when > 0.
	MaxTokens int64
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Content    string
	TokensUsed int
}

// ChatClient abstracts an OpenAI-compatible chat-completion endpoint.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
