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

package models

import (
	"errors"
	"fmt"
)

// ErrorKind is the coarse failure taxonomy shared across the discovery core.
type ErrorKind string

const (
	ErrorKindInvalidInput        ErrorKind = "INVALID_INPUT"
	ErrorKindInsufficientCredits ErrorKind = "INSUFFICIENT_CREDITS"
	ErrorKindRateLimited         ErrorKind = "SOURCE_RATE_LIMITED"
	ErrorKindCircuitOpen         ErrorKind = "SOURCE_CIRCUIT_OPEN"
	ErrorKindTransport           ErrorKind = "SOURCE_TRANSPORT_ERROR"
	ErrorKindProtocol            ErrorKind = "SOURCE_PROTOCOL_ERROR"
	ErrorKindTimeout             ErrorKind = "TIMEOUT"
	ErrorKindCacheFault          ErrorKind = "CACHE_FAULT"
	ErrorKindPersistenceFault    ErrorKind = "PERSISTENCE_FAULT"
	ErrorKindCancelled           ErrorKind = "CANCELLED"
)

// Transient reports whether failures of this kind are worth retrying.
// Invalid input, refused credits, and protocol mismatches never heal on
// their own, and an open circuit already means retries are being refused.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindTransport, ErrorKindTimeout, ErrorKindCacheFault:
		return true
	default:
		return false
	}
}

// DiscoveryError attaches an ErrorKind to an underlying error.
type DiscoveryError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NewDiscoveryError wraps err with a kind and message. err may be nil.
func NewDiscoveryError(kind ErrorKind, message string, err error) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err's chain. Unclassified errors map to
// ErrorKindTransport, the safest transient default for outbound work.
func KindOf(err error) ErrorKind {
	var de *DiscoveryError
	if errors.As(err, &de) {
		return de.Kind
	}

	return ErrorKindTransport
}

// Summary converts the error to its wire form.
func (e *DiscoveryError) Summary() *ErrorSummary {
	return &ErrorSummary{Kind: e.Kind, Message: e.Message}
}
