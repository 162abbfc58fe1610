// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
	"time"
)

// ValidationError represents user input validation failures.
// Use this for invalid configuration, malformed filters, or constraint violations.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Suggestion provides actionable guidance for fixing the error
	Suggestion string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// NotFoundError represents a resource not found error.
// Use this when a requested resource does not exist.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "run", "project", "secret")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// PlatformError represents failures from an LLM observability platform
// (LangSmith run-history API, exported run files).
type PlatformError struct {
	// Platform is the name of the platform (e.g., "langsmith", "file")
	Platform string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Message is the human-readable error message
	Message string

	// Suggestion provides actionable guidance for resolution
	Suggestion string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *PlatformError) Error() string {
	msg := fmt.Sprintf("platform %s error", e.Platform)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PlatformError) Unwrap() error {
	return e.Cause
}

// CatalogError represents failures while emitting metadata to the catalog
// service (DataHub GMS).
type CatalogError struct {
	// Endpoint is the catalog endpoint that failed (e.g., "/entities?action=ingest")
	Endpoint string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// URN is the entity URN being written when the error occurred
	URN string

	// Message is the human-readable error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *CatalogError) Error() string {
	msg := "catalog error"
	if e.Endpoint != "" {
		msg = fmt.Sprintf("catalog error at %s", e.Endpoint)
	}
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.URN != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.URN)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CatalogError) Unwrap() error {
	return e.Cause
}

// RateLimitError indicates a request was rejected due to rate limiting.
type RateLimitError struct {
	// Service is the service that applied the limit
	Service string

	// RetryAfter is how long to wait before retrying (0 if unknown)
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Service)
}

// TimeoutError indicates an operation exceeded its deadline.
type TimeoutError struct {
	// Operation describes what timed out
	Operation string

	// Duration is the elapsed time before the timeout
	Duration time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Operation, e.Duration)
}
