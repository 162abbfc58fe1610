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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "gms_url", Message: "must not be empty"}
	if got := err.Error(); got != "validation failed on gms_url: must not be empty" {
		t.Errorf("unexpected message: %s", got)
	}

	err = &ValidationError{Message: "bad config"}
	if got := err.Error(); got != "validation failed: bad config" {
		t.Errorf("unexpected message: %s", got)
	}
}

func TestCatalogErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := &CatalogError{
		Endpoint:   "/entities?action=ingest",
		StatusCode: 503,
		URN:        "urn:li:dataset:(urn:li:dataPlatform:llm,runs/abc,PROD)",
		Cause:      cause,
	}

	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose cause")
	}
	if !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("expected status in message, got: %s", err.Error())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{Service: "langsmith"}, true},
		{"timeout", &TimeoutError{Operation: "emit", Duration: time.Second}, true},
		{"catalog 500", &CatalogError{StatusCode: 500}, true},
		{"catalog 429", &CatalogError{StatusCode: 429}, true},
		{"catalog 400", &CatalogError{StatusCode: 400}, false},
		{"catalog network", &CatalogError{Cause: errors.New("dial tcp")}, true},
		{"platform 503", &PlatformError{Platform: "langsmith", StatusCode: 503}, true},
		{"platform 401", &PlatformError{Platform: "langsmith", StatusCode: 401}, false},
		{"validation", &ValidationError{Message: "bad"}, false},
		{"not found", &NotFoundError{Resource: "run", ID: "x"}, false},
		{"wrapped retryable", fmt.Errorf("outer: %w", &CatalogError{StatusCode: 502}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	base := &NotFoundError{Resource: "project", ID: "default"}
	wrapped := Wrap(base, "fetching runs")
	if !IsNotFound(wrapped) {
		t.Error("wrapped error should still match NotFoundError")
	}
	if wrapped.Error() != "fetching runs: project not found: default" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "context %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	base := errors.New("boom")
	wrapped := Wrapf(base, "batch %d", 3)
	if wrapped.Error() != "batch 3: boom" {
		t.Errorf("unexpected message: %s", wrapped.Error())
	}
	if !errors.Is(wrapped, base) {
		t.Error("Wrapf should preserve error chain")
	}
}
