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
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := emitter.EmitRun(ctx, run); err != nil {
//	    return errors.Wrap(err, "emitting run")
//	}
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf creates a new error that wraps the given error with formatted context.
// If err is nil, returns nil.
//
// Usage:
//
//	if err := client.ListRuns(ctx, opts); err != nil {
//	    return errors.Wrapf(err, "listing runs for project %s", project)
//	}
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the error represents a transient failure
// worth retrying. Rate limits and 5xx catalog/platform responses qualify;
// validation and not-found errors never do.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var catErr *CatalogError
	if errors.As(err, &catErr) {
		return catErr.StatusCode >= 500 || catErr.StatusCode == 429 || catErr.StatusCode == 0
	}

	var platErr *PlatformError
	if errors.As(err, &platErr) {
		return platErr.StatusCode >= 500 || platErr.StatusCode == 429 || platErr.StatusCode == 0
	}

	return false
}

// IsNotFound reports whether the error is a NotFoundError.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

// IsValidation reports whether the error is a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
