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

package shared

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/runlens/runlens/pkg/errors"
)

// Exit codes for runlens commands
const (
	ExitSuccess       = 0
	ExitIngestFailed  = 1
	ExitInvalidConfig = 2
	ExitSourceError   = 3
	ExitCatalogError  = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewIngestError creates an error for ingestion failures
func NewIngestError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitIngestFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for invalid configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidConfig,
		Message: msg,
		Cause:   cause,
	}
}

// NewSourceError creates an error for source platform failures
func NewSourceError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitSourceError,
		Message: msg,
		Cause:   cause,
	}
}

// NewCatalogError creates an error for catalog failures
func NewCatalogError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitCatalogError,
		Message: msg,
		Cause:   cause,
	}
}

// HandleExitError checks if an error is an ExitError and exits with the appropriate code
func HandleExitError(err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	printSuggestion(err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(ExitIngestFailed)
}

// printSuggestion walks the error chain for a validation error carrying a
// remediation hint.
func printSuggestion(err error) {
	var valErr *pkgerrors.ValidationError
	if errors.As(err, &valErr) && valErr.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", valErr.Suggestion)
	}
}
