// Package filter evaluates jq predicates against run records, selecting
// which runs an ingestion job keeps. Evaluation is bounded by a timeout and
// an input size cap so a pathological expression cannot stall a job.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/runlens/runlens/pkg/errors"
	"github.com/runlens/runlens/pkg/metadata"
)

const (
	// DefaultTimeout bounds a single predicate evaluation.
	DefaultTimeout = 1 * time.Second

	// DefaultMaxInputSize caps the serialized size of a single run (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Filter is a compiled jq predicate over run records. The zero expression
// matches everything.
type Filter struct {
	expression   string
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int64
}

// New compiles a jq predicate. An empty expression yields a match-all filter.
func New(expression string) (*Filter, error) {
	f := &Filter{
		expression:   expression,
		timeout:      DefaultTimeout,
		maxInputSize: DefaultMaxInputSize,
	}
	if expression == "" {
		return f, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:      "filter",
			Message:    fmt.Sprintf("parse error: %v", err),
			Suggestion: "check the jq expression syntax",
		}
	}

	code, err := gojq.Compile(query)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:   "filter",
			Message: fmt.Sprintf("compile error: %v", err),
		}
	}

	f.code = code
	return f, nil
}

// Match evaluates the predicate against a run. The run passes when the
// expression yields a truthy first value (anything but false or null).
func (f *Filter) Match(ctx context.Context, run *metadata.Run) (bool, error) {
	if f.code == nil {
		return true, nil
	}

	input, err := toInput(run)
	if err != nil {
		return false, err
	}
	if err := f.validateInputSize(input); err != nil {
		return false, err
	}

	execCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resultChan := make(chan any, 1)
	errorChan := make(chan error, 1)

	go func() {
		iter := f.code.Run(input)
		v, ok := iter.Next()
		if !ok {
			resultChan <- nil
			return
		}
		if err, isErr := v.(error); isErr {
			errorChan <- err
			return
		}
		resultChan <- v
	}()

	select {
	case result := <-resultChan:
		return result != nil && result != false, nil
	case err := <-errorChan:
		return false, fmt.Errorf("evaluating filter on run %s: %w", run.ID, err)
	case <-execCtx.Done():
		return false, &errors.TimeoutError{
			Operation: "filter evaluation",
			Duration:  f.timeout,
		}
	}
}

// Expression returns the source expression.
func (f *Filter) Expression() string {
	return f.expression
}

// toInput converts a run to the map form gojq evaluates against, using the
// run's JSON field names so expressions read like the emitted metadata.
func toInput(run *metadata.Run) (any, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("encoding run for filter: %w", err)
	}

	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	return input, nil
}

func (f *Filter) validateInputSize(input any) error {
	data, err := json.Marshal(input)
	if err != nil {
		return err
	}
	if int64(len(data)) > f.maxInputSize {
		return fmt.Errorf("run size (%d bytes) exceeds maximum (%d bytes)",
			len(data), f.maxInputSize)
	}
	return nil
}
