package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransientProvider marks a failed embedding, generation or vector
	// store call. The caller may retry the whole operation.
	ErrTransientProvider = errors.New("provider call failed")

	// ErrCollectionNotFound is a configuration error and is never retried.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrMalformedGeneration means the model produced unusable output while
	// synthesising evaluation data.
	ErrMalformedGeneration = errors.New("malformed generation")

	ErrPartialIngestion = errors.New("some documents failed to load")
	ErrNothingToIngest  = errors.New("no documents could be loaded")
	ErrNoContext        = errors.New("no context retrieved")
)

// StageError reports which pipeline stage failed and which inputs were
// skipped along the way.
type StageError struct {
	Stage  string
	Inputs []string
	Err    error
}

func (e *StageError) Error() string {
	if len(e.Inputs) == 0 {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Stage, strings.Join(e.Inputs, ", "), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with a stage name. A nil err yields nil.
func NewStageError(stage string, err error, inputs ...string) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Inputs: inputs, Err: err}
}

// Transient wraps a provider error so it matches ErrTransientProvider.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransientProvider, err)
}
