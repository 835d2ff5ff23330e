package services

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a counseling pipeline stage gave up.
type FailureKind string

const (
	FailureInvalidInput  FailureKind = "invalid_input"
	FailureGeneration    FailureKind = "generation_failure"
	FailureSubmission    FailureKind = "submission_failure"
	FailureRender        FailureKind = "render_failure"
	FailureRenderTimeout FailureKind = "render_timeout"
	FailureCanceled      FailureKind = "canceled"
)

// UserMessage is the generic text shown to the user for this kind of failure.
// Every video-side failure reads the same because the user cannot act on the
// difference.
func (k FailureKind) UserMessage() string {
	switch k {
	case FailureInvalidInput:
		return "Concern is required"
	case FailureGeneration:
		return "Failed to generate text"
	default:
		return "Failed to generate video"
	}
}

// Failure is the error returned by the pipeline stages.
type Failure struct {
	Kind FailureKind
	Err  error
}

func newFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Kind)
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// FailureKindOf returns the kind of the first Failure in err's chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}
