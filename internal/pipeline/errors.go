package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLocalUnavailable means no local extractor could run. It is not a
	// failure; the cloud path is taken unconditionally.
	ErrLocalUnavailable = errors.New("local extraction unavailable")

	// ErrLocalExtractionFailed means the local extractor could not read the receipt
	ErrLocalExtractionFailed = errors.New("local extraction failed")

	// ErrCloudExtractionFailed means the cloud collaborator failed
	ErrCloudExtractionFailed = errors.New("cloud extraction failed")

	// ErrBothMethodsFailed means the local and the cloud paths both failed
	ErrBothMethodsFailed = errors.New("receipt processing failed")
)

// bothFailedMessage is what callers see when neither path produced a receipt
const bothFailedMessage = "Receipt processing failed. Please try again with a clearer photo."

// ValidationError carries the issues that kept a local result from being accepted
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Issues, "; ")
}

// PanicError wraps a panic recovered in one of the pipeline stages
type PanicError struct {
	Stage string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during %s extraction: %v", e.Stage, e.Value)
}

// fallbackReason is the metrics label for why the cloud path was taken
func fallbackReason(err error) string {
	var validationErr *ValidationError
	var panicErr *PanicError
	switch {
	case errors.Is(err, ErrLocalUnavailable):
		return "local_unavailable"
	case errors.As(err, &validationErr):
		return "validation_failed"
	case errors.As(err, &panicErr):
		return "unexpected"
	default:
		return "local_failed"
	}
}
