package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth marks a missing or expired cookie session or API key.
	ErrAuth = errors.New("authentication failure")
	// ErrValidation marks an adapter pre-check rejection (missing language,
	// disallowed category, resolution floor). Never retried.
	ErrValidation = errors.New("validation failure")
	// ErrConfiguration marks an operator configuration problem.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks a network-level failure (timeout, connect, decode).
	ErrTransient = errors.New("transient failure")
	// ErrAmbiguous marks a response that may or may not represent a
	// successful upload; the raw body is persisted for operator review.
	ErrAmbiguous = errors.New("ambiguous response")
	// ErrNotFound marks a missing required file or resource.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an exceeded per-call deadline.
	ErrTimeout = errors.New("timeout")
)

// Kind classifies an error for status reporting.
type Kind string

const (
	KindAuth          Kind = "auth"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindTransient     Kind = "transient"
	KindAmbiguous     Kind = "ambiguous"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindHard          Kind = "hard"
)

// Wrap builds an error message that includes tracker context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, tracker, operation, message string, err error) error {
	detail := buildDetail(tracker, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the failure kind the orchestrator should record.
// Errors without a sentinel marker are treated as hard (programmer/contract)
// failures that abort only the offending tracker.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrAmbiguous):
		return KindAmbiguous
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindHard
	}
}

func buildDetail(tracker, operation, message string) string {
	parts := make([]string, 0, 3)
	if tracker = strings.TrimSpace(tracker); tracker != "" {
		parts = append(parts, tracker)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
