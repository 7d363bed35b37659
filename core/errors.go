package core

import (
	"errors"
	"fmt"
)

// ErrCollectorUnavailable signals that the trace ingestion backend cannot be
// reached. The recorder downgrades to a no-op for the remainder of the run;
// scenario pass/fail is never affected.
var ErrCollectorUnavailable = errors.New("collector unavailable")

// ModelError reports a malformed or refused model response.
type ModelError struct {
	Message string
	Cause   error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("model error: %s", e.Message)
}

func (e *ModelError) Unwrap() error { return e.Cause }

// NetworkError reports an unreachable or timed-out upstream.
type NetworkError struct {
	Message string
	Cause   error
}

func (e *NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("network error: %s", e.Message)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

// ConfigurationError reports missing or invalid required setup. It is raised
// at startup, aborts the run before any trace is opened and is the only error
// kind that propagates to the top level (non-zero process exit).
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IsInvocationError reports whether err is an agent invocation failure
// (model or network), which is recorded per turn and never propagated.
func IsInvocationError(err error) bool {
	var me *ModelError
	var ne *NetworkError
	return errors.As(err, &me) || errors.As(err, &ne)
}

// IsConfigurationError reports whether err is a startup configuration error.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
