// Package evalerr defines the error taxonomy of an evaluation run. Only a
// ConfigurationError ever fails a run; the other classes are absorbed into
// worker results and pillar verdicts.
package evalerr

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an invalid profile, threshold, weight, dispatch
// order or application setting. It is raised before any worker executes.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError for field with a formatted reason.
func Configf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ToolInvocationError is a transient failure at the tool boundary inside a
// worker. It is retried locally and never reaches the dispatcher on its own.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// Transient wraps err as a ToolInvocationError for tool.
func Transient(tool string, err error) error {
	if err == nil {
		return nil
	}
	return &ToolInvocationError{Tool: tool, Err: err}
}

// Phase names the worker lifecycle step that faulted.
type Phase string

const (
	PhasePlan    Phase = "plan"
	PhaseExecute Phase = "execute"
	PhaseReceive Phase = "receive"
)

// AgentExecutionError is a worker fault that survived retries.
type AgentExecutionError struct {
	Worker string
	Phase  Phase
	Err    error
}

func (e *AgentExecutionError) Error() string {
	return fmt.Sprintf("worker %s failed during %s: %v", e.Worker, e.Phase, e.Err)
}

func (e *AgentExecutionError) Unwrap() error { return e.Err }

// Recovered converts a recovered panic value into an AgentExecutionError.
func Recovered(worker string, phase Phase, v any) *AgentExecutionError {
	err, ok := v.(error)
	if !ok {
		err = fmt.Errorf("panic: %v", v)
	} else {
		err = fmt.Errorf("panic: %w", err)
	}
	return &AgentExecutionError{Worker: worker, Phase: phase, Err: err}
}

// ProviderUnavailableError reports an unreachable external judge or tool.
// The affected pillar must be marked degraded.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s unavailable", e.Provider)
	}
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// IsConfiguration reports whether err contains a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsTransient reports whether err contains a ToolInvocationError.
func IsTransient(err error) bool {
	var te *ToolInvocationError
	return errors.As(err, &te)
}

// IsProviderUnavailable reports whether err contains a ProviderUnavailableError.
func IsProviderUnavailable(err error) bool {
	var pe *ProviderUnavailableError
	return errors.As(err, &pe)
}
