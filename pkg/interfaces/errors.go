/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Error taxonomy for the Akaylee Inference engine. Defines the typed
errors surfaced by the orchestration layer: configuration errors reported before
any likelihood evaluation, sampler runtime failures carrying resumption context,
checkpoint incompatibility, and serialization failures.
*/

package interfaces

import (
	"errors"
	"fmt"
)

// ErrCheckpointNotFound is returned by the checkpoint manager when no
// snapshot exists at the requested path. Callers treat it as "start
// fresh"; it is never an operator-facing failure.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// ConfigurationError reports an invalid prior/backend pairing, an
// unknown option, or an unknown backend name. It is fatal and is always
// raised before any likelihood evaluation occurs.
type ConfigurationError struct {
	Msg string
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Msg)
}

// SamplerRuntimeError reports a backend-internal failure or a run
// terminated by cancellation. It carries enough state (backend name,
// iteration count, last checkpoint path) for an operator to decide
// whether to resume, restart, or abandon.
type SamplerRuntimeError struct {
	Sampler        string
	Iteration      int64
	CheckpointPath string
	Err            error
}

// Error implements the error interface.
func (e *SamplerRuntimeError) Error() string {
	return fmt.Sprintf("sampler %q failed at iteration %d (checkpoint: %s): %v",
		e.Sampler, e.Iteration, e.CheckpointPath, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SamplerRuntimeError) Unwrap() error {
	return e.Err
}

// CheckpointIncompatibleError reports a checkpoint whose header does not
// match the current run. Fatal unless the caller opts into forced
// restart: silently discarding a long-running computation's progress is
// a correctness and cost hazard, not a convenience.
type CheckpointIncompatibleError struct {
	Path     string
	Expected string
	Found    string
	Version  int
}

// Error implements the error interface.
func (e *CheckpointIncompatibleError) Error() string {
	return fmt.Sprintf("checkpoint %s is incompatible with this run (version %d, identifier %s, expected %s)",
		e.Path, e.Version, e.Found, e.Expected)
}

// SerializationError reports a corrupt or unreadable Result or
// checkpoint container. Fatal: a partially-populated Result is never
// produced.
type SerializationError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error for %s: %v", e.Path, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *SerializationError) Unwrap() error {
	return e.Err
}
