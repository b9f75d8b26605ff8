/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the Akaylee Inference engine. Defines the core
contracts used across all packages to break import cycles and enable proper modular
design: the likelihood capability, the scalar prior contract, the sampler adapter
contract, and the raw backend output shape.
*/

package interfaces

import (
	"context"
	"math"
	"math/rand"
)

// Likelihood is the capability the engine requires from the external
// likelihood component. Implementations must be re-entrant: LogLikelihood
// is invoked concurrently from multiple pool workers with no shared
// mutable state beyond read-only configuration.
type Likelihood interface {
	// LogLikelihood evaluates the log-likelihood for a full physical
	// parameter mapping (free and fixed parameters). Non-finite values
	// are an expected condition and are mapped to -Inf by the engine.
	LogLikelihood(parameters map[string]float64) (float64, error)
}

// NoiseLikelihood is an optional extension for likelihoods that define a
// null/no-signal baseline. It feeds the log-noise-evidence and
// log-Bayes-factor bookkeeping on the final Result.
type NoiseLikelihood interface {
	Likelihood
	NoiseLogLikelihood() (float64, error)
}

// Prior represents one scalar prior distribution. Rescale maps the unit
// interval to the physical support (inverse CDF) and must be monotonic
// non-decreasing; Rescale and CDF are mutual inverses up to floating
// point tolerance. A fixed prior is a degenerate distribution returning
// a constant regardless of the unit coordinate.
type Prior interface {
	// Name returns the parameter name this prior is attached to.
	Name() string

	// Rescale maps u in [0,1] to the physical support. For infinite
	// support the open interval (0,1) maps to the real line and the
	// exact boundaries produce signed infinity.
	Rescale(u float64) float64

	// Prob returns the probability density at x.
	Prob(x float64) float64

	// LnProb returns the log probability density at x.
	LnProb(x float64) float64

	// CDF returns the cumulative distribution function at x.
	CDF(x float64) float64

	// Sample draws one value from the prior using the supplied source.
	Sample(rng *rand.Rand) float64

	// IsFixed reports whether this prior is a degenerate (delta
	// function) distribution. Fixed priors are excluded from every
	// unit-hypercube-indexed operation.
	IsFixed() bool

	// Unit returns the display-only unit string, possibly empty.
	Unit() string

	// LatexLabel returns the display label for plots and tables.
	LatexLabel() string

	// Describe returns a stable textual description of the prior type
	// and shape parameters, used for run-identifier hashing.
	Describe() string
}

// RawOutput is the uniform shape every sampler adapter translates its
// backend-native output into. Samples are in physical space, columns in
// search-parameter-key order. LogWeights is nil for backends that emit
// unweighted chains; non-nil means importance weights that require
// resampling to an unweighted posterior.
type RawOutput struct {
	Sampler        string      `json:"sampler"`
	Samples        [][]float64 `json:"samples"`
	LogLikelihoods []float64   `json:"log_likelihoods"`
	LogWeights     []float64   `json:"log_weights,omitempty"`

	// LogEvidence and LogEvidenceError are NaN when the backend does
	// not compute an evidence estimate. NaN is the explicit
	// not-computed marker, never a fabricated zero.
	LogEvidence      float64 `json:"log_evidence"`
	LogEvidenceError float64 `json:"log_evidence_error"`

	Iterations      int64 `json:"iterations"`
	LikelihoodCalls int64 `json:"likelihood_calls"`
}

// HasEvidence reports whether the backend produced an evidence estimate.
func (r *RawOutput) HasEvidence() bool {
	return !math.IsNaN(r.LogEvidence)
}

// RunState tracks the lifecycle of one sampler run.
type RunState int

const (
	StateNotStarted RunState = iota
	StateInitializing
	StateRunning
	StateConverged
	StateTerminated
	StateFailed
)

// String returns the human-readable name of a run state.
func (s RunState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SamplerAdapter is the uniform contract every backend adapter
// implements. Construction validates configuration and loads any
// compatible checkpoint; Run blocks for the full duration of sampling.
type SamplerAdapter interface {
	// Name returns the registry name of the backend.
	Name() string

	// Description returns a human-readable description of the backend.
	Description() string

	// SupportsEvidence reports whether the backend produces an
	// evidence estimate with uncertainty.
	SupportsEvidence() bool

	// SupportsResume reports whether the backend can resume from a
	// checkpoint snapshot.
	SupportsResume() bool

	// State returns the current lifecycle state of the run.
	State() RunState

	// Run executes the backend until convergence, cancellation, or
	// failure. Cancellation is honored at the next iteration boundary
	// after a final checkpoint write.
	Run(ctx context.Context) (*RawOutput, error)
}
