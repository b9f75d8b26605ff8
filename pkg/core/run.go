/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: run.go
Description: Primary orchestration entry point for the Akaylee Inference engine.
Dispatches a run configuration to the selected backend adapter, measures sampling
time, performs the evidence and Bayes-factor bookkeeping against the likelihood's
null model, assembles the canonical Result, persists it, and removes the stale
checkpoint on clean completion.
*/

package core

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/checkpoint"
	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/kleascm/akaylee-inference/pkg/results"
	"github.com/kleascm/akaylee-inference/pkg/samplers"
	"github.com/kleascm/akaylee-inference/pkg/utils"
	"github.com/sirupsen/logrus"
)

// RunConfig is the full configuration for one analysis run.
type RunConfig struct {
	// Sampler selects the backend by registry name.
	Sampler string

	Label  string
	OutDir string

	// Options holds the backend-specific tuning options, validated
	// against the backend's option schema at construction time.
	Options map[string]interface{}

	// InjectionParameters are the ground-truth values when running on
	// simulated data; attached to the Result untouched.
	InjectionParameters map[string]float64

	// UseRatio samples with the likelihood ratio relative to the null
	// model; the evidence bookkeeping restores the full evidence from
	// the Bayes factor and the noise evidence.
	UseRatio bool

	Seed               int64
	Workers            int
	CheckpointInterval time.Duration
	CheckpointPath     string
	Resume             bool
	ForceRestart       bool
	Strict             bool

	Logger *logrus.Logger
}

// Run is the primary interface to parameter estimation: it wires the
// likelihood and prior collection into the selected backend, blocks for
// the duration of sampling, and returns the assembled Result. Backend
// errors are never swallowed or silently retried; they surface with the
// backend name, iteration, and checkpoint path attached.
func Run(ctx context.Context, cfg *RunConfig, like interfaces.Likelihood, pd *priors.PriorDict) (*results.Result, error) {
	if cfg == nil {
		return nil, interfaces.NewConfigurationError("run configuration must not be nil")
	}
	if cfg.Label == "" {
		cfg.Label = "label"
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "outdir"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	identifier := checkpoint.Identifier(cfg.Sampler, cfg.Label, pd, like)
	rc := newRunContext(cfg.Label, cfg.OutDir, cfg.Sampler, identifier, cfg.Logger)

	if cached := cachedResult(cfg, rc); cached != nil {
		return cached, nil
	}

	adapter, err := samplers.New(cfg.Sampler, &samplers.Config{
		Likelihood:         like,
		Priors:             pd,
		Options:            cfg.Options,
		Label:              cfg.Label,
		OutDir:             cfg.OutDir,
		Seed:               cfg.Seed,
		Workers:            cfg.Workers,
		CheckpointInterval: cfg.CheckpointInterval,
		CheckpointPath:     cfg.CheckpointPath,
		Resume:             cfg.Resume,
		ForceRestart:       cfg.ForceRestart,
		Strict:             cfg.Strict,
		Logger:             cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	rc.Logger.WithFields(logrus.Fields{
		"run_id":  rc.ID,
		"sampler": cfg.Sampler,
		"label":   cfg.Label,
		"outdir":  cfg.OutDir,
	}).Info("Starting sampler run")

	start := time.Now()
	raw, err := adapter.Run(ctx)
	if err != nil {
		return nil, err
	}
	samplingTime := time.Since(start)
	rc.Logger.WithField("sampling_time", samplingTime).Info("Sampling completed")

	logNoiseEvidence := math.NaN()
	if nl, ok := like.(interfaces.NoiseLikelihood); ok {
		logNoiseEvidence, err = nl.NoiseLogLikelihood()
		if err != nil {
			return nil, fmt.Errorf("noise log-likelihood evaluation failed: %w", err)
		}
	}

	// When sampling with the likelihood ratio the backend's evidence is
	// the Bayes factor; restore the full evidence before assembly.
	if cfg.UseRatio && raw.HasEvidence() && !math.IsNaN(logNoiseEvidence) {
		raw.LogEvidence += logNoiseEvidence
	}

	result, err := results.Assemble(raw, pd, results.AssembleOptions{
		Label:               cfg.Label,
		OutDir:              cfg.OutDir,
		SamplerKwargs:       samplerKwargs(cfg),
		InjectionParameters: cfg.InjectionParameters,
		RunID:               rc.ID,
		SamplingTime:        samplingTime,
		LogNoiseEvidence:    logNoiseEvidence,
		Seed:                cfg.Seed,
	})
	if err != nil {
		return nil, err
	}

	path, err := result.Save()
	if err != nil {
		return nil, err
	}
	if _, err := result.SavePosteriorSamples(); err != nil {
		return nil, err
	}
	if _, err := utils.WriteRunSummary(cfg.OutDir, cfg.Label, runSummary(rc, result)); err != nil {
		rc.Logger.Warnf("Failed to write run summary: %v", err)
	}
	rc.Logger.WithField("path", path).Info("Result saved")

	// Clean completion: deliberately remove the stale checkpoint.
	if m, ok := adapter.(interface{ Manager() *checkpoint.Manager }); ok {
		if err := m.Manager().Clean(); err != nil {
			rc.Logger.Warnf("Failed to remove stale checkpoint: %v", err)
		}
	}

	return result, nil
}

// cachedResult returns a previously saved Result for the same label and
// sampler when resumption is allowed, short-circuiting the run.
func cachedResult(cfg *RunConfig, rc *RunContext) *results.Result {
	if !cfg.Resume {
		return nil
	}
	path := results.FileName(cfg.OutDir, cfg.Label)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	r, err := results.Read(path)
	if err != nil || r.Sampler != cfg.Sampler {
		return nil
	}
	rc.Logger.Warnf("Using cached result from %s", path)
	return r
}

// samplerKwargs records the sampler configuration actually used on the
// Result, backend options plus the generic run options.
func samplerKwargs(cfg *RunConfig) map[string]interface{} {
	kwargs := make(map[string]interface{}, len(cfg.Options)+3)
	for k, v := range cfg.Options {
		kwargs[k] = v
	}
	kwargs["sampler"] = cfg.Sampler
	kwargs["seed"] = cfg.Seed
	kwargs["workers"] = cfg.Workers
	return kwargs
}

// summary is the compact JSON summary written next to the Result.
// Not-computed quantities serialize as null, never as a fabricated
// number.
type summary struct {
	RunID            string   `json:"run_id"`
	Sampler          string   `json:"sampler"`
	Label            string   `json:"label"`
	LogEvidence      *float64 `json:"log_evidence"`
	LogEvidenceError *float64 `json:"log_evidence_error"`
	LogBayesFactor   *float64 `json:"log_bayes_factor"`
	PosteriorSamples int      `json:"posterior_samples"`
	LikelihoodCalls  int64    `json:"likelihood_calls"`
	SamplingTimeMs   float64  `json:"sampling_time_ms"`
}

func runSummary(rc *RunContext, r *results.Result) *summary {
	return &summary{
		RunID:            rc.ID,
		Sampler:          r.Sampler,
		Label:            r.Label,
		LogEvidence:      finiteOrNil(r.LogEvidence),
		LogEvidenceError: finiteOrNil(r.LogEvidenceError),
		LogBayesFactor:   finiteOrNil(r.LogBayesFactor),
		PosteriorSamples: r.Posterior.Len(),
		LikelihoodCalls:  r.LikelihoodCalls,
		SamplingTimeMs:   float64(r.SamplingTime.Microseconds()) / 1000.0,
	}
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
