/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: samplers_test.go
Description: Comprehensive tests for the sampler adapter layer. Tests registry
dispatch, option schema validation, the run lifecycle state machine, known-answer
evidence recovery for every backend, cancellation, and checkpoint resumption.
*/

package samplers_test

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/likelihood"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/kleascm/akaylee-inference/pkg/samplers"
	"github.com/kleascm/akaylee-inference/pkg/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evidenceTolerance bounds the accepted deviation of a backend's log
// evidence from the analytical value in the known-answer tests.
const evidenceTolerance = 1.0

// analyticalLogZ is ln Z for the standard two-parameter Gaussian
// likelihood under U(-5, 5) priors on both parameters: -ln(10) - ln(10).
var analyticalLogZ = -2 * math.Log(10)

// --- Juicy metrics registry ---
type TestResult struct {
	Name       string  `json:"name"`
	Passed     bool    `json:"passed"`
	Error      string  `json:"error,omitempty"`
	DurationMs float64 `json:"duration_ms"`
}

var testResults []TestResult

func recordTestResult(name string, passed bool, errMsg string, duration time.Duration) {
	testResults = append(testResults, TestResult{
		Name:       name,
		Passed:     passed,
		Error:      errMsg,
		DurationMs: float64(duration.Microseconds()) / 1000.0,
	})
}

// --- Test wrappers ---

func runTest(t *testing.T, name string, testFunc func(t *testing.T)) {
	start := time.Now()
	var errMsg string
	passed := true
	defer func() {
		if r := recover(); r != nil {
			errMsg = fmt.Sprintf("panic: %v", r)
			passed = false
		}
		dur := time.Since(start)
		recordTestResult(name, passed && !t.Failed(), errMsg, dur)
	}()
	testFunc(t)
	if t.Failed() {
		passed = false
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	if len(testResults) > 0 {
		utils.WriteRunSummary("metrics", "samplers_tests", testResults)
	}
	os.Exit(code)
}

// countingLikelihood wraps the analytical Gaussian with a call counter
// so tests can assert that validation happens before any evaluation.
type countingLikelihood struct {
	inner *likelihood.AnalyticalGaussian
	calls int64
}

func newCountingLikelihood(t *testing.T) *countingLikelihood {
	t.Helper()
	inner, err := likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0, "theta": 0},
		map[string]float64{"mu": 1, "theta": 1},
	)
	require.NoError(t, err)
	return &countingLikelihood{inner: inner}
}

func (l *countingLikelihood) LogLikelihood(parameters map[string]float64) (float64, error) {
	atomic.AddInt64(&l.calls, 1)
	return l.inner.LogLikelihood(parameters)
}

func (l *countingLikelihood) Calls() int64 { return atomic.LoadInt64(&l.calls) }

func gaussianPriors(t *testing.T) *priors.PriorDict {
	t.Helper()
	pd := priors.NewPriorDict()
	mu, err := priors.NewUniform("mu", -5, 5)
	require.NoError(t, err)
	theta, err := priors.NewUniform("theta", -5, 5)
	require.NoError(t, err)
	require.NoError(t, pd.Set(mu))
	require.NoError(t, pd.Set(theta))
	return pd
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func baseConfig(t *testing.T, like interfaces.Likelihood, options map[string]interface{}) *samplers.Config {
	t.Helper()
	return &samplers.Config{
		Likelihood: like,
		Priors:     gaussianPriors(t),
		Options:    options,
		Label:      "test",
		OutDir:     t.TempDir(),
		Seed:       42,
		Workers:    2,
		Logger:     quietLogger(),
	}
}

// TestKnownSamplers tests the registry listing
func TestKnownSamplers(t *testing.T) {
	assert.Equal(t, []string{"ensemble", "nest", "ptmcmc"}, samplers.KnownSamplers())
}

// TestUnknownSamplerFailsFast tests registry dispatch on a bad name
func TestUnknownSamplerFailsFast(t *testing.T) {
	runTest(t, "TestUnknownSamplerFailsFast", func(t *testing.T) {
		like := newCountingLikelihood(t)
		_, err := samplers.New("imnotasampler", baseConfig(t, like, nil))
		require.Error(t, err)

		var cfgErr *interfaces.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		// The error enumerates every implemented backend
		assert.Contains(t, err.Error(), "nest")
		assert.Contains(t, err.Error(), "ensemble")
		assert.Contains(t, err.Error(), "ptmcmc")

		// Dispatch failure happens before any likelihood evaluation
		assert.Equal(t, int64(0), like.Calls())
	})
}

// TestSamplerNameCaseInsensitive tests case-insensitive dispatch
func TestSamplerNameCaseInsensitive(t *testing.T) {
	adapter, err := samplers.New("NEST", baseConfig(t, newCountingLikelihood(t), nil))
	require.NoError(t, err)
	assert.Equal(t, "nest", adapter.Name())
}

// TestUnknownOptionStrict tests the strictness policy for options
func TestUnknownOptionStrict(t *testing.T) {
	runTest(t, "TestUnknownOptionStrict", func(t *testing.T) {
		like := newCountingLikelihood(t)

		cfg := baseConfig(t, like, map[string]interface{}{"nlives": 100})
		cfg.Strict = true
		_, err := samplers.New("nest", cfg)
		require.Error(t, err)

		var cfgErr *interfaces.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Contains(t, err.Error(), "nlives")
		assert.Equal(t, int64(0), like.Calls())

		// Lenient mode warns and constructs the adapter
		lenient := baseConfig(t, like, map[string]interface{}{"nlives": 100})
		adapter, err := samplers.New("nest", lenient)
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	})
}

// TestInvalidOptionValue tests option value validation
func TestInvalidOptionValue(t *testing.T) {
	_, err := samplers.New("nest", baseConfig(t, newCountingLikelihood(t),
		map[string]interface{}{"nlive": 1}))
	assert.Error(t, err)

	_, err = samplers.New("ensemble", baseConfig(t, newCountingLikelihood(t),
		map[string]interface{}{"stretch": 0.5}))
	assert.Error(t, err)

	_, err = samplers.New("ensemble", baseConfig(t, newCountingLikelihood(t),
		map[string]interface{}{"nsteps": 10, "nburn": 10}))
	assert.Error(t, err)
}

// TestAdapterCapabilities tests the capability reporting contract
func TestAdapterCapabilities(t *testing.T) {
	nest, err := samplers.New("nest", baseConfig(t, newCountingLikelihood(t), nil))
	require.NoError(t, err)
	assert.True(t, nest.SupportsEvidence())
	assert.True(t, nest.SupportsResume())
	assert.Equal(t, interfaces.StateNotStarted, nest.State())

	ensemble, err := samplers.New("ensemble", baseConfig(t, newCountingLikelihood(t), nil))
	require.NoError(t, err)
	assert.False(t, ensemble.SupportsEvidence())

	pt, err := samplers.New("ptmcmc", baseConfig(t, newCountingLikelihood(t), nil))
	require.NoError(t, err)
	assert.True(t, pt.SupportsEvidence())
}

// TestNestedGaussianEvidence tests known-answer evidence recovery
func TestNestedGaussianEvidence(t *testing.T) {
	runTest(t, "TestNestedGaussianEvidence", func(t *testing.T) {
		adapter, err := samplers.New("nest", baseConfig(t, newCountingLikelihood(t),
			map[string]interface{}{"nlive": 150, "dlogz": 0.1}))
		require.NoError(t, err)

		raw, err := adapter.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, interfaces.StateConverged, adapter.State())

		// The evidence matches the analytical value
		require.True(t, raw.HasEvidence())
		assert.InDelta(t, analyticalLogZ, raw.LogEvidence, evidenceTolerance)
		assert.Greater(t, raw.LogEvidenceError, 0.0)

		// Weighted output: one weight per sample
		require.Equal(t, len(raw.Samples), len(raw.LogLikelihoods))
		require.Equal(t, len(raw.Samples), len(raw.LogWeights))
		assert.Greater(t, raw.Iterations, int64(0))
		assert.Greater(t, raw.LikelihoodCalls, int64(0))

		// The weighted posterior mean sits on the injected center
		assert.InDelta(t, 0.0, weightedMean(raw, 0), 0.3)
		assert.InDelta(t, 0.0, weightedMean(raw, 1), 0.3)
	})
}

// TestEnsembleGaussianPosterior tests the no-evidence MCMC backend
func TestEnsembleGaussianPosterior(t *testing.T) {
	runTest(t, "TestEnsembleGaussianPosterior", func(t *testing.T) {
		adapter, err := samplers.New("ensemble", baseConfig(t, newCountingLikelihood(t),
			map[string]interface{}{"nwalkers": 40, "nsteps": 300, "nburn": 150}))
		require.NoError(t, err)

		raw, err := adapter.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, interfaces.StateConverged, adapter.State())

		// The not-computed marker, never a fabricated zero
		assert.False(t, raw.HasEvidence())
		assert.True(t, math.IsNaN(raw.LogEvidence))
		assert.Nil(t, raw.LogWeights)

		// All post-burn walker states are collected
		assert.Equal(t, 40*150, len(raw.Samples))

		// The chain is centered on the injected values
		assert.InDelta(t, 0.0, unweightedMean(raw, 0), 0.3)
		assert.InDelta(t, 0.0, unweightedMean(raw, 1), 0.3)
	})
}

// TestPTMCMCEvidence tests thermodynamic-integration evidence recovery
func TestPTMCMCEvidence(t *testing.T) {
	runTest(t, "TestPTMCMCEvidence", func(t *testing.T) {
		adapter, err := samplers.New("ptmcmc", baseConfig(t, newCountingLikelihood(t),
			map[string]interface{}{"ntemps": 6, "nwalkers": 40, "nsteps": 400, "nburn": 200}))
		require.NoError(t, err)

		raw, err := adapter.Run(context.Background())
		require.NoError(t, err)

		require.True(t, raw.HasEvidence())
		assert.InDelta(t, analyticalLogZ, raw.LogEvidence, 2*evidenceTolerance)
		assert.GreaterOrEqual(t, raw.LogEvidenceError, 0.0)

		// Only the cold chain contributes posterior samples
		assert.Equal(t, 40*200, len(raw.Samples))
		assert.InDelta(t, 0.0, unweightedMean(raw, 0), 0.3)
	})
}

// TestCancellationCheckpointsAndWraps tests the termination path
func TestCancellationCheckpointsAndWraps(t *testing.T) {
	runTest(t, "TestCancellationCheckpointsAndWraps", func(t *testing.T) {
		cfg := baseConfig(t, newCountingLikelihood(t), map[string]interface{}{"nlive": 50})
		adapter, err := samplers.New("nest", cfg)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err = adapter.Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		var runtimeErr *interfaces.SamplerRuntimeError
		require.ErrorAs(t, err, &runtimeErr)
		assert.Equal(t, "nest", runtimeErr.Sampler)
		assert.Equal(t, cfg.CheckpointPath, runtimeErr.CheckpointPath)
	})
}

// TestNestedResume tests checkpoint resumption with reduced rework
func TestNestedResume(t *testing.T) {
	runTest(t, "TestNestedResume", func(t *testing.T) {
		outdir := t.TempDir()
		options := func(budget int) map[string]interface{} {
			return map[string]interface{}{"nlive": 80, "max_iterations": budget, "dlogz": 1e-9}
		}
		makeConfig := func(like interfaces.Likelihood, budget int) *samplers.Config {
			return &samplers.Config{
				Likelihood:         like,
				Priors:             gaussianPriors(t),
				Options:            options(budget),
				Label:              "resume",
				OutDir:             outdir,
				Seed:               42,
				Workers:            2,
				CheckpointInterval: time.Nanosecond,
				Resume:             true,
				Logger:             quietLogger(),
			}
		}

		// First leg: run to a small iteration budget, checkpointing as it goes
		firstLike := newCountingLikelihood(t)
		first, err := samplers.New("nest", makeConfig(firstLike, 60))
		require.NoError(t, err)
		rawFirst, err := first.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(60), rawFirst.Iterations)

		checkpointPath := filepath.Join(outdir, "resume_nest_checkpoint.cbor.zst")
		_, err = os.Stat(checkpointPath)
		require.NoError(t, err)

		// Second leg: same run identity, larger budget, resumes from disk
		secondLike := newCountingLikelihood(t)
		second, err := samplers.New("nest", makeConfig(secondLike, 240))
		require.NoError(t, err)
		rawSecond, err := second.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(240), rawSecond.Iterations)

		// Fresh reference: the full budget from scratch in its own directory
		freshLike := newCountingLikelihood(t)
		freshCfg := makeConfig(freshLike, 240)
		freshCfg.OutDir = t.TempDir()
		fresh, err := samplers.New("nest", freshCfg)
		require.NoError(t, err)
		_, err = fresh.Run(context.Background())
		require.NoError(t, err)

		// Resumption skips the completed work: the second leg evaluates
		// strictly less than a fresh full run
		assert.Less(t, secondLike.Calls(), freshLike.Calls())
		assert.Greater(t, secondLike.Calls(), int64(0))
	})
}

// TestResumeIncompatiblePriors tests the checkpoint compatibility gate
func TestResumeIncompatiblePriors(t *testing.T) {
	runTest(t, "TestResumeIncompatiblePriors", func(t *testing.T) {
		outdir := t.TempDir()
		checkpointPath := filepath.Join(outdir, "shared_checkpoint.cbor.zst")

		makeConfig := func(pd *priors.PriorDict) *samplers.Config {
			return &samplers.Config{
				Likelihood:         newCountingLikelihood(t),
				Priors:             pd,
				Options:            map[string]interface{}{"nlive": 50, "max_iterations": 20},
				Label:              "gate",
				OutDir:             outdir,
				Seed:               7,
				CheckpointInterval: time.Nanosecond,
				CheckpointPath:     checkpointPath,
				Resume:             true,
				Logger:             quietLogger(),
			}
		}

		first, err := samplers.New("nest", makeConfig(gaussianPriors(t)))
		require.NoError(t, err)
		_, err = first.Run(context.Background())
		require.NoError(t, err)

		// Different priors, same checkpoint path: resumption is refused
		changed := priors.NewPriorDict()
		mu, err := priors.NewUniform("mu", -2, 2)
		require.NoError(t, err)
		theta, err := priors.NewUniform("theta", -2, 2)
		require.NoError(t, err)
		require.NoError(t, changed.Set(mu))
		require.NoError(t, changed.Set(theta))

		second, err := samplers.New("nest", makeConfig(changed))
		require.NoError(t, err)
		_, err = second.Run(context.Background())
		require.Error(t, err)
		var incompatible *interfaces.CheckpointIncompatibleError
		assert.ErrorAs(t, err, &incompatible)

		// Force restart downgrades the mismatch to a fresh run
		forced := makeConfig(changed)
		forced.ForceRestart = true
		third, err := samplers.New("nest", forced)
		require.NoError(t, err)
		raw, err := third.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(20), raw.Iterations)
	})
}

// TestResumeIncompatiblePopulation tests the live-point resume gate
func TestResumeIncompatiblePopulation(t *testing.T) {
	runTest(t, "TestResumeIncompatiblePopulation", func(t *testing.T) {
		outdir := t.TempDir()

		makeConfig := func(nlive int, force bool) *samplers.Config {
			return &samplers.Config{
				Likelihood:         newCountingLikelihood(t),
				Priors:             gaussianPriors(t),
				Options:            map[string]interface{}{"nlive": nlive, "max_iterations": 20},
				Label:              "pop",
				OutDir:             outdir,
				Seed:               7,
				CheckpointInterval: time.Nanosecond,
				Resume:             true,
				ForceRestart:       force,
				Logger:             quietLogger(),
			}
		}

		first, err := samplers.New("nest", makeConfig(40, false))
		require.NoError(t, err)
		_, err = first.Run(context.Background())
		require.NoError(t, err)

		// The log-volume bookkeeping derives from nlive, so a changed
		// live-point count must not splice into the restored state
		second, err := samplers.New("nest", makeConfig(60, false))
		require.NoError(t, err)
		_, err = second.Run(context.Background())
		require.Error(t, err)
		var incompatible *interfaces.CheckpointIncompatibleError
		require.ErrorAs(t, err, &incompatible)
		assert.Contains(t, incompatible.Expected, "60 live points")
		assert.Contains(t, incompatible.Found, "40 live points")

		// Force restart downgrades the mismatch to a fresh run
		third, err := samplers.New("nest", makeConfig(60, true))
		require.NoError(t, err)
		raw, err := third.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(20), raw.Iterations)
	})
}

// TestResumeIncompatibleWalkers tests the rung walker-count resume gate
func TestResumeIncompatibleWalkers(t *testing.T) {
	runTest(t, "TestResumeIncompatibleWalkers", func(t *testing.T) {
		outdir := t.TempDir()

		makeConfig := func(nwalkers int) *samplers.Config {
			return &samplers.Config{
				Likelihood: newCountingLikelihood(t),
				Priors:     gaussianPriors(t),
				Options: map[string]interface{}{
					"ntemps": 2, "nwalkers": nwalkers, "nsteps": 4, "nburn": 2,
				},
				Label:              "rungs",
				OutDir:             outdir,
				Seed:               7,
				CheckpointInterval: time.Nanosecond,
				Resume:             true,
				Logger:             quietLogger(),
			}
		}

		first, err := samplers.New("ptmcmc", makeConfig(6))
		require.NoError(t, err)
		_, err = first.Run(context.Background())
		require.NoError(t, err)

		// A grown ensemble would index past the restored rung state
		second, err := samplers.New("ptmcmc", makeConfig(8))
		require.NoError(t, err)
		_, err = second.Run(context.Background())
		require.Error(t, err)
		var incompatible *interfaces.CheckpointIncompatibleError
		require.ErrorAs(t, err, &incompatible)
		assert.Contains(t, incompatible.Expected, "8 walkers")
		assert.Contains(t, incompatible.Found, "6 walkers")
	})
}

// weightedMean computes the posterior mean of one parameter from
// weighted nested samples.
func weightedMean(raw *interfaces.RawOutput, dim int) float64 {
	maxW := math.Inf(-1)
	for _, lw := range raw.LogWeights {
		if lw > maxW {
			maxW = lw
		}
	}
	num, den := 0.0, 0.0
	for i, lw := range raw.LogWeights {
		w := math.Exp(lw - maxW)
		num += w * raw.Samples[i][dim]
		den += w
	}
	return num / den
}

// unweightedMean computes the chain mean of one parameter.
func unweightedMean(raw *interfaces.RawOutput, dim int) float64 {
	total := 0.0
	for _, row := range raw.Samples {
		total += row[dim]
	}
	return total / float64(len(raw.Samples))
}
