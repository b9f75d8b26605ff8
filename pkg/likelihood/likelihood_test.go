/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: likelihood_test.go
Description: Comprehensive unit tests for the likelihood implementations and the
parallel evaluation pool. Tests analytical Gaussian values, data likelihoods, fixed
parameter injection, non-finite clamping, call counting, and batch cancellation.
*/

package likelihood_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/kleascm/akaylee-inference/pkg/likelihood"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLikelihood captures the parameter maps it is evaluated with
// and returns a configurable value.
type recordingLikelihood struct {
	mu    sync.Mutex
	seen  []map[string]float64
	value float64
	err   error
}

func (l *recordingLikelihood) LogLikelihood(parameters map[string]float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := make(map[string]float64, len(parameters))
	for k, v := range parameters {
		copied[k] = v
	}
	l.seen = append(l.seen, copied)
	return l.value, l.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func poolPriors(t *testing.T) *priors.PriorDict {
	t.Helper()
	pd := priors.NewPriorDict()
	mu, err := priors.NewUniform("mu", -5, 5)
	require.NoError(t, err)
	require.NoError(t, pd.Set(mu))
	require.NoError(t, pd.Set(priors.NewDeltaFunction("phase", 2.5)))
	return pd
}

// TestAnalyticalGaussian tests the known-answer likelihood values
func TestAnalyticalGaussian(t *testing.T) {
	like, err := likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0},
		map[string]float64{"mu": 1},
	)
	require.NoError(t, err)

	// At the mean the log density is -0.5*ln(2*pi)
	logL, err := like.LogLikelihood(map[string]float64{"mu": 0})
	require.NoError(t, err)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), logL, 1e-12)

	// One sigma away subtracts one half
	logL1, err := like.LogLikelihood(map[string]float64{"mu": 1})
	require.NoError(t, err)
	assert.InDelta(t, logL-0.5, logL1, 1e-12)

	// Missing parameters are an error, not a silent zero
	_, err = like.LogLikelihood(map[string]float64{"sigma": 1})
	assert.Error(t, err)

	noise, err := like.NoiseLogLikelihood()
	require.NoError(t, err)
	assert.Equal(t, 0.0, noise)
}

// TestAnalyticalGaussianValidation tests construction-time validation
func TestAnalyticalGaussianValidation(t *testing.T) {
	_, err := likelihood.NewAnalyticalGaussian(map[string]float64{}, map[string]float64{})
	assert.Error(t, err)

	_, err = likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0}, map[string]float64{})
	assert.Error(t, err)

	_, err = likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0}, map[string]float64{"mu": -1})
	assert.Error(t, err)
}

// TestGaussianData tests the data likelihood against a linear model
func TestGaussianData(t *testing.T) {
	model := func(x float64, parameters map[string]float64) float64 {
		return parameters["m"]*x + parameters["c"]
	}
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7} // exactly m=2, c=1
	like, err := likelihood.NewGaussianData(x, y, 0.5, model)
	require.NoError(t, err)

	// A perfect fit leaves only the normalization term
	perfect, err := like.LogLikelihood(map[string]float64{"m": 2, "c": 1})
	require.NoError(t, err)
	norm := -math.Log(0.5*math.Sqrt(2*math.Pi)) * 4
	assert.InDelta(t, norm, perfect, 1e-12)

	// Any other parameters fit worse
	off, err := like.LogLikelihood(map[string]float64{"m": 2, "c": 2})
	require.NoError(t, err)
	assert.Less(t, off, perfect)

	// The null model is the zero function
	noise, err := like.NoiseLogLikelihood()
	require.NoError(t, err)
	zero, err := like.LogLikelihood(map[string]float64{"m": 0, "c": 0})
	require.NoError(t, err)
	assert.InDelta(t, zero, noise, 1e-12)

	_, err = likelihood.NewGaussianData([]float64{1}, []float64{1, 2}, 0.5, model)
	assert.Error(t, err)
	_, err = likelihood.NewGaussianData(x, y, 0, model)
	assert.Error(t, err)
	_, err = likelihood.NewGaussianData(x, y, 0.5, nil)
	assert.Error(t, err)
}

// TestPoolFixedInjection tests that fixed parameters reach every evaluation
func TestPoolFixedInjection(t *testing.T) {
	rec := &recordingLikelihood{value: -1}
	pool := likelihood.NewPool(rec, poolPriors(t), 1, testLogger())

	logL, err := pool.Evaluate([]float64{0.25})
	require.NoError(t, err)
	assert.Equal(t, -1.0, logL)

	require.Len(t, rec.seen, 1)
	assert.Equal(t, 0.25, rec.seen[0]["mu"])
	assert.Equal(t, 2.5, rec.seen[0]["phase"])

	// Wrong vector length is rejected before evaluation
	_, err = pool.Evaluate([]float64{1, 2})
	assert.Error(t, err)
	assert.Equal(t, int64(1), pool.Calls())
}

// TestPoolClampsNonFinite tests the -Inf clamping of NaN and +Inf
func TestPoolClampsNonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1)} {
		pool := likelihood.NewPool(&recordingLikelihood{value: bad}, poolPriors(t), 1, testLogger())
		logL, err := pool.Evaluate([]float64{0})
		require.NoError(t, err)
		assert.True(t, math.IsInf(logL, -1))
	}

	// -Inf itself passes through untouched
	pool := likelihood.NewPool(&recordingLikelihood{value: math.Inf(-1)}, poolPriors(t), 1, testLogger())
	logL, err := pool.Evaluate([]float64{0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(logL, -1))
}

// TestPoolEvaluateBatch tests ordered batch evaluation and call counting
func TestPoolEvaluateBatch(t *testing.T) {
	like, err := likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0},
		map[string]float64{"mu": 1},
	)
	require.NoError(t, err)

	pd := priors.NewPriorDict()
	mu, err := priors.NewUniform("mu", -5, 5)
	require.NoError(t, err)
	require.NoError(t, pd.Set(mu))

	pool := likelihood.NewPool(like, pd, 4, testLogger())

	thetas := [][]float64{{0}, {1}, {2}, {-1}, {0.5}}
	logLs, err := pool.EvaluateBatch(context.Background(), thetas)
	require.NoError(t, err)
	require.Len(t, logLs, len(thetas))

	// Results come back in input order regardless of worker scheduling
	for i, theta := range thetas {
		direct, err := like.LogLikelihood(map[string]float64{"mu": theta[0]})
		require.NoError(t, err)
		assert.InDelta(t, direct, logLs[i], 1e-12)
	}
	assert.Equal(t, int64(len(thetas)), pool.Calls())

	// Empty batches are a no-op
	empty, err := pool.EvaluateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// TestPoolBatchError tests that the first evaluation error aborts the batch
func TestPoolBatchError(t *testing.T) {
	rec := &recordingLikelihood{err: fmt.Errorf("target crashed")}
	pool := likelihood.NewPool(rec, poolPriors(t), 2, testLogger())

	_, err := pool.EvaluateBatch(context.Background(), [][]float64{{0}, {1}, {2}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target crashed")
}

// TestPoolBatchCancellation tests context cancellation during a batch
func TestPoolBatchCancellation(t *testing.T) {
	pool := likelihood.NewPool(&recordingLikelihood{value: -1}, poolPriors(t), 1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.EvaluateBatch(ctx, [][]float64{{0}, {1}, {2}})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestPoolSearchKeys tests the positional ordering contract
func TestPoolSearchKeys(t *testing.T) {
	pool := likelihood.NewPool(&recordingLikelihood{}, poolPriors(t), 0, testLogger())
	assert.Equal(t, []string{"mu"}, pool.SearchKeys())
}
