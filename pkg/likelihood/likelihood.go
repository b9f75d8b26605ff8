/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: likelihood.go
Description: Likelihood implementations for the Akaylee Inference engine. Provides
an analytical multivariate Gaussian likelihood for known-answer analyses and a
Gaussian-noise data likelihood for fitting a model function to observed points.
Both are re-entrant and safe for concurrent evaluation from the worker pool.
*/

package likelihood

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"
)

// AnalyticalGaussian is a likelihood whose value is a product of
// independent Gaussian densities, one per parameter. Its evidence under
// a bounded uniform prior is analytically known, which makes it the
// standard known-answer target for backend verification.
type AnalyticalGaussian struct {
	Means  map[string]float64
	Sigmas map[string]float64

	// NoiseLogL is the log-likelihood of the null/no-signal model,
	// reported through NoiseLogLikelihood for Bayes-factor bookkeeping.
	NoiseLogL float64

	dists map[string]distuv.Normal
}

// NewAnalyticalGaussian creates an analytical Gaussian likelihood with
// one mean and width per parameter
func NewAnalyticalGaussian(means, sigmas map[string]float64) (*AnalyticalGaussian, error) {
	if len(means) == 0 {
		return nil, fmt.Errorf("analytical gaussian likelihood requires at least one parameter")
	}
	dists := make(map[string]distuv.Normal, len(means))
	for name, mu := range means {
		sigma, ok := sigmas[name]
		if !ok {
			return nil, fmt.Errorf("missing sigma for parameter %q", name)
		}
		if sigma <= 0 {
			return nil, fmt.Errorf("sigma for parameter %q must be positive, got %g", name, sigma)
		}
		dists[name] = distuv.Normal{Mu: mu, Sigma: sigma}
	}
	return &AnalyticalGaussian{Means: means, Sigmas: sigmas, dists: dists}, nil
}

// LogLikelihood sums the per-parameter Gaussian log densities.
func (l *AnalyticalGaussian) LogLikelihood(parameters map[string]float64) (float64, error) {
	total := 0.0
	for name, dist := range l.dists {
		x, ok := parameters[name]
		if !ok {
			return 0, fmt.Errorf("parameter %q missing from likelihood input", name)
		}
		total += dist.LogProb(x)
	}
	return total, nil
}

// NoiseLogLikelihood returns the configured null-model log-likelihood.
func (l *AnalyticalGaussian) NoiseLogLikelihood() (float64, error) {
	return l.NoiseLogL, nil
}

// Describe returns a deterministic summary of the likelihood
// configuration, used to gate checkpoint resumption.
func (l *AnalyticalGaussian) Describe() string {
	names := make([]string, 0, len(l.Means))
	for name := range l.Means {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("AnalyticalGaussian(")
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=N(%g, %g)", name, l.Means[name], l.Sigmas[name])
	}
	fmt.Fprintf(&b, "; noise_log_l=%g)", l.NoiseLogL)
	return b.String()
}

// ModelFunc evaluates a physical model at one abscissa for a parameter mapping
type ModelFunc func(x float64, parameters map[string]float64) float64

// GaussianData is a likelihood for observed points (X, Y) with known
// Gaussian noise of width Sigma around a model function. The null model
// is the model function identically zero.
type GaussianData struct {
	X     []float64
	Y     []float64
	Sigma float64
	Model ModelFunc
}

// NewGaussianData creates a Gaussian-noise data likelihood
func NewGaussianData(x, y []float64, sigma float64, model ModelFunc) (*GaussianData, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("data length mismatch: %d abscissae, %d ordinates", len(x), len(y))
	}
	if len(x) == 0 {
		return nil, fmt.Errorf("gaussian data likelihood requires at least one data point")
	}
	if sigma <= 0 {
		return nil, fmt.Errorf("noise sigma must be positive, got %g", sigma)
	}
	if model == nil {
		return nil, fmt.Errorf("model function must not be nil")
	}
	return &GaussianData{X: x, Y: y, Sigma: sigma, Model: model}, nil
}

// LogLikelihood evaluates the Gaussian residual log-likelihood.
func (l *GaussianData) LogLikelihood(parameters map[string]float64) (float64, error) {
	return l.residualLogL(func(x float64) float64 {
		return l.Model(x, parameters)
	}), nil
}

// NoiseLogLikelihood evaluates the likelihood of the data under a zero model.
func (l *GaussianData) NoiseLogLikelihood() (float64, error) {
	return l.residualLogL(func(x float64) float64 { return 0 }), nil
}

// Describe returns a deterministic summary of the data configuration,
// used to gate checkpoint resumption. The model function itself has no
// fingerprint; the observed data and noise width do.
func (l *GaussianData) Describe() string {
	h := sha256.New()
	for i := range l.X {
		fmt.Fprintf(h, "%g %g\n", l.X[i], l.Y[i])
	}
	return fmt.Sprintf("GaussianData(n=%d, sigma=%g, data=%s)",
		len(l.X), l.Sigma, hex.EncodeToString(h.Sum(nil)))
}

func (l *GaussianData) residualLogL(model func(float64) float64) float64 {
	norm := -math.Log(l.Sigma*math.Sqrt(2*math.Pi)) * float64(len(l.X))
	chi2 := 0.0
	for i, x := range l.X {
		r := (l.Y[i] - model(x)) / l.Sigma
		chi2 += r * r
	}
	return norm - 0.5*chi2
}
