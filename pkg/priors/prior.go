/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: prior.go
Description: Scalar prior distributions for the Akaylee Inference engine. Implements
the Prior contract for uniform, log-uniform, power-law, normal, truncated normal,
and delta-function distributions. Each prior maps the unit interval to its physical
support through an inverse-CDF rescale transform used by nested-sampling backends.
*/

package priors

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"gonum.org/v1/gonum/stat/distuv"
)

// basePrior holds the display metadata shared by every prior type
type basePrior struct {
	name  string
	unit  string
	latex string
}

// Name returns the parameter name this prior is attached to.
func (b *basePrior) Name() string { return b.name }

// Unit returns the display-only unit string.
func (b *basePrior) Unit() string { return b.unit }

// LatexLabel returns the display label, falling back to the name.
func (b *basePrior) LatexLabel() string {
	if b.latex == "" {
		return b.name
	}
	return b.latex
}

// SetUnit sets the display-only unit string.
func (b *basePrior) SetUnit(unit string) { b.unit = unit }

// SetLatexLabel sets the display label used in tables and plots.
func (b *basePrior) SetLatexLabel(label string) { b.latex = label }

// Uniform is a flat prior over a bounded interval
type Uniform struct {
	basePrior
	Minimum float64
	Maximum float64
}

// NewUniform creates a uniform prior over [minimum, maximum]
func NewUniform(name string, minimum, maximum float64) (*Uniform, error) {
	if !(minimum < maximum) {
		return nil, interfaces.NewConfigurationError(
			"uniform prior %q requires minimum < maximum, got [%g, %g]", name, minimum, maximum)
	}
	return &Uniform{basePrior: basePrior{name: name}, Minimum: minimum, Maximum: maximum}, nil
}

// Rescale maps u in [0,1] linearly onto [minimum, maximum].
func (p *Uniform) Rescale(u float64) float64 {
	return p.Minimum + u*(p.Maximum-p.Minimum)
}

// Prob returns the density, constant inside the support and zero outside.
func (p *Uniform) Prob(x float64) float64 {
	if x < p.Minimum || x > p.Maximum {
		return 0
	}
	return 1 / (p.Maximum - p.Minimum)
}

// LnProb returns the log density at x.
func (p *Uniform) LnProb(x float64) float64 {
	return math.Log(p.Prob(x))
}

// CDF returns the cumulative distribution at x, clipped to [0,1].
func (p *Uniform) CDF(x float64) float64 {
	return clipUnit((x - p.Minimum) / (p.Maximum - p.Minimum))
}

// Sample draws one value from the prior.
func (p *Uniform) Sample(rng *rand.Rand) float64 { return p.Rescale(rng.Float64()) }

// IsFixed reports that a uniform prior is a free parameter.
func (p *Uniform) IsFixed() bool { return false }

// Describe returns a stable description used for identifier hashing.
func (p *Uniform) Describe() string {
	return fmt.Sprintf("Uniform(minimum=%g, maximum=%g)", p.Minimum, p.Maximum)
}

// LogUniform is a prior flat in the logarithm of the parameter
type LogUniform struct {
	basePrior
	Minimum float64
	Maximum float64
}

// NewLogUniform creates a log-uniform prior over [minimum, maximum], minimum > 0
func NewLogUniform(name string, minimum, maximum float64) (*LogUniform, error) {
	if minimum <= 0 || !(minimum < maximum) {
		return nil, interfaces.NewConfigurationError(
			"log-uniform prior %q requires 0 < minimum < maximum, got [%g, %g]", name, minimum, maximum)
	}
	return &LogUniform{basePrior: basePrior{name: name}, Minimum: minimum, Maximum: maximum}, nil
}

// Rescale maps u in [0,1] onto the support, uniform in log space.
func (p *LogUniform) Rescale(u float64) float64 {
	return p.Minimum * math.Pow(p.Maximum/p.Minimum, u)
}

// Prob returns the density at x.
func (p *LogUniform) Prob(x float64) float64 {
	if x < p.Minimum || x > p.Maximum {
		return 0
	}
	return 1 / (x * math.Log(p.Maximum/p.Minimum))
}

// LnProb returns the log density at x.
func (p *LogUniform) LnProb(x float64) float64 { return math.Log(p.Prob(x)) }

// CDF returns the cumulative distribution at x, clipped to [0,1].
func (p *LogUniform) CDF(x float64) float64 {
	if x <= p.Minimum {
		return 0
	}
	return clipUnit(math.Log(x/p.Minimum) / math.Log(p.Maximum/p.Minimum))
}

// Sample draws one value from the prior.
func (p *LogUniform) Sample(rng *rand.Rand) float64 { return p.Rescale(rng.Float64()) }

// IsFixed reports that a log-uniform prior is a free parameter.
func (p *LogUniform) IsFixed() bool { return false }

// Describe returns a stable description used for identifier hashing.
func (p *LogUniform) Describe() string {
	return fmt.Sprintf("LogUniform(minimum=%g, maximum=%g)", p.Minimum, p.Maximum)
}

// PowerLaw is a prior proportional to x^alpha over a bounded interval.
// Alpha of -1 is the log-uniform special case.
type PowerLaw struct {
	basePrior
	Alpha   float64
	Minimum float64
	Maximum float64
}

// NewPowerLaw creates a power-law prior x^alpha over [minimum, maximum]
func NewPowerLaw(name string, alpha, minimum, maximum float64) (*PowerLaw, error) {
	if minimum <= 0 || !(minimum < maximum) {
		return nil, interfaces.NewConfigurationError(
			"power-law prior %q requires 0 < minimum < maximum, got [%g, %g]", name, minimum, maximum)
	}
	return &PowerLaw{basePrior: basePrior{name: name}, Alpha: alpha, Minimum: minimum, Maximum: maximum}, nil
}

// Rescale maps u in [0,1] onto the support with power-law density.
func (p *PowerLaw) Rescale(u float64) float64 {
	if p.Alpha == -1 {
		return p.Minimum * math.Pow(p.Maximum/p.Minimum, u)
	}
	a1 := p.Alpha + 1
	lo := math.Pow(p.Minimum, a1)
	hi := math.Pow(p.Maximum, a1)
	return math.Pow(lo+u*(hi-lo), 1/a1)
}

// Prob returns the normalized density at x.
func (p *PowerLaw) Prob(x float64) float64 {
	if x < p.Minimum || x > p.Maximum {
		return 0
	}
	if p.Alpha == -1 {
		return 1 / (x * math.Log(p.Maximum/p.Minimum))
	}
	a1 := p.Alpha + 1
	norm := a1 / (math.Pow(p.Maximum, a1) - math.Pow(p.Minimum, a1))
	return norm * math.Pow(x, p.Alpha)
}

// LnProb returns the log density at x.
func (p *PowerLaw) LnProb(x float64) float64 { return math.Log(p.Prob(x)) }

// CDF returns the cumulative distribution at x, clipped to [0,1].
func (p *PowerLaw) CDF(x float64) float64 {
	if x <= p.Minimum {
		return 0
	}
	if x >= p.Maximum {
		return 1
	}
	if p.Alpha == -1 {
		return math.Log(x/p.Minimum) / math.Log(p.Maximum/p.Minimum)
	}
	a1 := p.Alpha + 1
	lo := math.Pow(p.Minimum, a1)
	hi := math.Pow(p.Maximum, a1)
	return clipUnit((math.Pow(x, a1) - lo) / (hi - lo))
}

// Sample draws one value from the prior.
func (p *PowerLaw) Sample(rng *rand.Rand) float64 { return p.Rescale(rng.Float64()) }

// IsFixed reports that a power-law prior is a free parameter.
func (p *PowerLaw) IsFixed() bool { return false }

// Describe returns a stable description used for identifier hashing.
func (p *PowerLaw) Describe() string {
	return fmt.Sprintf("PowerLaw(alpha=%g, minimum=%g, maximum=%g)", p.Alpha, p.Minimum, p.Maximum)
}

// Normal is a Gaussian prior with infinite support. Rescale is a
// bijection from the open interval (0,1) to the real line; the exact
// boundaries map to signed infinity, which downstream code tolerates.
type Normal struct {
	basePrior
	Mu    float64
	Sigma float64

	dist distuv.Normal
}

// NewNormal creates a Gaussian prior with mean mu and width sigma
func NewNormal(name string, mu, sigma float64) (*Normal, error) {
	if sigma <= 0 {
		return nil, interfaces.NewConfigurationError(
			"normal prior %q requires sigma > 0, got %g", name, sigma)
	}
	return &Normal{
		basePrior: basePrior{name: name},
		Mu:        mu,
		Sigma:     sigma,
		dist:      distuv.Normal{Mu: mu, Sigma: sigma},
	}, nil
}

// Rescale maps u in (0,1) to the real line via the normal quantile.
func (p *Normal) Rescale(u float64) float64 {
	switch {
	case u <= 0:
		return math.Inf(-1)
	case u >= 1:
		return math.Inf(1)
	}
	return p.dist.Quantile(u)
}

// Prob returns the density at x.
func (p *Normal) Prob(x float64) float64 { return p.dist.Prob(x) }

// LnProb returns the log density at x.
func (p *Normal) LnProb(x float64) float64 { return p.dist.LogProb(x) }

// CDF returns the cumulative distribution at x.
func (p *Normal) CDF(x float64) float64 { return p.dist.CDF(x) }

// Sample draws one value from the prior.
func (p *Normal) Sample(rng *rand.Rand) float64 {
	return p.Mu + p.Sigma*rng.NormFloat64()
}

// IsFixed reports that a normal prior is a free parameter.
func (p *Normal) IsFixed() bool { return false }

// Describe returns a stable description used for identifier hashing.
func (p *Normal) Describe() string {
	return fmt.Sprintf("Normal(mu=%g, sigma=%g)", p.Mu, p.Sigma)
}

// TruncatedNormal is a Gaussian prior restricted to a bounded interval
type TruncatedNormal struct {
	basePrior
	Mu      float64
	Sigma   float64
	Minimum float64
	Maximum float64

	dist    distuv.Normal
	cdfLow  float64
	cdfHigh float64
}

// NewTruncatedNormal creates a Gaussian prior truncated to [minimum, maximum]
func NewTruncatedNormal(name string, mu, sigma, minimum, maximum float64) (*TruncatedNormal, error) {
	if sigma <= 0 {
		return nil, interfaces.NewConfigurationError(
			"truncated-normal prior %q requires sigma > 0, got %g", name, sigma)
	}
	if !(minimum < maximum) {
		return nil, interfaces.NewConfigurationError(
			"truncated-normal prior %q requires minimum < maximum, got [%g, %g]", name, minimum, maximum)
	}
	dist := distuv.Normal{Mu: mu, Sigma: sigma}
	return &TruncatedNormal{
		basePrior: basePrior{name: name},
		Mu:        mu, Sigma: sigma,
		Minimum: minimum, Maximum: maximum,
		dist:    dist,
		cdfLow:  dist.CDF(minimum),
		cdfHigh: dist.CDF(maximum),
	}, nil
}

// Rescale maps u in [0,1] onto the truncated support.
func (p *TruncatedNormal) Rescale(u float64) float64 {
	return p.dist.Quantile(p.cdfLow + u*(p.cdfHigh-p.cdfLow))
}

// Prob returns the renormalized density at x.
func (p *TruncatedNormal) Prob(x float64) float64 {
	if x < p.Minimum || x > p.Maximum {
		return 0
	}
	return p.dist.Prob(x) / (p.cdfHigh - p.cdfLow)
}

// LnProb returns the log density at x.
func (p *TruncatedNormal) LnProb(x float64) float64 { return math.Log(p.Prob(x)) }

// CDF returns the cumulative distribution at x, clipped to [0,1].
func (p *TruncatedNormal) CDF(x float64) float64 {
	return clipUnit((p.dist.CDF(x) - p.cdfLow) / (p.cdfHigh - p.cdfLow))
}

// Sample draws one value from the prior.
func (p *TruncatedNormal) Sample(rng *rand.Rand) float64 { return p.Rescale(rng.Float64()) }

// IsFixed reports that a truncated-normal prior is a free parameter.
func (p *TruncatedNormal) IsFixed() bool { return false }

// Describe returns a stable description used for identifier hashing.
func (p *TruncatedNormal) Describe() string {
	return fmt.Sprintf("TruncatedNormal(mu=%g, sigma=%g, minimum=%g, maximum=%g)",
		p.Mu, p.Sigma, p.Minimum, p.Maximum)
}

// DeltaFunction is the degenerate prior pinning a parameter to a
// constant. It is excluded from every unit-hypercube-indexed operation
// but retained in the full parameter record.
type DeltaFunction struct {
	basePrior
	Peak float64
}

// NewDeltaFunction creates a fixed prior returning peak for any input
func NewDeltaFunction(name string, peak float64) *DeltaFunction {
	return &DeltaFunction{basePrior: basePrior{name: name}, Peak: peak}
}

// Rescale returns the peak regardless of the unit coordinate.
func (p *DeltaFunction) Rescale(u float64) float64 { return p.Peak }

// Prob returns 1 at the peak and 0 elsewhere, so a fixed parameter
// contributes zero to any summed log-density.
func (p *DeltaFunction) Prob(x float64) float64 {
	if x == p.Peak {
		return 1
	}
	return 0
}

// LnProb returns the log density at x.
func (p *DeltaFunction) LnProb(x float64) float64 { return math.Log(p.Prob(x)) }

// CDF is the unit step at the peak.
func (p *DeltaFunction) CDF(x float64) float64 {
	if x < p.Peak {
		return 0
	}
	return 1
}

// Sample returns the peak.
func (p *DeltaFunction) Sample(rng *rand.Rand) float64 { return p.Peak }

// IsFixed reports that a delta-function prior is fixed.
func (p *DeltaFunction) IsFixed() bool { return true }

// Describe returns a stable description used for identifier hashing.
func (p *DeltaFunction) Describe() string {
	return fmt.Sprintf("DeltaFunction(peak=%g)", p.Peak)
}

// clipUnit clamps a value to [0,1]
func clipUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
