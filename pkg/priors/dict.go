/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dict.go
Description: Ordered prior collection for the Akaylee Inference engine. Maintains the
canonical parameter ordering used by every downstream array-based interface, the
stable partition into free and fixed parameters, and the vectorized unit-hypercube
rescale and summed log-density operations.
*/

package priors

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// PriorDict is an ordered mapping from parameter name to Prior. Names
// are unique; insertion order defines the canonical parameter ordering.
// After Freeze the key set is immutable: mutating priors mid-run is
// undefined behavior and is rejected.
type PriorDict struct {
	keys   []string
	priors map[string]interfaces.Prior
	frozen bool
}

// NewPriorDict creates an empty prior collection
func NewPriorDict() *PriorDict {
	return &PriorDict{priors: make(map[string]interfaces.Prior)}
}

// Set adds a prior to the collection. Duplicate names and mutation
// after the first sampler invocation are configuration errors.
func (d *PriorDict) Set(p interfaces.Prior) error {
	if d.frozen {
		return interfaces.NewConfigurationError(
			"prior collection is frozen: cannot add %q after a sampler run has started", p.Name())
	}
	if _, exists := d.priors[p.Name()]; exists {
		return interfaces.NewConfigurationError("duplicate prior name %q", p.Name())
	}
	d.keys = append(d.keys, p.Name())
	d.priors[p.Name()] = p
	return nil
}

// Get returns the prior for a parameter name, or nil if absent.
func (d *PriorDict) Get(name string) interfaces.Prior {
	return d.priors[name]
}

// Keys returns all parameter names in insertion order.
func (d *PriorDict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len returns the total number of declared parameters.
func (d *PriorDict) Len() int { return len(d.keys) }

// Freeze marks the collection immutable. Called by the orchestration
// layer at the first sampler invocation.
func (d *PriorDict) Freeze() { d.frozen = true }

// SearchParameterKeys returns the ordered names of the free parameters.
// This order is fixed for the lifetime of a run: it defines the meaning
// of every positional vector exchanged with a backend.
func (d *PriorDict) SearchParameterKeys() []string {
	var out []string
	for _, k := range d.keys {
		if !d.priors[k].IsFixed() {
			out = append(out, k)
		}
	}
	return out
}

// FixedParameterKeys returns the ordered names of the fixed parameters.
func (d *PriorDict) FixedParameterKeys() []string {
	var out []string
	for _, k := range d.keys {
		if d.priors[k].IsFixed() {
			out = append(out, k)
		}
	}
	return out
}

// FixedParameterValues returns the constant value of every fixed parameter.
func (d *PriorDict) FixedParameterValues() map[string]float64 {
	out := make(map[string]float64)
	for _, k := range d.keys {
		if p := d.priors[k]; p.IsFixed() {
			out[k] = p.Rescale(0.5)
		}
	}
	return out
}

// Rescale maps a unit-hypercube vector (length = number of free
// parameters, in search-parameter-key order) to a full physical
// parameter mapping including the fixed parameters.
func (d *PriorDict) Rescale(unit []float64) (map[string]float64, error) {
	search := d.SearchParameterKeys()
	if len(unit) != len(search) {
		return nil, interfaces.NewConfigurationError(
			"unit vector has length %d, expected %d free parameters", len(unit), len(search))
	}
	out := make(map[string]float64, len(d.keys))
	for i, k := range search {
		out[k] = d.priors[k].Rescale(unit[i])
	}
	for k, v := range d.FixedParameterValues() {
		out[k] = v
	}
	return out, nil
}

// RescaleVector maps a unit-hypercube vector to a positional physical
// vector over the free parameters only, in search-parameter-key order.
func (d *PriorDict) RescaleVector(unit []float64) ([]float64, error) {
	search := d.SearchParameterKeys()
	if len(unit) != len(search) {
		return nil, interfaces.NewConfigurationError(
			"unit vector has length %d, expected %d free parameters", len(unit), len(search))
	}
	out := make([]float64, len(search))
	for i, k := range search {
		out[i] = d.priors[k].Rescale(unit[i])
	}
	return out, nil
}

// LnProb returns the summed log-density of the free parameters for a
// physical parameter mapping. Fixed parameters contribute zero.
func (d *PriorDict) LnProb(sample map[string]float64) float64 {
	total := 0.0
	for _, k := range d.SearchParameterKeys() {
		total += d.priors[k].LnProb(sample[k])
	}
	return total
}

// LnProbVector returns the summed log-density for a positional physical
// vector over the free parameters.
func (d *PriorDict) LnProbVector(theta []float64) float64 {
	total := 0.0
	for i, k := range d.SearchParameterKeys() {
		total += d.priors[k].LnProb(theta[i])
	}
	return total
}

// SampleUnit draws one unit-hypercube point over the free parameters.
func (d *PriorDict) SampleUnit(rng *rand.Rand) []float64 {
	n := len(d.SearchParameterKeys())
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()
	}
	return out
}

// Sample draws one full physical parameter mapping from the priors.
func (d *PriorDict) Sample(rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(d.keys))
	for _, k := range d.keys {
		out[k] = d.priors[k].Sample(rng)
	}
	return out
}

// ValidateRescale checks that every free prior defines an invertible
// rescale transform, as required by backends that sample in the unit
// hypercube. Probes the transform at interior points and checks that
// CDF inverts it within tolerance.
func (d *PriorDict) ValidateRescale() error {
	const tol = 1e-8
	for _, k := range d.SearchParameterKeys() {
		p := d.priors[k]
		lo, mid, hi := p.Rescale(0.25), p.Rescale(0.5), p.Rescale(0.75)
		if !(lo <= mid && mid <= hi) {
			return interfaces.NewConfigurationError(
				"prior %q has a non-monotonic rescale transform", k)
		}
		if diff := p.CDF(mid) - 0.5; diff > tol || diff < -tol {
			return interfaces.NewConfigurationError(
				"prior %q rescale and CDF are not mutual inverses (CDF(rescale(0.5)) = %g)", k, p.CDF(mid))
		}
	}
	return nil
}

// Describe returns a stable textual description of the whole collection,
// one line per parameter in canonical order.
func (d *PriorDict) Describe() string {
	var b strings.Builder
	for _, k := range d.keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(d.priors[k].Describe())
		b.WriteString("\n")
	}
	return b.String()
}

// Hash returns a hex digest of the collection description, used as part
// of the run identifier that gates checkpoint resumption.
func (d *PriorDict) Hash() string {
	sum := sha256.Sum256([]byte(d.Describe()))
	return hex.EncodeToString(sum[:])
}
