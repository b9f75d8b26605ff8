/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: result.go
Description: Posterior result assembly for the Akaylee Inference engine. Normalizes
heterogeneous raw backend output (weighted nested samples, unweighted MCMC chains,
evidence with or without an uncertainty) into the canonical Result artifact, with
explicit not-computed markers for quantities a backend cannot produce.
*/

package results

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"gonum.org/v1/gonum/floats"
)

// ResultFormatVersion is the Result container format version.
const ResultFormatVersion = 1

// Derived posterior columns appended after the search parameter columns.
const (
	ColumnLogLikelihood = "log_likelihood"
	ColumnLogPrior      = "log_prior"
)

// PosteriorTable is the table of posterior samples: one row per
// independent sample, columns exactly the search parameter keys plus
// the declared derived columns.
type PosteriorTable struct {
	Columns []string    `cbor:"columns" json:"columns"`
	Rows    [][]float64 `cbor:"rows" json:"rows"`
}

// Len returns the number of posterior samples.
func (t *PosteriorTable) Len() int { return len(t.Rows) }

// Column extracts one named column.
func (t *PosteriorTable) Column(name string) ([]float64, error) {
	for j, c := range t.Columns {
		if c == name {
			out := make([]float64, len(t.Rows))
			for i, row := range t.Rows {
				out[i] = row[j]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("posterior has no column %q", name)
}

// Mean returns the sample mean of one named column.
func (t *PosteriorTable) Mean(name string) (float64, error) {
	col, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("posterior column %q is empty", name)
	}
	total := 0.0
	for _, v := range col {
		total += v
	}
	return total / float64(len(col)), nil
}

// Result is the terminal artifact of one sampler run.
type Result struct {
	Label   string `cbor:"label" json:"label"`
	OutDir  string `cbor:"outdir" json:"outdir"`
	Sampler string `cbor:"sampler" json:"sampler"`

	SearchParameterKeys  []string           `cbor:"search_parameter_keys" json:"search_parameter_keys"`
	FixedParameterKeys   []string           `cbor:"fixed_parameter_keys" json:"fixed_parameter_keys"`
	FixedParameterValues map[string]float64 `cbor:"fixed_parameter_values" json:"fixed_parameter_values"`

	Posterior *PosteriorTable `cbor:"posterior" json:"posterior"`

	// Evidence fields are NaN when the backend did not compute them.
	LogEvidence      float64 `cbor:"log_evidence" json:"log_evidence"`
	LogEvidenceError float64 `cbor:"log_evidence_error" json:"log_evidence_error"`
	LogNoiseEvidence float64 `cbor:"log_noise_evidence" json:"log_noise_evidence"`
	LogBayesFactor   float64 `cbor:"log_bayes_factor" json:"log_bayes_factor"`

	SamplerKwargs       map[string]interface{} `cbor:"sampler_kwargs" json:"sampler_kwargs"`
	InjectionParameters map[string]float64     `cbor:"injection_parameters,omitempty" json:"injection_parameters,omitempty"`

	LikelihoodCalls int64         `cbor:"likelihood_calls" json:"likelihood_calls"`
	SamplingTime    time.Duration `cbor:"sampling_time" json:"sampling_time"`
	RunID           string        `cbor:"run_id" json:"run_id"`
	CreatedAt       time.Time     `cbor:"created_at" json:"created_at"`
	FormatVersion   int           `cbor:"format_version" json:"format_version"`
}

// EvidenceComputed reports whether the run produced an evidence estimate.
func (r *Result) EvidenceComputed() bool { return !math.IsNaN(r.LogEvidence) }

// AssembleOptions carries the run metadata attached to the Result.
type AssembleOptions struct {
	Label               string
	OutDir              string
	SamplerKwargs       map[string]interface{}
	InjectionParameters map[string]float64
	RunID               string
	SamplingTime        time.Duration

	// LogNoiseEvidence is NaN when the likelihood defines no null model.
	LogNoiseEvidence float64

	// Seed drives the weighted-sample resampling; the same raw output
	// and seed always produce the same posterior table.
	Seed int64
}

// Assemble reconciles raw backend output into the canonical Result.
// Weighted samples are resampled to an unweighted posterior; the row
// count equals the backend-reported sample count, never padded or
// truncated silently.
func Assemble(raw *interfaces.RawOutput, pd *priors.PriorDict, opts AssembleOptions) (*Result, error) {
	search := pd.SearchParameterKeys()

	if len(raw.Samples) == 0 {
		return nil, fmt.Errorf("backend %q produced no samples", raw.Sampler)
	}
	if len(raw.LogLikelihoods) != len(raw.Samples) {
		return nil, fmt.Errorf("backend %q reported %d samples but %d log-likelihoods",
			raw.Sampler, len(raw.Samples), len(raw.LogLikelihoods))
	}
	for i, row := range raw.Samples {
		if len(row) != len(search) {
			return nil, fmt.Errorf("sample %d has %d parameters, expected %d", i, len(row), len(search))
		}
	}

	samples := raw.Samples
	logLs := raw.LogLikelihoods
	if raw.LogWeights != nil {
		if len(raw.LogWeights) != len(raw.Samples) {
			return nil, fmt.Errorf("backend %q reported %d samples but %d weights",
				raw.Sampler, len(raw.Samples), len(raw.LogWeights))
		}
		samples, logLs = resampleWeighted(raw.Samples, raw.LogLikelihoods, raw.LogWeights, opts.Seed)
	}

	columns := append(append([]string{}, search...), ColumnLogLikelihood, ColumnLogPrior)
	rows := make([][]float64, len(samples))
	for i, theta := range samples {
		row := make([]float64, 0, len(columns))
		row = append(row, theta...)
		row = append(row, logLs[i], pd.LnProbVector(theta))
		rows[i] = row
	}

	logBF := raw.LogEvidence - opts.LogNoiseEvidence

	return &Result{
		Label:                opts.Label,
		OutDir:               opts.OutDir,
		Sampler:              raw.Sampler,
		SearchParameterKeys:  search,
		FixedParameterKeys:   pd.FixedParameterKeys(),
		FixedParameterValues: pd.FixedParameterValues(),
		Posterior:            &PosteriorTable{Columns: columns, Rows: rows},
		LogEvidence:          raw.LogEvidence,
		LogEvidenceError:     raw.LogEvidenceError,
		LogNoiseEvidence:     opts.LogNoiseEvidence,
		LogBayesFactor:       logBF,
		SamplerKwargs:        opts.SamplerKwargs,
		InjectionParameters:  opts.InjectionParameters,
		LikelihoodCalls:      raw.LikelihoodCalls,
		SamplingTime:         opts.SamplingTime,
		RunID:                opts.RunID,
		CreatedAt:            time.Now(),
		FormatVersion:        ResultFormatVersion,
	}, nil
}

// resampleWeighted converts weighted nested samples to an unweighted
// posterior by multinomial resampling. The output size is the Kish
// effective sample size of the weights.
func resampleWeighted(samples [][]float64, logLs, logWeights []float64, seed int64) ([][]float64, []float64) {
	maxW := floats.Max(logWeights)
	weights := make([]float64, len(logWeights))
	sumW, sumW2 := 0.0, 0.0
	for i, lw := range logWeights {
		w := math.Exp(lw - maxW)
		weights[i] = w
		sumW += w
		sumW2 += w * w
	}

	nEff := int(sumW * sumW / sumW2)
	if nEff < 1 {
		nEff = 1
	}

	cumulative := make([]float64, len(weights))
	running := 0.0
	for i, w := range weights {
		running += w
		cumulative[i] = running
	}

	rng := rand.New(rand.NewSource(seed))
	outSamples := make([][]float64, nEff)
	outLogLs := make([]float64, nEff)
	for i := 0; i < nEff; i++ {
		target := rng.Float64() * sumW
		idx := sort.SearchFloat64s(cumulative, target)
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		row := make([]float64, len(samples[idx]))
		copy(row, samples[idx])
		outSamples[i] = row
		outLogLs[i] = logLs[idx]
	}
	return outSamples, outLogLs
}
