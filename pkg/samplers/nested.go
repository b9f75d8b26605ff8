/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: nested.go
Description: Nested sampling backend adapter for the Akaylee Inference engine.
Maintains a population of live points in the unit hypercube, replaces the worst
point each iteration under a rising likelihood threshold, accumulates the evidence
integral with its information-based uncertainty, and emits weighted nested samples
for posterior resampling. Supports periodic checkpointing and resumption.
*/

package samplers

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// nestedSnapshotVersion is the version of the nested adapter's
// checkpoint payload. A mismatch is reported as incompatibility, not a
// decode crash.
const nestedSnapshotVersion = 1

// nestedSnapshot is the backend-specific checkpoint payload.
type nestedSnapshot struct {
	Version   int         `cbor:"version"`
	Seed      int64       `cbor:"seed"`
	Iteration int64       `cbor:"iteration"`
	LogZ      float64     `cbor:"log_z"`
	Info      float64     `cbor:"info"`
	LiveUnit  [][]float64 `cbor:"live_unit"`
	LiveTheta [][]float64 `cbor:"live_theta"`
	LiveLogL  []float64   `cbor:"live_log_l"`
	DeadTheta [][]float64 `cbor:"dead_theta"`
	DeadLogL  []float64   `cbor:"dead_log_l"`
	DeadLogWt []float64   `cbor:"dead_log_wt"`
}

// nestedSampler implements the SamplerAdapter contract for the "nest"
// backend.
type nestedSampler struct {
	*baseSampler

	nlive         int
	dlogz         float64
	maxIterations int64
	maxRejection  int
	walks         int

	iteration int64
	logZ      float64
	info      float64
	liveUnit  [][]float64
	liveTheta [][]float64
	liveLogL  []float64
	deadTheta [][]float64
	deadLogL  []float64
	deadLogWt []float64
}

// newNested constructs the nested sampling adapter, validating the
// option schema and the prior rescale transforms before any likelihood
// evaluation.
func newNested(cfg *Config) (interfaces.SamplerAdapter, error) {
	base, err := newBase("nest", cfg, true)
	if err != nil {
		return nil, err
	}

	s := &nestedSampler{
		baseSampler:  base,
		nlive:        500,
		dlogz:        0.1,
		maxRejection: 10000,
		walks:        20,
		logZ:         math.Inf(-1),
	}

	schema := map[string]optionSetter{
		"nlive": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 2 {
				return fmt.Errorf("nlive must be at least 2, got %d", n)
			}
			s.nlive = n
			return nil
		},
		"dlogz": func(v interface{}) error {
			f, err := asFloat(v)
			if err != nil {
				return err
			}
			if f <= 0 {
				return fmt.Errorf("dlogz must be positive, got %g", f)
			}
			s.dlogz = f
			return nil
		},
		"max_iterations": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			s.maxIterations = int64(n)
			return nil
		},
		"max_rejection": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 1 {
				return fmt.Errorf("max_rejection must be positive, got %d", n)
			}
			s.maxRejection = n
			return nil
		},
		"walks": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 1 {
				return fmt.Errorf("walks must be positive, got %d", n)
			}
			s.walks = n
			return nil
		},
	}
	if err := applyOptions("nest", cfg.Options, schema, cfg.Strict, cfg.Logger); err != nil {
		return nil, err
	}
	return s, nil
}

// Description returns a human-readable description of the backend.
func (s *nestedSampler) Description() string {
	return "Nested sampling with rejection and random-walk live-point replacement"
}

// SupportsEvidence reports that nested sampling estimates the evidence.
func (s *nestedSampler) SupportsEvidence() bool { return true }

// SupportsResume reports that the backend checkpoints its live points.
func (s *nestedSampler) SupportsResume() bool { return true }

// Run executes nested sampling until the evidence contribution of the
// live points falls below dlogz, the iteration budget is exhausted, or
// the context is cancelled.
func (s *nestedSampler) Run(ctx context.Context) (*interfaces.RawOutput, error) {
	s.state = interfaces.StateInitializing

	var snap nestedSnapshot
	header, err := s.loadSnapshot(&snap)
	if err != nil {
		s.state = interfaces.StateFailed
		return nil, err
	}

	if header != nil {
		if snap.Version != nestedSnapshotVersion {
			incompatible := &interfaces.CheckpointIncompatibleError{
				Path:     s.manager.Path(),
				Expected: fmt.Sprintf("payload version %d", nestedSnapshotVersion),
				Found:    fmt.Sprintf("payload version %d", snap.Version),
				Version:  snap.Version,
			}
			if !s.cfg.ForceRestart {
				s.state = interfaces.StateFailed
				return nil, incompatible
			}
			s.cfg.Logger.Warnf("Discarding checkpoint with stale payload version: %v", incompatible)
			header = nil
		} else if len(snap.LiveUnit) != s.nlive {
			// The evidence bookkeeping derives log-volumes from nlive;
			// restoring a differently-sized live set would corrupt it.
			incompatible := &interfaces.CheckpointIncompatibleError{
				Path:     s.manager.Path(),
				Expected: fmt.Sprintf("%d live points", s.nlive),
				Found:    fmt.Sprintf("%d live points", len(snap.LiveUnit)),
				Version:  snap.Version,
			}
			if !s.cfg.ForceRestart {
				s.state = interfaces.StateFailed
				return nil, incompatible
			}
			s.cfg.Logger.Warnf("Discarding checkpoint with mismatched population: %v", incompatible)
			header = nil
		} else {
			s.restore(&snap)
			s.cfg.Logger.WithField("iteration", s.iteration).Info("Nested sampling resumed from checkpoint")
		}
	}

	if header == nil {
		if err := s.initializeLivePoints(ctx); err != nil {
			s.state = interfaces.StateFailed
			return nil, s.runtimeError(0, err)
		}
	}

	s.beginRun()

	for {
		select {
		case <-ctx.Done():
			s.finalCheckpoint(s.iteration, s.snapshot())
			s.state = interfaces.StateTerminated
			return nil, s.runtimeError(s.iteration, ctx.Err())
		default:
		}

		if s.converged() {
			break
		}

		if err := s.step(ctx); err != nil {
			s.finalCheckpoint(s.iteration, s.snapshot())
			s.state = interfaces.StateFailed
			return nil, s.runtimeError(s.iteration, err)
		}

		if err := s.maybeCheckpoint(s.iteration, s.snapshot()); err != nil {
			s.state = interfaces.StateFailed
			return nil, s.runtimeError(s.iteration, err)
		}
	}

	s.consumeLivePoints()
	s.state = interfaces.StateConverged

	logZErr := math.Sqrt(math.Max(s.info, 0) / float64(s.nlive))
	s.cfg.Logger.WithFields(map[string]interface{}{
		"iterations":   s.iteration,
		"log_evidence": s.logZ,
		"error":        logZErr,
	}).Info("Nested sampling converged")

	return &interfaces.RawOutput{
		Sampler:          "nest",
		Samples:          s.deadTheta,
		LogLikelihoods:   s.deadLogL,
		LogWeights:       s.deadLogWt,
		LogEvidence:      s.logZ,
		LogEvidenceError: logZErr,
		Iterations:       s.iteration,
		LikelihoodCalls:  s.restoredCalls + s.pool.Calls(),
	}, nil
}

// initializeLivePoints draws the initial population from the prior and
// evaluates it through the pool in one batch.
func (s *nestedSampler) initializeLivePoints(ctx context.Context) error {
	s.liveUnit = make([][]float64, s.nlive)
	s.liveTheta = make([][]float64, s.nlive)
	for i := 0; i < s.nlive; i++ {
		unit := s.cfg.Priors.SampleUnit(s.rng)
		theta, err := s.cfg.Priors.RescaleVector(unit)
		if err != nil {
			return err
		}
		s.liveUnit[i] = unit
		s.liveTheta[i] = theta
	}

	logLs, err := s.pool.EvaluateBatch(ctx, s.liveTheta)
	if err != nil {
		return err
	}
	s.liveLogL = logLs
	return nil
}

// converged checks the backend's own convergence criterion: the maximum
// remaining evidence contribution of the live points relative to dlogz,
// or the configured iteration budget.
func (s *nestedSampler) converged() bool {
	if s.maxIterations > 0 && s.iteration >= s.maxIterations {
		return true
	}
	if s.iteration == 0 {
		return false
	}
	maxLogL := s.liveLogL[0]
	for _, l := range s.liveLogL[1:] {
		if l > maxLogL {
			maxLogL = l
		}
	}
	logXCur := -float64(s.iteration) / float64(s.nlive)
	return logAddExp(s.logZ, maxLogL+logXCur)-s.logZ < s.dlogz
}

// step removes the worst live point, accumulates its evidence weight,
// and replaces it with a new point above the rising threshold.
func (s *nestedSampler) step(ctx context.Context) error {
	worst := 0
	for i, l := range s.liveLogL {
		if l < s.liveLogL[worst] {
			worst = i
		}
	}
	threshold := s.liveLogL[worst]

	logXPrev := -float64(s.iteration) / float64(s.nlive)
	logWidth := logXPrev + math.Log(-math.Expm1(-1/float64(s.nlive)))
	logWt := threshold + logWidth

	s.accumulate(logWt, threshold)

	dead := make([]float64, len(s.liveTheta[worst]))
	copy(dead, s.liveTheta[worst])
	s.deadTheta = append(s.deadTheta, dead)
	s.deadLogL = append(s.deadLogL, threshold)
	s.deadLogWt = append(s.deadLogWt, logWt)

	unit, theta, logL, err := s.replacePoint(ctx, worst, threshold)
	if err != nil {
		return err
	}
	s.liveUnit[worst] = unit
	s.liveTheta[worst] = theta
	s.liveLogL[worst] = logL

	s.iteration++
	return nil
}

// accumulate folds one weighted sample into the running evidence and
// information integrals.
func (s *nestedSampler) accumulate(logWt, logL float64) {
	newLogZ := logAddExp(s.logZ, logWt)
	if !math.IsInf(newLogZ, -1) {
		infoNew := math.Exp(logWt-newLogZ) * logL
		if !math.IsInf(s.logZ, -1) {
			infoNew += math.Exp(s.logZ-newLogZ) * (s.info + s.logZ)
		}
		s.info = infoNew - newLogZ
	}
	s.logZ = newLogZ
}

// replacePoint finds a new live point with log-likelihood above the
// threshold: batched rejection sampling from the prior first, then a
// constrained random walk in the unit hypercube seeded from a surviving
// live point.
func (s *nestedSampler) replacePoint(ctx context.Context, worst int, threshold float64) ([]float64, []float64, float64, error) {
	batch := s.cfg.Workers
	if batch < 4 {
		batch = 4
	}

	for attempts := 0; attempts < s.maxRejection; attempts += batch {
		units := make([][]float64, batch)
		thetas := make([][]float64, batch)
		for i := 0; i < batch; i++ {
			units[i] = s.cfg.Priors.SampleUnit(s.rng)
			theta, err := s.cfg.Priors.RescaleVector(units[i])
			if err != nil {
				return nil, nil, 0, err
			}
			thetas[i] = theta
		}
		logLs, err := s.pool.EvaluateBatch(ctx, thetas)
		if err != nil {
			return nil, nil, 0, err
		}
		for i, logL := range logLs {
			if logL > threshold {
				return units[i], thetas[i], logL, nil
			}
		}
	}

	return s.walkPoint(worst, threshold)
}

// walkPoint performs a reflective random walk inside the unit hypercube
// starting from a surviving live point, accepting only moves above the
// likelihood threshold. Step size adapts toward a balanced acceptance
// rate.
func (s *nestedSampler) walkPoint(worst int, threshold float64) ([]float64, []float64, float64, error) {
	start := s.rng.Intn(len(s.liveUnit))
	for start == worst && len(s.liveUnit) > 1 {
		start = s.rng.Intn(len(s.liveUnit))
	}

	unit := make([]float64, len(s.liveUnit[start]))
	copy(unit, s.liveUnit[start])
	logL := s.liveLogL[start]
	theta := make([]float64, len(s.liveTheta[start]))
	copy(theta, s.liveTheta[start])

	step := 0.1
	accepted := 0
	maxSteps := s.walks * 10

	for i := 0; i < maxSteps && (accepted < s.walks || accepted == 0); i++ {
		proposal := make([]float64, len(unit))
		for d := range unit {
			proposal[d] = reflectUnit(unit[d] + step*s.rng.NormFloat64())
		}
		propTheta, err := s.cfg.Priors.RescaleVector(proposal)
		if err != nil {
			return nil, nil, 0, err
		}
		propLogL, err := s.pool.Evaluate(propTheta)
		if err != nil {
			return nil, nil, 0, err
		}
		if propLogL > threshold {
			unit, theta, logL = proposal, propTheta, propLogL
			accepted++
			step *= 1.1
		} else {
			step *= 0.9
		}
	}

	if accepted == 0 {
		return nil, nil, 0, fmt.Errorf(
			"could not find a live point above likelihood threshold %g after %d walk steps", threshold, maxSteps)
	}
	return unit, theta, logL, nil
}

// reflectUnit folds a proposal coordinate back into [0, 1] by reflection
// at both boundaries, keeping the proposal density symmetric instead of
// piling probability mass onto the prior boundary the way clamping would.
func reflectUnit(v float64) float64 {
	for v < 0 || v > 1 {
		if v < 0 {
			v = -v
		}
		if v > 1 {
			v = 2 - v
		}
	}
	return v
}

// consumeLivePoints folds the remaining live points into the evidence
// with equal remaining prior volume and appends them as weighted
// samples.
func (s *nestedSampler) consumeLivePoints() {
	logXFinal := -float64(s.iteration) / float64(s.nlive)
	logShare := logXFinal - math.Log(float64(s.nlive))
	for i, logL := range s.liveLogL {
		logWt := logL + logShare
		s.accumulate(logWt, logL)
		theta := make([]float64, len(s.liveTheta[i]))
		copy(theta, s.liveTheta[i])
		s.deadTheta = append(s.deadTheta, theta)
		s.deadLogL = append(s.deadLogL, logL)
		s.deadLogWt = append(s.deadLogWt, logWt)
	}
}

// snapshot captures the complete sampler-internal state for
// checkpointing.
func (s *nestedSampler) snapshot() *nestedSnapshot {
	return &nestedSnapshot{
		Version:   nestedSnapshotVersion,
		Seed:      s.cfg.Seed,
		Iteration: s.iteration,
		LogZ:      s.logZ,
		Info:      s.info,
		LiveUnit:  s.liveUnit,
		LiveTheta: s.liveTheta,
		LiveLogL:  s.liveLogL,
		DeadTheta: s.deadTheta,
		DeadLogL:  s.deadLogL,
		DeadLogWt: s.deadLogWt,
	}
}

// restore rebuilds the sampler state from a checkpoint payload and
// reseeds the random source deterministically past the restored
// iteration.
func (s *nestedSampler) restore(snap *nestedSnapshot) {
	s.iteration = snap.Iteration
	s.logZ = snap.LogZ
	s.info = snap.Info
	s.liveUnit = snap.LiveUnit
	s.liveTheta = snap.LiveTheta
	s.liveLogL = snap.LiveLogL
	s.deadTheta = snap.DeadTheta
	s.deadLogL = snap.DeadLogL
	s.deadLogWt = snap.DeadLogWt
	s.rng = rand.New(rand.NewSource(snap.Seed + snap.Iteration))
}
