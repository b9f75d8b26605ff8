/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ensemble.go
Description: Affine-invariant ensemble MCMC backend adapter for the Akaylee Inference
engine. Evolves a population of walkers with stretch moves in physical parameter
space, discards a burn-in segment, and emits the flattened post-burn chain as an
unweighted posterior. Produces no evidence estimate: the corresponding Result fields
carry the explicit not-computed marker.
*/

package samplers

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// ensembleSnapshotVersion is the version of the ensemble adapter's
// checkpoint payload.
const ensembleSnapshotVersion = 1

// ensembleSnapshot is the backend-specific checkpoint payload.
type ensembleSnapshot struct {
	Version    int         `cbor:"version"`
	Seed       int64       `cbor:"seed"`
	Iteration  int64       `cbor:"iteration"`
	Positions  [][]float64 `cbor:"positions"`
	LogPost    []float64   `cbor:"log_post"`
	LogL       []float64   `cbor:"log_l"`
	ChainTheta [][]float64 `cbor:"chain_theta"`
	ChainLogL  []float64   `cbor:"chain_log_l"`
}

// ensembleSampler implements the SamplerAdapter contract for the
// "ensemble" backend.
type ensembleSampler struct {
	*baseSampler

	nwalkers int
	nsteps   int
	nburn    int
	stretch  float64

	iteration  int64
	positions  [][]float64
	logPost    []float64
	logLs      []float64
	chainTheta [][]float64
	chainLogL  []float64
}

// newEnsemble constructs the ensemble MCMC adapter, validating the
// option schema before any likelihood evaluation.
func newEnsemble(cfg *Config) (interfaces.SamplerAdapter, error) {
	base, err := newBase("ensemble", cfg, false)
	if err != nil {
		return nil, err
	}

	s := &ensembleSampler{
		baseSampler: base,
		nwalkers:    100,
		nsteps:      500,
		nburn:       -1,
		stretch:     2.0,
	}

	schema := map[string]optionSetter{
		"nwalkers": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 4 {
				return fmt.Errorf("nwalkers must be at least 4, got %d", n)
			}
			s.nwalkers = n
			return nil
		},
		"nsteps": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 1 {
				return fmt.Errorf("nsteps must be positive, got %d", n)
			}
			s.nsteps = n
			return nil
		},
		"nburn": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			s.nburn = n
			return nil
		},
		"stretch": func(v interface{}) error {
			f, err := asFloat(v)
			if err != nil {
				return err
			}
			if f <= 1 {
				return fmt.Errorf("stretch scale must exceed 1, got %g", f)
			}
			s.stretch = f
			return nil
		},
	}
	if err := applyOptions("ensemble", cfg.Options, schema, cfg.Strict, cfg.Logger); err != nil {
		return nil, err
	}

	if s.nburn < 0 {
		s.nburn = s.nsteps / 2
	}
	if s.nburn >= s.nsteps {
		return nil, interfaces.NewConfigurationError(
			"sampler %q burn-in of %d leaves no post-burn samples out of %d steps", "ensemble", s.nburn, s.nsteps)
	}
	return s, nil
}

// Description returns a human-readable description of the backend.
func (s *ensembleSampler) Description() string {
	return "Affine-invariant ensemble MCMC with stretch moves"
}

// SupportsEvidence reports that a pure-MCMC backend computes no evidence.
func (s *ensembleSampler) SupportsEvidence() bool { return false }

// SupportsResume reports that the backend checkpoints its walkers.
func (s *ensembleSampler) SupportsResume() bool { return true }

// Run advances the ensemble through the fixed iteration budget,
// honoring cancellation at step boundaries.
func (s *ensembleSampler) Run(ctx context.Context) (*interfaces.RawOutput, error) {
	s.state = interfaces.StateInitializing

	var snap ensembleSnapshot
	header, err := s.loadSnapshot(&snap)
	if err != nil {
		s.state = interfaces.StateFailed
		return nil, err
	}

	if header != nil {
		if snap.Version != ensembleSnapshotVersion {
			incompatible := &interfaces.CheckpointIncompatibleError{
				Path:     s.manager.Path(),
				Expected: fmt.Sprintf("payload version %d", ensembleSnapshotVersion),
				Found:    fmt.Sprintf("payload version %d", snap.Version),
				Version:  snap.Version,
			}
			if !s.cfg.ForceRestart {
				s.state = interfaces.StateFailed
				return nil, incompatible
			}
			s.cfg.Logger.Warnf("Discarding checkpoint with stale payload version: %v", incompatible)
			header = nil
		} else if len(snap.Positions) != s.nwalkers {
			incompatible := &interfaces.CheckpointIncompatibleError{
				Path:     s.manager.Path(),
				Expected: fmt.Sprintf("%d walkers", s.nwalkers),
				Found:    fmt.Sprintf("%d walkers", len(snap.Positions)),
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
			s.cfg.Logger.WithField("iteration", s.iteration).Info("Ensemble MCMC resumed from checkpoint")
		}
	}

	if header == nil {
		if err := s.initializeWalkers(ctx); err != nil {
			s.state = interfaces.StateFailed
			return nil, s.runtimeError(0, err)
		}
	}

	s.beginRun()

	for s.iteration < int64(s.nsteps) {
		select {
		case <-ctx.Done():
			s.finalCheckpoint(s.iteration, s.snapshot())
			s.state = interfaces.StateTerminated
			return nil, s.runtimeError(s.iteration, ctx.Err())
		default:
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

	s.state = interfaces.StateConverged
	s.cfg.Logger.WithFields(map[string]interface{}{
		"iterations": s.iteration,
		"samples":    len(s.chainTheta),
	}).Info("Ensemble MCMC completed its iteration budget")

	return &interfaces.RawOutput{
		Sampler:          "ensemble",
		Samples:          s.chainTheta,
		LogLikelihoods:   s.chainLogL,
		LogWeights:       nil,
		LogEvidence:      math.NaN(),
		LogEvidenceError: math.NaN(),
		Iterations:       s.iteration,
		LikelihoodCalls:  s.restoredCalls + s.pool.Calls(),
	}, nil
}

// initializeWalkers draws starting positions from the prior, retrying
// until every walker has finite posterior density.
func (s *ensembleSampler) initializeWalkers(ctx context.Context) error {
	search := s.cfg.Priors.SearchParameterKeys()
	s.positions = make([][]float64, s.nwalkers)
	s.logPost = make([]float64, s.nwalkers)
	s.logLs = make([]float64, s.nwalkers)

	const maxTries = 100
	for k := 0; k < s.nwalkers; k++ {
		found := false
		for try := 0; try < maxTries; try++ {
			sample := s.cfg.Priors.Sample(s.rng)
			theta := make([]float64, len(search))
			for i, key := range search {
				theta[i] = sample[key]
			}
			logPrior := s.cfg.Priors.LnProbVector(theta)
			if math.IsInf(logPrior, -1) {
				continue
			}
			logL, err := s.pool.Evaluate(theta)
			if err != nil {
				return err
			}
			if math.IsInf(logL, -1) {
				continue
			}
			s.positions[k] = theta
			s.logLs[k] = logL
			s.logPost[k] = logPrior + logL
			found = true
			break
		}
		if !found {
			return fmt.Errorf("walker %d found no finite-posterior starting point in %d draws", k, maxTries)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// step proposes a stretch move for every walker against a snapshot of
// the current ensemble and batch-evaluates the viable proposals.
func (s *ensembleSampler) step(ctx context.Context) error {
	ndim := len(s.positions[0])

	current := s.positions
	proposals := make([][]float64, s.nwalkers)
	zs := make([]float64, s.nwalkers)
	logPriors := make([]float64, s.nwalkers)
	viable := make([]bool, s.nwalkers)

	var evalThetas [][]float64
	var evalIdx []int
	for k := 0; k < s.nwalkers; k++ {
		j := s.rng.Intn(s.nwalkers - 1)
		if j >= k {
			j++
		}
		z := stretchFactor(s.stretch, s.rng)
		prop := make([]float64, ndim)
		for d := 0; d < ndim; d++ {
			prop[d] = current[j][d] + z*(current[k][d]-current[j][d])
		}
		proposals[k] = prop
		zs[k] = z
		logPriors[k] = s.cfg.Priors.LnProbVector(prop)
		if !math.IsInf(logPriors[k], -1) {
			viable[k] = true
			evalThetas = append(evalThetas, prop)
			evalIdx = append(evalIdx, k)
		}
	}

	logLs, err := s.pool.EvaluateBatch(ctx, evalThetas)
	if err != nil {
		return err
	}

	propLogL := make([]float64, s.nwalkers)
	for i, k := range evalIdx {
		propLogL[k] = logLs[i]
	}

	for k := 0; k < s.nwalkers; k++ {
		if !viable[k] {
			continue
		}
		logPostProp := logPriors[k] + propLogL[k]
		lnAccept := float64(ndim-1)*math.Log(zs[k]) + logPostProp - s.logPost[k]
		if math.Log(s.rng.Float64()) < lnAccept {
			s.positions[k] = proposals[k]
			s.logPost[k] = logPostProp
			s.logLs[k] = propLogL[k]
		}
	}

	s.iteration++
	if s.iteration > int64(s.nburn) {
		for k := 0; k < s.nwalkers; k++ {
			theta := make([]float64, ndim)
			copy(theta, s.positions[k])
			s.chainTheta = append(s.chainTheta, theta)
			s.chainLogL = append(s.chainLogL, s.logLs[k])
		}
	}
	return nil
}

// stretchFactor draws z from the stretch-move proposal density
// g(z) ∝ 1/sqrt(z) on [1/a, a].
func stretchFactor(a float64, rng *rand.Rand) float64 {
	u := rng.Float64()
	v := (a-1)*u + 1
	return v * v / a
}

// snapshot captures the walker state and collected chain for
// checkpointing.
func (s *ensembleSampler) snapshot() *ensembleSnapshot {
	return &ensembleSnapshot{
		Version:    ensembleSnapshotVersion,
		Seed:       s.cfg.Seed,
		Iteration:  s.iteration,
		Positions:  s.positions,
		LogPost:    s.logPost,
		LogL:       s.logLs,
		ChainTheta: s.chainTheta,
		ChainLogL:  s.chainLogL,
	}
}

// restore rebuilds the walker state from a checkpoint payload.
func (s *ensembleSampler) restore(snap *ensembleSnapshot) {
	s.iteration = snap.Iteration
	s.positions = snap.Positions
	s.logPost = snap.LogPost
	s.logLs = snap.LogL
	s.chainTheta = snap.ChainTheta
	s.chainLogL = snap.ChainLogL
	s.rng = rand.New(rand.NewSource(snap.Seed + snap.Iteration))
}
