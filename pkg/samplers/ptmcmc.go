/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ptmcmc.go
Description: Parallel-tempered MCMC backend adapter for the Akaylee Inference engine.
Runs one stretch-move ensemble per rung of a geometric inverse-temperature ladder,
exchanges walkers between adjacent rungs, and estimates the evidence by
thermodynamic integration of the mean tempered log-likelihood over the ladder.
*/

package samplers

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// ptSnapshotVersion is the version of the parallel-tempering adapter's
// checkpoint payload.
const ptSnapshotVersion = 1

// ptSnapshot is the backend-specific checkpoint payload.
type ptSnapshot struct {
	Version      int           `cbor:"version"`
	Seed         int64         `cbor:"seed"`
	Iteration    int64         `cbor:"iteration"`
	Positions    [][][]float64 `cbor:"positions"`
	LogL         [][]float64   `cbor:"log_l"`
	LogPrior     [][]float64   `cbor:"log_prior"`
	ChainTheta   [][]float64   `cbor:"chain_theta"`
	ChainLogL    []float64     `cbor:"chain_log_l"`
	MeanLogLSum  []float64     `cbor:"mean_log_l_sum"`
	MeanLogLObs  int64         `cbor:"mean_log_l_obs"`
}

// ptSampler implements the SamplerAdapter contract for the "ptmcmc"
// backend.
type ptSampler struct {
	*baseSampler

	ntemps   int
	nwalkers int
	nsteps   int
	nburn    int
	tmax     float64
	stretch  float64

	betas     []float64
	iteration int64

	// positions[t][k] is walker k of temperature rung t.
	positions [][][]float64
	logLs     [][]float64
	logPriors [][]float64

	chainTheta  [][]float64
	chainLogL   []float64
	meanLogLSum []float64
	meanLogLObs int64
}

// newPTMCMC constructs the parallel-tempered adapter, validating the
// option schema before any likelihood evaluation.
func newPTMCMC(cfg *Config) (interfaces.SamplerAdapter, error) {
	base, err := newBase("ptmcmc", cfg, false)
	if err != nil {
		return nil, err
	}

	s := &ptSampler{
		baseSampler: base,
		ntemps:      5,
		nwalkers:    50,
		nsteps:      300,
		nburn:       -1,
		tmax:        1e4,
		stretch:     2.0,
	}

	schema := map[string]optionSetter{
		"ntemps": func(v interface{}) error {
			n, err := asInt(v)
			if err != nil {
				return err
			}
			if n < 2 {
				return fmt.Errorf("ntemps must be at least 2, got %d", n)
			}
			s.ntemps = n
			return nil
		},
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
		"tmax": func(v interface{}) error {
			f, err := asFloat(v)
			if err != nil {
				return err
			}
			if f <= 1 {
				return fmt.Errorf("tmax must exceed 1, got %g", f)
			}
			s.tmax = f
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
	if err := applyOptions("ptmcmc", cfg.Options, schema, cfg.Strict, cfg.Logger); err != nil {
		return nil, err
	}

	if s.nburn < 0 {
		s.nburn = s.nsteps / 2
	}
	if s.nburn >= s.nsteps {
		return nil, interfaces.NewConfigurationError(
			"sampler %q burn-in of %d leaves no post-burn samples out of %d steps", "ptmcmc", s.nburn, s.nsteps)
	}

	// Geometric ladder from beta = 1 down to 1/tmax.
	s.betas = make([]float64, s.ntemps)
	for t := 0; t < s.ntemps; t++ {
		s.betas[t] = math.Pow(s.tmax, -float64(t)/float64(s.ntemps-1))
	}
	s.meanLogLSum = make([]float64, s.ntemps)
	return s, nil
}

// Description returns a human-readable description of the backend.
func (s *ptSampler) Description() string {
	return "Parallel-tempered ensemble MCMC with thermodynamic-integration evidence"
}

// SupportsEvidence reports that the ladder supports thermodynamic
// integration.
func (s *ptSampler) SupportsEvidence() bool { return true }

// SupportsResume reports that the backend checkpoints its ladder.
func (s *ptSampler) SupportsResume() bool { return true }

// Run advances every rung through the fixed iteration budget with
// adjacent-rung exchanges, honoring cancellation at step boundaries.
func (s *ptSampler) Run(ctx context.Context) (*interfaces.RawOutput, error) {
	s.state = interfaces.StateInitializing

	var snap ptSnapshot
	header, err := s.loadSnapshot(&snap)
	if err != nil {
		s.state = interfaces.StateFailed
		return nil, err
	}

	if header != nil {
		// stepRung and swap index to the configured rung and walker
		// counts, so the restored ladder must match both exactly.
		walkers := 0
		if len(snap.Positions) > 0 {
			walkers = len(snap.Positions[0])
		}
		if snap.Version != ptSnapshotVersion || len(snap.Positions) != s.ntemps || walkers != s.nwalkers {
			incompatible := &interfaces.CheckpointIncompatibleError{
				Path: s.manager.Path(),
				Expected: fmt.Sprintf("payload version %d with %d rungs of %d walkers",
					ptSnapshotVersion, s.ntemps, s.nwalkers),
				Found: fmt.Sprintf("payload version %d with %d rungs of %d walkers",
					snap.Version, len(snap.Positions), walkers),
				Version: snap.Version,
			}
			if !s.cfg.ForceRestart {
				s.state = interfaces.StateFailed
				return nil, incompatible
			}
			s.cfg.Logger.Warnf("Discarding incompatible checkpoint: %v", incompatible)
			header = nil
		} else {
			s.restore(&snap)
			s.cfg.Logger.WithField("iteration", s.iteration).Info("Parallel tempering resumed from checkpoint")
		}
	}

	if header == nil {
		if err := s.initializeLadder(ctx); err != nil {
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

	logZ, logZErr := s.thermodynamicEvidence()
	s.state = interfaces.StateConverged
	s.cfg.Logger.WithFields(map[string]interface{}{
		"iterations":   s.iteration,
		"log_evidence": logZ,
		"error":        logZErr,
	}).Info("Parallel tempering completed its iteration budget")

	return &interfaces.RawOutput{
		Sampler:          "ptmcmc",
		Samples:          s.chainTheta,
		LogLikelihoods:   s.chainLogL,
		LogWeights:       nil,
		LogEvidence:      logZ,
		LogEvidenceError: logZErr,
		Iterations:       s.iteration,
		LikelihoodCalls:  s.restoredCalls + s.pool.Calls(),
	}, nil
}

// initializeLadder draws finite-posterior starting positions for every
// rung from the prior.
func (s *ptSampler) initializeLadder(ctx context.Context) error {
	search := s.cfg.Priors.SearchParameterKeys()
	s.positions = make([][][]float64, s.ntemps)
	s.logLs = make([][]float64, s.ntemps)
	s.logPriors = make([][]float64, s.ntemps)

	const maxTries = 100
	for t := 0; t < s.ntemps; t++ {
		s.positions[t] = make([][]float64, s.nwalkers)
		s.logLs[t] = make([]float64, s.nwalkers)
		s.logPriors[t] = make([]float64, s.nwalkers)
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
				s.positions[t][k] = theta
				s.logLs[t][k] = logL
				s.logPriors[t][k] = logPrior
				found = true
				break
			}
			if !found {
				return fmt.Errorf("rung %d walker %d found no finite-posterior starting point", t, k)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// step advances every rung with stretch moves, then exchanges walkers
// between adjacent rungs, and accumulates the tempered mean
// log-likelihoods for thermodynamic integration.
func (s *ptSampler) step(ctx context.Context) error {
	for t := 0; t < s.ntemps; t++ {
		if err := s.stepRung(ctx, t); err != nil {
			return err
		}
	}
	s.swap()

	s.iteration++
	if s.iteration > int64(s.nburn) {
		ndim := len(s.positions[0][0])
		for k := 0; k < s.nwalkers; k++ {
			theta := make([]float64, ndim)
			copy(theta, s.positions[0][k])
			s.chainTheta = append(s.chainTheta, theta)
			s.chainLogL = append(s.chainLogL, s.logLs[0][k])
		}
		for t := 0; t < s.ntemps; t++ {
			for k := 0; k < s.nwalkers; k++ {
				s.meanLogLSum[t] += s.logLs[t][k]
			}
		}
		s.meanLogLObs += int64(s.nwalkers)
	}
	return nil
}

// stepRung proposes a stretch move for every walker of one rung against
// the tempered posterior beta*logL + logPrior.
func (s *ptSampler) stepRung(ctx context.Context, t int) error {
	beta := s.betas[t]
	ndim := len(s.positions[t][0])

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
			prop[d] = s.positions[t][j][d] + z*(s.positions[t][k][d]-s.positions[t][j][d])
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
		cur := beta*s.logLs[t][k] + s.logPriors[t][k]
		prop := beta*propLogL[k] + logPriors[k]
		lnAccept := float64(ndim-1)*math.Log(zs[k]) + prop - cur
		if math.Log(s.rng.Float64()) < lnAccept {
			s.positions[t][k] = proposals[k]
			s.logLs[t][k] = propLogL[k]
			s.logPriors[t][k] = logPriors[k]
		}
	}
	return nil
}

// swap exchanges same-index walkers between adjacent rungs, hottest
// pair first.
func (s *ptSampler) swap() {
	for t := s.ntemps - 1; t > 0; t-- {
		dbeta := s.betas[t-1] - s.betas[t]
		for k := 0; k < s.nwalkers; k++ {
			lnAccept := dbeta * (s.logLs[t][k] - s.logLs[t-1][k])
			if math.Log(s.rng.Float64()) < lnAccept {
				s.positions[t][k], s.positions[t-1][k] = s.positions[t-1][k], s.positions[t][k]
				s.logLs[t][k], s.logLs[t-1][k] = s.logLs[t-1][k], s.logLs[t][k]
				s.logPriors[t][k], s.logPriors[t-1][k] = s.logPriors[t-1][k], s.logPriors[t][k]
			}
		}
	}
}

// thermodynamicEvidence integrates the mean tempered log-likelihood
// over the inverse-temperature ladder. The uncertainty is the standard
// ladder-thinning estimate: the difference against integrating every
// other rung.
func (s *ptSampler) thermodynamicEvidence() (float64, float64) {
	if s.meanLogLObs == 0 {
		return math.NaN(), math.NaN()
	}
	means := make([]float64, s.ntemps)
	for t := 0; t < s.ntemps; t++ {
		means[t] = s.meanLogLSum[t] / float64(s.meanLogLObs)
	}

	full := integrateLadder(s.betas, means)

	// Every-other-rung ladder, always keeping the cold end.
	var betasHalf, meansHalf []float64
	for t := 0; t < s.ntemps; t += 2 {
		betasHalf = append(betasHalf, s.betas[t])
		meansHalf = append(meansHalf, means[t])
	}
	half := integrateLadder(betasHalf, meansHalf)

	return full, math.Abs(full - half)
}

// integrateLadder computes the trapezoid rule over descending betas,
// extending the coldest rung's mean to beta = 0.
func integrateLadder(betas, means []float64) float64 {
	total := 0.0
	for i := 0; i < len(betas)-1; i++ {
		total += 0.5 * (means[i] + means[i+1]) * (betas[i] - betas[i+1])
	}
	total += means[len(means)-1] * betas[len(betas)-1]
	return total
}

// snapshot captures the ladder state for checkpointing.
func (s *ptSampler) snapshot() *ptSnapshot {
	return &ptSnapshot{
		Version:     ptSnapshotVersion,
		Seed:        s.cfg.Seed,
		Iteration:   s.iteration,
		Positions:   s.positions,
		LogL:        s.logLs,
		LogPrior:    s.logPriors,
		ChainTheta:  s.chainTheta,
		ChainLogL:   s.chainLogL,
		MeanLogLSum: s.meanLogLSum,
		MeanLogLObs: s.meanLogLObs,
	}
}

// restore rebuilds the ladder state from a checkpoint payload.
func (s *ptSampler) restore(snap *ptSnapshot) {
	s.iteration = snap.Iteration
	s.positions = snap.Positions
	s.logLs = snap.LogL
	s.logPriors = snap.LogPrior
	s.chainTheta = snap.ChainTheta
	s.chainLogL = snap.ChainLogL
	s.meanLogLSum = snap.MeanLogLSum
	s.meanLogLObs = snap.MeanLogLObs
	s.rng = rand.New(rand.NewSource(snap.Seed + snap.Iteration))
}
