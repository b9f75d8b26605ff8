/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: base.go
Description: Shared adapter machinery for the Akaylee Inference sampler layer.
Provides the uniform run configuration, construction-time validation, per-backend
option schema checking with a strictness policy, the run lifecycle state machine,
and wall-clock-driven checkpoint scheduling common to every backend adapter.
*/

package samplers

import (
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/checkpoint"
	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/likelihood"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/sirupsen/logrus"
)

// Config is the uniform input every adapter is constructed from. All
// validation happens at construction time, before any likelihood
// evaluation occurs.
type Config struct {
	Likelihood interfaces.Likelihood
	Priors     *priors.PriorDict

	// Options holds the backend-specific tuning options, validated
	// against the backend's declared option schema.
	Options map[string]interface{}

	Label  string
	OutDir string

	// Seed drives every stochastic choice of the backend; zero selects
	// a time-based seed.
	Seed int64

	// Workers sets the likelihood evaluation pool size.
	Workers int

	// CheckpointInterval is the wall-clock period between checkpoint
	// writes; zero disables periodic checkpointing (a final write on
	// cancellation still happens when a manager is configured).
	CheckpointInterval time.Duration

	// CheckpointPath overrides the default checkpoint location.
	CheckpointPath string

	// Resume requests loading a compatible checkpoint before sampling.
	Resume bool

	// ForceRestart downgrades an incompatible checkpoint from a hard
	// error to a warning plus a fresh start.
	ForceRestart bool

	// Strict rejects unknown options; lenient mode warns instead.
	Strict bool

	Logger *logrus.Logger
}

func (c *Config) validate(sampler string) error {
	if c.Likelihood == nil {
		return interfaces.NewConfigurationError("sampler %q requires a likelihood", sampler)
	}
	if c.Priors == nil || len(c.Priors.SearchParameterKeys()) == 0 {
		return interfaces.NewConfigurationError("sampler %q requires at least one free parameter", sampler)
	}
	if c.Label == "" {
		c.Label = "label"
	}
	if c.OutDir == "" {
		c.OutDir = "outdir"
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = filepath.Join(c.OutDir, fmt.Sprintf("%s_%s_checkpoint.cbor.zst", c.Label, sampler))
	}
	return nil
}

// optionSetter validates and applies one recognized option value.
type optionSetter func(v interface{}) error

// applyOptions checks the supplied options against the backend's
// declared schema. Unknown options are rejected in strict mode and
// warned about otherwise; they are never silently renamed.
func applyOptions(sampler string, opts map[string]interface{}, schema map[string]optionSetter,
	strict bool, logger *logrus.Logger) error {
	for key, value := range opts {
		setter, known := schema[key]
		if !known {
			if strict {
				return interfaces.NewConfigurationError(
					"sampler %q does not recognize option %q", sampler, key)
			}
			logger.Warnf("Sampler %q ignoring unknown option %q", sampler, key)
			continue
		}
		if err := setter(value); err != nil {
			return interfaces.NewConfigurationError(
				"sampler %q option %q: %v", sampler, key, err)
		}
	}
	return nil
}

// asInt coerces a configuration value to int.
func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %g", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// asFloat coerces a configuration value to float64.
func asFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

// baseSampler carries the pieces every adapter shares: the evaluation
// pool, the checkpoint manager, the lifecycle state, and the seeded
// random source.
type baseSampler struct {
	name    string
	cfg     *Config
	pool    *likelihood.Pool
	manager *checkpoint.Manager
	rng     *rand.Rand
	state   interfaces.RunState

	start          time.Time
	lastCheckpoint time.Time
	restoredCalls  int64
}

// newBase validates the configuration and assembles the shared pieces.
// Backends that sample in the unit hypercube additionally require every
// free prior to define an invertible rescale transform.
func newBase(name string, cfg *Config, requiresHypercube bool) (*baseSampler, error) {
	if err := cfg.validate(name); err != nil {
		return nil, err
	}
	if requiresHypercube {
		if err := cfg.Priors.ValidateRescale(); err != nil {
			return nil, err
		}
	}
	cfg.Priors.Freeze()

	identifier := checkpoint.Identifier(name, cfg.Label, cfg.Priors, cfg.Likelihood)
	return &baseSampler{
		name:    name,
		cfg:     cfg,
		pool:    likelihood.NewPool(cfg.Likelihood, cfg.Priors, cfg.Workers, cfg.Logger),
		manager: checkpoint.NewManager(cfg.CheckpointPath, identifier, name, cfg.Logger),
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		state:   interfaces.StateNotStarted,
	}, nil
}

// Name returns the registry name of the backend.
func (b *baseSampler) Name() string { return b.name }

// State returns the current lifecycle state of the run.
func (b *baseSampler) State() interfaces.RunState { return b.state }

// CheckpointPath returns the checkpoint file path for this run.
func (b *baseSampler) CheckpointPath() string { return b.manager.Path() }

// Pool returns the likelihood evaluation pool.
func (b *baseSampler) Pool() *likelihood.Pool { return b.pool }

// Manager returns the checkpoint manager for this run.
func (b *baseSampler) Manager() *checkpoint.Manager { return b.manager }

// beginRun marks the transition into the running state and starts the
// wall clock used for checkpoint scheduling.
func (b *baseSampler) beginRun() {
	b.start = time.Now()
	b.lastCheckpoint = b.start
	b.state = interfaces.StateRunning
}

// maybeCheckpoint writes a periodic snapshot when the configured
// wall-clock interval has elapsed. Writes are synchronous: the run loop
// blocks briefly to guarantee a consistent snapshot.
func (b *baseSampler) maybeCheckpoint(iteration int64, state interface{}) error {
	if b.cfg.CheckpointInterval <= 0 {
		return nil
	}
	if time.Since(b.lastCheckpoint) < b.cfg.CheckpointInterval {
		return nil
	}
	if err := b.manager.Save(iteration, b.restoredCalls+b.pool.Calls(), time.Since(b.start), state); err != nil {
		return err
	}
	b.lastCheckpoint = time.Now()
	return nil
}

// finalCheckpoint writes one last snapshot on cancellation, before the
// cancellation is propagated to the caller.
func (b *baseSampler) finalCheckpoint(iteration int64, state interface{}) {
	if err := b.manager.Save(iteration, b.restoredCalls+b.pool.Calls(), time.Since(b.start), state); err != nil {
		b.cfg.Logger.Errorf("Final checkpoint write failed: %v", err)
	}
}

// loadSnapshot attempts to resume from a checkpoint. Incompatible
// checkpoints are a hard error unless force-restart was requested:
// silently discarding progress is treated as a cost hazard.
func (b *baseSampler) loadSnapshot(state interface{}) (*checkpoint.Header, error) {
	if !b.cfg.Resume {
		return nil, nil
	}
	header, err := b.manager.Load(state)
	if err == interfaces.ErrCheckpointNotFound {
		return nil, nil
	}
	if _, incompatible := err.(*interfaces.CheckpointIncompatibleError); incompatible {
		if b.cfg.ForceRestart {
			b.cfg.Logger.Warnf("Discarding incompatible checkpoint %s (force restart)", b.manager.Path())
			return nil, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	b.restoredCalls = header.LikelihoodCalls
	return header, nil
}

// runtimeError wraps a failure with the context an operator needs to
// resume, restart, or abandon the run.
func (b *baseSampler) runtimeError(iteration int64, err error) error {
	return &interfaces.SamplerRuntimeError{
		Sampler:        b.name,
		Iteration:      iteration,
		CheckpointPath: b.manager.Path(),
		Err:            err,
	}
}

// logAddExp returns log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if math.IsInf(a, -1) {
		return b
	}
	if math.IsInf(b, -1) {
		return a
	}
	if a > b {
		return a + math.Log1p(math.Exp(b-a))
	}
	return b + math.Log1p(math.Exp(a-b))
}
