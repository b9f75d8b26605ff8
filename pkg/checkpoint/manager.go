/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: manager.go
Description: Checkpoint/resume manager for the Akaylee Inference engine. Persists
backend-opaque sampler snapshots with a versioned header, using deterministic CBOR
encoding, zstd compression, and atomic temp-file-then-rename writes so a crash
mid-write never corrupts the previous valid checkpoint. Resumption is gated on a
run identifier derived from the prior collection, the likelihood configuration,
and the sampler configuration.
*/

package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
)

// FormatVersion is the checkpoint container format version. A mismatch
// is a detectable CheckpointIncompatibleError, not a crash deep in
// deserialization.
const FormatVersion = 1

// encMode is the CBOR encoder configured for deterministic encoding:
// the same snapshot always produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder for checkpoint containers.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("checkpoint: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("checkpoint: CBOR decoder initialization failed: " + err.Error())
	}
}

// Header is the small fixed part of every checkpoint: enough to decide
// compatibility and to report progress without decoding the payload.
type Header struct {
	Version         int           `cbor:"version"`
	Identifier      string        `cbor:"identifier"`
	Sampler         string        `cbor:"sampler"`
	Iteration       int64         `cbor:"iteration"`
	LikelihoodCalls int64         `cbor:"likelihood_calls"`
	Elapsed         time.Duration `cbor:"elapsed"`
	SavedAt         time.Time     `cbor:"saved_at"`
}

// snapshot is the on-disk container: header plus the backend-specific
// opaque payload. Checkpoints are not portable across backends.
type snapshot struct {
	Header  Header          `cbor:"header"`
	Payload cbor.RawMessage `cbor:"payload"`
}

// Identifier derives the run identifier that gates checkpoint
// resumption from the sampler name, run label, prior collection, and
// likelihood configuration.
func Identifier(sampler, label string, pd *priors.PriorDict, like interfaces.Likelihood) string {
	sum := sha256.Sum256([]byte(sampler + "\x00" + label + "\x00" + pd.Hash() + "\x00" + likelihoodFingerprint(like)))
	return hex.EncodeToString(sum[:])
}

// likelihoodFingerprint summarizes the likelihood configuration for the
// resume gate. Implementations expose their settings through an optional
// Describe method; foreign implementations fall back to the concrete
// type name, which still catches a swapped implementation.
func likelihoodFingerprint(like interfaces.Likelihood) string {
	if like == nil {
		return "none"
	}
	if d, ok := like.(interface{ Describe() string }); ok {
		return d.Describe()
	}
	return fmt.Sprintf("%T", like)
}

// Manager owns one checkpoint file for one run. Saves are synchronous,
// serialized, and strictly ordered by iteration count.
type Manager struct {
	path       string
	identifier string
	sampler    string
	logger     *logrus.Logger

	mu            sync.Mutex
	lastIteration int64
	saves         int64
}

// NewManager creates a checkpoint manager for the given file path and
// run identifier.
func NewManager(path, identifier, sampler string, logger *logrus.Logger) *Manager {
	return &Manager{path: path, identifier: identifier, sampler: sampler, logger: logger, lastIteration: -1}
}

// Path returns the checkpoint file path.
func (m *Manager) Path() string { return m.path }

// Saves returns the number of completed checkpoint writes.
func (m *Manager) Saves() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Save atomically persists a snapshot: the state is CBOR-encoded,
// compressed, written to a temporary file in the same directory, and
// renamed over the previous checkpoint. Writes must advance the
// iteration count; out-of-order writes are rejected.
func (m *Manager) Save(iteration, likelihoodCalls int64, elapsed time.Duration, state interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if iteration < m.lastIteration {
		return fmt.Errorf("checkpoint writes must be ordered by iteration: got %d after %d",
			iteration, m.lastIteration)
	}

	payload, err := encMode.Marshal(state)
	if err != nil {
		return &interfaces.SerializationError{Path: m.path, Err: fmt.Errorf("encode payload: %w", err)}
	}

	snap := snapshot{
		Header: Header{
			Version:         FormatVersion,
			Identifier:      m.identifier,
			Sampler:         m.sampler,
			Iteration:       iteration,
			LikelihoodCalls: likelihoodCalls,
			Elapsed:         elapsed,
			SavedAt:         time.Now(),
		},
		Payload: payload,
	}

	raw, err := encMode.Marshal(&snap)
	if err != nil {
		return &interfaces.SerializationError{Path: m.path, Err: fmt.Errorf("encode snapshot: %w", err)}
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	enc.Close()

	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	m.lastIteration = iteration
	m.saves++
	m.logger.WithFields(logrus.Fields{
		"path":      m.path,
		"iteration": iteration,
		"elapsed":   elapsed,
	}).Debug("Checkpoint written")
	return nil
}

// Load reads the checkpoint and decodes its payload into state.
// Returns ErrCheckpointNotFound when no checkpoint exists and a
// CheckpointIncompatibleError when the header does not match this run.
func (m *Manager) Load(state interface{}) (*Header, error) {
	compressed, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, interfaces.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, &interfaces.SerializationError{Path: m.path, Err: fmt.Errorf("decompress: %w", err)}
	}

	var snap snapshot
	if err := decMode.Unmarshal(raw, &snap); err != nil {
		return nil, &interfaces.SerializationError{Path: m.path, Err: fmt.Errorf("decode snapshot: %w", err)}
	}

	if snap.Header.Version != FormatVersion || snap.Header.Identifier != m.identifier {
		return nil, &interfaces.CheckpointIncompatibleError{
			Path:     m.path,
			Expected: m.identifier,
			Found:    snap.Header.Identifier,
			Version:  snap.Header.Version,
		}
	}

	if err := decMode.Unmarshal(snap.Payload, state); err != nil {
		return nil, &interfaces.SerializationError{Path: m.path, Err: fmt.Errorf("decode payload: %w", err)}
	}

	m.mu.Lock()
	m.lastIteration = snap.Header.Iteration
	m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"path":      m.path,
		"iteration": snap.Header.Iteration,
		"saved_at":  snap.Header.SavedAt,
	}).Info("Checkpoint loaded")
	return &snap.Header, nil
}

// Clean deliberately removes the checkpoint after a clean completion.
// A missing file is not an error.
func (m *Manager) Clean() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale checkpoint: %w", err)
	}
	m.logger.WithField("path", m.path).Debug("Stale checkpoint removed")
	return nil
}
