/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: pool.go
Description: Worker pool for parallel likelihood evaluation in the Akaylee Inference
engine. Fans batches of positional parameter vectors out over worker goroutines,
merges fixed parameter values into every call, clamps non-finite log-likelihoods
to negative infinity, and tracks the total evaluation count for resumption audits.
*/

package likelihood

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/sirupsen/logrus"
)

// Pool evaluates log-likelihoods concurrently on behalf of a backend
// that proposes batches of points. The orchestration core stays
// single-threaded; only likelihood evaluation fans out. The wrapped
// likelihood must be re-entrant; the pool itself holds no mutable state
// beyond the atomic call counter.
type Pool struct {
	likelihood interfaces.Likelihood
	searchKeys []string
	fixed      map[string]float64
	workers    int
	logger     *logrus.Logger

	calls int64
}

// NewPool creates a likelihood evaluation pool. A non-positive worker
// count defaults to the number of CPUs.
func NewPool(l interfaces.Likelihood, pd *priors.PriorDict, workers int, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		likelihood: l,
		searchKeys: pd.SearchParameterKeys(),
		fixed:      pd.FixedParameterValues(),
		workers:    workers,
		logger:     logger,
	}
}

// Evaluate computes the log-likelihood for one positional physical
// vector in search-parameter-key order. Non-finite results (NaN, +Inf)
// are an expected condition and are clamped to -Inf, never propagated
// into the backend's internal math.
func (p *Pool) Evaluate(theta []float64) (float64, error) {
	if len(theta) != len(p.searchKeys) {
		return 0, fmt.Errorf("parameter vector has length %d, expected %d", len(theta), len(p.searchKeys))
	}
	params := make(map[string]float64, len(p.searchKeys)+len(p.fixed))
	for i, k := range p.searchKeys {
		params[k] = theta[i]
	}
	for k, v := range p.fixed {
		params[k] = v
	}

	atomic.AddInt64(&p.calls, 1)
	logL, err := p.likelihood.LogLikelihood(params)
	if err != nil {
		return 0, fmt.Errorf("likelihood evaluation failed: %w", err)
	}
	if math.IsNaN(logL) || math.IsInf(logL, 1) {
		p.logger.WithFields(logrus.Fields{"log_likelihood": logL}).
			Debug("Non-finite log-likelihood clamped to -Inf")
		return math.Inf(-1), nil
	}
	return logL, nil
}

// EvaluateBatch computes log-likelihoods for a batch of positional
// vectors, fanning the work out over the pool's workers. Results are
// returned in input order. The first evaluation error aborts the batch.
func (p *Pool) EvaluateBatch(ctx context.Context, thetas [][]float64) ([]float64, error) {
	results := make([]float64, len(thetas))
	if len(thetas) == 0 {
		return results, nil
	}

	workers := p.workers
	if workers > len(thetas) {
		workers = len(thetas)
	}

	indices := make(chan int)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once
	var aborted int32

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				if atomic.LoadInt32(&aborted) == 1 {
					continue
				}
				logL, err := p.Evaluate(thetas[i])
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					atomic.StoreInt32(&aborted, 1)
					continue
				}
				results[i] = logL
			}
		}()
	}

	for i := range thetas {
		if ctx.Err() != nil {
			break
		}
		indices <- i
	}
	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Calls returns the total number of likelihood evaluations performed.
func (p *Pool) Calls() int64 {
	return atomic.LoadInt64(&p.calls)
}

// SearchKeys returns the positional parameter ordering the pool expects.
func (p *Pool) SearchKeys() []string {
	out := make([]string, len(p.searchKeys))
	copy(out, p.searchKeys)
	return out
}
