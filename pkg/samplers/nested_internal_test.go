/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: nested_internal_test.go
Description: Unit tests for the unit-hypercube boundary handling of the nested
sampling constrained random walk. Tests the reflective fold at both boundaries
and a walk seeded from live points hugging the edges of the hypercube.
*/

package samplers

import (
	"testing"

	"github.com/kleascm/akaylee-inference/pkg/likelihood"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReflectUnit tests the reflective fold into the unit interval
func TestReflectUnit(t *testing.T) {
	// In-range values pass through untouched, boundaries included
	assert.Equal(t, 0.4, reflectUnit(0.4))
	assert.Equal(t, 0.0, reflectUnit(0.0))
	assert.Equal(t, 1.0, reflectUnit(1.0))

	// Excursions reflect, they do not clamp onto the boundary
	assert.InDelta(t, 0.2, reflectUnit(-0.2), 1e-12)
	assert.InDelta(t, 0.7, reflectUnit(1.3), 1e-12)

	// Large excursions fold repeatedly
	assert.InDelta(t, 0.6, reflectUnit(2.6), 1e-12)
	assert.InDelta(t, 0.4, reflectUnit(-2.4), 1e-12)

	for _, v := range []float64{-3.7, -0.01, 0.5, 1.01, 4.2} {
		folded := reflectUnit(v)
		assert.GreaterOrEqual(t, folded, 0.0)
		assert.LessOrEqual(t, folded, 1.0)
	}
}

// TestWalkPointNearBoundary tests the constrained walk seeded from live
// points at the edge of the hypercube
func TestWalkPointNearBoundary(t *testing.T) {
	like, err := likelihood.NewAnalyticalGaussian(
		map[string]float64{"mu": 0}, map[string]float64{"mu": 1})
	require.NoError(t, err)

	pd := priors.NewPriorDict()
	mu, err := priors.NewUniform("mu", -5, 5)
	require.NoError(t, err)
	require.NoError(t, pd.Set(mu))

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	adapter, err := newNested(&Config{
		Likelihood: like,
		Priors:     pd,
		Options:    map[string]interface{}{"nlive": 4, "walks": 10},
		Label:      "walk",
		OutDir:     t.TempDir(),
		Seed:       3,
		Workers:    1,
		Logger:     logger,
	})
	require.NoError(t, err)
	s := adapter.(*nestedSampler)

	// Every live point hugs a hypercube boundary, so early walk
	// proposals routinely land outside [0, 1]
	s.liveUnit = [][]float64{{0.0005}, {0.9995}, {0.001}, {0.999}}
	s.liveTheta = make([][]float64, len(s.liveUnit))
	s.liveLogL = make([]float64, len(s.liveUnit))
	for i, unit := range s.liveUnit {
		theta, err := pd.RescaleVector(unit)
		require.NoError(t, err)
		s.liveTheta[i] = theta
		logL, err := s.pool.Evaluate(theta)
		require.NoError(t, err)
		s.liveLogL[i] = logL
	}

	worst := 0
	threshold := s.liveLogL[worst]
	unit, theta, logL, err := s.walkPoint(worst, threshold)
	require.NoError(t, err)

	// The replacement stays inside the hypercube and above the threshold
	require.Len(t, unit, 1)
	assert.GreaterOrEqual(t, unit[0], 0.0)
	assert.LessOrEqual(t, unit[0], 1.0)
	assert.Greater(t, logL, threshold)

	// The physical coordinate is the rescale of the unit coordinate
	assert.InDelta(t, -5+10*unit[0], theta[0], 1e-9)
}
