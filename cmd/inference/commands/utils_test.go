/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils_test.go
Description: Unit tests for the shared command utilities. Tests the logging
setup against the bound configuration keys, the configuration-to-priors
translation with named-key failures, and numeric setting coercion.
*/

package commands

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setLoggingKeys(t *testing.T, dir string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("log_level", "warn")
	viper.Set("log_format", "text")
	viper.Set("log_dir", dir)
	viper.Set("log_max_files", 3)
	viper.Set("log_max_size", 1024*1024)
}

// TestSetupLogging tests that the bound logging keys drive the logger
func TestSetupLogging(t *testing.T) {
	dir := t.TempDir()
	setLoggingKeys(t, dir)

	logger, err := SetupLogging()
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	// The configured output directory receives a timestamped log file
	files, err := filepath.Glob(filepath.Join(dir, "akaylee-inference_*.log"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

// TestSetupLoggingJSONOverride tests the json-logs format override
func TestSetupLoggingJSONOverride(t *testing.T) {
	setLoggingKeys(t, t.TempDir())
	viper.Set("json_logs", true)

	logger, err := SetupLogging()
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}

// TestSetupLoggingInvalid tests rejection of a bad logging configuration
func TestSetupLoggingInvalid(t *testing.T) {
	setLoggingKeys(t, t.TempDir())
	viper.Set("log_format", "xml")

	_, err := SetupLogging()
	assert.Error(t, err)
}

// TestBuildPriorsFromConfig tests the full translation of a priors section
func TestBuildPriorsFromConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("priors", map[string]interface{}{
		"mass":  map[string]interface{}{"type": "uniform", "minimum": 10, "maximum": 20},
		"rate":  map[string]interface{}{"type": "log_uniform", "minimum": 0.1, "maximum": 10.0},
		"phase": map[string]interface{}{"type": "delta", "peak": 1.5},
	})

	pd, err := BuildPriors()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mass", "rate"}, pd.SearchParameterKeys())
	assert.Equal(t, []string{"phase"}, pd.FixedParameterKeys())
}

// TestBuildPriorsMissingSetting tests that a typoed key surfaces the
// missing setting by name
func TestBuildPriorsMissingSetting(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("priors", map[string]interface{}{
		"mu": map[string]interface{}{"type": "uniform", "minimum": -5.0, "maximun": 5.0},
	})

	_, err := BuildPriors()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"maximum"`)
	assert.Contains(t, err.Error(), `"mu"`)
}

// TestSpecFloat tests numeric coercion and its failure modes
func TestSpecFloat(t *testing.T) {
	spec := map[string]interface{}{
		"a": 1.5, "b": 2, "c": int64(3), "d": "4.5", "e": "not-a-number",
	}

	for key, want := range map[string]float64{"a": 1.5, "b": 2, "c": 3, "d": 4.5} {
		got, err := specFloat(spec, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := specFloat(spec, "e")
	assert.Error(t, err)

	_, err = specFloat(spec, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}
