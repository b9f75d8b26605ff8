/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee Inference commands. Provides common
configuration loading, logging setup, and the translation from configuration files
to prior collections and likelihood instances.
*/

package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
	"github.com/kleascm/akaylee-inference/pkg/likelihood"
	"github.com/kleascm/akaylee-inference/pkg/logging"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("AKAYLEE")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system from the bound logging
// keys: level, format, output directory, and rotation limits.
func SetupLogging() (*logrus.Logger, error) {
	format := logging.LogFormat(viper.GetString("log_format"))
	if viper.GetBool("json_logs") {
		format = logging.LogFormatJSON
	}

	config := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    format,
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Timestamp: true,
		Colors:    format != logging.LogFormatJSON,
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}

	logger, err := logging.NewLogger(config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger.GetLogger(), nil
}

// BuildPriors translates the "priors" configuration section into a prior
// collection. Each entry maps a parameter name to a type plus the
// type-specific settings, e.g.:
//
//	priors:
//	  mu:    {type: uniform, minimum: -5, maximum: 5}
//	  sigma: {type: log_uniform, minimum: 0.1, maximum: 10}
//	  phase: {type: delta, peak: 0.0}
func BuildPriors() (*priors.PriorDict, error) {
	section := viper.GetStringMap("priors")
	if len(section) == 0 {
		return nil, fmt.Errorf("configuration has no priors section")
	}

	pd := priors.NewPriorDict()
	for name, raw := range section {
		spec, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("prior %q is not a settings map", name)
		}
		p, err := buildPrior(name, spec)
		if err != nil {
			return nil, err
		}
		if err := pd.Set(p); err != nil {
			return nil, err
		}
	}
	return pd, nil
}

// buildPrior constructs a single prior from its settings map. A missing
// or non-numeric setting names the offending key instead of silently
// coercing to zero.
func buildPrior(name string, spec map[string]interface{}) (interfaces.Prior, error) {
	kind, _ := spec["type"].(string)
	switch strings.ToLower(kind) {
	case "uniform":
		v, err := specFloats(spec, "minimum", "maximum")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewUniform(name, v[0], v[1])
	case "log_uniform", "loguniform":
		v, err := specFloats(spec, "minimum", "maximum")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewLogUniform(name, v[0], v[1])
	case "power_law", "powerlaw":
		v, err := specFloats(spec, "alpha", "minimum", "maximum")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewPowerLaw(name, v[0], v[1], v[2])
	case "normal", "gaussian":
		v, err := specFloats(spec, "mu", "sigma")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewNormal(name, v[0], v[1])
	case "truncated_normal":
		v, err := specFloats(spec, "mu", "sigma", "minimum", "maximum")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewTruncatedNormal(name, v[0], v[1], v[2], v[3])
	case "delta", "delta_function":
		v, err := specFloats(spec, "peak")
		if err != nil {
			return nil, fmt.Errorf("prior %q: %w", name, err)
		}
		return priors.NewDeltaFunction(name, v[0]), nil
	default:
		return nil, fmt.Errorf("prior %q has unknown type %q", name, kind)
	}
}

// BuildLikelihood translates the "likelihood" configuration section into
// a likelihood instance. Currently supports the analytical multivariate
// Gaussian:
//
//	likelihood:
//	  type: gaussian
//	  means:  {mu: 0.0, sigma: 1.0}
//	  sigmas: {mu: 1.0, sigma: 0.5}
func BuildLikelihood() (interfaces.Likelihood, error) {
	section := viper.GetStringMap("likelihood")
	if len(section) == 0 {
		return nil, fmt.Errorf("configuration has no likelihood section")
	}

	kind, _ := section["type"].(string)
	switch strings.ToLower(kind) {
	case "gaussian", "analytical_gaussian":
		means, err := specFloatMap(section, "means")
		if err != nil {
			return nil, err
		}
		sigmas, err := specFloatMap(section, "sigmas")
		if err != nil {
			return nil, err
		}
		return likelihood.NewAnalyticalGaussian(means, sigmas)
	default:
		return nil, fmt.Errorf("likelihood has unknown type %q", kind)
	}
}

// ParseOptions converts repeated key=value flags into the backend option
// map, preserving numeric values as numbers.
func ParseOptions(pairs []string) (map[string]interface{}, error) {
	options := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("option %q is not of the form key=value", pair)
		}
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			options[key] = i
		} else if f, err := strconv.ParseFloat(value, 64); err == nil {
			options[key] = f
		} else if b, err := strconv.ParseBool(value); err == nil {
			options[key] = b
		} else {
			options[key] = value
		}
	}
	return options, nil
}

func specFloat(spec map[string]interface{}, key string) (float64, error) {
	v, ok := spec[key]
	if !ok {
		return 0, fmt.Errorf("missing numeric setting %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("setting %q is not a number: %q", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("setting %q is not a number: %v", key, v)
	}
}

func specFloats(spec map[string]interface{}, keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, key := range keys {
		f, err := specFloat(spec, key)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func specFloatMap(spec map[string]interface{}, key string) (map[string]float64, error) {
	raw, ok := spec[key].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("likelihood section is missing the %q map", key)
	}
	out := make(map[string]float64, len(raw))
	for k := range raw {
		f, err := specFloat(raw, k)
		if err != nil {
			return nil, fmt.Errorf("likelihood %q map: %w", key, err)
		}
		out[k] = f
	}
	return out, nil
}
