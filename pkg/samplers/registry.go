/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: registry.go
Description: Closed registry of implemented sampler backends. Maps backend names to
adapter factories; an unknown name fails fast with a ConfigurationError enumerating
the known backends, before any likelihood evaluation occurs.
*/

package samplers

import (
	"sort"
	"strings"

	"github.com/kleascm/akaylee-inference/pkg/interfaces"
)

// factory constructs one adapter, performing all configuration
// validation before returning.
type factory func(cfg *Config) (interfaces.SamplerAdapter, error)

// implementedSamplers is the closed set of backend adapters. New
// backends register here; there is no open-ended dynamic dispatch.
var implementedSamplers = map[string]factory{
	"nest":     newNested,
	"ensemble": newEnsemble,
	"ptmcmc":   newPTMCMC,
}

// KnownSamplers returns the sorted names of the implemented backends.
func KnownSamplers() []string {
	names := make([]string, 0, len(implementedSamplers))
	for name := range implementedSamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the adapter for a backend name. The name is
// case-insensitive; an unknown name is a ConfigurationError listing
// every valid backend.
func New(name string, cfg *Config) (interfaces.SamplerAdapter, error) {
	create, ok := implementedSamplers[strings.ToLower(name)]
	if !ok {
		return nil, interfaces.NewConfigurationError(
			"unknown sampler %q, implemented samplers: %s", name, strings.Join(KnownSamplers(), ", "))
	}
	return create(cfg)
}
