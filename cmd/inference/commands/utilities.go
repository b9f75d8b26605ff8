/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utilities.go
Description: Utility commands for the Akaylee Inference engine. Provides backend
listing and saved-result inspection for quick analysis without writing code.
*/

package commands

import (
	"fmt"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/results"
	"github.com/kleascm/akaylee-inference/pkg/samplers"
	"github.com/spf13/cobra"
)

// ListSamplers lists available sampling backends and their capabilities
func ListSamplers(cmd *cobra.Command, args []string) {
	fmt.Println("🔬 Akaylee Inference - Available Samplers")
	fmt.Println("=========================================")
	fmt.Println()

	backends := []struct {
		name        string
		description string
		example     string
	}{
		{
			name:        "nest",
			description: "Nested sampling over the unit hypercube with live-point replacement",
			example:     "Computes the evidence with an error estimate; ideal for model selection",
		},
		{
			name:        "ensemble",
			description: "Affine-invariant ensemble MCMC with stretch moves",
			example:     "Fast posterior exploration when no evidence is needed",
		},
		{
			name:        "ptmcmc",
			description: "Parallel-tempered ensemble MCMC over a geometric temperature ladder",
			example:     "Handles multimodal posteriors; evidence via thermodynamic integration",
		},
	}

	registered := make(map[string]bool)
	for _, name := range samplers.KnownSamplers() {
		registered[name] = true
	}

	for _, b := range backends {
		if !registered[b.name] {
			continue
		}
		fmt.Printf("  %s\n", b.name)
		fmt.Printf("    %s\n", b.description)
		fmt.Printf("    %s\n", b.example)
		fmt.Println()
	}
}

// ShowResult reads a saved result container and prints its summary
func ShowResult(cmd *cobra.Command, args []string) error {
	r, err := results.Read(args[0])
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}

	fmt.Printf("📊 Result %q (run %s)\n", r.Label, r.RunID)
	fmt.Println("====================================")
	fmt.Printf("  Sampler:           %s\n", r.Sampler)
	fmt.Printf("  Created:           %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Posterior samples: %d\n", r.Posterior.Len())
	fmt.Printf("  Likelihood calls:  %d\n", r.LikelihoodCalls)
	fmt.Printf("  Sampling time:     %s\n", r.SamplingTime)
	if r.EvidenceComputed() {
		fmt.Printf("  ln evidence:       %.4f ± %.4f\n", r.LogEvidence, r.LogEvidenceError)
		fmt.Printf("  ln Bayes factor:   %.4f\n", r.LogBayesFactor)
	} else {
		fmt.Println("  ln evidence:       not computed by this backend")
	}
	fmt.Println()

	fmt.Println("  Posterior means:")
	for _, key := range r.SearchParameterKeys {
		mean, err := r.Posterior.Mean(key)
		if err != nil {
			continue
		}
		fmt.Printf("    %-20s %.6g\n", key, mean)
	}
	for _, key := range r.FixedParameterKeys {
		fmt.Printf("    %-20s %.6g (fixed)\n", key, r.FixedParameterValues[key])
	}
	return nil
}
