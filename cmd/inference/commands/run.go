/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: run.go
Description: Run command implementation for the Akaylee Inference engine. Handles
the main sampling process with comprehensive configuration, graceful shutdown, and
final result reporting.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kleascm/akaylee-inference/pkg/core"
	"github.com/kleascm/akaylee-inference/pkg/priors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RunSampler executes the main sampling process
func RunSampler(cmd *cobra.Command, args []string) error {
	fmt.Println("🔬 Akaylee Inference - Starting Sampler Run")
	fmt.Println("===========================================")
	fmt.Println()

	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	logger, err := SetupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	// Build the prior collection and the likelihood from configuration
	pd, err := BuildPriors()
	if err != nil {
		return fmt.Errorf("invalid priors: %w", err)
	}
	like, err := BuildLikelihood()
	if err != nil {
		return fmt.Errorf("invalid likelihood: %w", err)
	}

	options, err := ParseOptions(viper.GetStringSlice("sampler_options"))
	if err != nil {
		return fmt.Errorf("invalid sampler option: %w", err)
	}

	cfg := &core.RunConfig{
		Sampler:            viper.GetString("sampler"),
		Label:              viper.GetString("label"),
		OutDir:             viper.GetString("outdir"),
		Options:            options,
		Seed:               viper.GetInt64("seed"),
		Workers:            viper.GetInt("workers"),
		CheckpointInterval: viper.GetDuration("checkpoint_interval"),
		CheckpointPath:     viper.GetString("checkpoint_path"),
		Resume:             viper.GetBool("resume"),
		ForceRestart:       viper.GetBool("force_restart"),
		Strict:             viper.GetBool("strict"),
		Logger:             logger,
	}

	// Perform dry run if requested
	if viper.GetBool("dry_run") {
		return performDryRun(cfg, pd)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\n🛑 Received shutdown signal, checkpointing and stopping...")
		cancel()
	}()

	start := time.Now()
	result, err := core.Run(ctx, cfg, like, pd)
	if err != nil {
		return fmt.Errorf("sampler run failed: %w", err)
	}

	// Print final summary
	fmt.Println()
	fmt.Println("✨ Sampling completed!")
	fmt.Printf("  Sampler:           %s\n", result.Sampler)
	fmt.Printf("  Posterior samples: %d\n", result.Posterior.Len())
	fmt.Printf("  Likelihood calls:  %d\n", result.LikelihoodCalls)
	fmt.Printf("  Wall time:         %s\n", time.Since(start).Round(time.Millisecond))
	if result.EvidenceComputed() {
		fmt.Printf("  ln evidence:       %.4f ± %.4f\n", result.LogEvidence, result.LogEvidenceError)
	} else {
		fmt.Println("  ln evidence:       not computed by this backend")
	}
	return nil
}

// performDryRun validates the configuration without running the sampler
func performDryRun(cfg *core.RunConfig, pd *priors.PriorDict) error {
	fmt.Println("🔍 Dry run: validating configuration")
	fmt.Println()
	fmt.Printf("  Sampler:             %s\n", cfg.Sampler)
	fmt.Printf("  Label:               %s\n", cfg.Label)
	fmt.Printf("  Output directory:    %s\n", cfg.OutDir)
	fmt.Printf("  Workers:             %d\n", cfg.Workers)
	fmt.Printf("  Checkpoint interval: %s\n", cfg.CheckpointInterval)
	fmt.Println()
	fmt.Println("  Priors:")
	fmt.Println(indent(pd.Describe(), "    "))
	fmt.Println("✅ Configuration is valid")
	return nil
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return prefix + strings.Join(lines, "\n"+prefix)
}
