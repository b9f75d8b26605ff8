/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee Inference engine. Provides
comprehensive command-line options, configuration management, and beautiful user
interface for controlling parameter-estimation runs with advanced logging capabilities.
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/kleascm/akaylee-inference/cmd/inference/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Configuration
	configFile string
	logLevel   string
	jsonLogs   bool

	// Run configuration
	samplerName string
	label       string
	outDir      string
	seed        int64
	workers     int

	// Checkpoint configuration
	checkpointInterval time.Duration
	checkpointPath     string
	resume             bool
	forceRestart       bool

	// Option handling
	samplerOptions []string
	strict         bool
	dryRun         bool

	// Logging configuration
	logDir      string
	logFormat   string
	logMaxFiles int
	logMaxSize  int64
)

func main() {
	// Create root command
	rootCmd := &cobra.Command{
		Use:   "akaylee-inference",
		Short: "Akaylee Inference - Bayesian parameter-estimation engine",
		Long: `Akaylee Inference is a production-grade Bayesian parameter-estimation engine.
It orchestrates stochastic sampling backends (nested sampling, ensemble MCMC,
parallel-tempered MCMC) over a prior collection and a user likelihood, with
checkpoint/resume support and a portable binary result container.`,
		Version: "1.0.0",
	}

	// Add persistent flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Use JSON log format")

	// Add logging-specific flags
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "./logs", "Log output directory")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().IntVar(&logMaxFiles, "log-max-files", 10, "Maximum number of log files to keep")
	rootCmd.PersistentFlags().Int64Var(&logMaxSize, "log-max-size", 100*1024*1024, "Maximum log file size in bytes")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("json_logs", rootCmd.PersistentFlags().Lookup("json-logs"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_max_files", rootCmd.PersistentFlags().Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", rootCmd.PersistentFlags().Lookup("log-max-size"))

	// Add run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a sampler over a configured likelihood and priors",
		Long: `Run the selected sampling backend over the likelihood and prior collection
described by the configuration file. The run writes a binary result container,
a plain-text posterior export, and a JSON summary into the output directory,
and checkpoints its internal state for crash-safe resumption.`,
		RunE: commands.RunSampler,
	}

	// Add run command flags
	runCmd.Flags().StringVar(&samplerName, "sampler", "nest", "Sampling backend (see list-samplers)")
	runCmd.Flags().StringVar(&label, "label", "label", "Run label used in output file names")
	runCmd.Flags().StringVar(&outDir, "outdir", "outdir", "Directory for run outputs")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (0 = time-based)")
	runCmd.Flags().IntVar(&workers, "workers", 0, "Parallel likelihood workers (0 = auto-detect)")

	runCmd.Flags().DurationVar(&checkpointInterval, "checkpoint-interval", 10*time.Minute, "Wall-clock interval between checkpoints")
	runCmd.Flags().StringVar(&checkpointPath, "checkpoint-path", "", "Checkpoint file path (default: derived from label)")
	runCmd.Flags().BoolVar(&resume, "resume", true, "Resume from an existing checkpoint or cached result")
	runCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "Discard incompatible checkpoints and restart")

	runCmd.Flags().StringSliceVar(&samplerOptions, "option", []string{}, "Backend option as key=value (repeatable)")
	runCmd.Flags().BoolVar(&strict, "strict", false, "Reject unknown backend options instead of warning")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit without sampling")

	// Bind flags to viper
	viper.BindPFlag("sampler", runCmd.Flags().Lookup("sampler"))
	viper.BindPFlag("label", runCmd.Flags().Lookup("label"))
	viper.BindPFlag("outdir", runCmd.Flags().Lookup("outdir"))
	viper.BindPFlag("seed", runCmd.Flags().Lookup("seed"))
	viper.BindPFlag("workers", runCmd.Flags().Lookup("workers"))
	viper.BindPFlag("checkpoint_interval", runCmd.Flags().Lookup("checkpoint-interval"))
	viper.BindPFlag("checkpoint_path", runCmd.Flags().Lookup("checkpoint-path"))
	viper.BindPFlag("resume", runCmd.Flags().Lookup("resume"))
	viper.BindPFlag("force_restart", runCmd.Flags().Lookup("force-restart"))
	viper.BindPFlag("sampler_options", runCmd.Flags().Lookup("option"))
	viper.BindPFlag("strict", runCmd.Flags().Lookup("strict"))
	viper.BindPFlag("dry_run", runCmd.Flags().Lookup("dry-run"))

	rootCmd.AddCommand(runCmd)

	// Add list-samplers command
	listSamplersCmd := &cobra.Command{
		Use:   "list-samplers",
		Short: "List available sampling backends and their capabilities",
		Long: `List all sampling backends registered in the Akaylee Inference engine with
detailed descriptions of their capabilities and use cases.`,
		Run: func(cmd *cobra.Command, args []string) {
			commands.ListSamplers(cmd, args)
		},
	}
	rootCmd.AddCommand(listSamplersCmd)

	// Add show command for inspecting saved results
	showCmd := &cobra.Command{
		Use:   "show <result-file>",
		Short: "Inspect a saved result container",
		Long: `Read a binary result container and print its evidence summary and the
posterior sample statistics per search parameter.`,
		Args: cobra.ExactArgs(1),
		RunE: commands.ShowResult,
	}
	rootCmd.AddCommand(showCmd)

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
