package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lantern",
	Short: "Lantern - multi-tenant feature flag service",
	Long: `Lantern is a multi-tenant feature-flag evaluation service. It decides
whether a feature is enabled for a tenant on every request, consulting a
persistent flag store, a short-lived decision cache, emergency kill-switches,
per-tenant overrides, and optional staged-rollout policies.

It provides:
  - Low-latency, fail-closed flag evaluation
  - Per-tenant overrides and global/flag-scoped kill-switches
  - Deterministic percentage, time, region, and cohort rollouts
  - An audited management API for flag changes
  - Scheduled sweeps for expired flags`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
