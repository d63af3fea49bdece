package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/companion/internal/cli"
	"github.com/aretw0/companion/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "companion",
	Short: "Companion is an AI chat and image assistant",
	Long: `Companion keeps a history of conversations with an OpenAI-compatible API.
Queries, settings and favorites are saved between runs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// openRuntime builds the App for one-shot commands. Their logs stay quiet
// so that rendered output is not interleaved with info lines.
func openRuntime(ctx context.Context, cmd *cobra.Command, quiet bool) (*cli.Runtime, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	logger, err := cli.NewLogger(cfg.Log.Level, quiet)
	if err != nil {
		return nil, cfg, err
	}
	rt, err := cli.BuildApp(ctx, cfg, logger)
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}
