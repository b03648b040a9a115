package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/helloreadme/internal/app"
	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect and explore open-source projects",
	Long: `collect gathers repository metadata from GitHub into the local project
store, builds the semantic index over it and answers questions about it.

All commands read the same configuration file as the API server.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the YAML configuration file")
}

// withApp loads configuration, builds the application and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.NewLogger(&cfg.Log, "helloreadme-collect", os.Stderr)
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}
