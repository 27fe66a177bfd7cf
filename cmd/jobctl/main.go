// Package main implements jobctl, the operator CLI for the site generation pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/aiinpocket/HomePage/internal/bootstrap"
	"github.com/aiinpocket/HomePage/internal/infra"
)

const commandTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:           "jobctl",
	Short:         "Operate the site generation job pipeline",
	Long:          "jobctl migrates the schema, manages owner quotas and provider keys, and inspects jobs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openRuntime loads configuration and connects the configured store.
func openRuntime(cmd *cobra.Command, name string) (context.Context, *bootstrap.Runtime, func(), error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	env := "cli"
	if cfg.AppEnv == "test" {
		env = cfg.AppEnv
	}
	logger := infra.NewLogger(env).With().Str("cmd", name).Logger()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	rt, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, rt, func() {
		rt.Close()
		cancel()
	}, nil
}
