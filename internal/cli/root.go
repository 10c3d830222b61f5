// Package cli wires the MemoryLane commands: the API server, schema
// migrations and an interactive session client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:          "memorylane",
	Short:        "MemoryLane authentication service",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional.
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	},
}

// Execute runs the command tree.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func loadRuntime() (config.Config, *zap.Logger, error) {
	log, err := logger.Init()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		_ = log.Sync()
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, log, nil
}
