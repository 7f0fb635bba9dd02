package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ekisa-team/swapface/internal/config"
	"github.com/ekisa-team/swapface/internal/env"
	"github.com/ekisa-team/swapface/internal/logger"
	"github.com/ekisa-team/swapface/internal/xfs"
)

// version is set at build time.
var version = "dev"

var (
	flagConfigPath string
	flagEnvFile    string
	flagLogFile    string
	flagLogToFile  bool
)

var rootCmd = &cobra.Command{
	Use:           "swapface",
	Short:         "Face identity swap service",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", flagEnvFile, err)
		}

		slog.SetDefault(
			logger.New(env.FromEnv(),
				logger.WithLogToFile(flagLogToFile),
				logger.WithLogFile(flagLogFile),
			),
		)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfigPath, "config", filepath.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file; defaults are used when it does not exist")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "Path to a dotenv file loaded before anything else")
	flags.StringVar(&flagLogFile, "log-file", "logs/swapface.log", "Path of the rotating log file")
	flags.BoolVar(&flagLogToFile, "log-to-file", false, "Also write JSON logs to --log-file")
}

// configPath returns the config file to use, or "" to run on defaults.
func configPath(cmd *cobra.Command) (string, error) {
	path := xfs.ExpandTilde(flagConfigPath)
	if xfs.Exists(path) {
		return path, nil
	}
	if cmd.Flags().Changed("config") {
		return "", fmt.Errorf("config file %s not found", path)
	}

	slog.Debug("No config file, using defaults", "path", path)
	return "", nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
