package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	envPath    string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "vrag",
		Short:         "retrieval-conditioned video generation on Bedrock",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(opts.envPath)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config.json")
	rootCmd.PersistentFlags().StringVar(&opts.envPath, "env", "", "optional .env file with AWS credentials")

	rootCmd.AddCommand(
		newIngestCmd(opts),
		newGenerateCmd(opts),
		newBatchCmd(opts),
		newSearchCmd(opts),
		newWatchCmd(opts),
		newInitIndexCmd(opts),
		newStatusCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

// loadEnv reads path, or ./.env when path is empty. A missing default file
// is not an error.
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}
