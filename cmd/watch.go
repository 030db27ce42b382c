package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the data folder and watch it for changes",
	Long: `Scans the data folder, indexes every supported file, then watches the
folder and keeps the vector store in sync until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWatch(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.indexer.ScanFolder(ctx); err != nil {
		return err
	}

	if err := a.indexer.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("watcher stopped")
	return nil
}
