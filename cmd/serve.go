package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel0/ragdex/internal/api"
	"github.com/kestrel0/ragdex/internal/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher together with the HTTP API",
	Long: `Starts the folder watcher and the REST API in one process. The API
uploads and deletes files in the watched folder; indexing happens
through the watcher's filesystem events, so both paths stay consistent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
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

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- a.indexer.Watch(ctx)
	}()

	server := api.NewServer(api.Config{
		Folder:      a.indexer.Folder(),
		RateBurst:   a.cfg.RateBurst,
		CORSOrigins: a.cfg.CORSOrigins,
	}, a.store, a.retriever, a.agent, log.WithComponent(a.logger, "api"))

	if err := server.Run(ctx, a.cfg.ServeAddr); err != nil {
		return err
	}

	// The canceled context stops the watcher too; surface real failures.
	if err := <-watchErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
