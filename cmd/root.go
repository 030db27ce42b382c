// Package cmd wires the ragdex commands. All dependencies are
// constructed explicitly in setup and passed down; nothing is pulled
// from package globals.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kestrel0/ragdex/internal/log"
)

var (
	flagVerbose bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "ragdex",
	Short: "Folder-watching document indexer with retrieval-augmented answers",
	Long: `ragdex watches a folder, indexes every supported document into a local
vector store, and answers questions over the indexed content.

Drop files into the watched folder and they are parsed, chunked,
embedded and stored automatically; remove them and their chunks
disappear. Running ragdex without a subcommand starts the watcher.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "log-json", false, "log in JSON format")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLog})
}
