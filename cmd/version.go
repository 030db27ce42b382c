package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrel0/ragdex/internal/config"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "ragdex %s\n", AppVersion)
	fmt.Fprintf(out, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Data folder: %s\n", cfg.DataFolder)
	fmt.Fprintf(out, "  Store path: %s\n", cfg.StorePath)
	fmt.Fprintf(out, "  Collection: %s\n", cfg.Collection)
	fmt.Fprintf(out, "  Chunking: size=%d overlap=%d\n", cfg.ChunkSize, cfg.ChunkOverlap)
	fmt.Fprintf(out, "  Model: %s\n", cfg.ModelName)
	fmt.Fprintf(out, "  Embedder: %s\n", cfg.EmbedderModel)

	if key := os.Getenv("GEMINI_API_KEY"); len(key) >= 8 {
		fmt.Fprintf(out, "  GEMINI_API_KEY: %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else {
		fmt.Fprintln(out, "  GEMINI_API_KEY: not set")
		fmt.Fprintln(out, "  Hint: export GEMINI_API_KEY=your-api-key")
	}

	return nil
}
