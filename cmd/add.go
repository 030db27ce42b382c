package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [path-or-url]",
	Short: "Index a single file or web page immediately",
	Long: `Indexes one source without going through the watched folder. Files are
parsed by extension; http(s) URLs are fetched and their visible text
indexed with the URL as the source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		source := args[0]
		var chunks int
		if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
			chunks, err = a.indexer.IndexURL(cmd.Context(), source)
		} else {
			chunks, err = a.indexer.IndexFile(cmd.Context(), source)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "indexed %s (%d chunks)\n", source, chunks)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
