package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kestrel0/ragdex/internal/rag"
)

var flagTopK int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run a raw similarity search against the vector store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		out, err := a.retriever.Search(cmd.Context(), strings.Join(args, " "), flagTopK)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&flagTopK, "results", "n", rag.DefaultTopK,
		"number of results to return")
	rootCmd.AddCommand(searchCmd)
}
