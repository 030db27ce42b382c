package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagForceRetrieval bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed documents",
	Long: `Sends one question through the agent. The model decides whether to
search the vector store; pass --retrieve to force a search.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		answer, err := a.agent.Ask(cmd.Context(), strings.Join(args, " "), flagForceRetrieval)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVarP(&flagForceRetrieval, "retrieve", "r", false,
		"force a vector store search for this question")
	rootCmd.AddCommand(askCmd)
}
