package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *CLI) newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [plan]",
		Short: "Explain why each action of a plan is outdated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explanations, err := c.app.Explain(cmd.Context(), planArg(args), runOptions(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range explanations {
				_, _ = fmt.Fprintf(out, "%s: %s\n", e.Name, e.Reason)
			}
			return nil
		},
	}
}
