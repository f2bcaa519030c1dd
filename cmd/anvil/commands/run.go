package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [plan]",
		Short: "Run every outdated action of a plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions(cmd)
			opts.Jobs, _ = cmd.Flags().GetInt("jobs")
			opts.KeepGoing, _ = cmd.Flags().GetBool("keep-going")
			opts.VerifyContent, _ = cmd.Flags().GetBool("verify-content")

			_, err := c.app.Run(cmd.Context(), planArg(args), opts)
			return err
		},
	}
	cmd.Flags().IntP("jobs", "j", 0, "Number of actions run in parallel (default: settings or CPU count)")
	cmd.Flags().BoolP("keep-going", "k", false, "Keep running independent actions after a failure")
	cmd.Flags().Bool("verify-content", false, "Also compare content hashes of actions whose files look unchanged")
	return cmd
}
