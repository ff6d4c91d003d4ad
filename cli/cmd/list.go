package cmd

import (
	"github.com/spf13/cobra"
)

type ListOptions struct {
	OutputFormat string
}

func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List shared files",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := newClient(cmd).List(commandContext(cmd))
			if err != nil {
				return err
			}
			if opts.OutputFormat == "json" {
				return printJSON(cmd.OutOrStdout(), files)
			}
			printFiles(cmd.OutOrStdout(), files)
			return nil
		},
	}

	addOutputFlag(cmd, &opts.OutputFormat)
	return cmd
}
