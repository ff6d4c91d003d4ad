package cmd

import (
	"github.com/spf13/cobra"
)

type StatusOptions struct {
	OutputFormat string
}

func NewStatusCommand() *cobra.Command {
	opts := &StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server addresses, shared folder and tunnel state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, opts)
		},
	}

	addOutputFlag(cmd, &opts.OutputFormat)
	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	c := newClient(cmd)
	ctx := commandContext(cmd)

	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	tunnel, err := c.TunnelStatus(ctx)
	if err != nil {
		return err
	}

	if opts.OutputFormat == "json" {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"server": c.BaseURL(),
			"info":   info,
			"tunnel": tunnel,
		})
	}
	printInfo(cmd.OutOrStdout(), c.BaseURL(), info, tunnel)
	return nil
}
