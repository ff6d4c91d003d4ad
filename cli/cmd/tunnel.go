package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

func NewTunnelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tunnel",
		Short: "Manage the server's public tunnel",
	}

	cmd.AddCommand(
		newTunnelStartCommand(),
		newTunnelStopCommand(),
		newTunnelStatusCommand(),
		newTunnelSetURLCommand(),
		newTunnelClearURLCommand(),
		newTunnelWatchCommand(),
	)
	return cmd
}

func newTunnelStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Open the public tunnel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient(cmd).TunnelStart(commandContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if result.State == tunnelModel.StateConnected {
				fmt.Fprintf(out, "Tunnel started: %s\n", result.URL)
			} else {
				fmt.Fprintf(out, "%s (state: %s); follow it with \"share-cli tunnel watch\"\n", result.Message, result.State)
			}
			return nil
		},
	}
}

func newTunnelStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Close the public tunnel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).TunnelStop(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Tunnel stopped")
			return nil
		},
	}
}

func newTunnelStatusCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the tunnel state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := newClient(cmd).TunnelStatus(commandContext(cmd))
			if err != nil {
				return err
			}
			if output == "json" {
				return printJSON(cmd.OutOrStdout(), status)
			}
			printTunnel(cmd.OutOrStdout(), status)
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func newTunnelSetURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-url <url>",
		Short: "Announce a public URL of a tunnel managed elsewhere",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient(cmd).SetExternalURL(commandContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Public URL set to %s\n", result.URL)
			return nil
		},
	}
}

func newTunnelClearURLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-url",
		Short: "Forget the external public URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).ClearExternalURL(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Public URL cleared")
			return nil
		},
	}
}

func newTunnelWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow tunnel state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return newClient(cmd).WatchTunnel(commandContext(cmd), func(s tunnelModel.Status) error {
				printTunnelEvent(out, s)
				return nil
			})
		},
	}
}
