package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/yal42d-debug/dosya-paylas/cli/config"
	"github.com/yal42d-debug/dosya-paylas/cli/internal/client"
)

// NewRootCommand creates the share-cli command tree
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "share-cli",
		Short:         "Browse, upload and download files on a share-server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `share-cli talks to a share-server on the local network or through its tunnel.

The server address comes from --server, the SHARE_API_BASE environment
variable or the address saved with "share-cli connect", in that order.`,
	}
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().String("server", "", "server base URL (overrides the saved address)")

	rootCmd.AddCommand(
		NewConnectCommand(),
		NewStatusCommand(),
		NewListCommand(),
		NewUploadCommand(),
		NewDownloadCommand(),
		NewDeleteCommand(),
		NewSetDirCommand(),
		NewTunnelCommand(),
		NewOpenCommand(),
		NewMenuCommand(),
		NewVersionCommand(),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// newClient returns a client for the server chosen by --server or the config
func newClient(cmd *cobra.Command) *client.Client {
	base := config.GetAPIBase()
	if f := cmd.Flags().Lookup("server"); f != nil && f.Changed {
		base = f.Value.String()
	}
	return client.New(base)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "output", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format output as JSON: %v", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
