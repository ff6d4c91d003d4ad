package cmd

import (
	"fmt"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
)

// openURL is replaced in tests
var openURL = browser.OpenURL

type OpenOptions struct {
	Local bool
}

func NewOpenCommand() *cobra.Command {
	opts := &OpenOptions{}

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the server's web page in a browser",
		Long:  "Open the server's public address in a browser, or its LAN address when there is no tunnel.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newClient(cmd).Info(commandContext(cmd))
			if err != nil {
				return err
			}
			target := info.LocalURL
			if info.TunnelURL != nil && !opts.Local {
				target = *info.TunnelURL
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opening %s\n", target)
			if err := openURL(target); err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Local, "local", false, "Open the LAN address even when a tunnel is up")
	return cmd
}
