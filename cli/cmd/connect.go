package cmd

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yal42d-debug/dosya-paylas/cli/config"
	"github.com/yal42d-debug/dosya-paylas/cli/internal/client"
)

type ConnectOptions struct {
	NoCheck bool
}

func NewConnectCommand() *cobra.Command {
	opts := &ConnectOptions{}

	cmd := &cobra.Command{
		Use:   "connect <url>",
		Short: "Save the server address used by other commands",
		Example: `  share-cli connect http://192.168.1.20:3000
  share-cli connect https://quiet-fox.loca.lt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.NoCheck, "no-check", false, "Save the address without contacting the server")
	return cmd
}

func runConnect(cmd *cobra.Command, opts *ConnectOptions, raw string) error {
	base, err := normalizeBase(raw)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if !opts.NoCheck {
		info, err := client.New(base).Info(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("address not saved: %w", err)
		}
		fmt.Fprintf(out, "Connected to %s, sharing %s\n", base, info.ShareDir)
	}

	if err := config.SetAPIBase(base); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved server address to %s\n", config.ConfigFile())
	return nil
}

// normalizeBase accepts host:port shorthands and returns an http(s) URL
// without a trailing slash
func normalizeBase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid server address: %s", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
