package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type DownloadOptions struct {
	Dir string
}

func NewDownloadCommand() *cobra.Command {
	opts := &DownloadOptions{}

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download a shared file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := newClient(cmd).Download(commandContext(cmd), args[0], opts.Dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Dir, "dir", "d", ".", "Directory to save into")
	return cmd
}
