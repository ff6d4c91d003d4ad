package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "upload <path>...",
		Short:   "Upload files to the shared folder",
		Example: `  share-cli upload photo.jpg "report (draft).pdf"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := newClient(cmd).Upload(commandContext(cmd), args...)
			if err != nil {
				return err
			}
			for _, name := range result.Files {
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s\n", name)
			}
			return nil
		},
	}
}
