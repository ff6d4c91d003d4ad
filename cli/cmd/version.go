package cmd

import (
	"fmt"
	"io"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/yal42d-debug/dosya-paylas/cli/internal/version"
)

type VersionOptions struct {
	OutputFormat string
	ShortFormat  bool
}

const versionTemplate = `{{.Title}}:
 Version:           {{.Info.Version}}
 API version:       {{.Info.APIVersion}}
 Go version:        {{.Info.GoVersion}}
 Git commit:        {{.Info.GitCommit}}
 Built:             {{.Info.FormattedTime}}
 OS/Arch:           {{.Info.OS}}/{{.Info.Arch}}
`

func NewVersionCommand() *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the client and server version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, opts)
		},
	}

	addOutputFlag(cmd, &opts.OutputFormat)
	cmd.Flags().BoolVarP(&opts.ShortFormat, "short", "s", false, "Print only the client version number")
	return cmd
}

func runVersion(cmd *cobra.Command, opts *VersionOptions) error {
	out := cmd.OutOrStdout()
	clientInfo := version.Info()

	if opts.ShortFormat {
		fmt.Fprintf(out, "share-cli version %s, build %s\n", clientInfo.Version, clientInfo.GitCommit)
		return nil
	}

	// The server being down is not an error here
	serverInfo, serverErr := newClient(cmd).Version(commandContext(cmd))

	if opts.OutputFormat == "json" {
		result := map[string]interface{}{"Client": clientInfo}
		if serverErr == nil {
			result["Server"] = serverInfo
		} else {
			result["Server"] = map[string]string{"Error": serverErr.Error()}
		}
		return printJSON(out, result)
	}

	tmpl := template.Must(template.New("version").Parse(versionTemplate))
	if err := render(tmpl, out, "Client", clientInfo); err != nil {
		return err
	}
	fmt.Fprintln(out)
	if serverErr != nil {
		fmt.Fprintln(out, serverErr)
		return nil
	}
	return render(tmpl, out, "Server", *serverInfo)
}

func render(tmpl *template.Template, w io.Writer, title string, info interface{}) error {
	return tmpl.Execute(w, map[string]interface{}{"Title": title, "Info": info})
}
