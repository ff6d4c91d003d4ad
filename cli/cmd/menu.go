package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yal42d-debug/dosya-paylas/cli/internal/client"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

type menuItem struct {
	label string
	run   func(s *menuSession) error
}

// menuSession is one interactive run: a client plus line based I/O
type menuSession struct {
	ctx    context.Context
	client *client.Client
	in     *bufio.Scanner
	out    io.Writer
}

var menuItems = []menuItem{
	{"Server status", (*menuSession).status},
	{"List files", (*menuSession).list},
	{"Upload files", (*menuSession).upload},
	{"Download a file", (*menuSession).download},
	{"Delete a file", (*menuSession).delete},
	{"Change shared folder", (*menuSession).setDir},
	{"Start tunnel", (*menuSession).startTunnel},
	{"Stop tunnel", (*menuSession).stopTunnel},
	{"Set external tunnel URL", (*menuSession).setURL},
	{"Open in browser", (*menuSession).open},
}

func NewMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu for all operations",
		Long:  "Interactive numbered menu. Failed operations are reported and the menu continues; 0 or end of input exits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := &menuSession{
				ctx:    commandContext(cmd),
				client: newClient(cmd),
				in:     bufio.NewScanner(cmd.InOrStdin()),
				out:    cmd.OutOrStdout(),
			}
			return s.loop()
		},
	}
}

func (s *menuSession) loop() error {
	rule := strings.Repeat("-", ruleWidth())
	for {
		fmt.Fprintln(s.out, rule)
		fmt.Fprintf(s.out, "share-cli: %s\n", s.client.BaseURL())
		for i, item := range menuItems {
			fmt.Fprintf(s.out, "%2d) %s\n", i+1, item.label)
		}
		fmt.Fprintln(s.out, " 0) Exit")

		choice, ok := s.prompt("Choice")
		if !ok || choice == "0" || choice == "q" {
			return nil
		}

		var n int
		if _, err := fmt.Sscanf(choice, "%d", &n); err != nil || n < 1 || n > len(menuItems) {
			fmt.Fprintf(s.out, "Unknown choice %q\n", choice)
			continue
		}
		if err := menuItems[n-1].run(s); err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if s.ctx.Err() != nil {
			return nil
		}
	}
}

// prompt reads one trimmed line; ok is false at end of input
func (s *menuSession) prompt(label string) (string, bool) {
	fmt.Fprintf(s.out, "%s: ", label)
	if !s.in.Scan() {
		fmt.Fprintln(s.out)
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *menuSession) status() error {
	info, err := s.client.Info(s.ctx)
	if err != nil {
		return err
	}
	tunnel, err := s.client.TunnelStatus(s.ctx)
	if err != nil {
		return err
	}
	printInfo(s.out, s.client.BaseURL(), info, tunnel)
	return nil
}

func (s *menuSession) list() error {
	files, err := s.client.List(s.ctx)
	if err != nil {
		return err
	}
	printFiles(s.out, files)
	return nil
}

func (s *menuSession) upload() error {
	line, ok := s.prompt("Paths (comma separated)")
	if !ok || line == "" {
		return nil
	}
	var paths []string
	for _, p := range strings.Split(line, ",") {
		if p = strings.Trim(strings.TrimSpace(p), `"'`); p != "" {
			paths = append(paths, p)
		}
	}
	result, err := s.client.Upload(s.ctx, paths...)
	if err != nil {
		return err
	}
	for _, name := range result.Files {
		fmt.Fprintf(s.out, "Uploaded %s\n", name)
	}
	return nil
}

func (s *menuSession) download() error {
	name, ok := s.prompt("File name")
	if !ok || name == "" {
		return nil
	}
	dir, ok := s.prompt("Save into [.]")
	if !ok {
		return nil
	}
	if dir == "" {
		dir = "."
	}
	path, err := s.client.Download(s.ctx, name, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %s\n", path)
	return nil
}

func (s *menuSession) delete() error {
	name, ok := s.prompt("File name")
	if !ok || name == "" {
		return nil
	}
	answer, ok := s.prompt(fmt.Sprintf("Delete %s? [y/N]", name))
	if !ok {
		return nil
	}
	if answer = strings.ToLower(answer); answer != "y" && answer != "yes" {
		fmt.Fprintln(s.out, "Cancelled")
		return nil
	}
	if err := s.client.Delete(s.ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Deleted %s\n", name)
	return nil
}

func (s *menuSession) setDir() error {
	dir, ok := s.prompt("New shared folder (on the server)")
	if !ok || dir == "" {
		return nil
	}
	result, err := s.client.SetDirectory(s.ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Now sharing %s\n", result.ShareDir)
	return nil
}

func (s *menuSession) startTunnel() error {
	fmt.Fprintln(s.out, "Starting tunnel...")
	result, err := s.client.TunnelStart(s.ctx)
	if err != nil {
		return err
	}
	if result.State == tunnelModel.StateConnected {
		fmt.Fprintf(s.out, "Tunnel started: %s\n", result.URL)
	} else {
		fmt.Fprintf(s.out, "%s (state: %s)\n", result.Message, result.State)
	}
	return nil
}

func (s *menuSession) stopTunnel() error {
	if err := s.client.TunnelStop(s.ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "Tunnel stopped")
	return nil
}

func (s *menuSession) setURL() error {
	u, ok := s.prompt("Public URL (empty to clear)")
	if !ok {
		return nil
	}
	if u == "" {
		if err := s.client.ClearExternalURL(s.ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Public URL cleared")
		return nil
	}
	result, err := s.client.SetExternalURL(s.ctx, u)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Public URL set to %s\n", result.URL)
	return nil
}

func (s *menuSession) open() error {
	info, err := s.client.Info(s.ctx)
	if err != nil {
		return err
	}
	target := info.LocalURL
	if info.TunnelURL != nil {
		target = *info.TunnelURL
	}
	fmt.Fprintf(s.out, "Opening %s\n", target)
	return openURL(target)
}

// ruleWidth fits the separator to the terminal, capped for wide screens
func ruleWidth() int {
	const fallback = 50
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return fallback
	}
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return fallback
	}
	if width > 80 {
		return 80
	}
	return width
}
