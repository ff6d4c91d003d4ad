package cmd

import (
	"fmt"
	"io"

	"github.com/yal42d-debug/dosya-paylas/pkg/format"
	shareModel "github.com/yal42d-debug/dosya-paylas/pkg/share"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

func printFiles(w io.Writer, files []shareModel.FileEntry) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No files shared")
		return
	}
	fmt.Fprintf(w, "%-40s %10s  %s\n", "NAME", "SIZE", "MODIFIED")
	for _, f := range files {
		fmt.Fprintf(w, "%-40s %10s  %s\n", f.Name, format.FormatSize(f.Size), f.Date.Local().Format("2006-01-02 15:04"))
	}
}

func printInfo(w io.Writer, server string, info *shareModel.ServerInfo, tunnel *tunnelModel.StatusResponse) {
	fmt.Fprintf(w, "Server:        %s\n", server)
	fmt.Fprintf(w, "Shared folder: %s\n", info.ShareDir)
	fmt.Fprintf(w, "Local network: %s\n", info.LocalURL)
	if info.TunnelURL != nil {
		fmt.Fprintf(w, "Internet:      %s\n", *info.TunnelURL)
	}
	if tunnel != nil {
		printTunnel(w, tunnel)
	}
}

func printTunnel(w io.Writer, s *tunnelModel.StatusResponse) {
	fmt.Fprintf(w, "Tunnel:        %s\n", s.State)
	if s.URL != nil {
		fmt.Fprintf(w, "Tunnel URL:    %s\n", *s.URL)
	}
	if s.Message != "" {
		fmt.Fprintf(w, "Last message:  %s\n", s.Message)
	}
}

func printTunnelEvent(w io.Writer, s tunnelModel.Status) {
	switch s.State {
	case tunnelModel.StateConnected:
		fmt.Fprintf(w, "[%s] connected: %s\n", s.Provider, s.URL)
	case tunnelModel.StateConnecting:
		fmt.Fprintf(w, "[%s] connecting (attempt %d)\n", s.Provider, s.Attempt)
	case tunnelModel.StateError:
		fmt.Fprintf(w, "[%s] error: %s\n", s.Provider, s.Message)
	default:
		if s.Message != "" {
			fmt.Fprintf(w, "[%s] off: %s\n", s.Provider, s.Message)
		} else {
			fmt.Fprintf(w, "[%s] off\n", s.Provider)
		}
	}
	if s.ExternalURL != "" {
		fmt.Fprintf(w, "[%s] external URL: %s\n", s.Provider, s.ExternalURL)
	}
}
