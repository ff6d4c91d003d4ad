package format

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
)

// APIEndpoint represents an API endpoint
type APIEndpoint struct {
	Method      string
	Path        string
	Description string
}

// FormatHTTPMethod returns a colored and bold HTTP method string
func FormatHTTPMethod(method string) string {
	switch method {
	case "GET":
		return color.New(color.Bold, color.FgGreen).Sprint(method)
	case "POST":
		return color.New(color.Bold, color.FgYellow).Sprint(method)
	case "PUT":
		return color.New(color.Bold, color.FgBlue).Sprint(method)
	case "DELETE":
		return color.New(color.Bold, color.FgRed).Sprint(method)
	case "HEAD":
		return color.New(color.Bold, color.FgMagenta).Sprint(method)
	default:
		return color.New(color.Bold).Sprint(method)
	}
}

// LogAPIEndpoint logs an API endpoint with consistent formatting
func LogAPIEndpoint(logger *logger.Logger, endpoint APIEndpoint) {
	// Tabs keep alignment since ANSI color codes don't affect tab stops
	logger.Debug("  %s\t\t%s\t\t%s",
		FormatHTTPMethod(endpoint.Method),
		endpoint.Path,
		endpoint.Description,
	)
}

// LogAPIEndpoints logs a header and a list of API endpoints
func LogAPIEndpoints(logger *logger.Logger, endpoints []APIEndpoint) {
	logger.Debug("API endpoints:")
	for _, endpoint := range endpoints {
		LogAPIEndpoint(logger, endpoint)
	}
}

// Banner holds what the startup banner shows
type Banner struct {
	ShareDir  string
	LocalURL  string
	TunnelURL string
}

// FormatBanner renders the startup banner printed once the listener is up
func FormatBanner(b Banner) string {
	rule := strings.Repeat("-", 51)
	green := color.New(color.FgGreen, color.Bold)
	cyan := color.New(color.FgCyan)

	var sb strings.Builder
	sb.WriteString(strings.Repeat("=", 51) + "\n")
	sb.WriteString(green.Sprint("File sharing server is running") + "\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Shared folder: %s\n", cyan.Sprint(b.ShareDir))
	fmt.Fprintf(&sb, "Local network: %s\n", cyan.Sprint(b.LocalURL))
	if b.TunnelURL != "" {
		fmt.Fprintf(&sb, "Internet:      %s\n", cyan.Sprint(b.TunnelURL))
	}
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "Upload with curl: curl -F \"files=@filename.ext\" %s/api/v1/upload\n", b.LocalURL)
	return sb.String()
}

// FormatSize renders a byte count for humans, e.g. "10 MB"
func FormatSize(size int64) string {
	if size < 0 {
		return "-"
	}
	return humanize.Bytes(uint64(size))
}
