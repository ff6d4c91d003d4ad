// Package version describes the share-cli build.
package version

import (
	"runtime"
	"time"

	miscModel "github.com/yal42d-debug/dosya-paylas/internal/misc/model"
)

// Set at build time via -ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	CommitID  = "unknown"
)

// Info returns the client build in the same shape the server reports its own
func Info() miscModel.VersionInfo {
	formatted := BuildTime
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		formatted = t.Format("Mon Jan 2 15:04:05 2006")
	}
	return miscModel.VersionInfo{
		Version:       Version,
		APIVersion:    "v1",
		GoVersion:     runtime.Version(),
		GitCommit:     CommitID,
		BuildTime:     BuildTime,
		FormattedTime: formatted,
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
}
