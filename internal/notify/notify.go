// Package notify announces the server's reachable addresses to the outside
// world. Only a log notifier ships; other transports implement Notifier.
package notify

import (
	"context"
	"time"

	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

// Announcement is the public state of the server at a point in time
type Announcement struct {
	LocalURL    string            `json:"localUrl"`
	PublicURL   string            `json:"publicUrl,omitempty"`
	TunnelState tunnelModel.State `json:"tunnelState"`
	ShareDir    string            `json:"shareDir"`
	Files       int               `json:"files"`
	Uptime      time.Duration     `json:"uptime"`
	Time        time.Time         `json:"time"`
}

// Notifier delivers announcements
type Notifier interface {
	Notify(ctx context.Context, a Announcement) error
}

// LogNotifier writes announcements to the server log
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, a Announcement) error {
	public := a.PublicURL
	if public == "" {
		public = "-"
	}
	n.logger.Info("Sharing %s (%d files) at %s, public %s, tunnel %s",
		a.ShareDir, a.Files, a.LocalURL, public, a.TunnelState)
	return nil
}
