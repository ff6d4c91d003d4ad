package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yal42d-debug/dosya-paylas/internal/common"
	"github.com/yal42d-debug/dosya-paylas/internal/notify"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
	shareModel "github.com/yal42d-debug/dosya-paylas/pkg/share"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

// Timeout for one announcement
const announceTimeout = 30 * time.Second

// ShareSource is the part of the share service the heartbeat reads
type ShareSource interface {
	Root() string
	List(ctx context.Context) []shareModel.FileEntry
}

// TunnelSource is the part of the tunnel manager the heartbeat reads
type TunnelSource interface {
	Status() tunnelModel.Status
}

// Manager manages cron jobs
type Manager struct {
	cron     *cron.Cron
	logger   *logger.Logger
	schedule string
	localURL string
	share    ShareSource
	tunnel   TunnelSource
	notifier notify.Notifier
	started  time.Time
}

// NewManager creates a new cron manager. An empty schedule disables the
// heartbeat.
func NewManager(logger *logger.Logger, schedule, localURL string, share ShareSource, tunnel TunnelSource, notifier notify.Notifier) *Manager {
	return &Manager{
		cron:     cron.New(cron.WithLogger(cron.DefaultLogger)),
		logger:   logger,
		schedule: schedule,
		localURL: localURL,
		share:    share,
		tunnel:   tunnel,
		notifier: notifier,
		started:  time.Now(),
	}
}

// Start starts the cron manager
func (m *Manager) Start() error {
	if m.schedule != "" {
		if _, err := m.cron.AddFunc(m.schedule, m.heartbeat); err != nil {
			return fmt.Errorf("failed to add heartbeat job: %w", err)
		}
	}

	m.cron.Start()
	m.logger.Info("Cron manager started")
	return nil
}

// Stop stops the cron manager and waits for a running job
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
	m.logger.Info("Cron manager stopped")
}

// heartbeat runs the announcement job
func (m *Manager) heartbeat() {
	m.logger.Debug("Running scheduled heartbeat")
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	if err := m.Announce(ctx); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			m.logger.Error("Heartbeat timed out after %v", announceTimeout)
		} else {
			m.logger.Error("Failed to send heartbeat: %v", err)
		}
	}
}

// Announce sends the current public state to the notifier
func (m *Manager) Announce(ctx context.Context) error {
	status := m.tunnel.Status()
	uptime := time.Since(m.started).Truncate(time.Second)
	a := notify.Announcement{
		LocalURL:    m.localURL,
		PublicURL:   status.PublicURL(),
		TunnelState: status.State,
		ShareDir:    m.share.Root(),
		Files:       len(m.share.List(ctx)),
		Uptime:      uptime,
		Time:        time.Now(),
	}
	m.logger.Debug("Announcing after %s uptime", common.FormatDurationConcise(uptime))
	return m.notifier.Notify(ctx, a)
}
