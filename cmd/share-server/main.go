package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/yal42d-debug/dosya-paylas/config"
	"github.com/yal42d-debug/dosya-paylas/internal/common"
	"github.com/yal42d-debug/dosya-paylas/internal/cron"
	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/gateway"
	miscService "github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	"github.com/yal42d-debug/dosya-paylas/internal/notify"
	shareService "github.com/yal42d-debug/dosya-paylas/internal/share/service"
	tunnelService "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	_ "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service/impl/cloudflared"
	_ "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service/impl/localtunnel"
	"github.com/yal42d-debug/dosya-paylas/pkg/format"
	"github.com/yal42d-debug/dosya-paylas/pkg/logger"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

func main() {
	log := logger.New()

	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic recovered: %v", r)
			os.Exit(1)
		}
	}()

	// Initialize configuration
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.SetLevelName(cfg.Log.Level)

	// Resolve the shared directory; without one there is nothing to serve
	candidates := cfg.Candidates()
	if candidates == nil {
		candidates = shareService.DefaultCandidates()
	}
	registry, err := shareService.Resolve(candidates)
	if err != nil {
		log.Fatal("No usable shared directory: %v", err)
	}

	// Initialize services
	broadcaster := events.NewBroadcaster()
	shareSvc := shareService.New(registry, broadcaster)

	provider, err := tunnelService.NewProvider(cfg.Tunnel.Provider, tunnelService.ProviderConfig{
		Host:      cfg.Tunnel.Host,
		Subdomain: cfg.Tunnel.Subdomain,
		Binary:    cfg.Tunnel.Binary,
	})
	if err != nil {
		log.Fatal("Failed to initialize tunnel provider: %v (available: %v)", err, tunnelService.Providers())
	}
	tunnelMgr := tunnelService.NewManager(tunnelService.Config{
		Provider:       provider,
		LocalPort:      cfg.Server.Port,
		MaxAttempts:    cfg.Tunnel.MaxAttempts,
		RetryDelay:     cfg.Tunnel.RetryDelay,
		ConnectTimeout: cfg.Tunnel.ConnectTimeout,
	}, broadcaster)
	if cfg.Tunnel.ExternalURL != "" {
		if _, err := tunnelMgr.SetExternalURL(cfg.Tunnel.ExternalURL); err != nil {
			log.Warn("Ignoring tunnel URL: %v", err)
		}
	}

	miscSvc := miscService.New(cfg.State.Dir)
	localURL := common.LocalURL(cfg.Server.Port)

	gw := gateway.New(gateway.Options{
		Share:     shareSvc,
		Tunnel:    tunnelMgr,
		Misc:      miscSvc,
		LocalURL:  localURL,
		StartWait: cfg.Tunnel.StartWait,
	})
	format.LogAPIEndpoints(log, gw.Endpoints())

	// Initialize and start cron manager
	cronManager := cron.NewManager(log, cfg.Heartbeat.Schedule, localURL, shareSvc, tunnelMgr, notify.NewLogNotifier(log))
	if err := cronManager.Start(); err != nil {
		log.Fatal("Failed to start cron manager: %v", err)
	}
	defer cronManager.Stop()

	// Bind before printing anything users could act on
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("Failed to listen on %s: %v", addr, err)
	}
	log.Info("Starting server on %s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: %v", err)
		}
	}()

	if cfg.Tunnel.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Tunnel.StartWait)
		if _, err := tunnelMgr.StartAndWait(ctx); err != nil {
			log.Warn("Continuing without tunnel: %v", err)
		}
		cancel()
	}

	printBanner(localURL, shareSvc.Root(), tunnelMgr.PublicURL())
	go reportTunnel(log, tunnelMgr)

	// Wait for interrupt signal
	<-sigChan
	log.Info("Shutting down server...")

	tunnelMgr.Stop()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited properly")
}

func printBanner(localURL, shareDir, publicURL string) {
	fmt.Print(format.FormatBanner(format.Banner{
		ShareDir:  shareDir,
		LocalURL:  localURL,
		TunnelURL: publicURL,
	}))
	target := localURL
	if publicURL != "" {
		target = publicURL
	}
	fmt.Printf("Scan to open %s\n", target)
	miscService.PrintTerminal(os.Stdout, target)
}

// reportTunnel logs every public URL the tunnel acquires after startup
func reportTunnel(log *logger.Logger, tunnelMgr *tunnelService.Manager) {
	ch := tunnelMgr.Subscribe()
	defer tunnelMgr.Unsubscribe(ch)

	last := tunnelMgr.PublicURL()
	for ev := range ch {
		if ev.Tunnel == nil {
			continue
		}
		if ev.Tunnel.State == tunnelModel.StateError {
			log.Warn("Tunnel error: %s", ev.Tunnel.Message)
		}
		if u := ev.Tunnel.PublicURL(); u != last {
			last = u
			if u != "" {
				log.Success("Public URL: %s", u)
			} else {
				log.Info("Public URL withdrawn")
			}
		}
	}
}
