// Package config holds the server configuration: defaults, an optional YAML
// file, environment variables and command line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved server configuration
type Config struct {
	Server    ServerConfig
	Share     ShareConfig
	Tunnel    TunnelConfig
	State     StateConfig
	Log       LogConfig
	Heartbeat HeartbeatConfig
}

type ServerConfig struct {
	Port int
}

type ShareConfig struct {
	// Dir is an explicit shared directory; it replaces the fallback chain
	Dir string
	// Fallback is tried in order when Dir is empty
	Fallback []string
}

type TunnelConfig struct {
	// Enabled starts the tunnel together with the server
	Enabled        bool
	Provider       string
	Host           string
	Subdomain      string
	Binary         string
	ExternalURL    string
	MaxAttempts    int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
	StartWait      time.Duration
}

type StateConfig struct {
	Dir string
}

type LogConfig struct {
	Level string
}

type HeartbeatConfig struct {
	// Schedule is a cron spec; empty disables the heartbeat
	Schedule string
}

var (
	instance *Config
	mu       sync.Mutex
)

// GetInstance returns the loaded configuration, loading it without command
// line flags on first use.
func GetInstance() *Config {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		cfg, err := load(nil)
		if err != nil {
			panic(fmt.Sprintf("Fatal error loading configuration: %s", err))
		}
		instance = cfg
	}
	return instance
}

// Load parses args and makes the result the instance returned by GetInstance.
// pflag.ErrHelp is returned when help was requested.
func Load(args []string) (*Config, error) {
	cfg, err := load(args)
	if err != nil {
		return nil, err
	}
	mu.Lock()
	instance = cfg
	mu.Unlock()
	return cfg, nil
}

func load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.BindEnv("server.port", "PORT")
	v.BindEnv("share.dir", "SHARE_DIR")
	v.BindEnv("tunnel.provider", "TUNNEL_PROVIDER")
	v.BindEnv("tunnel.externalUrl", "TUNNEL_URL")
	v.BindEnv("debug", "DEBUG")

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	bindFlags(v, flags)

	if err := readConfigFile(v, v.GetString("config")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{Port: v.GetInt("server.port")},
		Share: ShareConfig{
			Dir:      v.GetString("share.dir"),
			Fallback: v.GetStringSlice("share.fallback"),
		},
		Tunnel: TunnelConfig{
			Enabled:        v.GetBool("tunnel.enabled"),
			Provider:       v.GetString("tunnel.provider"),
			Host:           v.GetString("tunnel.host"),
			Subdomain:      v.GetString("tunnel.subdomain"),
			Binary:         v.GetString("tunnel.binary"),
			ExternalURL:    v.GetString("tunnel.externalUrl"),
			MaxAttempts:    v.GetInt("tunnel.maxAttempts"),
			RetryDelay:     v.GetDuration("tunnel.retryDelay"),
			ConnectTimeout: v.GetDuration("tunnel.connectTimeout"),
			StartWait:      v.GetDuration("tunnel.startWait"),
		},
		State:     StateConfig{Dir: expandHome(v.GetString("state.dir"))},
		Log:       LogConfig{Level: v.GetString("log.level")},
		Heartbeat: HeartbeatConfig{Schedule: v.GetString("heartbeat.schedule")},
	}
	if v.GetBool("debug") {
		cfg.Log.Level = "debug"
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("share.dir", "")
	v.SetDefault("share.fallback", []string{})
	v.SetDefault("tunnel.enabled", false)
	v.SetDefault("tunnel.provider", "localtunnel")
	v.SetDefault("tunnel.host", "")
	v.SetDefault("tunnel.subdomain", "")
	v.SetDefault("tunnel.binary", "cloudflared")
	v.SetDefault("tunnel.externalUrl", "")
	v.SetDefault("tunnel.maxAttempts", 3)
	v.SetDefault("tunnel.retryDelay", 2*time.Second)
	v.SetDefault("tunnel.connectTimeout", 15*time.Second)
	v.SetDefault("tunnel.startWait", 20*time.Second)
	v.SetDefault("state.dir", "~/.dosya-paylas")
	v.SetDefault("log.level", "info")
	v.SetDefault("heartbeat.schedule", "@every 10m")
	v.SetDefault("debug", false)
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("share-server", pflag.ContinueOnError)
	flags.String("dir", "", "directory to share")
	flags.Int("port", 3000, "port to listen on")
	flags.Bool("tunnel", false, "open a public tunnel at startup")
	flags.String("provider", "localtunnel", "tunnel provider (localtunnel, cloudflared)")
	flags.String("tunnel-url", "", "public URL of a tunnel managed outside this process")
	flags.String("config", "", "config file (default is config.yaml in ., $HOME/.dosya-paylas or /etc/dosya-paylas)")
	return flags
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	keys := map[string]string{
		"dir":        "share.dir",
		"port":       "server.port",
		"tunnel":     "tunnel.enabled",
		"provider":   "tunnel.provider",
		"tunnel-url": "tunnel.externalUrl",
		"config":     "config",
	}
	for name, key := range keys {
		v.BindPFlag(key, flags.Lookup(name))
	}
}

func readConfigFile(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.dosya-paylas", "/etc/dosya-paylas"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// Config file was found but another error was produced
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// Candidates is the ordered list of directories to try as the shared root,
// or nil to use the built-in chain
func (c *Config) Candidates() []string {
	if c.Share.Dir != "" {
		return []string{c.Share.Dir}
	}
	if len(c.Share.Fallback) > 0 {
		return c.Share.Fallback
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || (len(path) > 1 && path[:2] == "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
