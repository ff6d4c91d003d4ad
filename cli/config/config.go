package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	// DefaultAPIBase is used when neither the config file nor the environment names a server
	DefaultAPIBase = "http://localhost:3000"

	appDirName     = "share-cli"
	configFileName = "config.json"
)

var (
	v  *viper.Viper
	mu sync.Mutex
)

func init() {
	if err := Reload(); err != nil {
		panic(fmt.Sprintf("Fatal error reading config file: %s", err))
	}
}

// Reload reads the config file and environment again
func Reload() error {
	mu.Lock()
	defer mu.Unlock()

	nv := viper.New()

	// Set default values
	nv.SetDefault("apiBase", DefaultAPIBase)

	// Environment variables
	nv.BindEnv("apiBase", "SHARE_API_BASE")

	nv.SetConfigFile(ConfigFile())
	nv.SetConfigType("json")
	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		// Config file not found; ignore error and use defaults
	}
	v = nv
	return nil
}

// ConfigFile is the path of the client config file
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appDirName, configFileName)
}

// GetAPIBase returns the server base URL without a trailing slash
func GetAPIBase() string {
	mu.Lock()
	defer mu.Unlock()
	return strings.TrimRight(v.GetString("apiBase"), "/")
}

// SetAPIBase persists base as the default server
func SetAPIBase(base string) error {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	file := ConfigFile()
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(map[string]string{"apiBase": base}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(file, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	mu.Lock()
	v.Set("apiBase", base)
	mu.Unlock()
	return nil
}
