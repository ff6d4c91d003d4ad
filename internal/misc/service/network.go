package service

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yal42d-debug/dosya-paylas/internal/misc/model"
)

const (
	networkFile = "network.yaml"

	SecurityWPA  = "WPA"
	SecurityWEP  = "WEP"
	SecurityNone = "nopass"
)

// ErrInvalidNetwork is returned for network metadata that cannot be saved
var ErrInvalidNetwork = errors.New("invalid network info")

// NetworkStore persists NetworkInfo as YAML in the server state directory
type NetworkStore struct {
	mu   sync.Mutex
	path string
}

// NewNetworkStore creates a store for dir/network.yaml
func NewNetworkStore(dir string) *NetworkStore {
	return &NetworkStore{path: filepath.Join(dir, networkFile)}
}

// Load returns the saved network, or an empty one when nothing was saved
func (s *NetworkStore) Load() (*model.NetworkInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &model.NetworkInfo{Security: SecurityWPA}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var info model.NetworkInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if info.Security == "" {
		info.Security = SecurityWPA
	}
	return &info, nil
}

// Save validates info and writes it, replacing the previous file atomically
func (s *NetworkStore) Save(info *model.NetworkInfo) (*model.NetworkInfo, error) {
	clean, err := normalizeNetwork(info)
	if err != nil {
		return nil, err
	}

	data, err := yaml.Marshal(clean)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return nil, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("replace %s: %w", s.path, err)
	}
	return clean, nil
}

func normalizeNetwork(info *model.NetworkInfo) (*model.NetworkInfo, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidNetwork)
	}
	clean := &model.NetworkInfo{
		SSID:     strings.TrimSpace(info.SSID),
		Password: info.Password,
		Security: strings.TrimSpace(info.Security),
	}
	if clean.SSID == "" {
		return nil, fmt.Errorf("%w: ssid is required", ErrInvalidNetwork)
	}
	switch strings.ToUpper(clean.Security) {
	case "", "WPA", "WPA2", "WPA3":
		clean.Security = SecurityWPA
	case "WEP":
		clean.Security = SecurityWEP
	case "NOPASS", "NONE", "OPEN":
		clean.Security = SecurityNone
		clean.Password = ""
	default:
		return nil, fmt.Errorf("%w: unknown security %q", ErrInvalidNetwork, info.Security)
	}
	if clean.Security != SecurityNone && clean.Password == "" {
		return nil, fmt.Errorf("%w: password is required for %s", ErrInvalidNetwork, clean.Security)
	}
	return clean, nil
}
