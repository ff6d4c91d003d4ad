package service

import (
	"runtime"
	"time"

	"github.com/yal42d-debug/dosya-paylas/internal/misc/model"
)

var (
	// Version is the version of the server
	Version = "dev"
	// BuildTime is the time when the server was built
	BuildTime = "unknown"
	// CommitID is the git commit ID of the server
	CommitID = "unknown"
)

// MiscService handles version, QR and network metadata requests
type MiscService struct {
	network *NetworkStore
}

// New creates a new MiscService keeping network metadata in stateDir
func New(stateDir string) *MiscService {
	return &MiscService{
		network: NewNetworkStore(stateDir),
	}
}

// formatBuildTime formats the build time to a readable string
func formatBuildTime() string {
	if BuildTime == "unknown" {
		return BuildTime
	}

	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}

	return t.Format("Mon Jan 2 15:04:05 2006")
}

// GetVersion returns server version information
func (s *MiscService) GetVersion() *model.VersionInfo {
	return &model.VersionInfo{
		Version:       Version,
		APIVersion:    "v1",
		GoVersion:     runtime.Version(),
		GitCommit:     CommitID,
		BuildTime:     BuildTime,
		FormattedTime: formatBuildTime(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}
}

// GetNetwork returns the saved network with its join QR code
func (s *MiscService) GetNetwork() (*model.NetworkInfo, error) {
	info, err := s.network.Load()
	if err != nil {
		return nil, err
	}
	return withQRCode(info)
}

// SaveNetwork validates and persists info
func (s *MiscService) SaveNetwork(info *model.NetworkInfo) (*model.NetworkInfo, error) {
	saved, err := s.network.Save(info)
	if err != nil {
		return nil, err
	}
	return withQRCode(saved)
}

func withQRCode(info *model.NetworkInfo) (*model.NetworkInfo, error) {
	if info.SSID == "" {
		return info, nil
	}
	code, err := DataURL(WiFiPayload(info))
	if err != nil {
		return nil, err
	}
	info.QRCode = code
	return info, nil
}
