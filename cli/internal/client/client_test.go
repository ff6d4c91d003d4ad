package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yal42d-debug/dosya-paylas/internal/events"
	"github.com/yal42d-debug/dosya-paylas/internal/gateway"
	miscService "github.com/yal42d-debug/dosya-paylas/internal/misc/service"
	shareService "github.com/yal42d-debug/dosya-paylas/internal/share/service"
	tunnelService "github.com/yal42d-debug/dosya-paylas/internal/tunnel/service"
	tunnelModel "github.com/yal42d-debug/dosya-paylas/pkg/tunnel"
)

type stubSession struct {
	done chan struct{}
	once sync.Once
}

func (s *stubSession) URL() string           { return "https://quiet-fox.loca.lt" }
func (s *stubSession) Done() <-chan struct{} { return s.done }
func (s *stubSession) Err() error            { return nil }
func (s *stubSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Open(ctx context.Context, localPort int) (tunnelService.Session, error) {
	return &stubSession{done: make(chan struct{})}, nil
}

func newServer(t *testing.T) (*Client, string) {
	t.Helper()
	root := t.TempDir()
	registry, err := shareService.Resolve([]string{root})
	require.NoError(t, err)
	broadcaster := events.NewBroadcaster()
	tunnel := tunnelService.NewManager(tunnelService.Config{Provider: stubProvider{}, LocalPort: 3000}, broadcaster)
	gw := gateway.New(gateway.Options{
		Share:    shareService.New(registry, broadcaster),
		Tunnel:   tunnel,
		Misc:     miscService.New(t.TempDir()),
		LocalURL: "http://192.168.1.10:3000",
	})
	server := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		tunnel.Stop()
		server.Close()
	})
	return New(server.URL + "/"), root
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFileOperations(t *testing.T) {
	c, root := newServer(t)
	ctx := context.Background()
	src := t.TempDir()

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, root, info.ShareDir)
	assert.Nil(t, info.TunnelURL)

	files, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	result, err := c.Upload(ctx,
		writeFile(t, src, "café.png", "bytes of a picture"),
		writeFile(t, src, "report (draft).pdf", "pdf"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"café.png", "report (draft).pdf"}, result.Files)

	files, err = c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	dst := t.TempDir()
	path, err := c.Download(ctx, "café.png", dst)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dst, "café.png"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bytes of a picture", string(data))

	require.NoError(t, c.Delete(ctx, "café.png"))
	err = c.Delete(ctx, "café.png")
	assert.True(t, IsNotFound(err))

	_, err = c.Download(ctx, "café.png", dst)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "File not found", apiErr.Message)

	entries, err := os.ReadDir(dst)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed download must not leave files behind")
}

func TestUploadMissingFile(t *testing.T) {
	c, _ := newServer(t)
	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = c.Upload(context.Background())
	assert.Error(t, err)
}

func TestSetDirectory(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	target := filepath.Join(t.TempDir(), "moved")
	result, err := c.SetDirectory(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, target, result.ShareDir)

	_, err = c.SetDirectory(ctx, "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestTunnelOperations(t *testing.T) {
	c, _ := newServer(t)
	ctx := context.Background()

	status, err := c.TunnelStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, tunnelModel.StateOff, status.State)

	started, err := c.TunnelStart(ctx)
	require.NoError(t, err)
	assert.Equal(t, tunnelModel.StateConnected, started.State)
	assert.Equal(t, "https://quiet-fox.loca.lt", started.URL)

	status, err = c.TunnelStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)

	require.NoError(t, c.TunnelStop(ctx))
	status, err = c.TunnelStatus(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)

	set, err := c.SetExternalURL(ctx, "https://share.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://share.example.com", set.URL)
	info, err := c.Info(ctx)
	require.NoError(t, err)
	require.NotNil(t, info.TunnelURL)
	assert.Equal(t, "https://share.example.com", *info.TunnelURL)

	require.NoError(t, c.ClearExternalURL(ctx))
	info, err = c.Info(ctx)
	require.NoError(t, err)
	assert.Nil(t, info.TunnelURL)
}

func TestWatchTunnel(t *testing.T) {
	c, _ := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errDone := errors.New("done")
	var states []tunnelModel.State
	err := c.WatchTunnel(ctx, func(s tunnelModel.Status) error {
		states = append(states, s.State)
		switch s.State {
		case tunnelModel.StateOff:
			if len(states) == 1 {
				go c.TunnelStart(ctx)
			}
		case tunnelModel.StateConnected:
			return errDone
		}
		return nil
	})
	assert.ErrorIs(t, err, errDone)
	assert.Equal(t, tunnelModel.StateOff, states[0])
	assert.Equal(t, tunnelModel.StateConnected, states[len(states)-1])
}

func TestWatchTunnelStopsWithContext(t *testing.T) {
	c, _ := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := c.WatchTunnel(ctx, func(s tunnelModel.Status) error {
		cancel()
		return nil
	})
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	c, _ := newServer(t)
	info, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v1", info.APIVersion)
}

func TestConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	c := New("http://" + addr)
	_, err = c.List(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ConnectionRefused, transportErr.Kind)
	assert.Contains(t, err.Error(), "connection refused")

	err = c.WatchTunnel(context.Background(), func(tunnelModel.Status) error { return nil })
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, ConnectionRefused, transportErr.Kind)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := New(server.URL).Info(ctx)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, Timeout, transportErr.Kind)
}

func TestBypassHeader(t *testing.T) {
	got := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("Bypass-Tunnel-Reminder")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := New(server.URL).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "true", <-got)
}

func TestLocalName(t *testing.T) {
	tests := []struct {
		disposition string
		fallback    string
		want        string
	}{
		{`attachment; filename=caf_.png; filename*=utf-8''caf%C3%A9.png`, "x", "café.png"},
		{`attachment; filename="plain.txt"`, "x", "plain.txt"},
		{"", "fallback.txt", "fallback.txt"},
		{`attachment; filename="../../etc/passwd"`, "x", "passwd"},
		{`attachment; filename="..\\..\\boot.ini"`, "x", "boot.ini"},
		{`attachment; filename=".."`, "x", "download"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, localName(tt.disposition, tt.fallback), tt.disposition)
	}
}
